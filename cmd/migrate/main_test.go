package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVersionFromFile(t *testing.T) {
	tests := []struct {
		name    string
		want    int64
		wantErr bool
	}{
		{"001_ledger_records.up.sql", 1, false},
		{"042_add_index.up.sql", 42, false},
		{"init.up.sql", 0, true},
		{"abc_init.up.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := versionFromFile(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCollect_ordersUpMigrations(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"010_later.up.sql",
		"002_second.up.sql",
		"002_second.down.sql",
		"001_first.up.sql",
		"README.md",
	)

	got, err := collect(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("got %d migrations, want %d: %+v", len(got), len(want), got)
	}
	for i, m := range got {
		if m.version != want[i] {
			t.Errorf("migration %d: version %d, want %d", i, m.version, want[i])
		}
	}
}

func TestCollect_duplicateVersion(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "001_a.up.sql", "1_b.up.sql")

	if _, err := collect(dir); err == nil {
		t.Fatal("expected error for duplicate version")
	}
}

func TestCollect_shippedMigrations(t *testing.T) {
	got, err := collect(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || got[0].file != "001_ledger_records.up.sql" {
		t.Errorf("unexpected shipped migrations %+v", got)
	}
}
