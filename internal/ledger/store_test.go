package ledger_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmerrifield20/chainledger/internal/chain"
	"github.com/jmerrifield20/chainledger/internal/ledger"
	"go.uber.org/zap"
)

// storeFactories open a fresh store in dir, or reopen the one already there.
var storeFactories = map[string]func(t *testing.T, dir string) ledger.Store{
	"sqlite": func(t *testing.T, dir string) ledger.Store {
		s, err := ledger.OpenSQLiteStore(filepath.Join(dir, "ledger.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		return s
	},
	"badger": func(t *testing.T, dir string) ledger.Store {
		s, err := ledger.OpenBadgerStore(filepath.Join(dir, "badger"), zap.NewNop())
		if err != nil {
			t.Fatalf("open badger: %v", err)
		}
		return s
	},
}

func TestStores_roundTrip(t *testing.T) {
	for name, open := range storeFactories {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()

			l, err := ledger.Open(ctx, ledger.Config{Digest: "blake2b"}, open(t, dir), zap.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			for _, p := range []string{"a", "b", "a"} {
				if _, err := l.Append(ctx, p); err != nil {
					t.Fatal(err)
				}
			}
			want, _ := l.Records(ctx, 0, 0)
			if err := l.Close(); err != nil {
				t.Fatal(err)
			}

			reopened, err := ledger.Open(ctx, ledger.Config{Digest: "blake2b"}, open(t, dir), zap.NewNop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer reopened.Close()

			got, _ := reopened.Records(ctx, 0, 0)
			if len(got) != len(want) {
				t.Fatalf("records: got %d, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i].Digest != want[i].Digest || got[i].Payload != want[i].Payload {
					t.Errorf("record %d: got %+v, want %+v", i, got[i], want[i])
				}
				if !got[i].CreatedAt.Equal(want[i].CreatedAt) {
					t.Errorf("record %d timestamp: got %v, want %v", i, got[i].CreatedAt, want[i].CreatedAt)
				}
			}

			next, err := reopened.Append(ctx, "c")
			if err != nil {
				t.Fatal(err)
			}
			if next.Index != 4 || next.PrevDigest != want[3].Digest {
				t.Errorf("append after reopen: got %+v", next)
			}
		})
	}
}

func TestStores_rejectDivergentRecord(t *testing.T) {
	for name, open := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := open(t, t.TempDir())
			defer s.Close()

			c := chain.New()
			orphan := c.Append("orphan")
			if err := s.Save(ctx, orphan); !errors.Is(err, ledger.ErrStoreDiverged) {
				t.Fatalf("save onto empty store: got %v, want ErrStoreDiverged", err)
			}

			if err := s.Save(ctx, c.Genesis()); err != nil {
				t.Fatal(err)
			}
			forked := chain.New().Append("fork")
			if err := s.Save(ctx, forked); !errors.Is(err, ledger.ErrStoreDiverged) {
				t.Errorf("save of forked record: got %v, want ErrStoreDiverged", err)
			}
			if err := s.Save(ctx, orphan); err != nil {
				t.Errorf("save of linked record: %v", err)
			}

			records, err := s.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(records) != 2 {
				t.Errorf("stored records: got %d, want 2", len(records))
			}
		})
	}
}
