package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmerrifield20/chainledger/internal/chain"
	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubVerifier struct {
	err error
	n   int
}

func (s *stubVerifier) Verify(context.Context) error     { return s.err }
func (s *stubVerifier) Len(context.Context) (int, error) { return s.n, nil }

// ── Tests ────────────────────────────────────────────────────────────────

func TestCheck_valid(t *testing.T) {
	a := New(&stubVerifier{n: 3}, Config{}, zap.NewNop())

	res := a.Check(context.Background())
	if !res.Valid {
		t.Fatal("expected valid result")
	}
	if res.Records != 3 || res.Index != -1 || res.Reason != "" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestCheck_integrityError(t *testing.T) {
	v := &stubVerifier{n: 4, err: &chain.IntegrityError{Index: 2, Err: chain.ErrLinkMismatch}}
	a := New(v, Config{}, zap.NewNop())

	res := a.Check(context.Background())
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if res.Index != 2 {
		t.Errorf("index: got %d, want 2", res.Index)
	}
	if res.Reason != "link mismatch" {
		t.Errorf("reason: got %q, want %q", res.Reason, "link mismatch")
	}
}

func TestCheck_otherError(t *testing.T) {
	a := New(&stubVerifier{err: errors.New("boom")}, Config{}, zap.NewNop())

	res := a.Check(context.Background())
	if res.Valid || res.Index != -1 || res.Reason != "boom" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestCheck_statusTransitions(t *testing.T) {
	v := &stubVerifier{n: 2}
	a := New(v, Config{}, zap.NewNop())

	var statuses []bool
	var metrics int
	a.SetStatus(func(valid bool) { statuses = append(statuses, valid) })
	a.SetMetricsRecord(func(bool) { metrics++ })

	ctx := context.Background()
	a.Check(ctx) // first pass: reported
	a.Check(ctx) // unchanged: not reported
	v.err = &chain.IntegrityError{Index: 1, Err: chain.ErrDigestMismatch}
	a.Check(ctx) // valid → invalid
	a.Check(ctx) // unchanged
	v.err = nil
	a.Check(ctx) // invalid → valid

	want := []bool{true, false, true}
	if len(statuses) != len(want) {
		t.Fatalf("statuses: got %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("statuses[%d]: got %v, want %v", i, statuses[i], want[i])
		}
	}
	if metrics != 5 {
		t.Errorf("metrics calls: got %d, want 5", metrics)
	}

	last, ok := a.Last()
	if !ok || !last.Valid {
		t.Errorf("Last(): got (%+v, %v)", last, ok)
	}
}

func TestStart_stopsOnQuit(t *testing.T) {
	a := New(&stubVerifier{n: 1}, Config{Interval: 5 * time.Millisecond}, zap.NewNop())

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		a.Start(quit)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	close(quit)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after quit")
	}
	if _, ok := a.Last(); !ok {
		t.Error("expected at least one audit pass")
	}
}
