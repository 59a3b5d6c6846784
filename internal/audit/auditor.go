// Package audit re-verifies a ledger on a fixed interval and reports
// transitions between an intact and a broken chain.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmerrifield20/chainledger/internal/chain"
	"go.uber.org/zap"
)

// Config holds auditor configuration.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Verifier is the part of ledger.Ledger the auditor needs.
type Verifier interface {
	Verify(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// Result is the outcome of one audit pass.
type Result struct {
	Valid   bool
	Records int
	Index   int    // first failing index; -1 when valid
	Reason  string // failed check; empty when valid
	Err     error
	At      time.Time
}

// MetricsRecordFunc is an optional callback for recording audit results.
type MetricsRecordFunc func(valid bool)

// StatusFunc is an optional callback invoked whenever validity changes,
// and once after the first pass.
type StatusFunc func(valid bool)

// Auditor runs periodic integrity checks.
type Auditor struct {
	ledger    Verifier
	cfg       Config
	onMetrics MetricsRecordFunc
	onStatus  StatusFunc
	logger    *zap.Logger

	mu   sync.Mutex
	last *Result
}

// New creates an Auditor.
func New(ledger Verifier, cfg Config, logger *zap.Logger) *Auditor {
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Auditor{
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (a *Auditor) SetMetricsRecord(fn MetricsRecordFunc) {
	a.onMetrics = fn
}

// SetStatus configures the status change callback.
func (a *Auditor) SetStatus(fn StatusFunc) {
	a.onStatus = fn
}

// Start runs the audit loop until quit is closed. The first pass runs
// immediately.
func (a *Auditor) Start(quit <-chan struct{}) {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	a.runOnce()
	for {
		select {
		case <-ticker.C:
			a.runOnce()
		case <-quit:
			return
		}
	}
}

func (a *Auditor) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeout)
	defer cancel()
	a.Check(ctx)
}

// Check verifies the ledger once and returns the result.
func (a *Auditor) Check(ctx context.Context) Result {
	res := Result{Valid: true, Index: -1, At: time.Now().UTC()}

	n, err := a.ledger.Len(ctx)
	if err != nil {
		a.logger.Error("audit: ledger length", zap.Error(err))
	}
	res.Records = n

	if err := a.ledger.Verify(ctx); err != nil {
		res.Valid = false
		res.Err = err
		var ie *chain.IntegrityError
		if errors.As(err, &ie) {
			res.Index = ie.Index
			res.Reason = ie.Reason()
		} else {
			res.Reason = err.Error()
		}
	}

	if a.onMetrics != nil {
		a.onMetrics(res.Valid)
	}

	a.mu.Lock()
	prev := a.last
	a.last = &res
	a.mu.Unlock()

	switch {
	case prev == nil || prev.Valid != res.Valid:
		if res.Valid {
			a.logger.Info("audit: ledger intact", zap.Int("records", res.Records))
		} else {
			a.logger.Warn("audit: ledger integrity check FAILED",
				zap.Int("records", res.Records),
				zap.Int("index", res.Index),
				zap.String("reason", res.Reason),
			)
		}
		if a.onStatus != nil {
			a.onStatus(res.Valid)
		}
	default:
		a.logger.Debug("audit: pass", zap.Bool("valid", res.Valid), zap.Int("records", res.Records))
	}
	return res
}

// Last returns the most recent result, if any.
func (a *Auditor) Last() (Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return Result{}, false
	}
	return *a.last, true
}
