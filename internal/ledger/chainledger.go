package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmerrifield20/chainledger/internal/chain"
	"go.uber.org/zap"
)

// Config selects how the underlying chain is built.
type Config struct {
	// Digest is a built-in digester name (see chain.DigesterNames).
	// Defaults to "xxhash".
	Digest string

	// Clock overrides time.Now; used by tests.
	Clock func() time.Time
}

func (c Config) options() ([]chain.Option, string, error) {
	name := c.Digest
	if name == "" {
		name = "xxhash"
	}
	d, err := chain.DigesterByName(name)
	if err != nil {
		return nil, "", err
	}
	return []chain.Option{chain.WithDigester(d), chain.WithClock(c.Clock)}, name, nil
}

// AppendHook is called after every successful append.
type AppendHook func(r chain.Record)

// ChainLedger is a thread-safe Ledger over a single chain.Chain.
type ChainLedger struct {
	mu       sync.RWMutex
	chain    *chain.Chain
	digest   string
	store    Store
	onAppend AppendHook
	logger   *zap.Logger
}

// New creates an in-memory ledger holding only the genesis record.
func New(cfg Config, logger *zap.Logger) (*ChainLedger, error) {
	opts, name, err := cfg.options()
	if err != nil {
		return nil, err
	}
	return &ChainLedger{
		chain:  chain.New(opts...),
		digest: name,
		logger: logger,
	}, nil
}

// Open restores a ledger from store, seeding an empty store with a fresh
// genesis record. Every later append is written to store before it becomes
// visible in memory.
func Open(ctx context.Context, cfg Config, store Store, logger *zap.Logger) (*ChainLedger, error) {
	opts, name, err := cfg.options()
	if err != nil {
		return nil, err
	}

	records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	var c *chain.Chain
	if len(records) == 0 {
		c = chain.New(opts...)
		if err := store.Save(ctx, c.Genesis()); err != nil {
			return nil, fmt.Errorf("seed genesis: %w", err)
		}
		logger.Info("ledger store initialised", zap.String("genesis", c.Genesis().Digest))
	} else {
		c, err = chain.Restore(records, opts...)
		if err != nil {
			return nil, fmt.Errorf("restore ledger: %w", err)
		}
		logger.Info("ledger restored",
			zap.Int("records", c.Len()),
			zap.String("root", c.Tail().Digest),
		)
	}

	return &ChainLedger{
		chain:  c,
		digest: name,
		store:  store,
		logger: logger,
	}, nil
}

// SetAppendHook installs fn to be called after each append.
func (l *ChainLedger) SetAppendHook(fn AppendHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onAppend = fn
}

// Append implements Ledger.
func (l *ChainLedger) Append(ctx context.Context, payload string) (chain.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := l.chain.Next(payload)
	if l.store != nil {
		if err := l.store.Save(ctx, r); err != nil {
			return chain.Record{}, fmt.Errorf("persist record %d: %w", r.Index, err)
		}
	}
	if err := l.chain.Commit(r); err != nil {
		return chain.Record{}, fmt.Errorf("commit record %d: %w", r.Index, err)
	}

	l.logger.Debug("ledger record appended",
		zap.Int("idx", r.Index),
		zap.String("digest", r.Digest),
	)
	if l.onAppend != nil {
		l.onAppend(r)
	}
	return r, nil
}

// Get implements Ledger.
func (l *ChainLedger) Get(_ context.Context, index int) (chain.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.chain.At(index)
	if !ok {
		return chain.Record{}, fmt.Errorf("index %d: %w", index, ErrNotFound)
	}
	return r, nil
}

// Records implements Ledger.
func (l *ChainLedger) Records(_ context.Context, from, limit int) ([]chain.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if from < 0 {
		from = 0
	}
	n := l.chain.Len()
	if from >= n {
		return []chain.Record{}, nil
	}
	end := n
	if limit > 0 && limit < n-from {
		end = from + limit
	}

	out := make([]chain.Record, 0, end-from)
	for r := range l.chain.All() {
		if r.Index >= end {
			break
		}
		if r.Index >= from {
			out = append(out, r)
		}
	}
	return out, nil
}

// Len implements Ledger.
func (l *ChainLedger) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain.Len(), nil
}

// Root implements Ledger.
func (l *ChainLedger) Root(_ context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain.Tail().Digest, nil
}

// Verify implements Ledger.
func (l *ChainLedger) Verify(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain.Verify()
}

// Analyze implements Ledger.
func (l *ChainLedger) Analyze(_ context.Context) (chain.Report, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain.Analyze(), nil
}

// Find implements Ledger.
func (l *ChainLedger) Find(_ context.Context, query string) (chain.Record, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.chain.FindByPayload(query)
	return r, ok, nil
}

// Digest implements Ledger.
func (l *ChainLedger) Digest() string {
	return l.digest
}

// Close releases the backing store, if any.
func (l *ChainLedger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
