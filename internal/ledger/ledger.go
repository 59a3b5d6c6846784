package ledger

import (
	"context"
	"errors"

	"github.com/jmerrifield20/chainledger/internal/chain"
)

var (
	// ErrNotFound is returned by Get for an index outside the chain.
	ErrNotFound = errors.New("ledger: record not found")

	// ErrStoreDiverged is returned by a Store when the record being saved
	// does not extend the tail it already holds.
	ErrStoreDiverged = errors.New("ledger: store tail does not match record")
)

// Ledger is the interface served by the HTTP API.
// ChainLedger is the only implementation; the interface keeps handlers testable.
type Ledger interface {
	// Append links a new record carrying payload after the current tail.
	Append(ctx context.Context, payload string) (chain.Record, error)

	// Get returns the record at the given zero-based index.
	Get(ctx context.Context, index int) (chain.Record, error)

	// Records returns up to limit records starting at index from.
	// A limit <= 0 returns everything from from to the tail.
	Records(ctx context.Context, from, limit int) ([]chain.Record, error)

	// Len returns the total number of records (including genesis).
	Len(ctx context.Context) (int, error)

	// Root returns the digest of the tail record.
	Root(ctx context.Context) (string, error)

	// Verify walks the chain and returns a *chain.IntegrityError for the
	// first record that fails, or nil.
	Verify(ctx context.Context) error

	// Analyze summarises the chain.
	Analyze(ctx context.Context) (chain.Report, error)

	// Find returns the lowest-index record whose payload equals query.
	// A miss is reported through the bool, never as an error.
	Find(ctx context.Context, query string) (chain.Record, bool, error)

	// Digest names the digest function the chain uses.
	Digest() string
}

// Store mirrors a chain outside the process.
type Store interface {
	// Load returns every stored record in index order.
	Load(ctx context.Context) ([]chain.Record, error)

	// Save persists r. It must fail with ErrStoreDiverged unless r extends
	// the stored tail (or is the genesis record of an empty store).
	Save(ctx context.Context, r chain.Record) error

	Close() error
}
