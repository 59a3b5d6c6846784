// Package chain implements an append-only, digest-linked sequence of records.
//
// The chain always begins with a genesis record (index 0, previous digest "0").
// Every later record stores the digest of its predecessor, and its own digest
// is computed once at construction over index, payload, previous digest and
// creation time. Changing any stored field afterwards is detectable via Verify.
//
// A Chain is not safe for concurrent use. Callers that share one across
// goroutines must serialise every call behind a single lock; see the ledger
// package for a wrapper that does so.
package chain

import (
	"iter"
	"time"
)

const (
	// GenesisPrevDigest is the sentinel previous digest of the genesis record.
	GenesisPrevDigest = "0"

	// GenesisPayload is the fixed payload of every genesis record.
	GenesisPayload = "Genesis Block"
)

// Chain is an arena of records addressed by index. The predecessor of the
// record at index i is always the record at index i-1.
type Chain struct {
	records  []Record
	digester Digester
	clock    func() time.Time
}

// Option configures a Chain.
type Option func(*Chain)

// WithDigester sets the digest function. The default is XXHash.
func WithDigester(d Digester) Option {
	return func(c *Chain) {
		if d != nil {
			c.digester = d
		}
	}
}

// WithClock overrides the timestamp source used by Append.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) {
		if now != nil {
			c.clock = now
		}
	}
}

func newChain(opts []Option) *Chain {
	c := &Chain{
		digester: XXHash,
		clock:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// New creates a chain containing only the genesis record.
func New(opts ...Option) *Chain {
	c := newChain(opts)
	c.records = append(c.records, newRecord(0, GenesisPayload, GenesisPrevDigest, c.clock(), c.digester))
	return c
}

// Append links a new record carrying payload after the current tail and
// returns a copy of it.
func (c *Chain) Append(payload string) Record {
	r := c.Next(payload)
	c.records = append(c.records, r)
	return r
}

// Next builds the record that Append(payload) would link, without linking it.
// Commit must be called with the returned record to publish it.
func (c *Chain) Next(payload string) Record {
	tail := c.records[len(c.records)-1]
	return newRecord(tail.Index+1, payload, tail.Digest, c.clock(), c.digester)
}

// Commit links r, previously built by Next, as the new tail. It returns
// ErrIndexMismatch or ErrLinkMismatch if the tail moved since Next was called,
// and ErrDigestMismatch if r was altered after Next built it.
func (c *Chain) Commit(r Record) error {
	tail := c.records[len(c.records)-1]
	if r.Digest != r.compute(c.digester) {
		return &IntegrityError{Index: r.Index, Err: ErrDigestMismatch}
	}
	if r.Index != tail.Index+1 {
		return &IntegrityError{Index: r.Index, Err: ErrIndexMismatch}
	}
	if r.PrevDigest != tail.Digest {
		return &IntegrityError{Index: r.Index, Err: ErrLinkMismatch}
	}
	c.records = append(c.records, r)
	return nil
}

// Len returns the number of records, genesis included.
func (c *Chain) Len() int {
	return len(c.records)
}

// At returns the record at index i.
func (c *Chain) At(i int) (Record, bool) {
	if i < 0 || i >= len(c.records) {
		return Record{}, false
	}
	return c.records[i], true
}

// Genesis returns the first record.
func (c *Chain) Genesis() Record {
	return c.records[0]
}

// Tail returns the most recently appended record.
func (c *Chain) Tail() Record {
	return c.records[len(c.records)-1]
}

// Digester returns the digest function the chain was built with.
func (c *Chain) Digester() Digester {
	return c.digester
}

// All yields every record in index order. Each call starts again from genesis.
func (c *Chain) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, r := range c.records {
			if !yield(r) {
				return
			}
		}
	}
}

// Records returns a copy of every record in index order.
func (c *Chain) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// FindByPayload returns the lowest-index record whose payload equals query.
func (c *Chain) FindByPayload(query string) (Record, bool) {
	for _, r := range c.records {
		if r.Payload == query {
			return r, true
		}
	}
	return Record{}, false
}

// IsValid reports whether every record after genesis carries its own digest
// and links to its predecessor's.
func (c *Chain) IsValid() bool {
	return c.Verify() == nil
}

// Verify walks the chain from the record after genesis and returns an
// *IntegrityError describing the first record that fails, or nil.
func (c *Chain) Verify() error {
	for i := 1; i < len(c.records); i++ {
		curr, prev := &c.records[i], &c.records[i-1]
		if curr.Digest != curr.compute(c.digester) {
			return &IntegrityError{Index: curr.Index, Err: ErrDigestMismatch}
		}
		if curr.PrevDigest != prev.Digest {
			return &IntegrityError{Index: curr.Index, Err: ErrLinkMismatch}
		}
	}
	return nil
}

// Restore rebuilds a chain from previously stored records. Timestamps are
// taken from the records, never from the clock. The result is rejected unless
// it starts with the standard genesis record, has contiguous indices and verifies.
func Restore(records []Record, opts ...Option) (*Chain, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	c := newChain(opts)

	g := records[0]
	if g.Index != 0 || g.Payload != GenesisPayload || g.PrevDigest != GenesisPrevDigest ||
		g.Digest != g.compute(c.digester) {
		return nil, &IntegrityError{Index: g.Index, Err: ErrBadGenesis}
	}
	for i, r := range records {
		if r.Index != i {
			return nil, &IntegrityError{Index: r.Index, Err: ErrIndexMismatch}
		}
	}

	c.records = make([]Record, len(records))
	copy(c.records, records)
	if err := c.Verify(); err != nil {
		return nil, err
	}
	return c, nil
}
