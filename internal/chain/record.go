package chain

import (
	"strconv"
	"strings"
	"time"
)

// Record is a single block of the chain. Records handed out by a Chain are
// copies; modifying one has no effect on the chain.
type Record struct {
	Index      int       `json:"index"`
	Payload    string    `json:"payload"`
	PrevDigest string    `json:"prev_digest"`
	Digest     string    `json:"digest"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsGenesis reports whether r is the first record of its chain.
func (r Record) IsGenesis() bool {
	return r.Index == 0
}

func newRecord(index int, payload, prevDigest string, now time.Time, d Digester) Record {
	r := Record{
		Index:      index,
		Payload:    payload,
		PrevDigest: prevDigest,
		CreatedAt:  now,
	}
	r.Digest = r.compute(d)
	return r
}

// compute digests the record's fields in the fixed order
// index, payload, previous digest, creation time.
func (r *Record) compute(d Digester) string {
	return d.Digest(digestInput(r.Index, r.Payload, r.PrevDigest, r.CreatedAt))
}

func digestInput(index int, payload, prevDigest string, createdAt time.Time) []byte {
	var b strings.Builder
	b.Grow(len(payload) + len(prevDigest) + 48)
	b.WriteString(strconv.Itoa(index))
	b.WriteByte('|')
	b.WriteString(payload)
	b.WriteByte('|')
	b.WriteString(prevDigest)
	b.WriteByte('|')
	b.WriteString(createdAt.UTC().Format(time.RFC3339Nano))
	return []byte(b.String())
}
