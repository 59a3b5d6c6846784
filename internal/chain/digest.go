package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// Digester derives a record's identity from its encoded fields.
// Implementations must be deterministic and total. They are not required to
// be collision resistant, so a chain is only as tamper-evident as its digester.
type Digester interface {
	Digest(data []byte) string
}

// DigestFunc adapts an ordinary function to the Digester interface.
type DigestFunc func(data []byte) string

// Digest implements Digester.
func (f DigestFunc) Digest(data []byte) string { return f(data) }

var (
	// XXHash is the default digester: a fast, non-cryptographic 64-bit hash
	// rendered in decimal.
	XXHash Digester = DigestFunc(func(data []byte) string {
		return strconv.FormatUint(xxhash.Sum64(data), 10)
	})

	// SHA256 renders the hex SHA-256 of the input.
	SHA256 Digester = DigestFunc(func(data []byte) string {
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	})

	// BLAKE2b renders the hex BLAKE2b-256 of the input.
	BLAKE2b Digester = DigestFunc(func(data []byte) string {
		sum := blake2b.Sum256(data)
		return hex.EncodeToString(sum[:])
	})
)

var digesters = map[string]Digester{
	"xxhash":  XXHash,
	"sha256":  SHA256,
	"blake2b": BLAKE2b,
}

// DigesterByName looks up one of the built-in digesters.
func DigesterByName(name string) (Digester, error) {
	d, ok := digesters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDigest, name)
	}
	return d, nil
}

// DigesterNames lists the built-in digester names in sorted order.
func DigesterNames() []string {
	names := make([]string, 0, len(digesters))
	for n := range digesters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
