// Package digest names encoded containers by content.
package digest

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 keyed digest.
type Hash [32]byte

// containerKey separates container digests from any other BLAKE3 use. Changing
// it renames every stored body.
var containerKey = [32]byte{
	'v', 'o', 'x', 'e', 'l', 'b', 'o', 'd', 'y', '.', 'c', 'o', 'n', 't', 'a', 'i',
	'n', 'e', 'r', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Container digests the uncompressed encoding, so the name survives a change
// of compression codec.
func Container(encoded []byte) Hash {
	h, err := blake3.NewKeyed(containerKey[:])
	if err != nil {
		// NewKeyed only fails on a key that is not 32 bytes.
		panic("digest: " + err.Error())
	}
	_, _ = h.Write(encoded)
	var out Hash
	h.Sum(out[:0])
	return out
}

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Short is the first 16 hex digits, used in file names.
func (h Hash) Short() string { return h.String()[:16] }

// Parse reads a 64-digit hex digest.
func Parse(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parse digest: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("parse digest: %d bytes, want %d", len(b), len(h))
	}
	copy(h[:], b)
	return h, nil
}
