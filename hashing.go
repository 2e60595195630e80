// Content hash implementations shared by ReferenceList block dedup
// fingerprints and cache-directory logical-name resolution.
//
// Three algorithms are supported, selectable via Config.HashAlgorithm,
// the same three-way switch the 16-hex-char object identifier used
// elsewhere in this ecosystem's document stores: a fast default, a
// dependency-free fallback, and a best-distribution option for adversarial
// inputs.
package reachability

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// contentHash64 returns a 64-bit fingerprint of b using the specified
// algorithm. Used by ReferenceList.Flush to skip rewriting a block
// whose bytes are unchanged, and to derive stable cache-directory file
// names from logical names.
func contentHash64(b []byte, alg int) uint64 {
	switch alg {
	case AlgXXHash3:
		return xxh3.Hash(b)
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write(b)
		return h.Sum64()
	case AlgBlake2b:
		h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
		h.Write(b)
		return binary.BigEndian.Uint64(h.Sum(nil))
	default:
		return xxh3.Hash(b)
	}
}

// hashObjectID folds a 64-bit fingerprint of an ObjectId into a
// non-zero 32-bit value for use as a HashIntMap key when the raw 64-bit identifier itself is too wide or
// too sparse to index directly.
func hashObjectID(id ObjectId, alg int) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	h := contentHash64(buf[:], alg)
	v := uint32(h ^ (h >> 32))
	if v == 0 {
		v = 1 // HashIntMap reserves 0 as "empty slot"
	}
	return v
}
