// Package stackhash deduplicates kernel/userspace stack traces by content:
// FNV-1a-64 over the address vector (addresses only, never symbols),
// truncated to at most 20 addresses.
//
// The standard library's hash/fnv already implements FNV-1a-64 with the
// canonical offset basis (0xcbf29ce484222325) and prime (0x100000001b3);
// see DESIGN.md for why this one concern is grounded on the standard
// library rather than cloudwego-gopkg's hash/xfnv, whose 8-byte-per-round
// variant is explicitly non-cross-platform and would make the dedup hash
// depend on the consumer's CPU architecture.
package stackhash

import (
	"encoding/binary"
	"hash/fnv"
)

// MaxDepth is the maximum number of addresses folded into the hash.
const MaxDepth = 20

// Hash computes the FNV-1a-64 hash of addrs, truncated to MaxDepth
// addresses, each contributing its 8 little-endian bytes in order.
func Hash(addrs []uint64) uint64 {
	if len(addrs) > MaxDepth {
		addrs = addrs[:MaxDepth]
	}
	h := fnv.New64a()
	var buf [8]byte
	for _, a := range addrs {
		binary.LittleEndian.PutUint64(buf[:], a)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// OffsetBasis is the FNV-1a-64 offset basis, i.e. Hash(nil).
const OffsetBasis uint64 = 0xcbf29ce484222325
