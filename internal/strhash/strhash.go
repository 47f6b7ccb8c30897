// Package strhash implements the string hash used throughout the
// keyspace: the top-level entry table and every sorted set's
// by-member-name index. It is intentionally not hash/fnv: the digest
// here adds each byte and then multiplies, which doesn't match any of
// the standard library's FNV variants (those XOR the byte into
// the hash before multiplying; this one adds first), so swapping in
// hash/fnv would silently change which bucket every key lands in.
package strhash

const seed uint64 = 0x811C9DC5
const prime uint64 = 0x01000193

// String hashes s with the table's chosen digest.
func String(s string) uint64 {
	h := seed
	for i := 0; i < len(s); i++ {
		h = (h + uint64(s[i])) * prime
	}
	return h
}

// Equal is the trivial string equality used to disambiguate hash
// collisions.
func Equal(a, b string) bool {
	return a == b
}
