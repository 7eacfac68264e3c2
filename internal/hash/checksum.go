// Package hash computes the artifact integrity checksum stored in headers.
package hash

import "github.com/cespare/xxhash/v2"

// Checksum returns the xxHash64 of data.
func Checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// ChecksumParts returns the xxHash64 of the concatenation of parts without
// materializing it.
func ChecksumParts(parts ...[]byte) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.Write(p)
	}

	return d.Sum64()
}
