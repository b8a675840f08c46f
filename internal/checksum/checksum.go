// Package checksum computes content fingerprints used to skip redundant work.
package checksum

import "github.com/cespare/xxhash/v2"

// Sum returns the xxhash64 digest of text.
func Sum(text string) uint64 {
	return xxhash.Sum64String(text)
}
