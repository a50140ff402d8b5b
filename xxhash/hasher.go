// Package xxhash fingerprints extracted content with xxHash64.
package xxhash

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/docingest"
)

// Ensure Hasher implements docingest.Hasher at compile time.
var _ docingest.Hasher = Hasher{}

// Hasher computes hex-encoded xxHash64 digests.
type Hasher struct{}

// Sum returns the digest of data as 16 hex characters.
func (Hasher) Sum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
