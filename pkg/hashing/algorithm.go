// Package hashing defines the stable content-hashing algorithms used to
// compute FileHash and ContextHash digests. The algorithm itself is outside
// the caching/validation core (per the external collaborator contract), but
// a concrete, stable-across-processes implementation is required to exercise
// it, so this package plays that role.
package hashing

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/cespare/xxhash/v2"
)

// Algorithm identifies a content-hashing algorithm.
type Algorithm uint8

const (
	// AlgorithmDefault indicates that the default algorithm should be used.
	AlgorithmDefault Algorithm = iota
	// AlgorithmSHA1 specifies SHA-1.
	AlgorithmSHA1
	// AlgorithmSHA256 specifies SHA-256.
	AlgorithmSHA256
	// AlgorithmXXH64 specifies 64-bit xxHash, a fast non-cryptographic digest
	// appropriate for cache-freshness checks (not content addressing across
	// trust boundaries).
	AlgorithmXXH64
)

// IsDefault indicates whether or not the algorithm is AlgorithmDefault.
func (a Algorithm) IsDefault() bool {
	return a == AlgorithmDefault
}

// MarshalText implements encoding.TextMarshaler.MarshalText.
func (a Algorithm) MarshalText() ([]byte, error) {
	var result string
	switch a {
	case AlgorithmDefault:
	case AlgorithmSHA1:
		result = "sha1"
	case AlgorithmSHA256:
		result = "sha256"
	case AlgorithmXXH64:
		result = "xxh64"
	default:
		result = "unknown"
	}
	return []byte(result), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.UnmarshalText.
func (a *Algorithm) UnmarshalText(textBytes []byte) error {
	switch string(textBytes) {
	case "sha1":
		*a = AlgorithmSHA1
	case "sha256":
		*a = AlgorithmSHA256
	case "xxh64":
		*a = AlgorithmXXH64
	default:
		return fmt.Errorf("unknown hashing algorithm specification: %s", textBytes)
	}
	return nil
}

// Supported indicates whether or not a particular hashing algorithm is a
// valid, non-default value.
func (a Algorithm) Supported() bool {
	switch a {
	case AlgorithmSHA1, AlgorithmSHA256, AlgorithmXXH64:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of a hashing algorithm.
func (a Algorithm) Description() string {
	switch a {
	case AlgorithmDefault:
		return "Default"
	case AlgorithmSHA1:
		return "SHA-1"
	case AlgorithmSHA256:
		return "SHA-256"
	case AlgorithmXXH64:
		return "XXH64"
	default:
		return "Unknown"
	}
}

// Factory returns a constructor for the hashing algorithm. It panics if
// invoked on a default or unsupported value, mirroring the fact that a
// FileSystemInfo instance is always constructed with a concrete, resolved
// algorithm.
func (a Algorithm) Factory() func() hash.Hash {
	switch a {
	case AlgorithmSHA1:
		return sha1.New
	case AlgorithmSHA256:
		return sha256.New
	case AlgorithmXXH64:
		return func() hash.Hash { return xxhash.New() }
	default:
		panic("default or unknown hashing algorithm")
	}
}
