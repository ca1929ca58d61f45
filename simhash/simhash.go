// Package simhash computes 64-bit SimHash fingerprints used for content
// change detection: near-identical pages land within a small Hamming
// distance of each other.
package simhash

import (
	"fmt"
	"hash/fnv"
	"math/bits"
	"strings"
)

// Fingerprint computes the SimHash of text over word-level tokens hashed
// with FNV-64a. Empty or whitespace-only input fingerprints to 0.
func Fingerprint(text string) uint64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var vector [64]int
	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// FingerprintBytes is Fingerprint over a raw byte slice.
func FingerprintBytes(b []byte) uint64 {
	return Fingerprint(string(b))
}

// Hex renders a fingerprint as a fixed-width hex string for API responses.
func Hex(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether two fingerprints are within threshold bits of
// each other.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
