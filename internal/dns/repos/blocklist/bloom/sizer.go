// Package bloom provides the Bloom filter used as the blocklist's negative
// pre-check. A miss means no rule can match, so the store is never touched.
package bloom

import "math"

const defaultFPRate = 0.01

// Size returns the bit count m and hash count k for n keys at false-positive
// rate p:
//
//	m = -(n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
//
// n of zero is treated as one and p outside (0,1) falls back to 1%.
func Size(n uint64, p float64) (m uint64, k uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = defaultFPRate
	}
	m = uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m == 0 {
		m = 1
	}
	k = uint8(math.Max(1, math.Round(float64(m)/float64(n)*math.Ln2)))
	return m, k
}
