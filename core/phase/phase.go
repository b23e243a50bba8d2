// core/phase/phase.go
package phase

import "math"

// Reverse rotates visibilities from one phase-tracking reference to another.
// For every channel, the complex values of all polarizations are multiplied
// by exp(+2πi·f·(oldDelay−newDelay)); flags and weights are untouched and
// amplitudes are preserved. oldDelay == newDelay is the identity within
// floating-point tolerance.
//
// vis is chan-major, pol-minor and is rotated in place.
func Reverse(vis []complex64, oldDelay, newDelay float64, chanFreqs []float64, npol int) {
	if oldDelay == newDelay {
		return
	}
	for c, f := range chanFreqs {
		s, co := math.Sincos(2 * math.Pi * f * (oldDelay - newDelay))
		rot := complex(float32(co), float32(s))
		base := c * npol
		for p := 0; p < npol; p++ {
			vis[base+p] *= rot
		}
	}
}

// ReverseTriplets applies the same rotation to raw (re, im, weight) float32
// triplets as stored in a random-groups record. Used when rewriting an
// already-serialized file.
func ReverseTriplets(data []float32, oldDelay, newDelay float64, chanFreqs []float64, npol int) {
	if oldDelay == newDelay {
		return
	}
	for c, f := range chanFreqs {
		s, co := math.Sincos(2 * math.Pi * f * (oldDelay - newDelay))
		re32, im32 := float32(co), float32(s)
		base := c * npol * 3
		for p := 0; p < npol; p++ {
			i := base + p*3
			vr, vi := data[i], data[i+1]
			data[i] = vr*re32 - vi*im32
			data[i+1] = vr*im32 + vi*re32
		}
	}
}
