package analyzer

import (
	"math"
	"math/cmplx"
)

// fft transforms x in place with a recursive radix-2 Cooley-Tukey split.
// len(x) must be a power of two; scratch must hold at least len(x) values.
func fft(x, scratch []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}
	half := n / 2
	even := scratch[:half]
	odd := scratch[half:n]
	for k := 0; k < half; k++ {
		even[k] = x[2*k]
		odd[k] = x[2*k+1]
	}
	// the halves now live in scratch; x is free to serve as theirs
	fft(even, x[:half])
	fft(odd, x[half:])
	for k := 0; k < half; k++ {
		t := cmplx.Rect(1, -2*math.Pi*float64(k)/float64(n)) * odd[k]
		x[k] = even[k] + t
		x[k+half] = even[k] - t
	}
}

func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}
