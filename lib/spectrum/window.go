package spectrum

import (
	"math"
	"strings"
)

// windowFor builds the sample window for the configured name. Anything
// mentioning HANN gets a Hann window, everything else is rectangular.
func windowFor(name string, n int) []float64 {
	if strings.Contains(strings.ToUpper(name), "HANN") {
		return hann(n)
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

// hann is the symmetric Hann window, endpoints at zero.
func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
