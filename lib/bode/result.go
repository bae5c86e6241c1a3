package bode

import "math"

// Point is one measured sweep point.
type Point struct {
	Frequency float64 // Hz
	Magnitude float64 // dB, out relative to in
	Phase     float64 // degrees, in (-180, 180]
}

// Result is a completed (possibly interrupted) sweep. Skipped points
// are simply absent; Points is ordered by ascending frequency.
type Result struct {
	Config Config
	Points []Point
}

// Frequencies returns the measured frequencies in sweep order.
func (r Result) Frequencies() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Frequency
	}
	return out
}

// Magnitude converts an amplitude ratio to dB. The sampler never
// yields a vppIn below the detection floor, so the ratio is finite.
func Magnitude(vppIn, vppOut float64) float64 {
	return 20 * math.Log10(vppOut/vppIn)
}

// Phase converts a falling-edge delay at the given frequency to a
// phase in degrees, wrapped into (-180, 180]. A positive delay means
// the output lags the input.
func Phase(delay, freq float64) float64 {
	deg := math.Mod(-delay*freq*360.0, 360.0)
	if deg < 0 {
		deg += 360.0
	}
	if deg > 180.0 {
		deg -= 360.0
	}
	return deg
}
