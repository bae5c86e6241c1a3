// Package bode runs an automated frequency-response sweep: the
// generator steps a sine stimulus through a list of frequencies while
// the scope measures amplitude on both channels and the edge delay
// between them, yielding gain in dB and phase in degrees per point.
package bode

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Frequency scale of a sweep.
const (
	ScaleLog = "log"
	ScaleLin = "lin"
)

// Config holds the sweep parameters. The JSON keys double as the
// on-disk defaults file schema, so renaming one invalidates saved
// configurations.
type Config struct {
	Scale           string  `json:"scale" mapstructure:"scale"`
	FStart          float64 `json:"f_start" mapstructure:"f_start"`
	FStop           float64 `json:"f_stop" mapstructure:"f_stop"`
	NumPoints       int     `json:"num_points" mapstructure:"num_points"`
	NumPointsLin    int     `json:"num_points_lin" mapstructure:"num_points_lin"`
	NumAverages     int     `json:"num_averages" mapstructure:"num_averages"`
	GenAmplitudeVpp float64 `json:"gen_amplitude_vpp" mapstructure:"gen_amplitude_vpp"`
	YMagMin         float64 `json:"y_mag_min" mapstructure:"y_mag_min"`
	YMagMax         float64 `json:"y_mag_max" mapstructure:"y_mag_max"`
	YMagMinLin      float64 `json:"y_mag_min_lin" mapstructure:"y_mag_min_lin"`
}

// Defaults returns the factory configuration used when no saved
// defaults file exists.
func Defaults() Config {
	return Config{
		Scale:           ScaleLog,
		FStart:          1.0,
		FStop:           100000.0,
		NumPoints:       20,
		NumPointsLin:    50,
		NumAverages:     3,
		GenAmplitudeVpp: 1.0,
		YMagMin:         -100.0,
		YMagMax:         10.0,
		YMagMinLin:      -40.0,
	}
}

func (c Config) Validate() error {
	switch c.Scale {
	case ScaleLog, ScaleLin:
	default:
		return fmt.Errorf("scale must be %q or %q, got %q", ScaleLog, ScaleLin, c.Scale)
	}
	if c.Scale == ScaleLog && c.FStart <= 0 {
		return errors.New("log scale requires start frequency > 0")
	}
	if c.FStop <= c.FStart {
		return fmt.Errorf("stop frequency %g must exceed start %g", c.FStop, c.FStart)
	}
	if c.Points() < 2 {
		return errors.New("at least 2 sweep points required")
	}
	if c.NumAverages < 1 {
		return errors.New("at least 1 average required")
	}
	if c.GenAmplitudeVpp <= 0 {
		return errors.New("generator amplitude must be > 0 Vpp")
	}
	return nil
}

// Points is the point count that applies to the configured scale. The
// two counts are remembered separately so switching scales restores
// the value last used with that scale.
func (c Config) Points() int {
	if c.Scale == ScaleLin {
		return c.NumPointsLin
	}
	return c.NumPoints
}

// YFloor is the magnitude-axis floor for the configured scale.
func (c Config) YFloor() float64 {
	if c.Scale == ScaleLin {
		return c.YMagMinLin
	}
	return c.YMagMin
}

// Frequencies expands the configuration into the stimulus list,
// logarithmically or linearly spaced between FStart and FStop
// inclusive.
func (c Config) Frequencies() []float64 {
	dst := make([]float64, c.Points())
	if c.Scale == ScaleLin {
		return floats.Span(dst, c.FStart, c.FStop)
	}
	return floats.LogSpan(dst, c.FStart, c.FStop)
}
