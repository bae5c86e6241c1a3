// Package spectrum turns the scope into a crude spectrum analyzer: it
// picks a timebase from the requested resolution, downloads raw ADC
// screen buffers, and averages windowed FFTs into an RMS amplitude
// spectrum.
package spectrum

import (
	"errors"
	"fmt"
	"strings"
)

// FFT window names, matching the SCPI-style spellings the
// configuration file uses.
const (
	WindowHann = "HANNing"
	WindowRect = "RECTangle"
)

// Config holds the analysis parameters. JSON keys are the on-disk
// defaults file schema.
type Config struct {
	FStart       float64 `json:"f_start" mapstructure:"f_start"`
	FStop        float64 `json:"f_stop" mapstructure:"f_stop"`
	ResolutionHz float64 `json:"resolution_hz" mapstructure:"resolution_hz"`
	NumAverages  int     `json:"num_averages" mapstructure:"num_averages"`
	Channel      int     `json:"channel" mapstructure:"channel"`
	Coupling     string  `json:"coupling" mapstructure:"coupling"`
	Window       string  `json:"window" mapstructure:"window"`
}

// Defaults returns the factory configuration.
func Defaults() Config {
	return Config{
		FStart:       0.0,
		FStop:        100000.0,
		ResolutionHz: 100.0,
		NumAverages:  3,
		Channel:      1,
		Coupling:     "DC",
		Window:       WindowHann,
	}
}

func (c Config) Validate() error {
	if c.ResolutionHz <= 0 {
		return errors.New("resolution must be > 0 Hz")
	}
	if c.FStop <= c.FStart {
		return fmt.Errorf("stop frequency %g must exceed start %g", c.FStop, c.FStart)
	}
	if c.NumAverages < 1 {
		return errors.New("at least 1 average required")
	}
	if c.Channel != 1 && c.Channel != 2 {
		return fmt.Errorf("channel must be 1 or 2, got %d", c.Channel)
	}
	u := strings.ToUpper(c.Coupling)
	if !strings.Contains(u, "DC") && !strings.Contains(u, "AC") {
		return fmt.Errorf("coupling must be AC or DC, got %q", c.Coupling)
	}
	w := strings.ToUpper(c.Window)
	if !strings.Contains(w, "HANN") && !strings.Contains(w, "RECT") {
		return fmt.Errorf("window must be %s or %s, got %q", WindowHann, WindowRect, c.Window)
	}
	return nil
}

// CouplingMode normalizes the configured coupling to the SCPI
// argument, defaulting to AC for anything that does not mention DC.
func (c Config) CouplingMode() string {
	if strings.Contains(strings.ToUpper(c.Coupling), "DC") {
		return "DC"
	}
	return "AC"
}
