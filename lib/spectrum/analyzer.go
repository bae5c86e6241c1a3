package spectrum

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/mpictor/owon"
)

// Default settle pauses. The spectrum path tolerates shorter waits
// than the sweep because nothing is reconfigured while running.
const (
	DefaultPause      = 300 * time.Millisecond
	DefaultConfigWait = time.Second
	DefaultBufferWait = 2 * time.Second
)

// ErrDeclined reports that the operator declined to start the
// acquisition at the confirmation gate.
var ErrDeclined = errors.New("acquisition declined")

// ErrNoAcquisitions reports that every repetition was discarded.
var ErrNoAcquisitions = errors.New("no valid acquisitions")

// Digitizer is the scope surface the analyzer drives.
type Digitizer interface {
	SetChannelDisplay(ch int, on bool) error
	SetCoupling(ch int, coupling string) error
	SetProbe(ch int, atten string) error
	SetAcquireType(t string) error
	SetTriggerMode(mode string) error
	SetTimebase(tb owon.Timebase) error
	Scale(ch int) (float64, error)
	Probe(ch int) (int, error)
	ADCData(ch int) ([]byte, error)
	Run() error
	Stop() error
}

// Plan is the derived acquisition geometry for a configuration. The
// sample rate is fixed by the screen buffer length and the chosen
// timebase, so the achievable resolution and bandwidth follow from
// the resolution request alone.
type Plan struct {
	Timebase   owon.Timebase
	SampleRate float64 // Hz
	Resolution float64 // Hz, actual bin width
	Nyquist    float64 // Hz
}

// PlanFor derives the acquisition plan from a configuration.
func PlanFor(cfg Config) Plan {
	tb := owon.ResolutionTimebase(cfg.ResolutionHz)
	total := tb.Seconds * owon.HorizontalDivisions
	rate := owon.ADCSamples / total
	return Plan{
		Timebase:   tb,
		SampleRate: rate,
		Resolution: 1.0 / total,
		Nyquist:    rate / 2.0,
	}
}

// Spectrum is a completed analysis: the half-spectrum frequency axis
// with RMS amplitudes and their dB equivalents.
type Spectrum struct {
	Config      Config
	Plan        Plan
	Frequencies []float64
	VRms        []float64
	VdB         []float64
}

// Analyzer executes the spectrum measurement. Confirm gates the
// acquisition so the operator can adjust the vertical scale in the
// vendor software first; a nil Confirm proceeds immediately.
type Analyzer struct {
	Scope Digitizer
	Log   *log.Logger

	Confirm func(Plan) bool

	Pause      time.Duration
	ConfigWait time.Duration
	BufferWait time.Duration

	Sleep func(time.Duration) // time.Sleep if nil
}

func (a *Analyzer) logger() *log.Logger {
	if a.Log != nil {
		return a.Log
	}
	return log.Default()
}

func (a *Analyzer) sleep(ctx context.Context, d time.Duration) error {
	if a.Sleep != nil {
		a.Sleep(d)
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func or(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// Setup puts the selected channel and the acquisition system into the
// state the analysis expects and leaves the scope running.
func (a *Analyzer) Setup(ctx context.Context, cfg Config) error {
	p := or(a.Pause, DefaultPause)
	ch := cfg.Channel
	steps := []func() error{
		func() error { return a.Scope.SetChannelDisplay(ch, true) },
		func() error { return a.Scope.SetCoupling(ch, cfg.CouplingMode()) },
		func() error { return a.Scope.SetProbe(ch, "X1") },
		func() error { return a.Scope.SetAcquireType("SAMPle") },
		func() error { return a.Scope.SetTriggerMode("AUTO") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("scope setup: %w", err)
		}
		if err := a.sleep(ctx, p); err != nil {
			return err
		}
	}
	if err := a.Scope.Run(); err != nil {
		return fmt.Errorf("scope run: %w", err)
	}
	a.logger().Info("scope running", "channel", ch, "coupling", cfg.CouplingMode())
	return nil
}

// Run executes the analysis. The scope is left running on every exit
// path so the bench display stays live. A repetition whose ADC buffer
// comes back absent or with the wrong length is discarded; only a
// transport error that broke the connection aborts.
func (a *Analyzer) Run(ctx context.Context, cfg Config) (Spectrum, error) {
	if err := cfg.Validate(); err != nil {
		return Spectrum{}, err
	}
	lg := a.logger()

	plan := PlanFor(cfg)
	lg.Info("acquisition plan",
		"timebase", plan.Timebase.Label,
		"sample_rate_hz", plan.SampleRate,
		"resolution_hz", plan.Resolution,
		"nyquist_hz", plan.Nyquist)
	if cfg.FStop > plan.Nyquist {
		lg.Warn("requested stop frequency exceeds Nyquist; spectrum will be truncated",
			"f_stop", cfg.FStop, "nyquist_hz", plan.Nyquist)
	}

	if a.Confirm != nil && !a.Confirm(plan) {
		return Spectrum{}, ErrDeclined
	}

	configWait := or(a.ConfigWait, DefaultConfigWait)
	bufferWait := or(a.BufferWait, DefaultBufferWait)

	if err := a.Scope.Stop(); err != nil {
		return Spectrum{}, fmt.Errorf("scope stop: %w", err)
	}
	defer func() {
		if rerr := a.Scope.Run(); rerr != nil {
			lg.Error("could not restart scope", "err", rerr)
		}
	}()
	if err := a.sleep(ctx, configWait); err != nil {
		return Spectrum{}, err
	}
	if err := a.Scope.SetTimebase(plan.Timebase); err != nil {
		return Spectrum{}, fmt.Errorf("scope timebase: %w", err)
	}
	if err := a.sleep(ctx, configWait); err != nil {
		return Spectrum{}, err
	}

	// Read back the vertical geometry the operator settled on. The
	// ADC codes are meaningless without it.
	scale, err := a.Scope.Scale(cfg.Channel)
	if err != nil {
		return Spectrum{}, fmt.Errorf("reading V/div: %w", err)
	}
	probe, err := a.Scope.Probe(cfg.Channel)
	if err != nil {
		return Spectrum{}, fmt.Errorf("reading probe attenuation: %w", err)
	}
	voltsPerStep := (owon.VerticalDivisions * scale * float64(probe)) / owon.RawCodeRange
	lg.Info("vertical geometry", "volts_per_div", scale, "probe", probe)

	const n = owon.ADCSamples
	window := windowFor(cfg.Window, n)
	fft := fourier.NewFFT(n)

	sum := make([]complex128, n/2+1)
	acquired := 0
	for i := 0; i < cfg.NumAverages; i++ {
		lg.Info("acquiring", "n", i+1, "of", cfg.NumAverages)

		if err := a.Scope.Run(); err != nil {
			return Spectrum{}, fmt.Errorf("scope run: %w", err)
		}
		settle := plan.Timebase.Seconds*5.0 + 1.0
		if err := a.sleep(ctx, time.Duration(settle*float64(time.Second))); err != nil {
			return Spectrum{}, err
		}
		if err := a.Scope.Stop(); err != nil {
			return Spectrum{}, fmt.Errorf("scope stop: %w", err)
		}
		if err := a.sleep(ctx, bufferWait); err != nil {
			return Spectrum{}, err
		}

		raw, err := a.Scope.ADCData(cfg.Channel)
		if err != nil && !owon.IsTimeout(err) {
			// A timed out download just means this acquisition never
			// arrived; anything else broke the transport.
			return Spectrum{}, fmt.Errorf("downloading ADC data: %w", err)
		}
		if len(raw) != n {
			lg.Warn("discarding acquisition with absent or short ADC buffer",
				"bytes", len(raw))
			continue
		}

		volts := make([]float64, n)
		for j, b := range raw {
			volts[j] = (float64(b) - owon.RawCodeMid) * voltsPerStep * window[j]
		}
		coeffs := fft.Coefficients(nil, volts)
		for j, c := range coeffs {
			sum[j] += c
		}
		acquired++
	}

	if acquired == 0 {
		return Spectrum{}, ErrNoAcquisitions
	}

	var windowSum float64
	for _, w := range window {
		windowSum += w
	}

	// Half spectrum: bin k sits at k·rate/N. RMS scaling doubles the
	// one-sided bins; DC has no mirror image so it keeps the raw
	// window-normalized magnitude.
	half := n / 2
	out := Spectrum{
		Config:      cfg,
		Plan:        plan,
		Frequencies: make([]float64, half),
		VRms:        make([]float64, half),
		VdB:         make([]float64, half),
	}
	const epsilon = 1e-12
	for k := 0; k < half; k++ {
		mag := cmplx.Abs(sum[k]) / float64(acquired)
		out.Frequencies[k] = float64(k) * plan.SampleRate / n
		if k == 0 {
			out.VRms[k] = mag / windowSum
		} else {
			out.VRms[k] = (mag * 2.0 / windowSum) / math.Sqrt2
		}
		out.VdB[k] = 20 * math.Log10(out.VRms[k]+epsilon)
	}
	return out, nil
}
