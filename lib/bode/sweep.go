package bode

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mpictor/owon"
	"github.com/mpictor/owon/lib/acquire"
)

// Scope settle pauses. The VDS-1022I's PC-software bridge queues SCPI
// commands; sending the next one before the previous took effect
// corrupts the instrument state, so every mutation is followed by a
// pause.
const (
	DefaultPause        = 300 * time.Millisecond
	DefaultStopWait     = 1500 * time.Millisecond
	DefaultRunStabilize = 3 * time.Second
	DefaultScaleWait    = 2 * time.Second
)

// SignalSource is the generator surface the sweeper drives.
type SignalSource interface {
	SetShape(shape string) error
	SetAmplitude(vpp float64) error
	SetOffset(volts float64) error
	SetImpedance(imp string) error
	SetOutput(on bool) error
	SetFrequency(hz float64) error
}

// Oscilloscope is the scope surface the sweeper drives.
type Oscilloscope interface {
	acquire.Meter
	SetChannelDisplay(ch int, on bool) error
	SetCoupling(ch int, coupling string) error
	SetProbe(ch int, atten string) error
	SetScale(ch int, volts float64) error
	SetOffset(ch, offset int) error
	SetTimebase(tb owon.Timebase) error
	SetAcquireType(t string) error
	SetTriggerMode(mode string) error
	SetTriggerEdgeSource(src string) error
	Run() error
	Stop() error
}

// Sweeper executes the frequency-response experiment. Zero-valued
// pause fields take the Default* constants; tests shrink them and
// inject Sleep so a full sweep runs in microseconds.
type Sweeper struct {
	Gen   SignalSource
	Scope Oscilloscope

	Sampler acquire.Sampler
	Log     *log.Logger

	Pause        time.Duration
	StopWait     time.Duration
	RunStabilize time.Duration
	ScaleWait    time.Duration

	Sleep func(time.Duration) // time.Sleep if nil
}

func (s *Sweeper) logger() *log.Logger {
	if s.Log != nil {
		return s.Log
	}
	return log.Default()
}

func (s *Sweeper) pause(d time.Duration, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

func (s *Sweeper) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		s.Sleep(d)
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

// Setup applies the minimal instrument state the sweep relies on:
// sine stimulus at the configured amplitude into high impedance, both
// scope channels displayed with DC coupling, CH1 probe at 1X, SAMPle
// acquisition, zero offsets, generator output on.
func (s *Sweeper) Setup(ctx context.Context, cfg Config) error {
	lg := s.logger()
	p := s.pause(s.Pause, DefaultPause)

	lg.Info("configuring generator", "amplitude_vpp", cfg.GenAmplitudeVpp)
	genSteps := []func() error{
		func() error { return s.Gen.SetShape("SINusoid") },
		func() error { return s.Gen.SetAmplitude(cfg.GenAmplitudeVpp) },
		func() error { return s.Gen.SetImpedance("INFinity") },
		func() error { return s.Gen.SetOffset(0) },
	}
	for _, step := range genSteps {
		if err := step(); err != nil {
			return fmt.Errorf("generator setup: %w", err)
		}
	}

	lg.Info("configuring scope channels")
	scopeSteps := []func() error{
		func() error { return s.Scope.SetChannelDisplay(1, true) },
		func() error { return s.Scope.SetChannelDisplay(2, true) },
		func() error { return s.Scope.SetCoupling(1, "DC") },
		func() error { return s.Scope.SetCoupling(2, "DC") },
		func() error { return s.Scope.SetProbe(1, "X1") },
		func() error { return s.Scope.SetAcquireType("SAMPle") },
		func() error { return s.Scope.SetOffset(1, 0) },
		func() error { return s.Scope.SetOffset(2, 0) },
	}
	for _, step := range scopeSteps {
		if err := step(); err != nil {
			return fmt.Errorf("scope setup: %w", err)
		}
		if err := s.sleep(ctx, p); err != nil {
			return err
		}
	}

	lg.Info("generator output on")
	if err := s.Gen.SetOutput(true); err != nil {
		return fmt.Errorf("generator output: %w", err)
	}
	return nil
}

// Run executes the sweep and returns the points measured so far even
// on error or interruption. Both channels stay pinned at 1 V/div for
// the whole sweep; only the timebase tracks the stimulus. Cleanup
// always runs: generator output off, scope back to SAMPle acquisition
// and AUTO trigger.
func (s *Sweeper) Run(ctx context.Context, cfg Config) (res Result, err error) {
	if verr := cfg.Validate(); verr != nil {
		return Result{Config: cfg}, verr
	}
	res.Config = cfg
	lg := s.logger()

	p := s.pause(s.Pause, DefaultPause)
	stopWait := s.pause(s.StopWait, DefaultStopWait)
	runStabilize := s.pause(s.RunStabilize, DefaultRunStabilize)
	scaleWait := s.pause(s.ScaleWait, DefaultScaleWait)

	defer func() {
		if cerr := s.Gen.SetOutput(false); cerr != nil {
			lg.Error("could not switch generator output off", "err", cerr)
		} else {
			lg.Info("generator output off")
		}
		// Leave the scope usable for bench work regardless of how
		// the sweep ended.
		if cerr := s.Scope.SetAcquireType("SAMPle"); cerr != nil {
			lg.Error("could not restore acquisition mode", "err", cerr)
		}
		if cerr := s.Scope.SetTriggerMode("AUTO"); cerr != nil {
			lg.Error("could not restore trigger mode", "err", cerr)
		}
	}()

	// Fixed vertical estimate for the whole sweep. Auto-ranging the
	// VDS mid-sweep proved unreliable, so both channels stay at
	// 1 V/div and out-of-range points surface as overloads instead.
	lg.Info("pinning vertical scales", "volts_per_div", 1)
	if err := s.Scope.SetScale(1, 1); err != nil {
		return res, fmt.Errorf("scope CH1 scale: %w", err)
	}
	if err := s.sleep(ctx, scaleWait); err != nil {
		return res, nil
	}
	if err := s.Scope.SetTriggerEdgeSource("CH1"); err != nil {
		return res, fmt.Errorf("scope trigger source: %w", err)
	}
	if err := s.sleep(ctx, p); err != nil {
		return res, nil
	}
	if err := s.Scope.SetScale(2, 1); err != nil {
		return res, fmt.Errorf("scope CH2 scale: %w", err)
	}
	if err := s.sleep(ctx, scaleWait); err != nil {
		return res, nil
	}
	if err := s.Scope.SetOffset(1, 0); err != nil {
		return res, fmt.Errorf("scope CH1 offset: %w", err)
	}
	if err := s.sleep(ctx, p); err != nil {
		return res, nil
	}
	if err := s.Scope.SetOffset(2, 0); err != nil {
		return res, fmt.Errorf("scope CH2 offset: %w", err)
	}
	if err := s.sleep(ctx, p); err != nil {
		return res, nil
	}

	if err := s.Scope.SetTriggerMode("AUTO"); err != nil {
		return res, fmt.Errorf("scope trigger mode: %w", err)
	}
	if err := s.sleep(ctx, p); err != nil {
		return res, nil
	}
	lg.Info("starting acquisition", "stabilize", runStabilize)
	if err := s.Scope.Run(); err != nil {
		return res, fmt.Errorf("scope run: %w", err)
	}
	if err := s.sleep(ctx, runStabilize); err != nil {
		return res, nil
	}

	freqs := cfg.Frequencies()
	for i, freq := range freqs {
		if freq <= 0 {
			lg.Warn("skipping non-positive frequency", "freq_hz", freq)
			continue
		}
		lg.Info("sweep point", "n", i+1, "of", len(freqs), "freq_hz", freq)

		if err := s.Gen.SetFrequency(freq); err != nil {
			return res, fmt.Errorf("generator frequency: %w", err)
		}

		// Let the DUT and the stimulus settle before touching the
		// scope: three periods, bounded to [0.5 s, 5 s].
		settle := math.Min(math.Max(3.0/freq, 0.5), 5.0)
		if err := s.sleep(ctx, time.Duration(settle*float64(time.Second))); err != nil {
			return res, nil
		}

		if err := s.Scope.Stop(); err != nil {
			return res, fmt.Errorf("scope stop: %w", err)
		}
		if err := s.sleep(ctx, stopWait); err != nil {
			return res, nil
		}

		tb := owon.OptimalTimebase(freq)
		lg.Debug("timebase", "label", tb.Label)
		if err := s.Scope.SetTimebase(tb); err != nil {
			return res, fmt.Errorf("scope timebase: %w", err)
		}
		if err := s.sleep(ctx, scaleWait); err != nil {
			return res, nil
		}

		if err := s.Sampler.Register(ctx, s.Scope); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, nil
			}
			return res, err
		}
		sample, err := s.Sampler.Collect(ctx, s.Scope, acquire.ReadingWait(tb.Seconds))
		switch {
		case errors.Is(err, acquire.ErrNoValidSamples):
			lg.Warn("no usable readings, skipping point", "freq_hz", freq)
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			lg.Warn("sweep interrupted", "points", len(res.Points))
			return res, nil
		case err != nil:
			return res, err
		}

		pt := Point{
			Frequency: freq,
			Magnitude: Magnitude(sample.VppIn, sample.VppOut),
			Phase:     Phase(sample.Delay, freq),
		}
		res.Points = append(res.Points, pt)
		lg.Info("point measured",
			"freq_hz", freq, "mag_db", pt.Magnitude, "phase_deg", pt.Phase)
	}

	return res, nil
}
