package acquire

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// RegisterSettle is the pause after each measurement-registration
// command, giving the scope time to allocate the slot before the next
// one arrives.
const RegisterSettle = 200 * time.Millisecond

// ErrNoValidSamples reports that every repetition of a sampling run
// was discarded (overload, read timeout, or a primary amplitude below
// the detection floor). The point has no estimate but the run as a
// whole can continue.
var ErrNoValidSamples = errors.New("no valid samples collected")

// Meter is the slice of the scope surface the sampler drives.
type Meter interface {
	MeasureClearAll() error
	MeasureSource(ch int) error
	MeasureAdd(item string) error
	Measurement(item string, ch int) (string, error)
}

// Sample is one averaged acquisition at a single stimulus frequency.
type Sample struct {
	VppIn  float64 // channel 1 peak-to-peak, at least MinDetectable
	VppOut float64 // channel 2 peak-to-peak
	Delay  float64 // channel 1 -> 2 falling-edge delay, seconds
	Valid  int     // repetitions that survived filtering
}

// Sampler collects repeated three-value readings from the scope and
// averages the survivors. Repetitions are all-or-nothing: a timeout or
// an overloaded value in any of the three readings discards the whole
// repetition, never a partial one, so the three averages always come
// from the same acquisitions.
type Sampler struct {
	Poller   Poller
	Averages int                 // repetitions per point; 1 if < 1
	Sleep    func(time.Duration) // time.Sleep if nil
}

func (s Sampler) sleep(ctx context.Context, d time.Duration) error {
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

// Register installs the measurement set the sampler reads: peak-to-peak
// and falling-edge delay on channel 1, peak-to-peak on channel 2. The
// scope addresses registered measurements per source channel, so the
// registration order here fixes which index each later query hits.
func (s Sampler) Register(ctx context.Context, m Meter) error {
	steps := []func() error{
		m.MeasureClearAll,
		func() error { return m.MeasureSource(1) },
		func() error { return m.MeasureAdd("PKPK") },
		func() error { return m.MeasureAdd("FDELay") },
		func() error { return m.MeasureSource(2) },
		func() error { return m.MeasureAdd("PKPK") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("registering measurements: %w", err)
		}
		if err := s.sleep(ctx, RegisterSettle); err != nil {
			return err
		}
	}
	return nil
}

// Collect runs the configured number of repetitions, waiting wait
// before each one so a fresh acquisition is on screen, and returns the
// mean of the surviving repetitions. Timeouts, overloads, and
// below-floor primary amplitudes discard a repetition; transport
// errors abort immediately. When nothing survives it returns
// ErrNoValidSamples.
func (s Sampler) Collect(ctx context.Context, m Meter, wait time.Duration) (Sample, error) {
	n := s.Averages
	if n < 1 {
		n = 1
	}

	var sum Sample
	for i := 0; i < n; i++ {
		if err := s.sleep(ctx, wait); err != nil {
			return Sample{}, err
		}

		vppIn, err := s.Poller.Poll("CH1 Vpp", func() (string, error) {
			return m.Measurement("PKPK", 1)
		})
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				continue
			}
			return Sample{}, err
		}
		vppOut, err := s.Poller.Poll("CH2 Vpp", func() (string, error) {
			return m.Measurement("PKPK", 2)
		})
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				continue
			}
			return Sample{}, err
		}
		delay, err := s.Poller.Poll("FDELay", func() (string, error) {
			return m.Measurement("FDELay", 1)
		})
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				continue
			}
			return Sample{}, err
		}

		if overloaded(vppIn) || overloaded(delay) || overloaded(vppOut) {
			continue
		}
		// A primary amplitude below the detection floor means CH1 saw
		// nothing; the CH2 and delay readings from that acquisition are
		// noise, so the whole repetition goes.
		if vppIn < MinDetectable {
			continue
		}

		sum.VppIn += vppIn
		sum.VppOut += vppOut
		sum.Delay += delay
		sum.Valid++
	}

	if sum.Valid == 0 {
		return Sample{}, ErrNoValidSamples
	}
	f := float64(sum.Valid)
	return Sample{
		VppIn:  sum.VppIn / f,
		VppOut: sum.VppOut / f,
		Delay:  sum.Delay / f,
		Valid:  sum.Valid,
	}, nil
}

func overloaded(v float64) bool {
	return v >= Overload || v <= -Overload
}

// ReadingWait is the pause before each repetition for a given
// per-division timebase: two divisions of acquisition time, at least
// half a second so fast sweeps still see a fresh screen, capped at
// five seconds so slow sweeps stay tolerable.
func ReadingWait(timebaseSeconds float64) time.Duration {
	w := math.Max(timebaseSeconds*2, 0.5)
	return time.Duration(math.Min(w, 5) * float64(time.Second))
}
