package bode

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpictor/owon"
	"github.com/mpictor/owon/lib/acquire"
)

type fakeGen struct {
	log   []string
	freqs []float64
	err   error
}

func (g *fakeGen) step(s string) error {
	if g.err != nil {
		return g.err
	}
	g.log = append(g.log, s)
	return nil
}

func (g *fakeGen) SetShape(shape string) error    { return g.step("shape " + shape) }
func (g *fakeGen) SetAmplitude(vpp float64) error { return g.step(fmt.Sprintf("ampl %g", vpp)) }
func (g *fakeGen) SetOffset(v float64) error      { return g.step(fmt.Sprintf("offset %g", v)) }
func (g *fakeGen) SetImpedance(imp string) error  { return g.step("imp " + imp) }
func (g *fakeGen) SetOutput(on bool) error {
	// Cleanup must work even when the generator transport is down.
	g.log = append(g.log, fmt.Sprintf("output %v", on))
	return nil
}
func (g *fakeGen) SetFrequency(hz float64) error {
	g.freqs = append(g.freqs, hz)
	return g.step(fmt.Sprintf("freq %g", hz))
}

// fakeScope replays one reading triple per repetition, in the order
// the sampler asks for them.
type fakeScope struct {
	log     []string
	replies map[string][]string
	err     error
}

func (f *fakeScope) step(s string) error {
	if f.err != nil {
		return f.err
	}
	f.log = append(f.log, s)
	return nil
}

func (f *fakeScope) MeasureClearAll() error      { return f.step("meas clear") }
func (f *fakeScope) MeasureSource(ch int) error  { return f.step(fmt.Sprintf("meas src %d", ch)) }
func (f *fakeScope) MeasureAdd(item string) error { return f.step("meas add " + item) }
func (f *fakeScope) Measurement(item string, ch int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key := fmt.Sprintf("%s/%d", item, ch)
	q := f.replies[key]
	if len(q) == 0 {
		return "", nil
	}
	r := q[0]
	f.replies[key] = q[1:]
	return r, nil
}

func (f *fakeScope) SetChannelDisplay(ch int, on bool) error {
	return f.step(fmt.Sprintf("display %d %v", ch, on))
}
func (f *fakeScope) SetCoupling(ch int, c string) error {
	return f.step(fmt.Sprintf("coupling %d %s", ch, c))
}
func (f *fakeScope) SetProbe(ch int, a string) error {
	return f.step(fmt.Sprintf("probe %d %s", ch, a))
}
func (f *fakeScope) SetScale(ch int, v float64) error {
	return f.step(fmt.Sprintf("scale %d %g", ch, v))
}
func (f *fakeScope) SetOffset(ch, off int) error {
	return f.step(fmt.Sprintf("offset %d %d", ch, off))
}
func (f *fakeScope) SetTimebase(tb owon.Timebase) error { return f.step("timebase " + tb.Label) }
func (f *fakeScope) SetAcquireType(t string) error      { return f.step("acquire " + t) }
func (f *fakeScope) SetTriggerMode(m string) error {
	// Restored during cleanup even on transport failure.
	f.log = append(f.log, "trigmode "+m)
	return nil
}
func (f *fakeScope) SetTriggerEdgeSource(s string) error { return f.step("trigsrc " + s) }
func (f *fakeScope) Run() error                          { return f.step("run") }
func (f *fakeScope) Stop() error                         { return f.step("stop") }

func testSweeper(gen *fakeGen, scope *fakeScope) *Sweeper {
	noop := func(time.Duration) {}
	return &Sweeper{
		Gen:   gen,
		Scope: scope,
		Sampler: acquire.Sampler{
			Poller:   acquire.Poller{Interval: time.Millisecond, Timeout: 20 * time.Millisecond},
			Averages: 1,
			Sleep:    noop,
		},
		Pause:        time.Nanosecond,
		StopWait:     time.Nanosecond,
		RunStabilize: time.Nanosecond,
		ScaleWait:    time.Nanosecond,
		Sleep:        noop,
	}
}

func sweepConfig() Config {
	cfg := Defaults()
	cfg.FStart, cfg.FStop, cfg.NumPoints = 1, 100, 3
	cfg.NumAverages = 1
	return cfg
}

func TestSetupSequence(t *testing.T) {
	gen := &fakeGen{}
	scope := &fakeScope{}
	s := testSweeper(gen, scope)
	require.NoError(t, s.Setup(context.Background(), sweepConfig()))

	assert.Equal(t, []string{
		"shape SINusoid", "ampl 1", "imp INFinity", "offset 0", "output true",
	}, gen.log)
	assert.Equal(t, []string{
		"display 1 true", "display 2 true",
		"coupling 1 DC", "coupling 2 DC",
		"probe 1 X1",
		"acquire SAMPle",
		"offset 1 0", "offset 2 0",
	}, scope.log)
}

func TestRunSweep(t *testing.T) {
	gen := &fakeGen{}
	scope := &fakeScope{replies: map[string][]string{
		// One repetition per point at 1, 10 and 100 Hz. The 100 Hz
		// point overloads on CH2 and must be skipped entirely.
		"PKPK/1":   {"1.0", "1.0", "1.0"},
		"PKPK/2":   {"0.5", "1.0", "1e30"},
		"FDELay/1": {"0", "0.025", "0"},
	}}
	s := testSweeper(gen, scope)

	res, err := s.Run(context.Background(), sweepConfig())
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 10, 100}, gen.freqs)
	require.Len(t, res.Points, 2)
	assert.InDelta(t, 1, res.Points[0].Frequency, 1e-9)
	assert.InDelta(t, -6.0206, res.Points[0].Magnitude, 1e-3)
	assert.InDelta(t, 0, res.Points[0].Phase, 1e-9)
	assert.InDelta(t, 10, res.Points[1].Frequency, 1e-9)
	assert.InDelta(t, 0, res.Points[1].Magnitude, 1e-9)
	assert.InDelta(t, -90, res.Points[1].Phase, 1e-9)

	// Cleanup ran.
	assert.Equal(t, "output false", gen.log[len(gen.log)-1])
	assert.Equal(t, "trigmode AUTO", scope.log[len(scope.log)-1])
	assert.Contains(t, scope.log, "acquire SAMPle")
}

func TestRunPinsVerticalScales(t *testing.T) {
	gen := &fakeGen{}
	scope := &fakeScope{replies: map[string][]string{}}
	s := testSweeper(gen, scope)
	s.Sampler.Poller.Timeout = time.Millisecond

	_, err := s.Run(context.Background(), sweepConfig())
	require.NoError(t, err)
	assert.Contains(t, scope.log, "scale 1 1")
	assert.Contains(t, scope.log, "scale 2 1")
	assert.Contains(t, scope.log, "trigsrc CH1")
	// Timebase follows the stimulus; 10 Hz wants 20 ms/div.
	assert.Contains(t, scope.log, "timebase 20ms")
}

func TestRunSkipsDeadInputPoint(t *testing.T) {
	// CH1 reads nothing at the first point. That point must vanish
	// from the results instead of producing a bogus ratio against the
	// noise CH2 happened to report.
	gen := &fakeGen{}
	scope := &fakeScope{replies: map[string][]string{
		"PKPK/1":   {"1e-12", "1", "1"},
		"PKPK/2":   {"2.0", "1", "1"},
		"FDELay/1": {"0", "0", "0"},
	}}
	s := testSweeper(gen, scope)
	res, err := s.Run(context.Background(), sweepConfig())
	require.NoError(t, err)
	require.Len(t, res.Points, 2)
	assert.InDelta(t, 10, res.Points[0].Frequency, 1e-9)
	assert.InDelta(t, 0, res.Points[0].Magnitude, 1e-9)
	assert.InDelta(t, 100, res.Points[1].Frequency, 1e-9)
}

func TestRunTransportErrorAborts(t *testing.T) {
	gen := &fakeGen{}
	boom := errors.New("connection reset")
	scope := &fakeScope{replies: map[string][]string{
		"PKPK/1":   {"1.0"},
		"PKPK/2":   {"0.5"},
		"FDELay/1": {"0"},
	}}
	s := testSweeper(gen, scope)
	s.Sleep = func(time.Duration) {
		if len(gen.freqs) == 2 {
			scope.err = boom
		}
	}
	s.Sampler.Sleep = s.Sleep

	res, err := s.Run(context.Background(), sweepConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	// The first point survived; cleanup still switched the output off.
	assert.Len(t, res.Points, 1)
	assert.Equal(t, "output false", gen.log[len(gen.log)-1])
}

func TestRunCancellationReturnsPartial(t *testing.T) {
	gen := &fakeGen{}
	scope := &fakeScope{replies: map[string][]string{
		"PKPK/1":   {"1.0"},
		"PKPK/2":   {"0.5"},
		"FDELay/1": {"0"},
	}}
	s := testSweeper(gen, scope)
	ctx, cancel := context.WithCancel(context.Background())
	s.Sleep = func(time.Duration) {
		if len(gen.freqs) == 2 {
			cancel()
		}
	}
	s.Sampler.Sleep = s.Sleep

	res, err := s.Run(ctx, sweepConfig())
	require.NoError(t, err, "interruption is a clean early termination")
	assert.Len(t, res.Points, 1)
	assert.Equal(t, "output false", gen.log[len(gen.log)-1])
}

func TestRunValidatesConfig(t *testing.T) {
	gen := &fakeGen{}
	scope := &fakeScope{}
	s := testSweeper(gen, scope)
	cfg := sweepConfig()
	cfg.FStop = 0.5
	_, err := s.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Empty(t, gen.log, "invalid config must not touch the instruments")
}
