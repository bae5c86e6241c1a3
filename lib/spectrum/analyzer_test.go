package spectrum

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpictor/owon"
)

type fakeDigi struct {
	log     []string
	scale   float64
	probe   int
	bufs    [][]byte
	bufErrs []error // per-download errors, consumed alongside bufs
	bufErr  error   // sticky error once bufErrs runs out
}

func (f *fakeDigi) step(s string) error { f.log = append(f.log, s); return nil }

func (f *fakeDigi) SetChannelDisplay(ch int, on bool) error {
	return f.step(fmt.Sprintf("display %d %v", ch, on))
}
func (f *fakeDigi) SetCoupling(ch int, c string) error {
	return f.step(fmt.Sprintf("coupling %d %s", ch, c))
}
func (f *fakeDigi) SetProbe(ch int, a string) error {
	return f.step(fmt.Sprintf("probe %d %s", ch, a))
}
func (f *fakeDigi) SetAcquireType(t string) error      { return f.step("acquire " + t) }
func (f *fakeDigi) SetTriggerMode(m string) error      { return f.step("trigmode " + m) }
func (f *fakeDigi) SetTimebase(tb owon.Timebase) error { return f.step("timebase " + tb.Label) }
func (f *fakeDigi) Scale(ch int) (float64, error)      { return f.scale, nil }
func (f *fakeDigi) Probe(ch int) (int, error)          { return f.probe, nil }
func (f *fakeDigi) Run() error                         { return f.step("run") }
func (f *fakeDigi) Stop() error                        { return f.step("stop") }

func (f *fakeDigi) ADCData(ch int) ([]byte, error) {
	f.log = append(f.log, fmt.Sprintf("adc %d", ch))
	if len(f.bufErrs) > 0 {
		err := f.bufErrs[0]
		f.bufErrs = f.bufErrs[1:]
		if err != nil {
			return nil, err
		}
	} else if f.bufErr != nil {
		return nil, f.bufErr
	}
	if len(f.bufs) == 0 {
		return nil, nil
	}
	b := f.bufs[0]
	f.bufs = f.bufs[1:]
	return b, nil
}

func testAnalyzer(d *fakeDigi) *Analyzer {
	return &Analyzer{
		Scope:      d,
		Pause:      time.Nanosecond,
		ConfigWait: time.Nanosecond,
		BufferWait: time.Nanosecond,
		Sleep:      func(time.Duration) {},
	}
}

func testConfig() Config {
	cfg := Defaults()
	cfg.Window = WindowRect
	cfg.NumAverages = 1
	return cfg
}

func TestPlanFor(t *testing.T) {
	p := PlanFor(Config{ResolutionHz: 100})
	assert.Equal(t, "1ms", p.Timebase.Label)
	assert.InDelta(t, 50000, p.SampleRate, 1e-9)
	assert.InDelta(t, 100, p.Resolution, 1e-9)
	assert.InDelta(t, 25000, p.Nyquist, 1e-9)
}

func TestSetupSequence(t *testing.T) {
	d := &fakeDigi{}
	a := testAnalyzer(d)
	cfg := testConfig()
	cfg.Channel = 2
	cfg.Coupling = "AC"
	require.NoError(t, a.Setup(context.Background(), cfg))
	assert.Equal(t, []string{
		"display 2 true",
		"coupling 2 AC",
		"probe 2 X1",
		"acquire SAMPle",
		"trigmode AUTO",
		"run",
	}, d.log)
}

func TestRunDCSpectrum(t *testing.T) {
	// A constant buffer has all its energy in bin zero. Code 200 at
	// 1 V/div with a 1X probe is (200-127.5)*8/255 volts.
	d := &fakeDigi{
		scale: 1,
		probe: 1,
		bufs:  [][]byte{bytes.Repeat([]byte{200}, owon.ADCSamples)},
	}
	a := testAnalyzer(d)

	sp, err := a.Run(context.Background(), testConfig())
	require.NoError(t, err)
	require.Len(t, sp.VRms, owon.ADCSamples/2)
	require.Len(t, sp.Frequencies, owon.ADCSamples/2)

	wantDC := (200 - owon.RawCodeMid) * owon.VerticalDivisions / owon.RawCodeRange
	assert.InDelta(t, wantDC, sp.VRms[0], 1e-9)
	for k := 1; k < len(sp.VRms); k++ {
		assert.InDelta(t, 0, sp.VRms[k], 1e-9)
	}
	// dB floor comes from the 1e-12 epsilon, not -Inf.
	assert.InDelta(t, -240, sp.VdB[len(sp.VdB)-1], 1e-6)

	assert.Equal(t, 0.0, sp.Frequencies[0])
	assert.InDelta(t, sp.Plan.Resolution, sp.Frequencies[1], 1e-9)

	assert.Equal(t, "run", d.log[len(d.log)-1], "scope left running")
}

func TestRunProbeScalesVolts(t *testing.T) {
	d := &fakeDigi{
		scale: 2,
		probe: 10,
		bufs:  [][]byte{bytes.Repeat([]byte{200}, owon.ADCSamples)},
	}
	a := testAnalyzer(d)
	sp, err := a.Run(context.Background(), testConfig())
	require.NoError(t, err)
	wantDC := (200 - owon.RawCodeMid) * owon.VerticalDivisions * 2 * 10 / owon.RawCodeRange
	assert.InDelta(t, wantDC, sp.VRms[0], 1e-9)
}

func TestRunAveragesAcrossAcquisitions(t *testing.T) {
	// Averaging a code-200 buffer with a code-100 buffer behaves as
	// if one buffer held the mean code.
	d := &fakeDigi{
		scale: 1,
		probe: 1,
		bufs: [][]byte{
			bytes.Repeat([]byte{200}, owon.ADCSamples),
			bytes.Repeat([]byte{100}, owon.ADCSamples),
		},
	}
	a := testAnalyzer(d)
	cfg := testConfig()
	cfg.NumAverages = 2
	sp, err := a.Run(context.Background(), cfg)
	require.NoError(t, err)
	wantDC := (150 - owon.RawCodeMid) * owon.VerticalDivisions / owon.RawCodeRange
	assert.InDelta(t, wantDC, sp.VRms[0], 1e-9)
}

func TestRunMidpointBufferIsSilent(t *testing.T) {
	// Codes 127 and 128 straddle the zero-volt midpoint exactly, so
	// their complex average cancels and every bin reads zero.
	d := &fakeDigi{
		scale: 1,
		probe: 1,
		bufs: [][]byte{
			bytes.Repeat([]byte{127}, owon.ADCSamples),
			bytes.Repeat([]byte{128}, owon.ADCSamples),
		},
	}
	a := testAnalyzer(d)
	cfg := testConfig()
	cfg.NumAverages = 2
	sp, err := a.Run(context.Background(), cfg)
	require.NoError(t, err)
	for k := range sp.VRms {
		assert.InDelta(t, 0, sp.VRms[k], 1e-9)
	}
}

func TestRunDiscardsShortBuffer(t *testing.T) {
	d := &fakeDigi{
		scale: 1,
		probe: 1,
		bufs: [][]byte{
			bytes.Repeat([]byte{0}, 17),
			bytes.Repeat([]byte{200}, owon.ADCSamples),
		},
	}
	a := testAnalyzer(d)
	cfg := testConfig()
	cfg.NumAverages = 2
	sp, err := a.Run(context.Background(), cfg)
	require.NoError(t, err)
	wantDC := (200 - owon.RawCodeMid) * owon.VerticalDivisions / owon.RawCodeRange
	assert.InDelta(t, wantDC, sp.VRms[0], 1e-9, "short buffer must not dilute the average")
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestRunDiscardsTimedOutDownload(t *testing.T) {
	// A download timeout leaves the connection usable, so the
	// repetition is discarded like a short buffer rather than killing
	// the analysis.
	d := &fakeDigi{
		scale:   1,
		probe:   1,
		bufErrs: []error{timeoutErr{}, nil},
		bufs:    [][]byte{bytes.Repeat([]byte{200}, owon.ADCSamples)},
	}
	a := testAnalyzer(d)
	cfg := testConfig()
	cfg.NumAverages = 2
	sp, err := a.Run(context.Background(), cfg)
	require.NoError(t, err)
	wantDC := (200 - owon.RawCodeMid) * owon.VerticalDivisions / owon.RawCodeRange
	assert.InDelta(t, wantDC, sp.VRms[0], 1e-9, "surviving acquisition carries the result")
}

func TestRunAllDiscardedLeavesScopeRunning(t *testing.T) {
	d := &fakeDigi{scale: 1, probe: 1}
	a := testAnalyzer(d)
	_, err := a.Run(context.Background(), testConfig())
	assert.ErrorIs(t, err, ErrNoAcquisitions)
	assert.Equal(t, "run", d.log[len(d.log)-1])
}

func TestRunTransportErrorAborts(t *testing.T) {
	boom := errors.New("connection reset")
	d := &fakeDigi{scale: 1, probe: 1, bufErr: boom}
	a := testAnalyzer(d)
	_, err := a.Run(context.Background(), testConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "run", d.log[len(d.log)-1], "scope restarted even on abort")
}

func TestRunConfirmDeclined(t *testing.T) {
	d := &fakeDigi{scale: 1, probe: 1}
	a := testAnalyzer(d)
	a.Confirm = func(Plan) bool { return false }
	_, err := a.Run(context.Background(), testConfig())
	assert.ErrorIs(t, err, ErrDeclined)
	assert.NotContains(t, d.log, "stop", "declined run must not disturb the scope")
}

func TestRunConfirmSeesPlan(t *testing.T) {
	d := &fakeDigi{
		scale: 1,
		probe: 1,
		bufs:  [][]byte{bytes.Repeat([]byte{128}, owon.ADCSamples)},
	}
	a := testAnalyzer(d)
	var got Plan
	a.Confirm = func(p Plan) bool { got = p; return true }
	_, err := a.Run(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, "1ms", got.Timebase.Label)
}
