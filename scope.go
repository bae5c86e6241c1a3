// Copyright (c) 2024–2026 The owonlab developers. All rights reserved.
// Project site: https://github.com/mpictor/owon
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package owon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gotmc/query"
)

// Scope drives a VDS-series oscilloscope through the vendor software's
// SCPI socket. All set commands are fire-and-forget; the Conn's pacing
// delay runs after each one, and callers add their own settle delays on
// top where the firmware needs them.
type Scope struct {
	*Conn
}

// NewScope wraps an open scope connection.
func NewScope(c *Conn) *Scope { return &Scope{Conn: c} }

// Identify returns the instrument identity string.
func (s *Scope) Identify() (string, error) {
	return query.String(s.Conn, "*IDN?")
}

// Reset restores factory state. The scope needs about two seconds
// before it accepts further configuration.
func (s *Scope) Reset() error { return s.Command("*RST") }

// Run starts acquisition.
func (s *Scope) Run() error { return s.Command("*RUN") }

// Stop halts acquisition. Configuration while running is unreliable, so
// sequencers stop the scope before changing scales.
func (s *Scope) Stop() error { return s.Command("*STOP") }

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// SetChannelDisplay turns the trace for channel ch on or off.
func (s *Scope) SetChannelDisplay(ch int, on bool) error {
	return s.Command(":CHANnel%d:DISPlay %s", ch, onOff(on))
}

// ChannelDisplay reports whether the trace for channel ch is shown.
func (s *Scope) ChannelDisplay(ch int) (bool, error) {
	r, err := query.String(s.Conn, fmt.Sprintf(":CHANnel%d:DISPlay?", ch))
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(r), "ON"), nil
}

// SetCoupling sets channel coupling, "DC" or "AC".
func (s *Scope) SetCoupling(ch int, coupling string) error {
	return s.Command(":CHANnel%d:COUPling %s", ch, coupling)
}

// Coupling returns the channel coupling.
func (s *Scope) Coupling(ch int) (string, error) {
	return query.String(s.Conn, fmt.Sprintf(":CHANnel%d:COUPling?", ch))
}

// SetProbe sets the probe attenuation token, e.g. "X1" or "X10".
func (s *Scope) SetProbe(ch int, atten string) error {
	return s.Command(":CHANnel%d:PROBe %s", ch, atten)
}

// Probe returns the probe attenuation as a multiplier, parsing the
// instrument's "X<n>" token.
func (s *Scope) Probe(ch int) (int, error) {
	r, err := query.String(s.Conn, fmt.Sprintf(":CHANnel%d:PROBe?", ch))
	if err != nil {
		return 0, err
	}
	tok := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(r)), "X")
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("probe attenuation %q: %w", r, err)
	}
	return n, nil
}

// SetScale sets the channel vertical scale in volts per division.
func (s *Scope) SetScale(ch int, volts float64) error {
	return s.Command(":CHANnel%d:SCALe %g", ch, volts)
}

// Scale returns the channel vertical scale in volts per division.
func (s *Scope) Scale(ch int) (float64, error) {
	return query.Float64(s.Conn, fmt.Sprintf(":CHANnel%d:SCALe?", ch))
}

// SetOffset sets the channel vertical offset in display steps. The
// sequencers only ever zero it.
func (s *Scope) SetOffset(ch, offset int) error {
	return s.Command(":CHANnel%d:OFFSet %d", ch, offset)
}

// SetTimebase sets the horizontal scale. Scale changes are the least
// stable operation on this instrument; callers wait about two seconds
// afterward.
func (s *Scope) SetTimebase(tb Timebase) error {
	return s.Command(":TIMebase:SCALe %s", tb.Label)
}

// TimebaseLabel returns the committed horizontal scale token.
func (s *Scope) TimebaseLabel() (string, error) {
	return query.String(s.Conn, ":TIMebase:SCALe?")
}

// SetAcquireType sets the acquisition mode, normally "SAMPle".
func (s *Scope) SetAcquireType(t string) error {
	return s.Command(":ACQuire:TYPE %s", t)
}

// AcquireType returns the acquisition mode.
func (s *Scope) AcquireType() (string, error) {
	return query.String(s.Conn, ":ACQuire:TYPE?")
}

// SetTriggerMode sets the sweep trigger mode. "AUTO" free-runs and
// tolerates untriggered or noisy signals without stalling.
func (s *Scope) SetTriggerMode(mode string) error {
	return s.Command(":TRIGger:MODE %s", mode)
}

// TriggerMode returns the sweep trigger mode.
func (s *Scope) TriggerMode() (string, error) {
	return query.String(s.Conn, ":TRIGger:MODE?")
}

// SetTriggerEdgeSource fixes the single edge trigger source, e.g. "CH1".
func (s *Scope) SetTriggerEdgeSource(src string) error {
	return s.Command(":TRIGger:SINGle:EDGE:SOURce %s", src)
}

// MeasureClearAll removes every registered measurement item.
func (s *Scope) MeasureClearAll() error {
	return s.Command(":MEASure:DELete ALL")
}

// MeasureSource selects the channel that subsequent MeasureAdd calls
// register against.
func (s *Scope) MeasureSource(ch int) error {
	return s.Command(":MEASure:SOURce CHAN%d", ch)
}

// MeasureAdd registers a named measurement item, e.g. "PKPK" or
// "FDELay", on the current measure source.
func (s *Scope) MeasureAdd(item string) error {
	return s.Command(":MEASure:ADD %s", item)
}

// Measurement fetches one registered measurement for a channel and
// returns the raw response string. The value may not be computed yet
// (non-numeric reply) or may be an overload sentinel; interpreting it
// is the caller's job.
func (s *Scope) Measurement(item string, ch int) (string, error) {
	return s.Query(fmt.Sprintf(":MEASure%d:%s?", ch, item))
}

// ADCData downloads the fixed-length raw digitized sample buffer for a
// channel. The returned slice always has ADCSamples bytes on success.
func (s *Scope) ADCData(ch int) ([]byte, error) {
	return s.QueryBinary(fmt.Sprintf("*ADC? CH%d", ch), ADCSamples)
}
