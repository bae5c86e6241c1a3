// Copyright (c) 2024–2026 The owonlab developers. All rights reserved.
// Project site: https://github.com/mpictor/owon
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package owon

import (
	"github.com/gotmc/query"
)

// Generator drives channel 1 of a DGE-series arbitrary waveform
// generator.
type Generator struct {
	*Conn
}

// NewGenerator wraps an open generator connection.
func NewGenerator(c *Conn) *Generator { return &Generator{Conn: c} }

// Identify returns the instrument identity string.
func (g *Generator) Identify() (string, error) {
	return query.String(g.Conn, "*IDN?")
}

// Reset restores factory state.
func (g *Generator) Reset() error { return g.Command("*RST") }

// SetShape selects the output function, e.g. "SINusoid".
func (g *Generator) SetShape(shape string) error {
	return g.Command("SOURce1:FUNCtion:SHAPE %s", shape)
}

// SetAmplitude sets the output amplitude in volts peak-to-peak.
func (g *Generator) SetAmplitude(vpp float64) error {
	return g.Command("SOURce1:VOLTage:AMPLitude %gVpp", vpp)
}

// SetOffset sets the DC offset in volts.
func (g *Generator) SetOffset(volts float64) error {
	return g.Command("SOURce1:VOLTage:OFFSet %gV", volts)
}

// SetImpedance sets the output impedance token, e.g. "INFinity" for a
// high-impedance load.
func (g *Generator) SetImpedance(imp string) error {
	return g.Command("OUTPut1:IMPedance %s", imp)
}

// SetOutput enables or disables the channel 1 output.
func (g *Generator) SetOutput(on bool) error {
	return g.Command("OUTPut1:STATE %s", onOff(on))
}

// SetFrequency sets the fixed output frequency in hertz.
func (g *Generator) SetFrequency(hz float64) error {
	return g.Command("SOURce1:FREQuency:FIXed %gHz", hz)
}
