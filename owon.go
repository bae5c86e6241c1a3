// Copyright (c) 2024–2026 The owonlab developers. All rights reserved.
// Project site: https://github.com/mpictor/owon
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package owon controls Owon bench instruments over their text command
// protocols: the DGE-series arbitrary waveform generator (SCPI over a
// USB virtual COM port) and the VDS-series PC oscilloscope (SCPI over
// the TCP socket served by the vendor's VDS software).
//
// The package exposes a flat capability surface per instrument class
// (Scope and Generator) on top of a single paced Conn. There is no
// per-subsystem type hierarchy; the VDS/DGE command trees are shallow
// enough that grouped methods on one type cover them.
package owon

// Display geometry and digitizer format of the VDS-series scope.
const (
	// HorizontalDivisions is the number of timebase divisions across
	// the full displayed capture window.
	HorizontalDivisions = 10

	// VerticalDivisions is the full vertical span of the display in
	// scale divisions.
	VerticalDivisions = 8

	// RawCodeRange is the span of the 8-bit digitizer codes.
	RawCodeRange = 255

	// RawCodeMid is the digitizer code corresponding to zero volts.
	RawCodeMid = 127.5

	// ADCSamples is the fixed length of the raw sample buffer returned
	// by the *ADC? query.
	ADCSamples = 500
)
