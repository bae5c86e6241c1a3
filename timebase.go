// Copyright (c) 2024–2026 The owonlab developers. All rights reserved.
// Project site: https://github.com/mpictor/owon
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package owon

// Timebase is one of the scope's discrete horizontal time-per-division
// settings. Label is the exact token the :TIMebase:SCALe command takes.
type Timebase struct {
	Seconds float64
	Label   string
}

// Timebases lists every timebase the VDS accepts, ascending.
var Timebases = []Timebase{
	{5e-9, "5ns"}, {10e-9, "10ns"}, {20e-9, "20ns"}, {50e-9, "50ns"},
	{100e-9, "100ns"}, {200e-9, "200ns"}, {500e-9, "500ns"},
	{1e-6, "1us"}, {2e-6, "2us"}, {5e-6, "5us"},
	{10e-6, "10us"}, {20e-6, "20us"}, {50e-6, "50us"},
	{100e-6, "100us"}, {200e-6, "200us"}, {500e-6, "500us"},
	{1e-3, "1ms"}, {2e-3, "2ms"}, {5e-3, "5ms"},
	{10e-3, "10ms"}, {20e-3, "20ms"}, {50e-3, "50ms"},
	{100e-3, "100ms"}, {200e-3, "200ms"}, {500e-3, "500ms"},
	{1, "1s"}, {2, "2s"}, {5, "5s"},
	{10, "10s"}, {20, "20s"}, {50, "50s"}, {100, "100s"},
}

// nearestAtOrAbove returns the smallest enumerated timebase whose
// per-division time is at least ideal, clamped to the largest setting.
func nearestAtOrAbove(ideal float64) Timebase {
	for _, tb := range Timebases {
		if tb.Seconds >= ideal {
			return tb
		}
	}
	return Timebases[len(Timebases)-1]
}

// OptimalTimebase returns the timebase that displays about two signal
// periods of freq across the full horizontal span. Non-positive
// frequencies get 1 s/div.
func OptimalTimebase(freq float64) Timebase {
	if freq <= 0 {
		return Timebase{1, "1s"}
	}
	period := 1 / freq
	return nearestAtOrAbove(period * 2 / HorizontalDivisions)
}

// ResolutionTimebase returns the smallest timebase whose full capture
// window is long enough to resolve resolutionHz, i.e. whose
// per-division time is at least 1/(resolutionHz * divisions). If no
// setting qualifies the largest is returned.
func ResolutionTimebase(resolutionHz float64) Timebase {
	return nearestAtOrAbove(1 / (resolutionHz * HorizontalDivisions))
}
