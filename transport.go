// Copyright (c) 2024–2026 The owonlab developers. All rights reserved.
// Project site: https://github.com/mpictor/owon
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package owon

import (
	"fmt"
	"net"
	"time"

	"go.bug.st/serial"
)

// DialScope connects to the SCPI socket served by the VDS software,
// normally 127.0.0.1:3000.
func DialScope(addr string, opts ...ConnOption) (*Scope, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("scope at %s: %w (is the VDS software "+
			"running with its SCPI server enabled?)", addr, err)
	}
	return NewScope(NewConn(conn, "scope", opts...)), nil
}

// OpenGenerator opens the generator's USB virtual COM port.
func OpenGenerator(port string, opts ...ConnOption) (*Generator, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: 115200})
	if err != nil {
		return nil, fmt.Errorf("generator port %s: %w", port, err)
	}
	// Serial ports have no per-read deadline; a port-level timeout
	// bounds query reads instead.
	if err := p.SetReadTimeout(10 * time.Second); err != nil {
		p.Close()
		return nil, fmt.Errorf("generator port %s: %w", port, err)
	}
	return NewGenerator(NewConn(p, "generator", opts...)), nil
}
