// Copyright (c) 2024–2026 The owonlab developers. All rights reserved.
// Project site: https://github.com/mpictor/owon
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package owon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ErrClosed is returned by every operation attempted on a connection
// that has been closed, or that broke on an earlier transport error.
var ErrClosed = errors.New("owon: not connected")

// Conn is the exclusive connection handle for one instrument. Both the
// DGE generator (serial VCP) and the VDS scope (TCP socket into the
// vendor PC software) speak newline-terminated SCPI over it.
//
// Every write is followed by a short pacing delay: the instrument
// firmware silently misapplies rapid-fire settings, so commands must be
// serialized and paced. Any transport error marks the handle broken and
// all further operations fail fast with ErrClosed.
type Conn struct {
	rw         io.ReadWriteCloser
	r          *bufio.Reader
	name       string
	writeDelay time.Duration
	timeout    time.Duration
	debug      bool
	open       bool
}

// ConnOption applies an option to the connection.
type ConnOption func(*Conn)

// WithWriteDelay sets the pacing delay appended to every write. The
// default is 100 ms, matching the instrument's command latency.
func WithWriteDelay(d time.Duration) ConnOption {
	return func(c *Conn) { c.writeDelay = d }
}

// WithTimeout sets the read deadline used for queries on transports
// that support deadlines. The default is 10 s.
func WithTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.timeout = d }
}

// WithDebug causes commands and responses to be logged.
func WithDebug() ConnOption { return func(c *Conn) { c.debug = true } }

// NewConn wraps an open transport. name tags log lines and errors.
func NewConn(rw io.ReadWriteCloser, name string, opts ...ConnOption) *Conn {
	c := &Conn{
		rw:         rw,
		r:          bufio.NewReader(rw),
		name:       name,
		writeDelay: 100 * time.Millisecond,
		timeout:    10 * time.Second,
		open:       true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the tag the connection was created with.
func (c *Conn) Name() string { return c.name }

// Connected reports whether the handle is still usable.
func (c *Conn) Connected() bool { return c.open }

// Close closes the underlying transport. Further operations fail with
// ErrClosed.
func (c *Conn) Close() error {
	if !c.open {
		return nil
	}
	c.open = false
	return c.rw.Close()
}

// broke marks the handle unusable after a transport error.
func (c *Conn) broke() {
	c.open = false
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

func (c *Conn) armDeadline() {
	if d, ok := c.rw.(readDeadliner); ok {
		// Errors here surface on the subsequent read.
		_ = d.SetReadDeadline(time.Now().Add(c.timeout))
	}
}

// drain discards any unread bytes left over from an earlier exchange so
// a response cannot be attributed to the wrong query.
func (c *Conn) drain() {
	if n := c.r.Buffered(); n > 0 {
		_, _ = c.r.Discard(n)
	}
}

// Command formats according to a format specifier if provided and sends
// a SCPI command to the instrument. Leading and trailing whitespace is
// trimmed before the newline terminator is appended. The pacing delay
// runs before Command returns.
func (c *Conn) Command(format string, a ...any) error {
	if !c.open {
		return fmt.Errorf("%s: %w", c.name, ErrClosed)
	}
	cmd := format
	if len(a) > 0 {
		cmd = fmt.Sprintf(format, a...)
	}
	cmd = strings.TrimSpace(cmd)
	if c.debug {
		log.Debug("scpi cmd", "conn", c.name, "cmd", cmd)
	}
	if _, err := io.WriteString(c.rw, cmd+"\n"); err != nil {
		c.broke()
		return fmt.Errorf("%s: writing %q: %w", c.name, cmd, err)
	}
	time.Sleep(c.writeDelay)
	return nil
}

// Query sends the given SCPI query and reads one newline-terminated
// response, returning it with surrounding whitespace trimmed. Conn
// satisfies the query.Querier interface from github.com/gotmc/query.
func (c *Conn) Query(cmd string) (string, error) {
	if !c.open {
		return "", fmt.Errorf("%s: %w", c.name, ErrClosed)
	}
	cmd = strings.TrimSpace(cmd)
	c.drain()
	if _, err := io.WriteString(c.rw, cmd+"\n"); err != nil {
		c.broke()
		return "", fmt.Errorf("%s: writing query %q: %w", c.name, cmd, err)
	}
	c.armDeadline()
	s, err := c.r.ReadString('\n')
	if err != nil && err != io.EOF {
		if !IsTimeout(err) {
			c.broke()
		}
		return "", fmt.Errorf("%s: reading reply to %q: %w", c.name, cmd, err)
	}
	s = strings.TrimSpace(s)
	if c.debug {
		log.Debug("scpi query", "conn", c.name, "cmd", cmd, "reply", s)
	}
	return s, nil
}

// QueryBinary sends the given query and reads exactly n raw bytes. It
// is used for the fixed-length digitized sample buffer. A short read
// within the deadline returns the bytes received alongside the error so
// the caller can tell a truncated buffer from an absent one.
func (c *Conn) QueryBinary(cmd string, n int) ([]byte, error) {
	if !c.open {
		return nil, fmt.Errorf("%s: %w", c.name, ErrClosed)
	}
	cmd = strings.TrimSpace(cmd)
	c.drain()
	if _, err := io.WriteString(c.rw, cmd+"\n"); err != nil {
		c.broke()
		return nil, fmt.Errorf("%s: writing query %q: %w", c.name, cmd, err)
	}
	c.armDeadline()
	buf := make([]byte, n)
	got, err := io.ReadFull(c.r, buf)
	if c.debug {
		log.Debug("scpi binary query", "conn", c.name, "cmd", cmd, "bytes", got)
	}
	if err != nil {
		if !IsTimeout(err) {
			c.broke()
		}
		return buf[:got], fmt.Errorf("%s: read %d of %d bytes for %q: %w",
			c.name, got, n, cmd, err)
	}
	return buf, nil
}

// IsTimeout reports whether err is (or wraps) a transport read
// timeout. A timed out read leaves the connection usable; only other
// transport errors break the handle.
func IsTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
