// Package acquire implements the measurement acquisition primitives
// shared by the sweep and spectrum sequencers: a polling reader that
// rides out the scope's not-ready replies, and a software-averaging
// sampler that aggregates repeated readings into one point estimate.
package acquire

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// Overload is the sentinel magnitude the scope reports when a
	// value is out of range. It is a meaningful instrument state, not
	// a transient one, so the poller returns it as a success and the
	// sampler decides what to do with it.
	Overload = 1e30

	// MinDetectable is the smallest primary amplitude the instrument
	// can resolve. A repetition whose channel-1 reading falls below it
	// saw no signal and is discarded.
	MinDetectable = 1e-9

	// DefaultPollInterval is the pause between poll attempts.
	DefaultPollInterval = 250 * time.Millisecond

	// DefaultPollTimeout bounds one polled read.
	DefaultPollTimeout = 10 * time.Second
)

// ErrReadTimeout reports that a polled read never produced a parseable
// value within the timeout. It is a repetition-level failure: the
// caller skips the repetition and carries on.
var ErrReadTimeout = errors.New("measurement read timed out")

// Poller repeatedly invokes a measurement fetch until the instrument
// produces a finite numeric value. The scope computes measurements
// asynchronously, so the first replies after a reconfiguration are
// often empty or non-numeric; those are retried. A fetch error is a
// transport failure and aborts immediately; only not-ready replies
// are worth retrying.
type Poller struct {
	Interval time.Duration // pause between attempts; DefaultPollInterval if zero
	Timeout  time.Duration // total budget; DefaultPollTimeout if zero
}

// Poll runs fetch until it yields a finite float or the timeout
// elapses. Overload sentinel values (magnitude >= Overload) parse fine
// and are returned as successes; validity filtering belongs to the
// caller. On timeout the error wraps ErrReadTimeout and reports the
// last raw reply for diagnostics.
func (p Poller) Poll(name string, fetch func() (string, error)) (float64, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	last := "N/A"
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		raw, err := fetch()
		if err != nil {
			return 0, fmt.Errorf("polling %s: %w", name, err)
		}
		last = raw
		v, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if perr == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v, nil
		}
		time.Sleep(interval)
	}
	return 0, fmt.Errorf("%w: %s (last reply %q)", ErrReadTimeout, name, last)
}
