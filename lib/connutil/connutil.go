// Package connutil wires command-line flags to instrument
// connections: the scope's TCP address and the generator's serial
// port, with USB autodiscovery for the latter.
package connutil

import (
	"flag"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"

	"github.com/mpictor/owon"
	"github.com/mpictor/owon/lib/find"
)

// DefaultScopeAddr is where the VDS software serves SCPI when its
// network port is enabled.
const DefaultScopeAddr = "127.0.0.1:3000"

type Conns struct {
	ScopeAddr string
	GenPort   string
	Delay     time.Duration
	Timeout   time.Duration
	Debug     bool

	finderr error
}

// AddFlags registers the connection flags. It must be called before
// flag.Parse. The generator port default comes from USB autodiscovery
// of an Owon device, falling back to /dev/ttyUSB0.
func (c *Conns) AddFlags() {
	tty, err := find.Find(find.OwonFilter)
	if err != nil {
		c.finderr = err
		tty = "ttyUSB0"
	}

	if c.Delay == 0 {
		c.Delay = 100 * time.Millisecond
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}

	flag.StringVar(&c.ScopeAddr, "scope", DefaultScopeAddr,
		"TCP address of the VDS software's SCPI port")
	flag.StringVar(&c.GenPort, "gen", "/dev/"+tty,
		"serial port of the DGE generator")
	flag.DurationVar(&c.Delay, "delay", c.Delay, "pacing delay between instrument writes")
	flag.DurationVar(&c.Timeout, "timeout", c.Timeout, "read timeout for instrument queries")
	flag.BoolVar(&c.Debug, "debug", c.Debug, "log every command and response")
}

func (c *Conns) options() []owon.ConnOption {
	opts := []owon.ConnOption{
		owon.WithWriteDelay(c.Delay),
		owon.WithTimeout(c.Timeout),
	}
	if c.Debug {
		opts = append(opts, owon.WithDebug())
	}
	return opts
}

// Scope connects to the oscilloscope. Call after flag.Parse.
func (c *Conns) Scope() (*owon.Scope, func() error, error) {
	s, err := owon.DialScope(c.ScopeAddr, c.options()...)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	log.Info("scope connected", "addr", c.ScopeAddr)
	return s, s.Close, nil
}

// Generator opens the waveform generator. Call after flag.Parse.
func (c *Conns) Generator() (*owon.Generator, func() error, error) {
	if c.finderr != nil && c.GenPort == "/dev/ttyUSB0" {
		// Only worth mentioning when the guess is actually in use.
		log.Warn("generator autodiscovery failed, guessing port",
			"port", c.GenPort, "err", c.finderr)
	}
	g, err := owon.OpenGenerator(c.GenPort, c.options()...)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	log.Info("generator connected", "port", c.GenPort)
	return g, g.Close, nil
}

// Both connects to both instruments, releasing the scope again if the
// generator fails. The returned cleanup closes whatever was opened.
func (c *Conns) Both() (*owon.Scope, *owon.Generator, func() error, error) {
	scope, sclose, err := c.Scope()
	if err != nil {
		return nil, nil, func() error { return nil }, err
	}
	gen, gclose, err := c.Generator()
	if err != nil {
		return nil, nil, func() error { return nil }, multierr.Append(err, sclose())
	}
	cleanup := func() error {
		return multierr.Append(gclose(), sclose())
	}
	return scope, gen, cleanup, nil
}
