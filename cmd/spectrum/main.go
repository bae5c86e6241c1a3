// Copyright (c) 2024–2026 The owonlab developers. All rights reserved.
// Project site: https://github.com/mpictor/owon
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Spectrum measures amplitude spectra with a VDS scope: it downloads
// raw ADC buffers, averages windowed FFTs, and saves the result as
// CSV and PNG.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mpictor/owon/lib/cfgfile"
	"github.com/mpictor/owon/lib/conlog"
	"github.com/mpictor/owon/lib/connutil"
	"github.com/mpictor/owon/lib/export"
	"github.com/mpictor/owon/lib/spectrum"
)

func main() {
	var conns connutil.Conns
	conns.AddFlags()
	flag.Parse()
	if conns.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := run(&conns); err != nil {
		log.Fatal("spectrum", "err", err)
	}
}

func run(conns *connutil.Conns) error {
	scope, cleanup, err := conns.Scope()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cleanup(); cerr != nil {
			log.Error("closing scope", "err", cerr)
		}
	}()

	idn, err := scope.Identify()
	if err != nil {
		return fmt.Errorf("scope identification: %w", err)
	}
	log.Info("scope", "idn", idn)

	log.Info("resetting scope")
	if err := scope.Reset(); err != nil {
		return err
	}
	time.Sleep(2 * time.Second)

	p := conlog.NewPrompter()
	store := export.Store{}

	for {
		cfg := spectrum.Defaults()
		if used, err := cfgfile.Load(cfgfile.SpectrumConfig, &cfg); err != nil {
			return err
		} else if !used {
			log.Info("no saved defaults, using factory configuration")
		}

		printConfig(p, conns, cfg)
		modify, err := p.YesNo("Modify this configuration?", false)
		if err != nil {
			return err
		}
		if modify {
			if err := editConfig(p, &cfg); err != nil {
				return err
			}
			save, err := p.YesNo("Save as new defaults?", false)
			if err != nil {
				return err
			}
			if save {
				if err := cfgfile.Save(cfgfile.SpectrumConfig, cfg); err != nil {
					return err
				}
				p.Printf("Defaults saved to %s\n", cfgfile.SpectrumConfig)
			}
			printConfig(p, conns, cfg)
		}

		start, err := p.YesNo("Start the analysis?", true)
		if err != nil {
			return err
		}
		if start {
			if err := analyzeOnce(p, store, scope, cfg); err != nil {
				return err
			}
		} else {
			p.Printf("Analysis cancelled.\n")
		}

		again, err := p.YesNo("Run another analysis?", true)
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}

func analyzeOnce(p *conlog.Prompter, store export.Store,
	scope spectrum.Digitizer, cfg spectrum.Config) error {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &spectrum.Analyzer{
		Scope: scope,
		Confirm: func(plan spectrum.Plan) bool {
			p.Warn(fmt.Sprintf(
				"Adjust CH%d V/div in the Owon software so the signal is visible and NOT clipped.",
				cfg.Channel))
			p.Printf("  Timebase:   %s/div\n", plan.Timebase.Label)
			p.Printf("  Resolution: %.2f Hz\n", plan.Resolution)
			p.Printf("  Bandwidth:  %.2f Hz\n", plan.Nyquist)
			return p.Enter("Press ENTER to start (Ctrl-C to cancel)...") == nil
		},
	}
	if err := a.Setup(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			p.Warn("Interrupted during setup.")
			return nil
		}
		return err
	}
	sp, err := a.Run(ctx, cfg)
	stop()
	switch {
	case errors.Is(err, spectrum.ErrDeclined), errors.Is(err, context.Canceled):
		p.Warn("Analysis interrupted.")
		return nil
	case errors.Is(err, spectrum.ErrNoAcquisitions):
		p.Warn("Every acquisition failed, nothing to save.")
		return nil
	case err != nil:
		return err
	}
	p.Printf("Analysis finished: %d bins up to %.2f Hz.\n",
		len(sp.Frequencies), sp.Plan.Nyquist)

	savePlot, err := p.YesNo("Save the plot (PNG)?", true)
	if err != nil {
		return err
	}
	if savePlot {
		path, err := store.NextPlotFile(export.SpectrumPlotPrefix, ".png")
		if err != nil {
			return err
		}
		if err := export.SaveSpectrumPlot(path, sp); err != nil {
			return err
		}
		p.Printf("Plot saved to %s\n", path)
	}

	saveCSV, err := p.YesNo("Save the raw data (CSV)?", true)
	if err != nil {
		return err
	}
	if saveCSV {
		path, err := store.NextDataFile(export.SpectrumDataPrefix, ".csv")
		if err != nil {
			return err
		}
		if err := export.WriteSpectrumCSV(path, sp); err != nil {
			return err
		}
		p.Printf("Data saved to %s\n", path)
	}
	return nil
}

func printConfig(p *conlog.Prompter, conns *connutil.Conns, cfg spectrum.Config) {
	plan := spectrum.PlanFor(cfg)
	p.Title("--- Analysis configuration ---")
	p.Printf("  Scope:        %s\n", conns.ScopeAddr)
	p.Printf("  Channel:      CH%d (%s coupled)\n", cfg.Channel, cfg.CouplingMode())
	p.Printf("  Display:      %g Hz to %g Hz\n", cfg.FStart, cfg.FStop)
	p.Printf("  Resolution:   ~%g Hz target, %.2f Hz actual\n", cfg.ResolutionHz, plan.Resolution)
	p.Printf("  Averages:     %d\n", cfg.NumAverages)
	p.Printf("  FFT window:   %s\n", cfg.Window)
}

func editConfig(p *conlog.Prompter, cfg *spectrum.Config) error {
	var err error
	cfg.FStart, err = p.Float("Display start frequency (Hz)", cfg.FStart)
	if err != nil {
		return err
	}
	for {
		cfg.FStop, err = p.Float("Display stop frequency (Hz)", cfg.FStop)
		if err != nil {
			return err
		}
		if cfg.FStop <= cfg.FStart {
			p.Warn("stop frequency must be above the start frequency")
			continue
		}
		break
	}
	for {
		cfg.ResolutionHz, err = p.Float("Target resolution (Hz)", cfg.ResolutionHz)
		if err != nil {
			return err
		}
		if cfg.ResolutionHz <= 0 {
			p.Warn("resolution must be above 0 Hz")
			continue
		}
		break
	}
	for {
		cfg.NumAverages, err = p.Int("Number of averages", cfg.NumAverages)
		if err != nil {
			return err
		}
		if cfg.NumAverages < 1 {
			p.Warn("at least 1 average required")
			continue
		}
		break
	}
	for {
		cfg.Channel, err = p.Int("Channel (1 or 2)", cfg.Channel)
		if err != nil {
			return err
		}
		if cfg.Channel != 1 && cfg.Channel != 2 {
			p.Warn("channel must be 1 or 2")
			continue
		}
		break
	}
	cfg.Coupling, err = p.String("Coupling (AC or DC)", cfg.Coupling,
		func(s string) error {
			u := strings.ToUpper(s)
			if !strings.Contains(u, "AC") && !strings.Contains(u, "DC") {
				return errors.New("enter AC or DC")
			}
			return nil
		})
	if err != nil {
		return err
	}
	cfg.Coupling = strings.ToUpper(cfg.Coupling)

	cfg.Window, err = p.String(
		fmt.Sprintf("FFT window (%s, %s)", spectrum.WindowHann, spectrum.WindowRect),
		cfg.Window,
		func(s string) error {
			u := strings.ToUpper(s)
			if !strings.Contains(u, "HANN") && !strings.Contains(u, "RECT") {
				return fmt.Errorf("enter %s or %s", spectrum.WindowHann, spectrum.WindowRect)
			}
			return nil
		})
	if err != nil {
		return err
	}
	cfg.Window = strings.ToUpper(cfg.Window)
	return nil
}
