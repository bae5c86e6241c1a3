// Copyright (c) 2024–2026 The owonlab developers. All rights reserved.
// Project site: https://github.com/mpictor/owon
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Bodeplot runs automated frequency-response sweeps against a DGE
// generator and a VDS scope, and saves the results as CSV and PNG.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mpictor/owon/lib/acquire"
	"github.com/mpictor/owon/lib/bode"
	"github.com/mpictor/owon/lib/cfgfile"
	"github.com/mpictor/owon/lib/conlog"
	"github.com/mpictor/owon/lib/connutil"
	"github.com/mpictor/owon/lib/export"
)

func main() {
	var conns connutil.Conns
	conns.AddFlags()
	flag.Parse()
	if conns.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := run(&conns); err != nil {
		log.Fatal("bodeplot", "err", err)
	}
}

func run(conns *connutil.Conns) error {
	scope, gen, cleanup, err := conns.Both()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cleanup(); cerr != nil {
			log.Error("closing instruments", "err", cerr)
		}
	}()

	if idn, err := gen.Identify(); err == nil {
		log.Info("generator", "idn", idn)
	} else {
		return fmt.Errorf("generator identification: %w", err)
	}
	if idn, err := scope.Identify(); err == nil {
		log.Info("scope", "idn", idn)
	} else {
		return fmt.Errorf("scope identification: %w", err)
	}

	// A reset clears whatever state the vendor software was left in.
	// The scope needs a couple of seconds to come back.
	log.Info("resetting scope")
	if err := scope.Reset(); err != nil {
		return err
	}
	time.Sleep(2 * time.Second)

	p := conlog.NewPrompter()
	store := export.Store{}

	for {
		cfg := bode.Defaults()
		if used, err := cfgfile.Load(cfgfile.BodeConfig, &cfg); err != nil {
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
				if err := cfgfile.Save(cfgfile.BodeConfig, cfg); err != nil {
					return err
				}
				p.Printf("Defaults saved to %s\n", cfgfile.BodeConfig)
			}
			printConfig(p, conns, cfg)
		}

		start, err := p.YesNo("Start the sweep?", true)
		if err != nil {
			return err
		}
		if start {
			if err := sweepOnce(p, store, gen, scope, cfg); err != nil {
				return err
			}
		} else {
			p.Printf("Sweep cancelled.\n")
		}

		again, err := p.YesNo("Run another sweep?", true)
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}

func sweepOnce(p *conlog.Prompter, store export.Store,
	gen bode.SignalSource, scope bode.Oscilloscope, cfg bode.Config) error {

	// Ctrl-C ends the sweep early and keeps the points measured so
	// far; a second Ctrl-C kills the process as usual.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sw := &bode.Sweeper{
		Gen:   gen,
		Scope: scope,
		Sampler: acquire.Sampler{
			Averages: cfg.NumAverages,
		},
	}
	if err := sw.Setup(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			p.Warn("Interrupted during setup.")
			return nil
		}
		return err
	}
	res, err := sw.Run(ctx, cfg)
	stop()
	if err != nil {
		return err
	}
	if len(res.Points) == 0 {
		p.Warn("No data collected, nothing to save.")
		return nil
	}
	p.Printf("Sweep finished with %d points.\n", len(res.Points))

	savePlot, err := p.YesNo("Save the plot (PNG)?", true)
	if err != nil {
		return err
	}
	if savePlot {
		path, err := store.NextPlotFile(export.BodePlotPrefix, ".png")
		if err != nil {
			return err
		}
		if err := export.SaveBodePlot(path, res); err != nil {
			return err
		}
		p.Printf("Plot saved to %s\n", path)
	}

	saveCSV, err := p.YesNo("Save the raw data (CSV)?", true)
	if err != nil {
		return err
	}
	if saveCSV {
		path, err := store.NextDataFile(export.BodeDataPrefix, ".csv")
		if err != nil {
			return err
		}
		if err := export.WriteBodeCSV(path, res); err != nil {
			return err
		}
		p.Printf("Data saved to %s\n", path)
	}
	return nil
}

func printConfig(p *conlog.Prompter, conns *connutil.Conns, cfg bode.Config) {
	p.Title("--- Sweep configuration ---")
	p.Printf("  Generator:   %s\n", conns.GenPort)
	p.Printf("  Scope:       %s\n", conns.ScopeAddr)
	p.Printf("  Scale:       %s\n", cfg.Scale)
	p.Printf("  Frequency:   %g Hz to %g Hz, %d points\n", cfg.FStart, cfg.FStop, cfg.Points())
	p.Printf("  Averages:    %d\n", cfg.NumAverages)
	p.Printf("  Stimulus:    %g Vpp\n", cfg.GenAmplitudeVpp)
	p.Printf("  Plot Y axis: %g dB to %g dB\n", cfg.YFloor(), cfg.YMagMax)
}

func editConfig(p *conlog.Prompter, cfg *bode.Config) error {
	var err error
	cfg.Scale, err = p.String("Frequency scale, linear (lin) or logarithmic (log)?", cfg.Scale,
		func(s string) error {
			if s != bode.ScaleLin && s != bode.ScaleLog {
				return errors.New("enter 'lin' or 'log'")
			}
			return nil
		})
	if err != nil {
		return err
	}

	for {
		cfg.FStart, err = p.Float("Start frequency (Hz)", cfg.FStart)
		if err != nil {
			return err
		}
		if cfg.Scale == bode.ScaleLog && cfg.FStart <= 0 {
			p.Warn("log scale requires a start frequency above 0")
			continue
		}
		break
	}
	for {
		cfg.FStop, err = p.Float("Stop frequency (Hz)", cfg.FStop)
		if err != nil {
			return err
		}
		if cfg.FStop <= cfg.FStart {
			p.Warn("stop frequency must be above the start frequency")
			continue
		}
		break
	}

	points := cfg.Points()
	for {
		points, err = p.Int("Number of points", points)
		if err != nil {
			return err
		}
		if points < 2 {
			p.Warn("at least 2 points required")
			continue
		}
		break
	}
	if cfg.Scale == bode.ScaleLin {
		cfg.NumPointsLin = points
	} else {
		cfg.NumPoints = points
	}

	for {
		cfg.NumAverages, err = p.Int("Averages per point", cfg.NumAverages)
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
		cfg.GenAmplitudeVpp, err = p.Float("Generator amplitude (Vpp)", cfg.GenAmplitudeVpp)
		if err != nil {
			return err
		}
		if cfg.GenAmplitudeVpp <= 0 {
			p.Warn("amplitude must be above 0 Vpp")
			continue
		}
		break
	}

	floor := cfg.YFloor()
	floor, err = p.Float("Plot magnitude floor (dB)", floor)
	if err != nil {
		return err
	}
	if cfg.Scale == bode.ScaleLin {
		cfg.YMagMinLin = floor
	} else {
		cfg.YMagMin = floor
	}
	cfg.YMagMax, err = p.Float("Plot magnitude ceiling (dB)", cfg.YMagMax)
	if err != nil {
		return err
	}
	return nil
}
