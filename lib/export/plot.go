package export

import (
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/mpictor/owon/lib/bode"
	"github.com/mpictor/owon/lib/spectrum"
)

func xys(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	return pts
}

func linePlot(title, xLabel, yLabel string, pts plotter.XYs) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	p.Add(line)
	return p, nil
}

// writeStacked renders two plots one above the other into a PNG.
func writeStacked(path string, top, bottom *plot.Plot) error {
	img := vgimg.New(8*vg.Inch, 6*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1}
	plots := [][]*plot.Plot{{top}, {bottom}}
	canvases := plot.Align(plots, tiles, dc)
	top.Draw(canvases[0][0])
	bottom.Draw(canvases[1][0])

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return err
	}
	return f.Close()
}

// SaveBodePlot renders the sweep as stacked magnitude and phase
// panels. Logarithmic sweeps get a log frequency axis.
func SaveBodePlot(path string, res bode.Result) error {
	freqs := res.Frequencies()
	mags := make([]float64, len(res.Points))
	phases := make([]float64, len(res.Points))
	for i, p := range res.Points {
		mags[i] = p.Magnitude
		phases[i] = p.Phase
	}

	magPlot, err := linePlot("Magnitude", "", "Magnitude (dB)", xys(freqs, mags))
	if err != nil {
		return err
	}
	phasePlot, err := linePlot("Phase", "Frequency (Hz)", "Phase (deg)", xys(freqs, phases))
	if err != nil {
		return err
	}

	cfg := res.Config
	magPlot.Y.Min = cfg.YFloor()
	magPlot.Y.Max = cfg.YMagMax
	phasePlot.Y.Min = -180
	phasePlot.Y.Max = 180
	if cfg.Scale == bode.ScaleLog {
		for _, p := range []*plot.Plot{magPlot, phasePlot} {
			p.X.Scale = plot.LogScale{}
			p.X.Tick.Marker = plot.LogTicks{Prec: -1}
		}
	}
	return writeStacked(path, magPlot, phasePlot)
}

// SaveSpectrumPlot renders the spectrum as stacked dB and Vrms
// panels, both clipped to the configured display range.
func SaveSpectrumPlot(path string, sp spectrum.Spectrum) error {
	dbPlot, err := linePlot("Spectrum", "", "Amplitude (dB)", xys(sp.Frequencies, sp.VdB))
	if err != nil {
		return err
	}
	rmsPlot, err := linePlot("", "Frequency (Hz)", "Amplitude (Vrms)", xys(sp.Frequencies, sp.VRms))
	if err != nil {
		return err
	}
	for _, p := range []*plot.Plot{dbPlot, rmsPlot} {
		p.X.Min = sp.Config.FStart
		p.X.Max = sp.Config.FStop
	}
	return writeStacked(path, dbPlot, rmsPlot)
}
