package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/mpictor/owon/lib/bode"
	"github.com/mpictor/owon/lib/spectrum"
)

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteBodeCSV writes a sweep result with the canonical header.
func WriteBodeCSV(path string, res bode.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Frequency (Hz)", "Magnitude (dB)", "Phase (deg)"}); err != nil {
		return err
	}
	for _, p := range res.Points {
		if err := w.Write([]string{ftoa(p.Frequency), ftoa(p.Magnitude), ftoa(p.Phase)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// ReadBodeCSV loads a file written by WriteBodeCSV.
func ReadBodeCSV(path string) (bode.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return bode.Result{}, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return bode.Result{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var res bode.Result
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) != 3 {
			return bode.Result{}, fmt.Errorf("%s row %d: want 3 columns, got %d", path, i+1, len(row))
		}
		var p bode.Point
		if p.Frequency, err = strconv.ParseFloat(row[0], 64); err != nil {
			return bode.Result{}, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		if p.Magnitude, err = strconv.ParseFloat(row[1], 64); err != nil {
			return bode.Result{}, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		if p.Phase, err = strconv.ParseFloat(row[2], 64); err != nil {
			return bode.Result{}, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		res.Points = append(res.Points, p)
	}
	return res, nil
}

// WriteSpectrumCSV writes an analysis result with the canonical
// header.
func WriteSpectrumCSV(path string, sp spectrum.Spectrum) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Frequency (Hz)", "Amplitude (Vrms)", "Amplitude (dB)"}); err != nil {
		return err
	}
	for i := range sp.Frequencies {
		row := []string{ftoa(sp.Frequencies[i]), ftoa(sp.VRms[i]), ftoa(sp.VdB[i])}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
