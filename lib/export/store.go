// Package export persists measurement results: CSV data files and
// rendered PNG plots under an incrementally numbered DATA/ tree.
package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// File name prefixes for the two programs.
const (
	BodeDataPrefix     = "BODE_data"
	BodePlotPrefix     = "BODE_plot"
	SpectrumDataPrefix = "SPECTRUM_data"
	SpectrumPlotPrefix = "SPECTRUM_plot"
)

// Store places data files under Root/DATA and plots under
// Root/DATA/PLOTS. A zero Store uses the current directory.
type Store struct {
	Root string
}

func (s Store) root() string {
	if s.Root == "" {
		return "."
	}
	return s.Root
}

// DataDir is the directory for CSV exports.
func (s Store) DataDir() string { return filepath.Join(s.root(), "DATA") }

// PlotsDir is the directory for rendered plots.
func (s Store) PlotsDir() string { return filepath.Join(s.DataDir(), "PLOTS") }

func (s Store) ensureDirs() error {
	return os.MkdirAll(s.PlotsDir(), 0o755)
}

// NextDataFile returns the first unused numbered path for prefix and
// extension under the data directory, creating the tree if needed.
// Numbering starts at prefix_001 and never reuses an existing name.
func (s Store) NextDataFile(prefix, ext string) (string, error) {
	return s.nextFile(s.DataDir(), prefix, ext)
}

// NextPlotFile is NextDataFile for the plots directory.
func (s Store) NextPlotFile(prefix, ext string) (string, error) {
	return s.nextFile(s.PlotsDir(), prefix, ext)
}

func (s Store) nextFile(dir, prefix, ext string) (string, error) {
	if err := s.ensureDirs(); err != nil {
		return "", fmt.Errorf("creating save directories: %w", err)
	}
	for i := 1; ; i++ {
		path := filepath.Join(dir, fmt.Sprintf("%s_%03d%s", prefix, i, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil {
			return "", err
		}
	}
}
