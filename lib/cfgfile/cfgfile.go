// Package cfgfile persists program defaults as JSON files next to the
// binary. A missing or corrupt file is not an error; the caller's
// factory defaults simply survive untouched.
package cfgfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"
)

// Default file names of the two programs.
const (
	BodeConfig     = "bode_config.json"
	SpectrumConfig = "spectrum_config.json"
)

// Load overlays the values found in path onto out, which must be a
// pointer to a struct with mapstructure tags and should already hold
// the factory defaults. Returns true when the file contributed values.
func Load(path string, out any) (bool, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			// Corrupt file, keep the factory defaults.
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := v.Unmarshal(out); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

// Save writes cfg to path as indented JSON.
func Save(path string, cfg any) error {
	raw, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
