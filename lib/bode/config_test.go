package bode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad scale", func(c *Config) { c.Scale = "decade" }},
		{"log with zero start", func(c *Config) { c.FStart = 0 }},
		{"stop below start", func(c *Config) { c.FStop = c.FStart / 2 }},
		{"one point", func(c *Config) { c.NumPoints = 1 }},
		{"zero averages", func(c *Config) { c.NumAverages = 0 }},
		{"zero amplitude", func(c *Config) { c.GenAmplitudeVpp = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLinAllowsZeroStart(t *testing.T) {
	cfg := Defaults()
	cfg.Scale = ScaleLin
	cfg.FStart = 0
	assert.NoError(t, cfg.Validate())
}

func TestPointsAndFloorFollowScale(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, cfg.NumPoints, cfg.Points())
	assert.Equal(t, cfg.YMagMin, cfg.YFloor())
	cfg.Scale = ScaleLin
	assert.Equal(t, cfg.NumPointsLin, cfg.Points())
	assert.Equal(t, cfg.YMagMinLin, cfg.YFloor())
}

func TestFrequenciesLog(t *testing.T) {
	cfg := Defaults()
	cfg.FStart, cfg.FStop, cfg.NumPoints = 1, 100, 3
	freqs := cfg.Frequencies()
	require.Len(t, freqs, 3)
	assert.InDelta(t, 1, freqs[0], 1e-9)
	assert.InDelta(t, 10, freqs[1], 1e-9)
	assert.InDelta(t, 100, freqs[2], 1e-9)
}

func TestFrequenciesLin(t *testing.T) {
	cfg := Defaults()
	cfg.Scale = ScaleLin
	cfg.FStart, cfg.FStop, cfg.NumPointsLin = 0, 100, 5
	freqs := cfg.Frequencies()
	require.Len(t, freqs, 5)
	assert.Equal(t, []float64{0, 25, 50, 75, 100}, freqs)
}
