// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/user/mjpegcap/pkg/adapters/mjpegmft"
	"github.com/user/mjpegcap/pkg/adapters/planewriter"
	"github.com/user/mjpegcap/pkg/adapters/rawdump"
	"github.com/user/mjpegcap/pkg/orchestrator"
	"github.com/user/mjpegcap/pkg/ports"
)

// Config represents the full configuration for mjpegcap.
type Config struct {
	// Capture
	Device  int `yaml:"device"`
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	FPS     int `yaml:"fps"`
	Samples int `yaml:"samples"`

	// Transform
	Backend string `yaml:"backend"`
	CLSID   string `yaml:"clsid"`

	// Output
	OutputDir  string `yaml:"output_dir"`
	PlaneY     string `yaml:"plane_y"`
	PlaneUV    string `yaml:"plane_uv"`
	Raw        bool   `yaml:"raw"`
	RawName    string `yaml:"raw_name"`
	SkipDrain  bool   `yaml:"skip_drain"`
	SummaryOut string `yaml:"summary"`

	// Debug
	Debug    bool   `yaml:"debug"`
	DebugDir string `yaml:"debug_dir"`
	LogLevel string `yaml:"log_level"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Device:  0,
		Width:   320,
		Height:  240,
		FPS:     30,
		Samples: 100,

		Backend: string(mjpegmft.BackendAuto),
		CLSID:   mjpegmft.DefaultCLSID,

		OutputDir: ".",
		PlaneY:    planewriter.DefaultYName,
		PlaneUV:   planewriter.DefaultUVName,
		RawName:   rawdump.DefaultName,

		DebugDir: "./debug",
		LogLevel: ports.LevelInfo.String(),
	}
}

// LoadFromFile loads configuration from a YAML file. Keys missing from the
// file keep their default values.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the values that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: invalid frame size %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("config: invalid frame rate %d", c.FPS)
	}
	if c.Samples <= 0 {
		return fmt.Errorf("config: samples must be positive, got %d", c.Samples)
	}
	if c.Device < 0 {
		return fmt.Errorf("config: invalid device index %d", c.Device)
	}
	if _, err := mjpegmft.ParseBackend(c.Backend); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// TransformOptions returns the options for creating the decode transform.
func (c Config) TransformOptions(logger ports.Logger) mjpegmft.Options {
	backend, _ := mjpegmft.ParseBackend(c.Backend)
	return mjpegmft.Options{
		Backend: backend,
		CLSID:   c.CLSID,
		Logger:  logger,
	}
}

// PlaneOptions returns where the plane bitmaps go.
func (c Config) PlaneOptions() planewriter.Options {
	return planewriter.Options{
		Dir:    c.OutputDir,
		YName:  c.PlaneY,
		UVName: c.PlaneUV,
	}
}

// RawPath returns the raw dump path, or "" when raw output is disabled.
func (c Config) RawPath() string {
	if !c.Raw {
		return ""
	}
	return filepath.Join(c.OutputDir, c.RawName)
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		DeviceIndex: c.Device,
		Width:       c.Width,
		Height:      c.Height,
		FPS:         c.FPS,
		SampleCount: c.Samples,
		SkipDrain:   c.SkipDrain,
	}
}
