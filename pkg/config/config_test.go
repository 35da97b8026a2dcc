package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/user/mjpegcap/pkg/adapters/mjpegmft"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 240 || cfg.FPS != 30 || cfg.Samples != 100 {
		t.Errorf("unexpected capture defaults %+v", cfg)
	}
	if cfg.PlaneY != "planeY.bmp" || cfg.PlaneUV != "planeUV.bmp" {
		t.Errorf("unexpected plane names %s, %s", cfg.PlaneY, cfg.PlaneUV)
	}
	if cfg.RawPath() != "" {
		t.Error("raw output must be off by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mjpegcap.yaml")
	content := `
device: 1
width: 640
height: 480
backend: software
output_dir: /tmp/out
raw: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Device != 1 || cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.FPS != 30 || cfg.Samples != 100 {
		t.Error("missing keys must keep defaults")
	}
	if got := cfg.RawPath(); got != filepath.Join("/tmp/out", "rawframes.yuv") {
		t.Errorf("unexpected raw path %s", got)
	}
	if opts := cfg.TransformOptions(nil); opts.Backend != mjpegmft.BackendSoftware {
		t.Errorf("expected software backend, got %s", opts.Backend)
	}

	oc := cfg.ToOrchestratorConfig()
	if oc.DeviceIndex != 1 || oc.Width != 640 || oc.SampleCount != 100 {
		t.Errorf("unexpected orchestrator config %+v", oc)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("width: [not a number"), 0644)
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"negative fps", func(c *Config) { c.FPS = -1 }},
		{"no samples", func(c *Config) { c.Samples = 0 }},
		{"negative device", func(c *Config) { c.Device = -1 }},
		{"unknown backend", func(c *Config) { c.Backend = "gpu" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
