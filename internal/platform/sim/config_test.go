package sim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/camctl/internal/camera"
)

func TestLoadConfig_MissingFileUsesDefault(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.toml")} {
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig(%q) failed: %v", path, err)
		}
		if len(cfg.Cameras) != 2 || cfg.Cameras[0].ID != "0" || cfg.Cameras[1].LensFacing != "front" {
			t.Errorf("LoadConfig(%q) = %+v, want default cameras", path, cfg.Cameras)
		}
	}
}

func TestLoadConfig_ParsesFile(t *testing.T) {
	content := `
version = 1

[[cameras]]
id = "wide"
lens_facing = "external"
sensor_orientation = 0
max_digital_zoom = 2.5
active_array = [0, 0, 1920, 1080]
max_af_regions = 0
has_flash = false
preview_sizes = ["1920x1080", "1280x720"]
jpeg_sizes = ["1920x1080"]
`
	path := filepath.Join(t.TempDir(), "cameras.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.Cameras) != 1 {
		t.Fatalf("Expected 1 camera, got %d", len(cfg.Cameras))
	}

	chars, err := cfg.Cameras[0].Characteristics()
	if err != nil {
		t.Fatalf("Characteristics failed: %v", err)
	}
	if chars.LensFacing != camera.LensFacingExternal {
		t.Errorf("LensFacing = %v, want external", chars.LensFacing)
	}
	if chars.MaxDigitalZoom != 2.5 {
		t.Errorf("MaxDigitalZoom = %v, want 2.5", chars.MaxDigitalZoom)
	}
	if chars.ActiveArray.Width() != 1920 {
		t.Errorf("ActiveArray width = %d, want 1920", chars.ActiveArray.Width())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"default is valid", func(*Config) {}, ""},
		{"missing id", func(c *Config) { c.Cameras[0].ID = "" }, "missing id"},
		{"duplicate id", func(c *Config) { c.Cameras[1].ID = "0" }, "duplicate id"},
		{"bad facing", func(c *Config) { c.Cameras[0].LensFacing = "sideways" }, "sideways"},
		{"bad orientation", func(c *Config) { c.Cameras[0].SensorOrientation = 45 }, "sensor orientation"},
		{"short active array", func(c *Config) { c.Cameras[0].ActiveArray = []int{0, 0, 10} }, "active_array"},
		{"bad size", func(c *Config) { c.Cameras[0].PreviewSizes = []string{"wide"} }, "preview_sizes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
