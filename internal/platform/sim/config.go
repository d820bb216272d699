package sim

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/camctl/internal/camera"
)

// CameraConfig describes one simulated camera.
type CameraConfig struct {
	ID                string   `toml:"id" json:"id"`
	LensFacing        string   `toml:"lens_facing" json:"lens_facing"`
	SensorOrientation int      `toml:"sensor_orientation" json:"sensor_orientation"`
	MaxDigitalZoom    float64  `toml:"max_digital_zoom" json:"max_digital_zoom"`
	ActiveArray       []int    `toml:"active_array" json:"active_array"` // left, top, right, bottom
	MaxAFRegions      int      `toml:"max_af_regions" json:"max_af_regions"`
	HasFlash          bool     `toml:"has_flash" json:"has_flash"`
	PreviewSizes      []string `toml:"preview_sizes" json:"preview_sizes"`
	JPEGSizes         []string `toml:"jpeg_sizes" json:"jpeg_sizes"`
}

// Config is the simulated platform description file.
type Config struct {
	Version int            `toml:"version" json:"version"`
	Cameras []CameraConfig `toml:"cameras" json:"cameras"`
}

// DefaultConfig returns a back and a front camera with phone-like properties.
func DefaultConfig() *Config {
	sizes := []string{"1920x1080", "1440x1080", "1280x720", "960x720", "640x480", "352x288", "320x240", "176x144"}
	return &Config{
		Version: 1,
		Cameras: []CameraConfig{
			{
				ID:                "0",
				LensFacing:        "back",
				SensorOrientation: 90,
				MaxDigitalZoom:    8,
				ActiveArray:       []int{0, 0, 4032, 3024},
				MaxAFRegions:      1,
				HasFlash:          true,
				PreviewSizes:      sizes,
				JPEGSizes:         []string{"4032x3024", "1920x1080", "640x480"},
			},
			{
				ID:                "1",
				LensFacing:        "front",
				SensorOrientation: 270,
				MaxDigitalZoom:    4,
				ActiveArray:       []int{0, 0, 3264, 2448},
				MaxAFRegions:      0,
				PreviewSizes:      sizes,
				JPEGSizes:         []string{"3264x2448", "1280x720"},
			},
		},
	}
}

// LoadConfig reads a camera description file. A missing file yields the default cameras.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cameras config: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse cameras config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every camera entry.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("camera %d: missing id", i)
		}
		if seen[cam.ID] {
			return fmt.Errorf("camera %s: duplicate id", cam.ID)
		}
		seen[cam.ID] = true
		if _, err := cam.Characteristics(); err != nil {
			return fmt.Errorf("camera %s: %w", cam.ID, err)
		}
	}
	return nil
}

// Characteristics converts the entry into platform characteristics.
func (c CameraConfig) Characteristics() (camera.Characteristics, error) {
	facing, err := camera.ParseLensFacing(c.LensFacing)
	if err != nil {
		return camera.Characteristics{}, err
	}
	switch c.SensorOrientation {
	case 0, 90, 180, 270:
	default:
		return camera.Characteristics{}, fmt.Errorf("invalid sensor orientation %d", c.SensorOrientation)
	}
	if len(c.ActiveArray) != 4 {
		return camera.Characteristics{}, fmt.Errorf("active_array needs 4 values, got %d", len(c.ActiveArray))
	}
	preview, err := camera.ParseSizes(c.PreviewSizes)
	if err != nil {
		return camera.Characteristics{}, fmt.Errorf("preview_sizes: %w", err)
	}
	jpegs, err := camera.ParseSizes(c.JPEGSizes)
	if err != nil {
		return camera.Characteristics{}, fmt.Errorf("jpeg_sizes: %w", err)
	}

	maxZoom := c.MaxDigitalZoom
	if maxZoom < camera.ZoomMin {
		maxZoom = camera.ZoomMin
	}

	return camera.Characteristics{
		SensorOrientation: c.SensorOrientation,
		LensFacing:        facing,
		MaxDigitalZoom:    maxZoom,
		ActiveArray: camera.Rect{
			Left:   c.ActiveArray[0],
			Top:    c.ActiveArray[1],
			Right:  c.ActiveArray[2],
			Bottom: c.ActiveArray[3],
		},
		MaxAFRegions: c.MaxAFRegions,
		PreviewSizes: preview,
		JPEGSizes:    jpegs,
		HasFlash:     c.HasFlash,
	}, nil
}
