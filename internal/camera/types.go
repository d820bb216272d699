package camera

import (
	"fmt"
	"strconv"
	"strings"
)

// LensFacing is the direction a camera faces relative to the device screen.
type LensFacing int

// Lens facings.
const (
	LensFacingBack LensFacing = iota
	LensFacingFront
	LensFacingExternal
)

func (f LensFacing) String() string {
	switch f {
	case LensFacingFront:
		return "front"
	case LensFacingExternal:
		return "external"
	default:
		return "back"
	}
}

// ParseLensFacing converts "front", "back" or "external" to a LensFacing.
func ParseLensFacing(s string) (LensFacing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front":
		return LensFacingFront, nil
	case "back", "":
		return LensFacingBack, nil
	case "external":
		return LensFacingExternal, nil
	default:
		return LensFacingBack, fmt.Errorf("unknown lens facing %q", s)
	}
}

// Descriptor identifies a camera as reported to the host.
type Descriptor struct {
	ID                string
	SensorOrientation int
	LensFacing        LensFacing
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns width*height as a 64-bit product.
func (s Size) Area() int64 {
	return int64(s.Width) * int64(s.Height)
}

// Ratio returns width/height, or 0 for a degenerate size.
func (s Size) Ratio() float64 {
	if s.Height == 0 {
		return 0
	}
	return float64(s.Width) / float64(s.Height)
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize parses "WIDTHxHEIGHT".
func ParseSize(s string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Size{}, fmt.Errorf("invalid size %q: expected WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Size{}, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Size{}, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return Size{}, fmt.Errorf("invalid size %q: dimensions must be positive", s)
	}
	return Size{Width: width, Height: height}, nil
}

// ParseSizes parses a list of "WIDTHxHEIGHT" strings.
func ParseSizes(values []string) ([]Size, error) {
	sizes := make([]Size, 0, len(values))
	for _, v := range values {
		size, err := ParseSize(v)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}

// Rect is a pixel rectangle in sensor active-array coordinates.
// Right and Bottom are exclusive.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns Right-Left.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns Bottom-Top.
func (r Rect) Height() int { return r.Bottom - r.Top }

// CenterX returns the horizontal center, rounded down.
func (r Rect) CenterX() int { return (r.Left + r.Right) >> 1 }

// CenterY returns the vertical center, rounded down.
func (r Rect) CenterY() int { return (r.Top + r.Bottom) >> 1 }

// Contains reports whether o lies entirely within r.
func (r Rect) Contains(o Rect) bool {
	return o.Left >= r.Left && o.Top >= r.Top && o.Right <= r.Right && o.Bottom <= r.Bottom
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d %d,%d]", r.Left, r.Top, r.Right, r.Bottom)
}

// ResolutionPreset is a symbolic quality tier mapping to a minimum preview height.
type ResolutionPreset string

// Presets.
const (
	PresetLow    ResolutionPreset = "low"
	PresetMedium ResolutionPreset = "medium"
	PresetHigh   ResolutionPreset = "high"
)

// ParsePreset validates a preset name.
func ParsePreset(s string) (ResolutionPreset, error) {
	switch p := ResolutionPreset(s); p {
	case PresetLow, PresetMedium, PresetHigh:
		return p, nil
	default:
		return "", NewError(KindInvalidPreset, "Unknown preset: "+s, nil)
	}
}

// MinHeight returns the minimum preview height for the preset.
func (p ResolutionPreset) MinHeight() int {
	switch p {
	case PresetHigh:
		return 720
	case PresetMedium:
		return 480
	default:
		return 240
	}
}

// OutputSizes holds the sizes chosen for a session's output surfaces.
type OutputSizes struct {
	Capture Size `json:"capture"`
	Preview Size `json:"preview"`
	Video   Size `json:"video"`
}

// Permission is a runtime permission the host may have to ask the user for.
type Permission string

// Permissions.
const (
	PermissionCamera     Permission = "camera"
	PermissionMicrophone Permission = "microphone"
)

// MeteringWeightMax is the largest weight a metering rectangle may carry.
const MeteringWeightMax = 1000

// MeteringRectangle is a weighted region for auto-focus metering.
type MeteringRectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
	Weight int `json:"weight"`
}
