package camera

import (
	"math/rand/v2"
	"testing"
)

func TestZoomCropper_StrictUpperBound(t *testing.T) {
	z := NewZoomCropper(Rect{Right: 4000, Bottom: 3000}, 8.0)

	if !z.Zoom(2) || !z.Zoom(2) {
		t.Fatal("Expected the first two zoom steps to apply")
	}
	if z.Zoom(2) {
		t.Error("Expected zoom to 8.0 to be rejected")
	}
	if got := z.Current(); got != 4.0 {
		t.Errorf("Current() = %v, want 4.0", got)
	}
	want := Rect{Left: 1500, Top: 1125, Right: 2500, Bottom: 1875}
	if got := z.Rect(); got != want {
		t.Errorf("Rect() = %s, want %s", got, want)
	}
}

func TestZoomCropper_NoOpAtBounds(t *testing.T) {
	tests := []struct {
		name  string
		scale float64
	}{
		{"zoom out below 1", 0.5},
		{"exactly 1", 1.0},
		{"exactly max", 8.0},
		{"beyond max", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active := Rect{Right: 4000, Bottom: 3000}
			z := NewZoomCropper(active, 8.0)
			if z.Zoom(tt.scale) {
				t.Errorf("Zoom(%v) applied", tt.scale)
			}
			if z.Current() != ZoomMin || z.Rect() != active || z.Active() {
				t.Errorf("state changed: zoom=%v rect=%s", z.Current(), z.Rect())
			}
		})
	}
}

func TestZoomCropper_ZoomOutAfterZoomIn(t *testing.T) {
	z := NewZoomCropper(Rect{Right: 4000, Bottom: 3000}, 8.0)
	z.Zoom(4)
	if !z.Zoom(0.5) {
		t.Fatal("Expected zoom out to 2.0 to apply")
	}
	if got := z.Current(); got != 2.0 {
		t.Errorf("Current() = %v, want 2.0", got)
	}
	want := Rect{Left: 1000, Top: 750, Right: 3000, Bottom: 2250}
	if got := z.Rect(); got != want {
		t.Errorf("Rect() = %s, want %s", got, want)
	}
}

func TestZoomCropper_OffsetActiveArray(t *testing.T) {
	active := Rect{Left: 8, Top: 8, Right: 4008, Bottom: 3008}
	z := NewZoomCropper(active, 4.0)
	z.Zoom(2)
	got := z.Rect()
	if !active.Contains(got) {
		t.Fatalf("crop %s escapes active array %s", got, active)
	}
	if got.CenterX() != active.CenterX() || got.CenterY() != active.CenterY() {
		t.Errorf("crop %s not centered in %s", got, active)
	}
}

func TestZoomCropper_Invariant(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	arrays := []Rect{
		{Right: 4000, Bottom: 3000},
		{Right: 4032, Bottom: 3024},
		{Left: 16, Top: 12, Right: 3280, Bottom: 2476},
		{Right: 101, Bottom: 77},
	}
	for _, active := range arrays {
		maxZoom := 1 + r.Float64()*9
		z := NewZoomCropper(active, maxZoom)
		for range 500 {
			z.Zoom(0.25 + r.Float64()*3)

			zoom := z.Current()
			if zoom < ZoomMin || zoom > maxZoom {
				t.Fatalf("zoom %v outside [1, %v]", zoom, maxZoom)
			}
			if rect := z.Rect(); !active.Contains(rect) {
				t.Fatalf("crop %s escapes active array %s at zoom %v", rect, active, zoom)
			}
		}
	}
}
