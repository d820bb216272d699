package camera

import (
	"math"
	"slices"
)

// MaxPreviewHeight caps preview and recording heights.
const MaxPreviewHeight = 1080

const aspectEpsilon = 1e-3

// SizeRequest carries the inputs of SelectSizes.
type SizeRequest struct {
	// PreviewSizes are the device sizes for the preview texture class, in platform order.
	PreviewSizes []Size
	JPEGSizes    []Size
	MinHeight    int
	Screen       Size
	// MediaOrientation is the output rotation; screen axes swap when it is 90 or 270.
	MediaOrientation int
}

// SelectSizes picks the capture, preview and video sizes for a session.
//
// Capture is the largest JPEG size. Preview is the smallest size that meets the
// preset floor and fits the screen and the 1080 cap, preferring the capture
// aspect ratio; video is the largest such size with the same preference. When
// no size qualifies, both fall back to the first preview-class size.
func SelectSizes(req SizeRequest) (OutputSizes, error) {
	if len(req.JPEGSizes) == 0 || len(req.PreviewSizes) == 0 {
		return OutputSizes{}, NewError(KindPlatformUnavailable, "camera reports no output sizes", nil)
	}

	capture := largestByArea(req.JPEGSizes)

	screenW, screenH := req.Screen.Width, req.Screen.Height
	if req.MediaOrientation%180 == 90 {
		screenW, screenH = screenH, screenW
	}

	var candidates []Size
	for _, s := range req.PreviewSizes {
		if req.MinHeight <= s.Height &&
			s.Width <= screenW &&
			s.Height <= screenH &&
			s.Height <= MaxPreviewHeight {
			candidates = append(candidates, s)
		}
	}

	if len(candidates) == 0 {
		return OutputSizes{
			Capture: capture,
			Preview: req.PreviewSizes[0],
			Video:   req.PreviewSizes[0],
		}, nil
	}

	slices.SortStableFunc(candidates, compareByArea)
	ratio := capture.Ratio()

	preview := firstMatchingRatio(candidates, ratio)
	slices.Reverse(candidates)
	video := firstMatchingRatio(candidates, ratio)

	return OutputSizes{
		Capture: capture,
		Preview: preview,
		Video:   video,
	}, nil
}

func compareByArea(a, b Size) int {
	switch da, db := a.Area(), b.Area(); {
	case da < db:
		return -1
	case da > db:
		return 1
	default:
		return 0
	}
}

// largestByArea returns the largest size; the first one wins ties.
func largestByArea(sizes []Size) Size {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Area() > best.Area() {
			best = s
		}
	}
	return best
}

// firstMatchingRatio returns the first size with the given aspect ratio, or sizes[0].
func firstMatchingRatio(sizes []Size, ratio float64) Size {
	for _, s := range sizes {
		if sameRatio(s.Ratio(), ratio) {
			return s
		}
	}
	return sizes[0]
}

func sameRatio(a, b float64) bool {
	return math.Abs(a-b) < aspectEpsilon
}
