package detection

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/transform"

	"github.com/ironsheep/door-ai-studio/internal/imaging"
)

const (
	// analysisEdge caps the longest side of the image edge detection runs on.
	analysisEdge = 512

	// minRectangularity is the lowest outline score accepted as a frame.
	minRectangularity = 0.6

	// minAreaFraction is the smallest frame, relative to the image area,
	// considered a door rather than a panel or handle.
	minAreaFraction = 0.04
)

// ErrEmptyImage is returned when the image has no pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// ErrOutOfBounds is returned by BoxBounds.Check for a box the bounds reject.
var ErrOutOfBounds = errors.New("protected box outside allowed range")

// BoxBounds limits the protected box fractions a user may choose, and names
// the box used when nothing better is known.
type BoxBounds struct {
	MinWidth  float64     `json:"min_width"`
	MaxWidth  float64     `json:"max_width"`
	MinHeight float64     `json:"min_height"`
	MaxHeight float64     `json:"max_height"`
	Default   imaging.Box `json:"default"`
}

// DefaultBounds returns the studio's slider range: 20-80% of the canvas
// width and 50-95% of its height, starting at 45% by 80%.
func DefaultBounds() BoxBounds {
	return BoxBounds{
		MinWidth:  0.20,
		MaxWidth:  0.80,
		MinHeight: 0.50,
		MaxHeight: 0.95,
		Default:   imaging.DefaultBox,
	}
}

// Clamp pulls each fraction of box into range.
func (bb BoxBounds) Clamp(box imaging.Box) imaging.Box {
	return imaging.Box{
		WidthFraction:  clampFloat(box.WidthFraction, bb.MinWidth, bb.MaxWidth),
		HeightFraction: clampFloat(box.HeightFraction, bb.MinHeight, bb.MaxHeight),
	}
}

// Check returns an error wrapping ErrOutOfBounds when box falls outside the
// bounds.
func (bb BoxBounds) Check(box imaging.Box) error {
	if !(box.WidthFraction >= bb.MinWidth && box.WidthFraction <= bb.MaxWidth) {
		return fmt.Errorf("%w: width %.0f%% not in %.0f-%.0f%%", ErrOutOfBounds,
			box.WidthFraction*100, bb.MinWidth*100, bb.MaxWidth*100)
	}
	if !(box.HeightFraction >= bb.MinHeight && box.HeightFraction <= bb.MaxHeight) {
		return fmt.Errorf("%w: height %.0f%% not in %.0f-%.0f%%", ErrOutOfBounds,
			box.HeightFraction*100, bb.MinHeight*100, bb.MaxHeight*100)
	}
	return nil
}

// Suggestion is a proposed protected box for a photo.
type Suggestion struct {
	// Box is the centered box, already clamped to the bounds it was
	// computed against.
	Box imaging.Box `json:"box"`

	// Detected is false when no frame qualified and Box is the default.
	Detected bool `json:"detected"`

	// Confidence is the rectangularity of the chosen frame, 0 on fallback.
	Confidence float64 `json:"confidence"`

	// Region is the detected frame in source pixel coordinates.
	Region *Bounds `json:"region,omitempty"`
}

// SuggestBox looks for a door frame in img and proposes the centered
// protected box that encloses it.
//
// Because the protected rectangle is always centered, the box is sized so
// that it covers the frame on both sides of the center line: its width is
// twice the larger of the frame's left and right reach from the center, and
// likewise for height. The result is clamped to bounds.
//
// Run it on the letterboxed canvas to get fractions that map directly onto
// the mask.
//
// # Algorithm
//
//  1. Downscale so the longest side is at most 512 pixels
//  2. Grayscale, Laplacian edge filter and threshold (bild)
//  3. Group edge pixels into 8-connected contours
//  4. Keep outlines that are taller than wide, cover the image center, span
//     at least 4% of the image and score at least 0.6 rectangularity
//  5. Take the largest
//
// When nothing qualifies the suggestion is bounds.Default with Detected set
// to false.
func SuggestBox(img image.Image, bounds BoxBounds) (*Suggestion, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil, ErrEmptyImage
	}

	work, scale := downscale(img, width, height)
	wb := work.Bounds()
	ww, wh := wb.Dx(), wb.Dy()

	contours := findContours(detectEdges(work))
	cx, cy := ww/2, wh/2
	minArea := int(float64(ww*wh) * minAreaFraction)

	for _, c := range rectangles(contours) {
		if c.area < minArea {
			break
		}
		if c.bounds.Height() <= c.bounds.Width() {
			continue
		}
		if !c.bounds.Contains(cx, cy) || c.rectangularity < minRectangularity {
			continue
		}

		halfW := math.Max(float64(ww)/2-float64(c.bounds.X1), float64(c.bounds.X2+1)-float64(ww)/2)
		halfH := math.Max(float64(wh)/2-float64(c.bounds.Y1), float64(c.bounds.Y2+1)-float64(wh)/2)
		box := bounds.Clamp(imaging.Box{
			WidthFraction:  roundFraction(2 * halfW / float64(ww)),
			HeightFraction: roundFraction(2 * halfH / float64(wh)),
		})

		region := Bounds{
			X1: b.Min.X + int(float64(c.bounds.X1)*scale),
			Y1: b.Min.Y + int(float64(c.bounds.Y1)*scale),
			X2: b.Min.X + min(width-1, int(float64(c.bounds.X2)*scale)),
			Y2: b.Min.Y + min(height-1, int(float64(c.bounds.Y2)*scale)),
		}
		return &Suggestion{
			Box:        box,
			Detected:   true,
			Confidence: c.rectangularity,
			Region:     &region,
		}, nil
	}

	return &Suggestion{Box: bounds.Clamp(bounds.Default)}, nil
}

// downscale shrinks img for analysis and returns the factor that maps
// analysis coordinates back to source coordinates.
func downscale(img image.Image, width, height int) (image.Image, float64) {
	longest := max(width, height)
	if longest <= analysisEdge {
		return img, 1
	}
	ratio := float64(analysisEdge) / float64(longest)
	w := max(1, int(math.Round(float64(width)*ratio)))
	h := max(1, int(math.Round(float64(height)*ratio)))
	return transform.Resize(img, w, h, transform.Linear), float64(width) / float64(w)
}

// roundFraction rounds to whole percent, the granularity the sliders use.
func roundFraction(f float64) float64 {
	return math.Round(f*100) / 100
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
