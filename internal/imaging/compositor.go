package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// DefaultCanvasSize is the square edge, in pixels, images and masks are
// normalized to.
const DefaultCanvasSize = 1024

// ErrInvalidBox is returned when a protected box fraction is outside (0, 1].
var ErrInvalidBox = errors.New("invalid protected box")

var (
	// DefaultFill is the letterbox padding color.
	DefaultFill = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	// DefaultBox is the protected rectangle the studio starts with: a typical
	// door occupies a bit under half the canvas width and most of its height.
	DefaultBox = Box{WidthFraction: 0.45, HeightFraction: 0.80}

	editable  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	protected = color.NRGBA{}
)

// Box describes the protected rectangle as fractions of the canvas edge.
// The rectangle itself is always centered on the canvas.
type Box struct {
	WidthFraction  float64 `json:"width_fraction"`
	HeightFraction float64 `json:"height_fraction"`
}

// Validate checks that both fractions are in (0, 1].
func (b Box) Validate() error {
	if !(b.WidthFraction > 0 && b.WidthFraction <= 1) {
		return fmt.Errorf("%w: width fraction %v outside (0, 1]", ErrInvalidBox, b.WidthFraction)
	}
	if !(b.HeightFraction > 0 && b.HeightFraction <= 1) {
		return fmt.Errorf("%w: height fraction %v outside (0, 1]", ErrInvalidBox, b.HeightFraction)
	}
	return nil
}

// ComposeOptions controls canvas size, protected box and letterbox fill.
// Zero values fall back to DefaultCanvasSize, DefaultBox and DefaultFill.
type ComposeOptions struct {
	CanvasSize int
	Box        Box
	Fill       color.Color
}

func (o ComposeOptions) withDefaults() ComposeOptions {
	if o.CanvasSize <= 0 {
		o.CanvasSize = DefaultCanvasSize
	}
	if o.Box == (Box{}) {
		o.Box = DefaultBox
	}
	if o.Fill == nil {
		o.Fill = DefaultFill
	}
	return o
}

// Composition is the compositor output: a letterboxed canvas and its mask,
// both PNG-encoded at identical square dimensions.
type Composition struct {
	Image        []byte
	Mask         []byte
	CanvasSize   int
	Protected    image.Rectangle
	SourceWidth  int
	SourceHeight int
}

// Compose decodes data and renders the letterboxed canvas plus its mask.
//
// Undecodable input fails with an error wrapping ErrDecode and no output is
// produced. An out-of-range box fails with ErrInvalidBox before decoding.
func Compose(data []byte, opts ComposeOptions) (*Composition, error) {
	opts = opts.withDefaults()
	if err := opts.Box.Validate(); err != nil {
		return nil, err
	}

	src, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return ComposeImage(src, opts)
}

// ComposeImage is Compose for an already decoded source image.
func ComposeImage(src image.Image, opts ComposeOptions) (*Composition, error) {
	opts = opts.withDefaults()
	if err := opts.Box.Validate(); err != nil {
		return nil, err
	}

	canvas := Letterbox(src, opts.CanvasSize, opts.Fill)
	mask := Mask(opts.CanvasSize, opts.Box)

	imagePNG, err := EncodePNG(canvas)
	if err != nil {
		return nil, err
	}
	maskPNG, err := EncodePNG(mask)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	return &Composition{
		Image:        imagePNG,
		Mask:         maskPNG,
		CanvasSize:   opts.CanvasSize,
		Protected:    ProtectedRect(opts.CanvasSize, opts.Box),
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
	}, nil
}

// WriteFiles writes the canvas and mask as image.png and mask.png under dir,
// creating it if needed, and returns both paths.
func (c *Composition) WriteFiles(dir string) (imagePath, maskPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating output directory: %w", err)
	}
	imagePath = filepath.Join(dir, "image.png")
	maskPath = filepath.Join(dir, "mask.png")
	if err := os.WriteFile(imagePath, c.Image, 0o644); err != nil {
		return "", "", fmt.Errorf("writing image: %w", err)
	}
	if err := os.WriteFile(maskPath, c.Mask, 0o644); err != nil {
		return "", "", fmt.Errorf("writing mask: %w", err)
	}
	return imagePath, maskPath, nil
}

// Letterbox scales src uniformly so it fits entirely inside a size×size
// canvas and centers it on a background pre-filled with fill.
//
// The scale factor is min(size/width, size/height), so nothing is cropped.
// Transparent source pixels are blended over the fill rather than copied,
// which keeps the canvas fully opaque.
func Letterbox(src image.Image, size int, fill color.Color) *image.NRGBA {
	canvas := imaging.New(size, size, fill)

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return canvas
	}

	scale := letterboxScale(w, h, size)
	dw := clampEdge(int(math.Round(float64(w)*scale)), size)
	dh := clampEdge(int(math.Round(float64(h)*scale)), size)

	scaled := imaging.Resize(src, dw, dh, imaging.Lanczos)
	return imaging.Overlay(canvas, scaled, image.Pt((size-dw)/2, (size-dh)/2), 1.0)
}

// ProtectedRect returns the centered protected rectangle on a size×size canvas.
//
// Width and height are size×fraction rounded to the nearest pixel; the offset
// is (size-extent)/2 with integer division, so opposite margins differ by at
// most one pixel. For size 1024 and box (0.45, 0.80) the result is a 461×819
// rectangle at (281, 102).
func ProtectedRect(size int, box Box) image.Rectangle {
	return centeredRect(size, size, box)
}

func centeredRect(width, height int, box Box) image.Rectangle {
	w := clampExtent(int(math.Round(float64(width)*box.WidthFraction)), width)
	h := clampExtent(int(math.Round(float64(height)*box.HeightFraction)), height)
	x := (width - w) / 2
	y := (height - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// Mask renders the protection mask for a size×size canvas: opaque white
// everywhere, with the centered protected rectangle cleared to fully
// transparent.
func Mask(size int, box Box) *image.NRGBA {
	mask := imaging.New(size, size, editable)
	draw.Draw(mask, ProtectedRect(size, box), image.NewUniform(protected), image.Point{}, draw.Src)
	return mask
}

func letterboxScale(w, h, size int) float64 {
	if w <= 0 || h <= 0 || size <= 0 {
		return 0
	}
	return math.Min(float64(size)/float64(w), float64(size)/float64(h))
}

func clampEdge(v, size int) int {
	if v < 1 {
		return 1
	}
	if v > size {
		return size
	}
	return v
}

func clampExtent(v, size int) int {
	if v < 0 {
		return 0
	}
	if v > size {
		return size
	}
	return v
}
