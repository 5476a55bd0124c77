package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
)

// alphaCutoff splits mask alpha into editable and protected after resampling.
const alphaCutoff = 0x80

// NormalizeImage decodes data and covers a size×size square with it: the
// image is scaled to fill the square and the overflow is cropped evenly from
// both sides. Input that is already size×size only changes pixel format.
func NormalizeImage(data []byte, size int) (*image.NRGBA, error) {
	src, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return CoverImage(src, size), nil
}

// CoverImage is NormalizeImage for an already decoded image.
func CoverImage(src image.Image, size int) *image.NRGBA {
	b := src.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return imaging.Clone(src)
	}
	return imaging.Fill(src, size, size, imaging.Center, imaging.Lanczos)
}

// NormalizeMask decodes a mask and covers a size×size square with it.
//
// Masks are resampled with nearest-neighbour so no intermediate alpha is
// invented along the protected edge, then binarized: alpha at or above 50%
// becomes opaque white, anything below becomes fully transparent.
func NormalizeMask(data []byte, size int) (*image.NRGBA, error) {
	src, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return CoverMask(src, size), nil
}

// CoverMask is NormalizeMask for an already decoded mask.
func CoverMask(src image.Image, size int) *image.NRGBA {
	b := src.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return binarizeAlpha(src)
	}

	side := min(b.Dx(), b.Dy())
	offset := image.Pt((b.Dx()-side)/2, (b.Dy()-side)/2)
	square := image.Rect(0, 0, side, side).Add(b.Min).Add(offset)

	cropped := transform.Crop(src, square)
	resized := transform.Resize(cropped, size, size, transform.NearestNeighbor)
	return binarizeAlpha(resized)
}

// InvertMask swaps the editable and protected regions of a binary mask.
func InvertMask(mask image.Image) *image.NRGBA {
	b := mask.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if opaque(mask.At(b.Min.X+x, b.Min.Y+y)) {
				out.SetNRGBA(x, y, protected)
			} else {
				out.SetNRGBA(x, y, editable)
			}
		}
	}
	return out
}

func binarizeAlpha(src image.Image) *image.NRGBA {
	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if opaque(src.At(b.Min.X+x, b.Min.Y+y)) {
				out.SetNRGBA(x, y, editable)
			} else {
				out.SetNRGBA(x, y, protected)
			}
		}
	}
	return out
}

func opaque(c color.Color) bool {
	_, _, _, a := c.RGBA()
	return a>>8 >= alphaCutoff
}

// EncodePNG encodes img losslessly as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
