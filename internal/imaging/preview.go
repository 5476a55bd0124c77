package imaging

import (
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// DefaultOutline is the preview rectangle color: semi-opaque red.
var DefaultOutline = color.NRGBA{R: 255, G: 0, B: 0, A: 200}

// EncodedImage is a PNG carried inline as base64, the shape both the HTTP
// and MCP surfaces return.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodeBase64 PNG-encodes img and wraps it as an EncodedImage.
func EncodeBase64(img image.Image) (*EncodedImage, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &EncodedImage{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
	}, nil
}

// PreviewOverlay draws the outline of the protected rectangle for box over a
// copy of img, so placement can be checked before anything is sent upstream.
//
// The rectangle is computed against img's own width and height, which for a
// letterboxed canvas is the same rectangle Mask clears. The outline is drawn
// inside the rectangle, thickness pixels wide.
func PreviewOverlay(img image.Image, box Box, outline color.Color, thickness int) *image.NRGBA {
	if thickness < 1 {
		thickness = 1
	}

	result := imaging.Clone(img)
	b := result.Bounds()
	r := centeredRect(b.Dx(), b.Dy(), box)
	if r.Empty() {
		return result
	}

	src := image.NewUniform(outline)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y+thickness, r.Min.X+thickness, r.Max.Y-thickness),
		image.Rect(r.Max.X-thickness, r.Min.Y+thickness, r.Max.X, r.Max.Y-thickness),
	}
	for _, e := range edges {
		draw.Draw(result, e.Intersect(r), src, image.Point{}, draw.Over)
	}

	return result
}
