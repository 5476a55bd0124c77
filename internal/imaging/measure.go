package imaging

import (
	"image"
	"math"
)

// Margins is the distance from each side of a rectangle to the canvas edge.
type Margins struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// Symmetric reports whether opposite margins differ by at most tolerance pixels.
func (m Margins) Symmetric(tolerance int) bool {
	return absInt(m.Left-m.Right) <= tolerance && absInt(m.Top-m.Bottom) <= tolerance
}

// Geometry describes the protected rectangle in pixels and as percentages of
// the canvas edge.
type Geometry struct {
	X             int     `json:"x"`
	Y             int     `json:"y"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	WidthPercent  float64 `json:"width_percent"`
	HeightPercent float64 `json:"height_percent"`
	Margins       Margins `json:"margins"`
}

// RectMargins measures r against a size×size canvas.
func RectMargins(size int, r image.Rectangle) Margins {
	return Margins{
		Left:   r.Min.X,
		Right:  size - r.Max.X,
		Top:    r.Min.Y,
		Bottom: size - r.Max.Y,
	}
}

// RectGeometry measures r against a size×size canvas.
func RectGeometry(size int, r image.Rectangle) Geometry {
	g := Geometry{
		X:       r.Min.X,
		Y:       r.Min.Y,
		Width:   r.Dx(),
		Height:  r.Dy(),
		Margins: RectMargins(size, r),
	}
	if size > 0 {
		g.WidthPercent = math.Round(float64(r.Dx())/float64(size)*1000) / 10
		g.HeightPercent = math.Round(float64(r.Dy())/float64(size)*1000) / 10
	}
	return g
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
