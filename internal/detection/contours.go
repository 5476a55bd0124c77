package detection

import (
	"image"
	"sort"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

const (
	// edgeLevel is the threshold applied to the Laplacian response. Anything
	// below it is treated as texture rather than an outline.
	edgeLevel = 128

	// minContourPixels drops edge fragments too small to outline anything.
	minContourPixels = 10

	// sideBand is how far from a bounding box side an edge pixel may sit and
	// still count as lying on that side.
	sideBand = 3

	// maxOutlineWidth bounds contour pixels per perimeter pixel.
	maxOutlineWidth = 4
)

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// (X1, Y1) is the top-left corner and (X2, Y2) the bottom-right corner, both
// inclusive.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width is the inclusive horizontal extent.
func (b Bounds) Width() int { return b.X2 - b.X1 + 1 }

// Height is the inclusive vertical extent.
func (b Bounds) Height() int { return b.Y2 - b.Y1 + 1 }

// Contains reports whether (x, y) lies inside the bounds.
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X1 && x <= b.X2 && y >= b.Y1 && y <= b.Y2
}

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// candidate is a closed outline whose bounding box might be a door frame.
type candidate struct {
	bounds         Bounds
	area           int
	rectangularity float64
}

// detectEdges marks outline pixels using bild's grayscale, Laplacian edge
// filter and binary threshold. The outermost pixel ring is never an edge.
func detectEdges(img image.Image) [][]bool {
	gray := effect.Grayscale(img)
	binary := segment.Threshold(effect.EdgeDetection(gray, 1.0), edgeLevel)

	b := binary.Bounds()
	width, height := b.Dx(), b.Dy()
	edges := make([][]bool, height)
	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
		if y == 0 || y == height-1 {
			continue
		}
		for x := 1; x < width-1; x++ {
			edges[y][x] = binary.GrayAt(b.Min.X+x, b.Min.Y+y).Y > 0
		}
	}
	return edges
}

// findContours groups connected edge pixels into contours.
//
// Connectivity is 8-connected. Contours smaller than minContourPixels are
// discarded as noise.
func findContours(edges [][]bool) [][]Point {
	height := len(edges)
	if height == 0 {
		return nil
	}
	width := len(edges[0])

	visited := make([][]bool, height)
	for y := range visited {
		visited[y] = make([]bool, width)
	}

	var contours [][]Point
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] && !visited[y][x] {
				contour := floodFill(edges, visited, x, y)
				if len(contour) >= minContourPixels {
					contours = append(contours, contour)
				}
			}
		}
	}
	return contours
}

// floodFill collects the 8-connected edge component containing (startX,
// startY). It is stack-based so long outlines cannot overflow the goroutine
// stack.
func floodFill(edges, visited [][]bool, startX, startY int) []Point {
	height, width := len(edges), len(edges[0])
	var contour []Point
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !edges[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		contour = append(contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
	return contour
}

// rectangles turns contours into candidates sorted by area, largest first.
//
// Rectangularity is the share of the bounding box perimeter that has a
// contour pixel within sideBand pixels of it, so thick or doubled outlines
// still score 1.0 while curves and diagonals score low. Dense blobs, whose
// pixel count dwarfs their perimeter, are not outlines and are dropped.
func rectangles(contours [][]Point) []candidate {
	var out []candidate
	for _, contour := range contours {
		b := Bounds{X1: contour[0].X, Y1: contour[0].Y, X2: contour[0].X, Y2: contour[0].Y}
		for _, p := range contour[1:] {
			b.X1 = min(b.X1, p.X)
			b.Y1 = min(b.Y1, p.Y)
			b.X2 = max(b.X2, p.X)
			b.Y2 = max(b.Y2, p.Y)
		}

		perimeter := 2 * (b.Width() + b.Height())
		if len(contour) > maxOutlineWidth*perimeter {
			continue
		}

		out = append(out, candidate{
			bounds:         b,
			area:           b.Width() * b.Height(),
			rectangularity: sideCoverage(contour, b),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].area > out[j].area
	})
	return out
}

// sideCoverage returns the fraction of the perimeter of b that contour
// touches within sideBand pixels.
func sideCoverage(contour []Point, b Bounds) float64 {
	w, h := b.Width(), b.Height()
	top := make([]bool, w)
	bottom := make([]bool, w)
	left := make([]bool, h)
	right := make([]bool, h)

	for _, p := range contour {
		x, y := p.X-b.X1, p.Y-b.Y1
		if y < sideBand {
			top[x] = true
		}
		if h-1-y < sideBand {
			bottom[x] = true
		}
		if x < sideBand {
			left[y] = true
		}
		if w-1-x < sideBand {
			right[y] = true
		}
	}

	hits := countTrue(top) + countTrue(bottom) + countTrue(left) + countTrue(right)
	return float64(hits) / float64(2*(w+h))
}

func countTrue(v []bool) int {
	n := 0
	for _, b := range v {
		if b {
			n++
		}
	}
	return n
}
