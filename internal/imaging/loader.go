package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrDecode is returned when input bytes cannot be interpreted as an image.
var ErrDecode = errors.New("failed to decode image")

// DefaultMaxSourcePixels is the decode budget used until SetMaxSourcePixels
// is called: 50 megapixels.
const DefaultMaxSourcePixels = 50_000_000

var maxSourcePixels atomic.Int64

func init() {
	maxSourcePixels.Store(DefaultMaxSourcePixels)
}

// SetMaxSourcePixels sets the largest width×height Decode accepts. Values
// below 1 restore DefaultMaxSourcePixels.
func SetMaxSourcePixels(n int64) {
	if n < 1 {
		n = DefaultMaxSourcePixels
	}
	maxSourcePixels.Store(n)
}

// MaxSourcePixels returns the current decode budget.
func MaxSourcePixels() int64 {
	return maxSourcePixels.Load()
}

// Decode interprets raw bytes as an image.
//
// The format is sniffed from the content, not from any filename. JPEG EXIF
// orientation is applied so phone photos come out upright.
//
// Dimensions are read from the header first and images larger than
// MaxSourcePixels are rejected before any pixel buffer is allocated.
//
// Returns the decoded image and the registered format name ("png", "jpeg",
// "gif", "webp", "bmp" or "tiff"). Any failure wraps ErrDecode.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecode)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if limit := MaxSourcePixels(); int64(cfg.Width)*int64(cfg.Height) > limit {
		return nil, "", fmt.Errorf("%w: image too large (%dx%d exceeds %d pixels)",
			ErrDecode, cfg.Width, cfg.Height, limit)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", fmt.Errorf("%w: image has no pixels", ErrDecode)
	}

	return img, format, nil
}

type cachedImage struct {
	img     image.Image
	format  string
	size    int64
	modTime time.Time
}

// ImageCache provides thread-safe caching of images loaded from disk.
//
// The MCP surface addresses photos by path and usually runs prepare, preview
// and compose against the same file, so decoded images are kept keyed by the
// exact path string. An entry is dropped and the file decoded again when its
// size or modification time changes on disk. Evict releases an entry
// explicitly.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]cachedImage
}

// NewImageCache creates an empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]cachedImage),
	}
}

// Load retrieves an image from the cache or reads and decodes it from disk.
//
// Errors from reading the file are returned as-is; content that cannot be
// decoded wraps ErrDecode.
func (c *ImageCache) Load(path string) (image.Image, error) {
	entry, err := c.load(path)
	if err != nil {
		return nil, err
	}
	return entry.img, nil
}

func (c *ImageCache) load(path string) (cachedImage, error) {
	stat, err := os.Stat(path)
	if err != nil {
		c.Evict(path)
		return cachedImage{}, fmt.Errorf("failed to open image: %w", err)
	}

	c.mu.RLock()
	entry, ok := c.images[path]
	c.mu.RUnlock()
	if ok {
		if entry.size == stat.Size() && entry.modTime.Equal(stat.ModTime()) {
			return entry, nil
		}
		c.Evict(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cachedImage{}, fmt.Errorf("failed to open image: %w", err)
	}

	img, format, err := Decode(data)
	if err != nil {
		return cachedImage{}, err
	}

	entry = cachedImage{img: img, format: format, size: int64(len(data)), modTime: stat.ModTime()}
	c.mu.Lock()
	c.images[path] = entry
	c.mu.Unlock()

	return entry, nil
}

// Len reports how many images are cached.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Evict removes a specific image from the cache by its path and reports
// whether it was cached. The next Load for this path reads from disk again.
func (c *ImageCache) Evict(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.images[path]
	delete(c.images, path)
	return ok
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the format detected from the file contents.
	Format string `json:"format"`

	// HasAlpha indicates whether the decoded image carries an alpha channel.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`

	// Scale is the uniform factor Letterbox will apply for the given canvas.
	Scale float64 `json:"scale"`
}

// LoadImageInfo loads an image through the cache and reports its metadata,
// including the letterbox scale it would receive on a canvasSize canvas.
func LoadImageInfo(cache *ImageCache, path string, canvasSize int) (*ImageInfo, error) {
	entry, err := cache.load(path)
	if err != nil {
		return nil, err
	}

	bounds := entry.img.Bounds()

	hasAlpha := false
	switch entry.img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.Paletted:
		hasAlpha = true
	}

	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        entry.format,
		HasAlpha:      hasAlpha,
		FileSizeBytes: entry.size,
		Scale:         letterboxScale(bounds.Dx(), bounds.Dy(), canvasSize),
	}, nil
}
