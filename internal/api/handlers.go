package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ironsheep/door-ai-studio/internal/detection"
	"github.com/ironsheep/door-ai-studio/internal/imaging"
	"github.com/ironsheep/door-ai-studio/internal/metrics"
	"github.com/ironsheep/door-ai-studio/internal/relay"
)

// HeaderImageSize reports the requested output size when compose returns
// raw image bytes instead of JSON.
const HeaderImageSize = "X-Image-Size"

const missingImageMessage = "Missing image file (field name: image)"

type composeResponse struct {
	Image    string `json:"image"`
	B64JSON  string `json:"b64_json,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     string `json:"size"`
}

type prepareResponse struct {
	Image        *imaging.EncodedImage `json:"image"`
	Mask         *imaging.EncodedImage `json:"mask"`
	BoxW         float64               `json:"box_w"`
	BoxH         float64               `json:"box_h"`
	Protected    imaging.Geometry      `json:"protected"`
	SourceWidth  int                   `json:"source_width"`
	SourceHeight int                   `json:"source_height"`
}

type suggestResponse struct {
	BoxW       float64           `json:"box_w"`
	BoxH       float64           `json:"box_h"`
	Detected   bool              `json:"detected"`
	Confidence float64           `json:"confidence"`
	Region     *detection.Bounds `json:"region,omitempty"`
	Protected  imaging.Geometry  `json:"protected"`
}

type configResponse struct {
	CanvasSize int     `json:"canvas_size"`
	MinBoxW    float64 `json:"min_box_w"`
	MaxBoxW    float64 `json:"max_box_w"`
	MinBoxH    float64 `json:"min_box_h"`
	MaxBoxH    float64 `json:"max_box_h"`
	BoxW       float64 `json:"box_w"`
	BoxH       float64 `json:"box_h"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// config reports the slider range and canvas size so clients can build
// their controls without hard-coding them.
func (s *Server) config(c echo.Context) error {
	b := s.settings.Bounds
	return c.JSON(http.StatusOK, configResponse{
		CanvasSize: s.settings.CanvasSize,
		MinBoxW:    percent(b.MinWidth),
		MaxBoxW:    percent(b.MaxWidth),
		MinBoxH:    percent(b.MinHeight),
		MaxBoxH:    percent(b.MaxHeight),
		BoxW:       percent(b.Default.WidthFraction),
		BoxH:       percent(b.Default.HeightFraction),
	})
}

// compose relays a prepared image and mask to the editing provider.
func (s *Server) compose(c echo.Context) error {
	img, err := formFile(c, "image")
	if err != nil {
		return err
	}
	mask, err := formFile(c, "mask")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if s.settings.EditTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.EditTimeout)
		defer cancel()
	}

	res, err := s.composer.Compose(ctx, relay.Request{
		Image:  img,
		Mask:   mask,
		Prompt: c.FormValue("prompt"),
		Size:   c.FormValue("size"),
	})
	if err != nil {
		return err
	}

	if len(res.Data) > 0 && acceptsPNG(c) {
		c.Response().Header().Set(HeaderImageSize, res.Size)
		return c.Blob(http.StatusOK, res.MimeType, res.Data)
	}

	resp := composeResponse{
		Image:    res.URL,
		MimeType: res.MimeType,
		Size:     res.Size,
	}
	if len(res.Data) > 0 {
		resp.B64JSON = base64.StdEncoding.EncodeToString(res.Data)
	}
	return c.JSON(http.StatusOK, resp)
}

// prepare runs the compositor server-side and returns the canvas and mask
// inline.
func (s *Server) prepare(c echo.Context) error {
	data, err := requireImage(c)
	if err != nil {
		return err
	}
	box, err := s.boxFromForm(c)
	if err != nil {
		return err
	}
	fill := s.settings.Fill
	if v := c.FormValue("fill"); v != "" {
		parsed, err := imaging.ParseHexColor(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		fill = parsed
	}

	comp, err := imaging.Compose(data, imaging.ComposeOptions{
		CanvasSize: s.settings.CanvasSize,
		Box:        box,
		Fill:       fill,
	})
	if err != nil {
		return err
	}
	metrics.RecordComposition("prepare")

	return c.JSON(http.StatusOK, prepareResponse{
		Image:        encodedPNG(comp.Image, comp.CanvasSize),
		Mask:         encodedPNG(comp.Mask, comp.CanvasSize),
		BoxW:         percent(box.WidthFraction),
		BoxH:         percent(box.HeightFraction),
		Protected:    imaging.RectGeometry(comp.CanvasSize, comp.Protected),
		SourceWidth:  comp.SourceWidth,
		SourceHeight: comp.SourceHeight,
	})
}

// preview returns the letterboxed canvas as PNG with the protected box
// outlined.
func (s *Server) preview(c echo.Context) error {
	canvas, err := s.letterboxUpload(c)
	if err != nil {
		return err
	}
	box, err := s.boxFromForm(c)
	if err != nil {
		return err
	}

	thickness := max(2, s.settings.CanvasSize/256)
	out, err := imaging.EncodePNG(imaging.PreviewOverlay(canvas, box, imaging.DefaultOutline, thickness))
	if err != nil {
		return err
	}
	metrics.RecordComposition("preview")
	return c.Blob(http.StatusOK, "image/png", out)
}

// suggest proposes a protected box from the door frame found in the upload.
func (s *Server) suggest(c echo.Context) error {
	canvas, err := s.letterboxUpload(c)
	if err != nil {
		return err
	}

	sug, err := detection.SuggestBox(canvas, s.settings.Bounds)
	if err != nil {
		return err
	}
	metrics.RecordComposition("suggest")

	size := s.settings.CanvasSize
	return c.JSON(http.StatusOK, suggestResponse{
		BoxW:       percent(sug.Box.WidthFraction),
		BoxH:       percent(sug.Box.HeightFraction),
		Detected:   sug.Detected,
		Confidence: math.Round(sug.Confidence*100) / 100,
		Region:     sug.Region,
		Protected:  imaging.RectGeometry(size, imaging.ProtectedRect(size, sug.Box)),
	})
}

func (s *Server) letterboxUpload(c echo.Context) (*image.NRGBA, error) {
	data, err := requireImage(c)
	if err != nil {
		return nil, err
	}
	src, _, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	return imaging.Letterbox(src, s.settings.CanvasSize, s.settings.Fill), nil
}

// boxFromForm reads box_w and box_h as percentages, falling back to the
// default box, and rejects values outside the configured range.
func (s *Server) boxFromForm(c echo.Context) (imaging.Box, error) {
	box := s.settings.Bounds.Default
	if v := c.FormValue("box_w"); v != "" {
		f, err := parsePercent("box_w", v)
		if err != nil {
			return box, err
		}
		box.WidthFraction = f
	}
	if v := c.FormValue("box_h"); v != "" {
		f, err := parsePercent("box_h", v)
		if err != nil {
			return box, err
		}
		box.HeightFraction = f
	}
	if err := s.settings.Bounds.Check(box); err != nil {
		return box, err
	}
	return box, nil
}

func parsePercent(field, value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "%"), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("Invalid %s %q, expected a percentage", field, value))
	}
	return f / 100, nil
}

func percent(fraction float64) float64 {
	return math.Round(fraction*1000) / 10
}

func requireImage(c echo.Context) ([]byte, error) {
	data, err := formFile(c, "image")
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, missingImageMessage)
	}
	return data, nil
}

// formFile reads an uploaded file. A missing field, or a request that is
// not multipart at all, yields nil without error.
func formFile(c echo.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, he
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form").SetInternal(err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s upload: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s upload: %w", field, err)
	}
	return data, nil
}

func encodedPNG(data []byte, size int) *imaging.EncodedImage {
	return &imaging.EncodedImage{
		Width:       size,
		Height:      size,
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
	}
}

func acceptsPNG(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), "image/png")
}
