package relay

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ironsheep/door-ai-studio/internal/imaging"
	"github.com/ironsheep/door-ai-studio/internal/logger"
	"github.com/ironsheep/door-ai-studio/internal/metrics"
)

// MaskPolarity says whether masks are forwarded as uploaded or inverted
// first.
type MaskPolarity string

const (
	// MaskKeep forwards the mask as uploaded.
	MaskKeep MaskPolarity = "keep"
	// MaskInvert swaps editable and protected regions before forwarding.
	MaskInvert MaskPolarity = "invert"
)

// DefaultPrompt is used when the caller sends none.
const DefaultPrompt = "Regenerate the room background to look realistic and premium, but keep the door (leaf, frame, casing, glass, hardware) untouched."

var sizePattern = regexp.MustCompile(`^[1-9][0-9]*x[1-9][0-9]*$`)

// ValidSize reports whether size has the WIDTHxHEIGHT form the providers
// accept, e.g. "1024x1024". Matching is case-sensitive; callers lowercase.
func ValidSize(size string) bool {
	return sizePattern.MatchString(size)
}

// Options configures a Relay. Zero fields take the DefaultOptions value.
type Options struct {
	RequireMask    bool
	ResponseFormat ResponseFormat
	DefaultPrompt  string
	DefaultSize    string
	Model          string
	CanvasSize     int
	MaskPolarity   MaskPolarity
}

// DefaultOptions returns the relay defaults: optional mask, URL responses,
// 1024x1024 output from dall-e-2, masks forwarded unchanged.
func DefaultOptions() Options {
	return Options{
		RequireMask:    false,
		ResponseFormat: ResponseURL,
		DefaultPrompt:  DefaultPrompt,
		DefaultSize:    "1024x1024",
		Model:          "dall-e-2",
		CanvasSize:     imaging.DefaultCanvasSize,
		MaskPolarity:   MaskKeep,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ResponseFormat == "" {
		o.ResponseFormat = d.ResponseFormat
	}
	if o.DefaultPrompt == "" {
		o.DefaultPrompt = d.DefaultPrompt
	}
	if o.DefaultSize == "" {
		o.DefaultSize = d.DefaultSize
	}
	if o.Model == "" {
		o.Model = d.Model
	}
	if o.CanvasSize <= 0 {
		o.CanvasSize = d.CanvasSize
	}
	if o.MaskPolarity == "" {
		o.MaskPolarity = d.MaskPolarity
	}
	return o
}

// Request is one compose call. Image is required; Mask is required only
// when Options.RequireMask is set. Empty Prompt and Size take the
// configured defaults.
type Request struct {
	Image  []byte
	Mask   []byte
	Prompt string
	Size   string
}

// Result wraps the provider output uniformly: URL, inline Data, or both.
type Result struct {
	URL      string
	Data     []byte
	MimeType string
	Size     string
}

// Relay re-normalizes uploads and forwards them to an Editor. It holds no
// per-request state and is safe for concurrent use.
type Relay struct {
	editor Editor
	opts   Options
	logger *slog.Logger
}

// New returns a Relay that forwards to editor.
func New(editor Editor, opts Options, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		editor: editor,
		opts:   opts.withDefaults(),
		logger: log,
	}
}

// Options returns the effective configuration.
func (r *Relay) Options() Options {
	return r.opts
}

// Compose validates req, re-normalizes image and mask to the canvas size,
// calls the editor once and wraps its answer.
//
// Every failure is an *Error. Validation and decode failures happen before
// the editor is called.
func (r *Relay) Compose(ctx context.Context, req Request) (*Result, error) {
	log := logger.FromContext(ctx, r.logger)

	if len(req.Image) == 0 {
		return nil, validationError("Missing image file (field name: image)")
	}
	if r.opts.RequireMask && len(req.Mask) == 0 {
		return nil, validationError("Missing mask file (field name: mask)")
	}

	size := strings.ToLower(strings.TrimSpace(req.Size))
	if size == "" {
		size = r.opts.DefaultSize
	}
	if !ValidSize(size) {
		return nil, validationError("Invalid size %q, expected WIDTHxHEIGHT", req.Size)
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = r.opts.DefaultPrompt
	}

	imagePNG, err := r.normalizeImage(req.Image)
	if err != nil {
		return nil, err
	}
	var maskPNG []byte
	if len(req.Mask) > 0 {
		if maskPNG, err = r.normalizeMask(req.Mask); err != nil {
			return nil, err
		}
	}

	edit := EditRequest{
		Image:          imagePNG,
		Mask:           maskPNG,
		Prompt:         prompt,
		Model:          r.opts.Model,
		Size:           size,
		ResponseFormat: r.opts.ResponseFormat,
	}

	start := time.Now()
	res, err := r.editor.Edit(ctx, edit)
	elapsed := time.Since(start)

	if err != nil {
		metrics.RecordEdit(r.editor.Name(), "error", elapsed.Seconds())
		var re *Error
		if !errors.As(err, &re) {
			re = UpstreamError(0, "", err)
		}
		log.Warn("image edit failed",
			"provider", r.editor.Name(),
			"status", re.StatusCode,
			"error", re.Message,
			"duration_ms", elapsed.Milliseconds())
		return nil, re
	}

	if res.Empty() {
		metrics.RecordEdit(r.editor.Name(), "empty", elapsed.Seconds())
		log.Warn("image edit returned no image", "provider", r.editor.Name())
		return nil, &Error{Kind: KindNoImage, Message: NoImageMessage}
	}

	metrics.RecordEdit(r.editor.Name(), "ok", elapsed.Seconds())
	log.Info("image edit completed",
		"provider", r.editor.Name(),
		"model", r.opts.Model,
		"size", size,
		"inline", len(res.Data) > 0,
		"duration_ms", elapsed.Milliseconds())

	mime := res.MimeType
	if mime == "" && len(res.Data) > 0 {
		mime = "image/png"
	}
	return &Result{
		URL:      res.URL,
		Data:     res.Data,
		MimeType: mime,
		Size:     size,
	}, nil
}

func (r *Relay) normalizeImage(data []byte) ([]byte, error) {
	img, err := imaging.NormalizeImage(data, r.opts.CanvasSize)
	if err != nil {
		return nil, classifyDecode("image", err)
	}
	out, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Message: "Failed to encode image", Err: err}
	}
	return out, nil
}

func (r *Relay) normalizeMask(data []byte) ([]byte, error) {
	mask, err := imaging.NormalizeMask(data, r.opts.CanvasSize)
	if err != nil {
		return nil, classifyDecode("mask", err)
	}
	if r.opts.MaskPolarity == MaskInvert {
		mask = imaging.InvertMask(mask)
	}
	out, err := imaging.EncodePNG(mask)
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Message: "Failed to encode mask", Err: err}
	}
	return out, nil
}

func classifyDecode(field string, err error) *Error {
	if errors.Is(err, imaging.ErrDecode) {
		return decodeError(field, err)
	}
	return &Error{Kind: KindUnexpected, Message: "Failed to read " + field, Err: err}
}
