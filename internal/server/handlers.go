package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"github.com/ironsheep/door-ai-studio/internal/detection"
	"github.com/ironsheep/door-ai-studio/internal/imaging"
	"github.com/ironsheep/door-ai-studio/internal/metrics"
	"github.com/ironsheep/door-ai-studio/internal/relay"
)

// errNoProvider is returned by door_compose when no editing provider is
// configured.
var errNoProvider = errors.New("no image editing provider configured")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "door_prepare").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool execution failed", "tool", params.Name, "error", err)
		metrics.RecordError(params.Name, relay.KindOf(err).String())
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "image_unload":
		return s.handleImageUnload(args)
	case "door_prepare":
		return s.handleDoorPrepare(args)
	case "door_preview":
		return s.handleDoorPreview(args)
	case "door_suggest_box":
		return s.handleDoorSuggestBox(args)
	case "door_compose":
		return s.handleDoorCompose(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Image Information ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	return imaging.LoadImageInfo(s.cache, a.Path, s.settings.CanvasSize)
}

// UnloadResult reports whether image_unload found the photo cached.
type UnloadResult struct {
	Path     string `json:"path"`
	Unloaded bool   `json:"unloaded"`
	Cached   int    `json:"cached"`
}

func (s *Server) handleImageUnload(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	unloaded := s.cache.Evict(a.Path)
	return &UnloadResult{Path: a.Path, Unloaded: unloaded, Cached: s.cache.Len()}, nil
}

// === Door Tools ===

// boxArgs holds the optional protected box percentages shared by the door
// tools. Nil means the configured default.
type boxArgs struct {
	Path string   `json:"path"`
	BoxW *float64 `json:"box_w"`
	BoxH *float64 `json:"box_h"`
}

func (a boxArgs) box(bounds detection.BoxBounds) (imaging.Box, error) {
	box := bounds.Default
	if a.BoxW != nil {
		box.WidthFraction = *a.BoxW / 100
	}
	if a.BoxH != nil {
		box.HeightFraction = *a.BoxH / 100
	}
	if err := bounds.Check(box); err != nil {
		return box, err
	}
	return box, nil
}

type doorPrepareArgs struct {
	boxArgs
	Fill      string `json:"fill"`
	OutputDir string `json:"output_dir"`
}

// PrepareResult describes a composition produced by door_prepare.
type PrepareResult struct {
	CanvasSize   int                   `json:"canvas_size"`
	BoxW         float64               `json:"box_w"`
	BoxH         float64               `json:"box_h"`
	Protected    imaging.Geometry      `json:"protected"`
	SourceWidth  int                   `json:"source_width"`
	SourceHeight int                   `json:"source_height"`
	ImagePath    string                `json:"image_path,omitempty"`
	MaskPath     string                `json:"mask_path,omitempty"`
	Image        *imaging.EncodedImage `json:"image,omitempty"`
	Mask         *imaging.EncodedImage `json:"mask,omitempty"`
}

func (s *Server) handleDoorPrepare(args json.RawMessage) (interface{}, error) {
	var a doorPrepareArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	fill := s.settings.Fill
	if a.Fill != "" {
		parsed, err := imaging.ParseHexColor(a.Fill)
		if err != nil {
			return nil, err
		}
		fill = parsed
	}

	comp, box, err := s.compose(a.boxArgs, fill)
	if err != nil {
		return nil, err
	}
	metrics.RecordComposition("prepare")

	result := &PrepareResult{
		CanvasSize:   comp.CanvasSize,
		BoxW:         percent(box.WidthFraction),
		BoxH:         percent(box.HeightFraction),
		Protected:    imaging.RectGeometry(comp.CanvasSize, comp.Protected),
		SourceWidth:  comp.SourceWidth,
		SourceHeight: comp.SourceHeight,
	}

	if a.OutputDir == "" {
		result.Image = encodedPNG(comp.Image, comp.CanvasSize)
		result.Mask = encodedPNG(comp.Mask, comp.CanvasSize)
		return result, nil
	}

	result.ImagePath, result.MaskPath, err = comp.WriteFiles(a.OutputDir)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Server) handleDoorPreview(args json.RawMessage) (interface{}, error) {
	var a boxArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	box, err := a.box(s.settings.Bounds)
	if err != nil {
		return nil, err
	}

	canvas, err := s.letterbox(a.Path)
	if err != nil {
		return nil, err
	}

	thickness := max(2, s.settings.CanvasSize/256)
	enc, err := imaging.EncodeBase64(imaging.PreviewOverlay(canvas, box, imaging.DefaultOutline, thickness))
	if err != nil {
		return nil, err
	}
	metrics.RecordComposition("preview")
	return enc, nil
}

// SuggestResult is the door_suggest_box answer in slider percentages.
type SuggestResult struct {
	BoxW       float64           `json:"box_w"`
	BoxH       float64           `json:"box_h"`
	Detected   bool              `json:"detected"`
	Confidence float64           `json:"confidence"`
	Region     *detection.Bounds `json:"region,omitempty"`
}

func (s *Server) handleDoorSuggestBox(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	canvas, err := s.letterbox(a.Path)
	if err != nil {
		return nil, err
	}
	sug, err := detection.SuggestBox(canvas, s.settings.Bounds)
	if err != nil {
		return nil, err
	}
	metrics.RecordComposition("suggest")

	return &SuggestResult{
		BoxW:       percent(sug.Box.WidthFraction),
		BoxH:       percent(sug.Box.HeightFraction),
		Detected:   sug.Detected,
		Confidence: math.Round(sug.Confidence*100) / 100,
		Region:     sug.Region,
	}, nil
}

type doorComposeArgs struct {
	boxArgs
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	Output string `json:"output"`
}

// ComposeResult is the door_compose answer.
type ComposeResult struct {
	URL        string `json:"url,omitempty"`
	Size       string `json:"size"`
	MimeType   string `json:"mime_type,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	B64JSON    string `json:"b64_json,omitempty"`
}

func (s *Server) handleDoorCompose(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.composer == nil {
		return nil, errNoProvider
	}

	var a doorComposeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	comp, _, err := s.compose(a.boxArgs, s.settings.Fill)
	if err != nil {
		return nil, err
	}
	metrics.RecordComposition("compose")

	if s.settings.EditTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.EditTimeout)
		defer cancel()
	}

	res, err := s.composer.Compose(ctx, relay.Request{
		Image:  comp.Image,
		Mask:   comp.Mask,
		Prompt: a.Prompt,
		Size:   a.Size,
	})
	if err != nil {
		return nil, err
	}

	result := &ComposeResult{
		URL:      res.URL,
		Size:     res.Size,
		MimeType: res.MimeType,
	}
	if len(res.Data) == 0 {
		return result, nil
	}
	if a.Output == "" {
		result.B64JSON = base64.StdEncoding.EncodeToString(res.Data)
		return result, nil
	}
	if err := writeFile(a.Output, res.Data); err != nil {
		return nil, err
	}
	result.OutputPath = a.Output
	return result, nil
}

// compose loads the photo at a.Path through the cache and runs the
// compositor with the requested box.
func (s *Server) compose(a boxArgs, fill color.Color) (*imaging.Composition, imaging.Box, error) {
	box, err := a.box(s.settings.Bounds)
	if err != nil {
		return nil, box, err
	}
	if a.Path == "" {
		return nil, box, errors.New("path is required")
	}
	src, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, box, err
	}
	comp, err := imaging.ComposeImage(src, imaging.ComposeOptions{
		CanvasSize: s.settings.CanvasSize,
		Box:        box,
		Fill:       fill,
	})
	return comp, box, err
}

func (s *Server) letterbox(path string) (*image.NRGBA, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	src, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	return imaging.Letterbox(src, s.settings.CanvasSize, s.settings.Fill), nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func encodedPNG(data []byte, size int) *imaging.EncodedImage {
	return &imaging.EncodedImage{
		Width:       size,
		Height:      size,
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
	}
}

func percent(fraction float64) float64 {
	return math.Round(fraction*1000) / 10
}
