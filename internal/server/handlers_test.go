package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/door-ai-studio/internal/relay"
)

// fakeComposer records the relay request and returns a canned result.
type fakeComposer struct {
	calls       int
	lastReq     relay.Request
	deadline    time.Time
	hasDeadline bool
	result      *relay.Result
	err         error
}

func (f *fakeComposer) Compose(ctx context.Context, req relay.Request) (*relay.Result, error) {
	f.calls++
	f.lastReq = req
	f.deadline, f.hasDeadline = ctx.Deadline()
	return f.result, f.err
}

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "photo.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// callTool runs a tools/call request and decodes the text content into out.
// It returns the JSON-RPC error, if any.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}, out interface{}) *MCPError {
	t.Helper()

	paramsJSON, err := json.Marshal(map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return resp.Error
	}

	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(content[0]["text"].(string)), out); err != nil {
			t.Fatalf("decode tool result: %v", err)
		}
	}
	return nil
}

func decodeBase64PNG(t *testing.T, s string) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("invalid png: %v", err)
	}
	return img
}

func TestHandleImageLoad(t *testing.T) {
	s := newTestServer(nil)
	path := createTestImageFile(t, 128, 32, color.RGBA{255, 0, 0, 255})

	var info struct {
		Width  int     `json:"width"`
		Height int     `json:"height"`
		Format string  `json:"format"`
		Scale  float64 `json:"scale"`
	}
	if mcpErr := callTool(t, s, "image_load", map[string]interface{}{"path": path}, &info); mcpErr != nil {
		t.Fatalf("unexpected error: %v", mcpErr)
	}

	if info.Width != 128 || info.Height != 32 {
		t.Errorf("dimensions: got %dx%d, want 128x32", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("format: got %s, want png", info.Format)
	}
	if info.Scale != 0.5 {
		t.Errorf("scale: got %v, want 0.5", info.Scale)
	}
}

func TestHandleDoorPrepare_Inline(t *testing.T) {
	s := newTestServer(nil)
	path := createTestImageFile(t, 100, 50, color.RGBA{0, 0, 255, 255})

	var result PrepareResult
	mcpErr := callTool(t, s, "door_prepare", map[string]interface{}{
		"path":  path,
		"box_w": 50,
		"box_h": 60,
	}, &result)
	if mcpErr != nil {
		t.Fatalf("unexpected error: %v", mcpErr)
	}

	if result.CanvasSize != 64 {
		t.Errorf("canvas: got %d, want 64", result.CanvasSize)
	}
	if result.BoxW != 50 || result.BoxH != 60 {
		t.Errorf("box: got %v x %v, want 50 x 60", result.BoxW, result.BoxH)
	}
	if result.Protected.Width != 32 || result.Protected.X != 16 {
		t.Errorf("protected: got %+v", result.Protected)
	}
	if !result.Protected.Margins.Symmetric(1) {
		t.Errorf("protected box not centered: %+v", result.Protected.Margins)
	}
	if result.SourceWidth != 100 || result.SourceHeight != 50 {
		t.Errorf("source: got %dx%d", result.SourceWidth, result.SourceHeight)
	}
	if result.Image == nil || result.Mask == nil {
		t.Fatal("expected inline image and mask")
	}

	img := decodeBase64PNG(t, result.Image.ImageBase64)
	mask := decodeBase64PNG(t, result.Mask.ImageBase64)
	if img.Bounds() != mask.Bounds() || img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
		t.Errorf("bounds: image %v, mask %v", img.Bounds(), mask.Bounds())
	}

	if _, _, _, a := mask.At(32, 32).RGBA(); a != 0 {
		t.Errorf("mask center alpha: got %d, want 0", a)
	}
	if _, _, _, a := mask.At(0, 0).RGBA(); a != 0xffff {
		t.Errorf("mask corner alpha: got %d, want opaque", a)
	}
}

func TestHandleDoorPrepare_OutputDir(t *testing.T) {
	s := newTestServer(nil)
	path := createTestImageFile(t, 40, 80, color.RGBA{10, 20, 30, 255})
	dir := filepath.Join(t.TempDir(), "prepared")

	var result PrepareResult
	if mcpErr := callTool(t, s, "door_prepare", map[string]interface{}{
		"path":       path,
		"output_dir": dir,
	}, &result); mcpErr != nil {
		t.Fatalf("unexpected error: %v", mcpErr)
	}

	if result.Image != nil || result.Mask != nil {
		t.Error("inline images should be omitted when writing files")
	}
	for _, p := range []string{result.ImagePath, result.MaskPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected file %s: %v", p, err)
		}
	}
	if result.BoxW != 45 || result.BoxH != 80 {
		t.Errorf("default box: got %v x %v", result.BoxW, result.BoxH)
	}
}

func TestHandleDoorPrepare_Errors(t *testing.T) {
	s := newTestServer(nil)
	path := createTestImageFile(t, 20, 20, color.Black)

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr string
	}{
		{"missing path", map[string]interface{}{}, "path is required"},
		{"missing file", map[string]interface{}{"path": filepath.Join(t.TempDir(), "none.png")}, "no such file"},
		{"box too wide", map[string]interface{}{"path": path, "box_w": 95}, "width"},
		{"box too short", map[string]interface{}{"path": path, "box_h": 10}, "height"},
		{"bad fill", map[string]interface{}{"path": path, "fill": "#12"}, "color"},
		{"bad arguments", map[string]interface{}{"path": 12}, "invalid arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mcpErr := callTool(t, s, "door_prepare", tt.args, nil)
			if mcpErr == nil {
				t.Fatal("expected error")
			}
			if mcpErr.Code != -32000 {
				t.Errorf("code: got %d, want -32000", mcpErr.Code)
			}
			if data, _ := mcpErr.Data.(string); !strings.Contains(data, tt.wantErr) {
				t.Errorf("data %q does not mention %q", data, tt.wantErr)
			}
		})
	}
}

func TestHandleDoorPreview(t *testing.T) {
	s := newTestServer(nil)
	path := createTestImageFile(t, 64, 64, color.White)

	var enc struct {
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		ImageBase64 string `json:"image_base64"`
		MimeType    string `json:"mime_type"`
	}
	if mcpErr := callTool(t, s, "door_preview", map[string]interface{}{"path": path}, &enc); mcpErr != nil {
		t.Fatalf("unexpected error: %v", mcpErr)
	}

	if enc.Width != 64 || enc.Height != 64 || enc.MimeType != "image/png" {
		t.Errorf("unexpected preview metadata: %+v", enc)
	}

	img := decodeBase64PNG(t, enc.ImageBase64)
	// Default box on a 64 canvas: 29x51 at (17, 6). Its left edge is outlined.
	r, g, _, _ := img.At(17, 32).RGBA()
	if r <= g {
		t.Errorf("expected red outline at box edge, got r=%d g=%d", r, g)
	}
	r, g, _, _ = img.At(32, 32).RGBA()
	if r != g {
		t.Errorf("box interior should be untouched, got r=%d g=%d", r, g)
	}
}

func TestHandleDoorSuggestBox_Fallback(t *testing.T) {
	s := newTestServer(nil)
	path := createTestImageFile(t, 50, 50, color.Gray{Y: 180})

	var result SuggestResult
	if mcpErr := callTool(t, s, "door_suggest_box", map[string]interface{}{"path": path}, &result); mcpErr != nil {
		t.Fatalf("unexpected error: %v", mcpErr)
	}

	if result.Detected {
		t.Error("plain image should not detect a door")
	}
	if result.BoxW != 45 || result.BoxH != 80 {
		t.Errorf("fallback box: got %v x %v, want 45 x 80", result.BoxW, result.BoxH)
	}
	if result.Region != nil {
		t.Errorf("fallback should have no region, got %+v", result.Region)
	}
}

func TestHandleDoorCompose(t *testing.T) {
	fake := &fakeComposer{result: &relay.Result{URL: "https://cdn.example.com/door.png", Size: "512x512"}}
	s := newTestServer(fake)
	path := createTestImageFile(t, 120, 60, color.RGBA{200, 100, 50, 255})

	var result ComposeResult
	if mcpErr := callTool(t, s, "door_compose", map[string]interface{}{
		"path":   path,
		"prompt": "a bright porch",
		"size":   "512x512",
		"box_w":  40,
	}, &result); mcpErr != nil {
		t.Fatalf("unexpected error: %v", mcpErr)
	}

	if fake.calls != 1 {
		t.Fatalf("composer calls: got %d, want 1", fake.calls)
	}
	if fake.lastReq.Prompt != "a bright porch" || fake.lastReq.Size != "512x512" {
		t.Errorf("unexpected request: prompt %q size %q", fake.lastReq.Prompt, fake.lastReq.Size)
	}
	img, err := png.Decode(bytes.NewReader(fake.lastReq.Image))
	if err != nil {
		t.Fatalf("image is not a png: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
		t.Errorf("image bounds: got %v", img.Bounds())
	}
	if len(fake.lastReq.Mask) == 0 {
		t.Error("expected mask to be sent")
	}
	if result.URL != "https://cdn.example.com/door.png" || result.Size != "512x512" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHandleDoorCompose_InlineOutput(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	fake := &fakeComposer{result: &relay.Result{Data: payload, MimeType: "image/png", Size: "1024x1024"}}
	s := newTestServer(fake)
	path := createTestImageFile(t, 30, 30, color.Black)
	output := filepath.Join(t.TempDir(), "result.png")

	var result ComposeResult
	if mcpErr := callTool(t, s, "door_compose", map[string]interface{}{"path": path, "output": output}, &result); mcpErr != nil {
		t.Fatalf("unexpected error: %v", mcpErr)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("output contents: got %v, want %v", got, payload)
	}
	if result.OutputPath != output || result.B64JSON != "" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHandleDoorCompose_Errors(t *testing.T) {
	path := createTestImageFile(t, 30, 30, color.Black)

	t.Run("no provider", func(t *testing.T) {
		mcpErr := callTool(t, newTestServer(nil), "door_compose", map[string]interface{}{"path": path}, nil)
		if mcpErr == nil || !strings.Contains(mcpErr.Data.(string), "no image editing provider") {
			t.Errorf("expected provider error, got %v", mcpErr)
		}
	})

	t.Run("upstream", func(t *testing.T) {
		fake := &fakeComposer{err: relay.UpstreamError(400, "Invalid mask", errors.New("400"))}
		mcpErr := callTool(t, newTestServer(fake), "door_compose", map[string]interface{}{"path": path}, nil)
		if mcpErr == nil || !strings.Contains(mcpErr.Data.(string), "Invalid mask") {
			t.Errorf("expected upstream error, got %v", mcpErr)
		}
	})

	t.Run("box out of range", func(t *testing.T) {
		fake := &fakeComposer{result: &relay.Result{URL: "u"}}
		mcpErr := callTool(t, newTestServer(fake), "door_compose", map[string]interface{}{"path": path, "box_w": 5}, nil)
		if mcpErr == nil {
			t.Fatal("expected error")
		}
		if fake.calls != 0 {
			t.Errorf("composer should not be called, got %d calls", fake.calls)
		}
	})
}

func TestHandleDoorCompose_EditTimeout(t *testing.T) {
	path := createTestImageFile(t, 40, 40, color.RGBA{90, 60, 30, 255})
	args := map[string]interface{}{"path": path}

	fake := &fakeComposer{result: &relay.Result{URL: "https://cdn.example.com/door.png", Size: "1024x1024"}}
	s := New(fake, Settings{CanvasSize: 64, EditTimeout: time.Minute}, nil)

	before := time.Now()
	if mcpErr := callTool(t, s, "door_compose", args, nil); mcpErr != nil {
		t.Fatalf("unexpected error: %v", mcpErr)
	}
	if !fake.hasDeadline {
		t.Fatal("provider call has no deadline")
	}
	if d := fake.deadline.Sub(before); d <= 0 || d > time.Minute+time.Second {
		t.Errorf("deadline %v after call, want about 1m", d)
	}

	fake = &fakeComposer{result: &relay.Result{URL: "https://cdn.example.com/door.png", Size: "1024x1024"}}
	s = New(fake, Settings{CanvasSize: 64}, nil)
	if mcpErr := callTool(t, s, "door_compose", args, nil); mcpErr != nil {
		t.Fatalf("unexpected error: %v", mcpErr)
	}
	if fake.hasDeadline {
		t.Error("zero EditTimeout should not add a deadline")
	}
}

func TestHandleImageUnload(t *testing.T) {
	s := newTestServer(nil)
	path := createTestImageFile(t, 30, 30, color.RGBA{10, 20, 30, 255})

	if mcpErr := callTool(t, s, "image_load", map[string]interface{}{"path": path}, nil); mcpErr != nil {
		t.Fatalf("image_load failed: %v", mcpErr)
	}
	if s.cache.Len() != 1 {
		t.Fatalf("cache size after load: got %d, want 1", s.cache.Len())
	}

	var result UnloadResult
	if mcpErr := callTool(t, s, "image_unload", map[string]interface{}{"path": path}, &result); mcpErr != nil {
		t.Fatalf("image_unload failed: %v", mcpErr)
	}
	if !result.Unloaded || result.Cached != 0 {
		t.Errorf("got %+v, want unloaded with empty cache", result)
	}

	if mcpErr := callTool(t, s, "image_unload", map[string]interface{}{"path": path}, &result); mcpErr != nil {
		t.Fatalf("second image_unload failed: %v", mcpErr)
	}
	if result.Unloaded {
		t.Error("second unload should report nothing removed")
	}

	if mcpErr := callTool(t, s, "image_unload", map[string]interface{}{}, nil); mcpErr == nil {
		t.Error("expected error without path")
	}
}
