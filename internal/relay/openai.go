package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openAIImages is the slice of the go-openai client the editor uses.
type openAIImages interface {
	CreateEditImage(ctx context.Context, request openai.ImageEditRequest) (openai.ImageResponse, error)
}

// OpenAIEditor calls the OpenAI Images Edit endpoint.
//
// The endpoint treats fully transparent mask pixels as the area to
// regenerate and opaque pixels as the area to keep.
type OpenAIEditor struct {
	client openAIImages
}

// NewOpenAIEditor returns an editor authenticated with apiKey. A non-empty
// baseURL points it at a compatible gateway instead of api.openai.com.
func NewOpenAIEditor(apiKey, baseURL string) *OpenAIEditor {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEditor{client: openai.NewClientWithConfig(cfg)}
}

// Name implements Editor.
func (e *OpenAIEditor) Name() string { return ProviderOpenAI }

// Edit implements Editor.
func (e *OpenAIEditor) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	in := openai.ImageEditRequest{
		Image:  newPNGReader(req.Image, "image.png"),
		Prompt: req.Prompt,
		Model:  req.Model,
		N:      1,
		Size:   req.Size,
	}
	// gpt-image models always answer inline and reject response_format.
	if !strings.HasPrefix(req.Model, "gpt-image") {
		in.ResponseFormat = string(req.ResponseFormat)
	}
	if len(req.Mask) > 0 {
		in.Mask = newPNGReader(req.Mask, "mask.png")
	}

	resp, err := e.client.CreateEditImage(ctx, in)
	if err != nil {
		return nil, openAIError(err)
	}
	if len(resp.Data) == 0 {
		return &EditResult{}, nil
	}

	first := resp.Data[0]
	res := &EditResult{URL: first.URL}
	if first.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(first.B64JSON)
		if err != nil {
			return nil, UpstreamError(0, "Invalid image data returned", err)
		}
		res.Data = data
		res.MimeType = "image/png"
	}
	return res, nil
}

// openAIError extracts the most specific message the API exposed.
func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return UpstreamError(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return UpstreamError(reqErr.HTTPStatusCode, msg, err)
	}
	return UpstreamError(0, "", err)
}

// pngReader gives the multipart form builder a file name and content type
// for in-memory PNG bytes.
type pngReader struct {
	*bytes.Reader
	name string
}

func newPNGReader(data []byte, name string) *pngReader {
	return &pngReader{Reader: bytes.NewReader(data), name: name}
}

func (r *pngReader) Name() string { return r.name }

func (r *pngReader) ContentType() string { return "image/png" }
