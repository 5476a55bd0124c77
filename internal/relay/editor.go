package relay

import (
	"context"
	"fmt"
)

// ResponseFormat selects how the provider returns the edited image.
type ResponseFormat string

const (
	// ResponseURL asks for a short-lived reference URL.
	ResponseURL ResponseFormat = "url"
	// ResponseB64JSON asks for inline base64 image data.
	ResponseB64JSON ResponseFormat = "b64_json"
)

// Editor submits an image, mask and prompt to an image-editing provider and
// receives an image or a reference to one.
type Editor interface {
	Edit(ctx context.Context, req EditRequest) (*EditResult, error)
	// Name identifies the provider in logs and metrics.
	Name() string
}

// EditRequest is what the relay hands to an Editor. Image and Mask are PNG
// encoded at identical square dimensions; Mask may be nil.
type EditRequest struct {
	Image          []byte
	Mask           []byte
	Prompt         string
	Model          string
	Size           string
	ResponseFormat ResponseFormat
}

// EditResult carries either a URL or inline image bytes. Providers may
// return both; an empty result is reported as KindNoImage.
type EditResult struct {
	URL      string
	Data     []byte
	MimeType string
}

// Empty reports whether the result holds no image at all.
func (r *EditResult) Empty() bool {
	return r == nil || (r.URL == "" && len(r.Data) == 0)
}

// Provider names accepted by NewEditor.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// NewEditor builds the Editor for provider.
func NewEditor(ctx context.Context, provider, apiKey, baseURL string) (Editor, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIEditor(apiKey, baseURL), nil
	case ProviderGemini:
		editor, err := NewGeminiEditor(ctx, apiKey)
		if err != nil {
			return nil, err
		}
		return editor, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
