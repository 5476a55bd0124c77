package relay

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const geminiMaskInstruction = "The second image is a mask of the same size as the first. " +
	"Regenerate only where the mask is fully transparent. " +
	"Reproduce every pixel where the mask is opaque exactly as in the first image."

// geminiModels is the slice of the genai client the editor uses.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiEditor edits images with a Gemini image model. Gemini has no mask
// parameter, so the mask travels as a second image part with an
// instruction describing its semantics.
type GeminiEditor struct {
	models geminiModels
}

// NewGeminiEditor creates a Gemini API client authenticated with apiKey.
func NewGeminiEditor(ctx context.Context, apiKey string) (*GeminiEditor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiEditor{models: client.Models}, nil
}

// Name implements Editor.
func (e *GeminiEditor) Name() string { return ProviderGemini }

// Edit implements Editor. Results are always inline.
func (e *GeminiEditor) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	prompt := req.Prompt
	parts := []*genai.Part{
		genai.NewPartFromBytes(req.Image, "image/png"),
	}
	if len(req.Mask) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Mask, "image/png"))
		prompt = prompt + "\n\n" + geminiMaskInstruction
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := e.models.GenerateContent(ctx, req.Model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, geminiError(err)
	}
	return parseGeminiResponse(resp)
}

// parseGeminiResponse takes the first inline image of the first candidate.
// A candidate that stopped for any reason other than a normal stop is an
// upstream failure, typically a safety block.
func parseGeminiResponse(resp *genai.GenerateContentResponse) (*EditResult, error) {
	if resp == nil {
		return &EditResult{}, nil
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, UpstreamError(0, fmt.Sprintf("Prompt blocked: %s", resp.PromptFeedback.BlockReason), nil)
		}
		return &EditResult{}, nil
	}

	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &EditResult{
					Data:     part.InlineData.Data,
					MimeType: part.InlineData.MIMEType,
				}, nil
			}
		}
	}

	if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
		return nil, UpstreamError(0, fmt.Sprintf("Image generation stopped: %s", candidate.FinishReason), nil)
	}
	return &EditResult{}, nil
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return UpstreamError(apiErr.Code, apiErr.Message, err)
	}
	return UpstreamError(0, "", err)
}
