package relay

import (
	"context"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// fakeEditor records calls and answers with a canned result.
type fakeEditor struct {
	mu      sync.Mutex
	calls   int
	lastReq EditRequest
	result  *EditResult
	err     error
}

func (f *fakeEditor) Edit(_ context.Context, req EditRequest) (*EditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	return f.result, f.err
}

func (f *fakeEditor) Name() string { return "fake" }

func (f *fakeEditor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeOpenAIImages stands in for the go-openai client.
type fakeOpenAIImages struct {
	lastReq  openai.ImageEditRequest
	image    []byte
	mask     []byte
	response openai.ImageResponse
	err      error
}

func (f *fakeOpenAIImages) CreateEditImage(_ context.Context, req openai.ImageEditRequest) (openai.ImageResponse, error) {
	f.lastReq = req
	if r, ok := req.Image.(*pngReader); ok {
		f.image = readAll(r)
	}
	if r, ok := req.Mask.(*pngReader); ok {
		f.mask = readAll(r)
	}
	return f.response, f.err
}

func readAll(r *pngReader) []byte {
	buf := make([]byte, r.Len())
	_, _ = r.Read(buf)
	return buf
}

// fakeGeminiModels stands in for genai's Models service.
type fakeGeminiModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	response *genai.GenerateContentResponse
	err      error
}

func (f *fakeGeminiModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.response, f.err
}
