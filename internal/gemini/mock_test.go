package gemini

import (
	"context"
	"sync"

	"google.golang.org/genai"
)

// mockGenerator implements ContentGenerator for tests.
type mockGenerator struct {
	mu       sync.Mutex
	response *genai.GenerateContentResponse
	err      error

	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (m *mockGenerator) GenerateContent(
	_ context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.model = model
	m.contents = contents
	m.config = config
	return m.response, m.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: content}},
	}
}
