// Package gemini provides extraction and transcription backed by the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ModelName is the Gemini model to use for extraction and transcription.
const ModelName = "gemini-2.5-flash"

// DefaultLanguage is the spoken language assumed for voice notes.
const DefaultLanguage = "it"

var (
	// ErrTimeout indicates the Gemini API call timed out.
	ErrTimeout = errors.New("gemini request timed out")
	// ErrEmptyResponse indicates Gemini returned no text.
	ErrEmptyResponse = errors.New("empty response from Gemini")
)

// ContentGenerator defines the interface for generating content via Gemini.
// This abstraction enables testing without making actual API calls.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// modelsAdapter wraps *genai.Models to implement ContentGenerator.
type modelsAdapter struct {
	models *genai.Models
}

func (m *modelsAdapter) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	resp, err := m.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("genai.GenerateContent: %w", err)
	}
	return resp, nil
}

// Client wraps the Gemini API client.
type Client struct {
	generator ContentGenerator
	model     string
	language  string
}

// NewClient creates a new Gemini client with the provided API key.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		generator: &modelsAdapter{models: client.Models},
		model:     ModelName,
		language:  DefaultLanguage,
	}, nil
}

// NewClientWithGenerator creates a Client with a custom ContentGenerator.
// This is primarily used for testing with mock generators.
func NewClientWithGenerator(generator ContentGenerator) *Client {
	return &Client{
		generator: generator,
		model:     ModelName,
		language:  DefaultLanguage,
	}
}

// SetLanguage sets the ISO 639-1 language reported on transcripts.
func (c *Client) SetLanguage(language string) {
	if language != "" {
		c.language = language
	}
}

func (c *Client) generate(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (string, error) {
	if c.generator == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}

	resp, err := c.generator.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from Gemini")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}
