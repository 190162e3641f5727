package gemini

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// ExtractTimeout is the timeout for one extraction call.
const ExtractTimeout = 15 * time.Second

const extractInstruction = "Sei un assistente che estrae dati da testi parlati trascritti. " +
	"Rispondi sempre con un solo oggetto JSON, senza testo aggiuntivo."

// Extract sends an instruction prompt and returns the raw model text, which
// should contain one JSON object.
func (c *Client) Extract(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, ExtractTimeout)
	defer cancel()

	temp := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:      &temp,
		MaxOutputTokens:  int32(1024),
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: extractInstruction}},
		},
	}

	return c.generate(timeoutCtx, []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}, config)
}
