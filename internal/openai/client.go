// Package openai provides extraction via chat completions and transcription
// via Whisper, for OpenAI and any API-compatible endpoint.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"gitlab.com/yelinaung/cashflow-ledger/internal/transcription"
)

// DefaultChatModel is used when no model is configured.
const DefaultChatModel = goopenai.GPT4oMini

// Per-call timeouts.
const (
	ExtractTimeout    = 20 * time.Second
	TranscribeTimeout = 60 * time.Second
)

const systemRole = "Sei un assistente che estrae dati da testi parlati trascritti."

// ErrEmptyResponse indicates the completion carried no content.
var ErrEmptyResponse = errors.New("empty response from OpenAI")

// API is the subset of the go-openai client used here.
type API interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
	CreateTranscription(ctx context.Context, req goopenai.AudioRequest) (goopenai.AudioResponse, error)
}

// Config selects the endpoint and models.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
}

// Client talks to the chat and audio endpoints.
type Client struct {
	api      API
	model    string
	language string
}

// NewClient creates a client for the configured endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	config := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return NewClientWithAPI(goopenai.NewClientWithConfig(config), cfg), nil
}

// NewClientWithAPI creates a Client over a custom API implementation.
// This is primarily used for testing.
func NewClientWithAPI(api API, cfg Config) *Client {
	c := &Client{api: api, model: cfg.Model, language: cfg.Language}
	if c.model == "" {
		c.model = DefaultChatModel
	}
	if c.language == "" {
		c.language = "it"
	}
	return c
}

// Extract sends the prompt as a chat completion and returns the reply text.
func (c *Client) Extract(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, ExtractTimeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(timeoutCtx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemRole},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

// Transcribe runs Whisper on the audio and maps segment log-probabilities to confidences.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (*transcription.Transcript, error) {
	if len(audio) == 0 {
		return nil, transcription.ErrEmptyAudio
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, TranscribeTimeout)
	defer cancel()

	resp, err := c.api.CreateTranscription(timeoutCtx, goopenai.AudioRequest{
		Model:    goopenai.Whisper1,
		FilePath: "voice" + extensionFor(mimeType),
		Reader:   bytes.NewReader(audio),
		Format:   goopenai.AudioResponseFormatVerboseJSON,
		Language: c.language,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	out := &transcription.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
	}
	if out.Language == "" {
		out.Language = c.language
	}
	for _, s := range resp.Segments {
		out.Segments = append(out.Segments, transcription.Segment{
			Start:      seconds(s.Start),
			End:        seconds(s.End),
			Text:       strings.TrimSpace(s.Text),
			Confidence: confidence(s.AvgLogprob),
		})
	}

	return out, nil
}

// confidence converts an average token log-probability into [0, 1].
func confidence(avgLogprob float64) float64 {
	p := math.Exp(avgLogprob)
	switch {
	case math.IsNaN(p):
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// extensionFor picks the upload file extension Whisper uses to detect the format.
func extensionFor(mimeType string) string {
	mimeType, _, _ = strings.Cut(strings.ToLower(mimeType), ";")
	switch strings.TrimSpace(mimeType) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/webm":
		return ".webm"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/flac":
		return ".flac"
	default:
		return ".ogg"
	}
}
