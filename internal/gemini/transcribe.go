package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gitlab.com/yelinaung/cashflow-ledger/internal/transcription"
	"google.golang.org/genai"
)

// TranscribeTimeout is the timeout for one transcription call.
const TranscribeTimeout = 30 * time.Second

const transcribePrompt = `Trascrivi fedelmente questo messaggio vocale (lingua: %s).
Restituisci solo il testo parlato, senza commenti, senza virgolette e senza formattazione.`

// Transcribe sends inline audio to Gemini and returns the spoken text.
// Gemini does not report segment confidence, so the transcript has no segments.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (*transcription.Transcript, error) {
	if len(audio) == 0 {
		return nil, transcription.ErrEmptyAudio
	}
	if mimeType == "" {
		mimeType = transcription.DefaultMIMEType
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, TranscribeTimeout)
	defer cancel()

	text, err := c.generate(timeoutCtx, []*genai.Content{
		{
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: audio}},
				{Text: fmt.Sprintf(transcribePrompt, c.language)},
			},
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini transcription: %w", err)
	}

	return &transcription.Transcript{Text: strings.TrimSpace(text), Language: c.language}, nil
}
