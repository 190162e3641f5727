// Package transcription defines the transport-neutral speech-to-text contract
// and wraps providers with empty-audio rejection and bounded retries.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gitlab.com/yelinaung/cashflow-ledger/internal/logger"
)

var (
	// ErrEmptyAudio indicates no audio bytes were supplied.
	ErrEmptyAudio = errors.New("audio data is required")
	// ErrNoSpeech indicates the provider returned an empty transcript.
	ErrNoSpeech = errors.New("no speech recognized")
	// ErrTranscriptionFailed indicates every attempt failed in the provider.
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// DefaultMIMEType is assumed when the caller does not know the audio format.
const DefaultMIMEType = "audio/ogg"

// DefaultRetries is the number of retries after the first attempt.
const DefaultRetries = 2

// Segment is a timed piece of a transcript.
type Segment struct {
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
}

// Transcript is recognized speech with optional per-segment confidence.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}

// Confidence returns the duration-weighted mean segment confidence. ok is
// false when the provider reported no segments.
func (t *Transcript) Confidence() (confidence float64, ok bool) {
	if len(t.Segments) == 0 {
		return 0, false
	}

	var weighted, total float64
	for _, s := range t.Segments {
		w := (s.End - s.Start).Seconds()
		if w <= 0 {
			w = 1
		}
		weighted += s.Confidence * w
		total += w
	}
	return weighted / total, true
}

// Transcriber converts audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (*Transcript, error)
}

// Service validates input and retries transient provider failures.
type Service struct {
	provider Transcriber
	retries  uint
	backoff  func() backoff.BackOff
}

// Option configures a Service.
type Option func(*Service)

// WithRetries sets the number of retries after the first attempt.
func WithRetries(n uint) Option {
	return func(s *Service) { s.retries = n }
}

// WithBackOff sets the delay policy between attempts.
func WithBackOff(b func() backoff.BackOff) Option {
	return func(s *Service) { s.backoff = b }
}

// NewService wraps provider.
func NewService(provider Transcriber, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		retries:  DefaultRetries,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transcribe rejects empty audio before calling the provider, then retries
// provider failures up to the configured budget.
func (s *Service) Transcribe(ctx context.Context, audio []byte, mimeType string) (*Transcript, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}

	log := logger.FromContext(ctx)
	attempt := 0

	transcript, err := backoff.Retry(ctx, func() (*Transcript, error) {
		attempt++
		t, err := s.provider.Transcribe(ctx, audio, mimeType)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			log.Warn().Err(err).Int("attempt", attempt).Msg("transcription attempt failed")
			return nil, err
		}
		if t == nil || strings.TrimSpace(t.Text) == "" {
			return nil, backoff.Permanent(ErrNoSpeech)
		}
		return t, nil
	},
		backoff.WithBackOff(s.backoff()),
		backoff.WithMaxTries(s.retries+1),
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoSpeech):
			return nil, ErrNoSpeech
		case ctx.Err() != nil:
			return nil, fmt.Errorf("transcription aborted: %w", ctx.Err())
		default:
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrTranscriptionFailed, attempt, err)
		}
	}

	transcript.Text = strings.TrimSpace(transcript.Text)
	log.Debug().
		Int("attempts", attempt).
		Int("segments", len(transcript.Segments)).
		Str("text", logger.SanitizeText(transcript.Text)).
		Msg("transcription finished")

	return transcript, nil
}
