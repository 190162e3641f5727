package transcription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	results []*Transcript
	errs    []error
	calls   int
	mime    string
}

func (f *fakeProvider) Transcribe(_ context.Context, _ []byte, mimeType string) (*Transcript, error) {
	i := f.calls
	f.calls++
	f.mime = mimeType
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return nil, errors.New("unexpected call")
}

func noDelay() backoff.BackOff { return &backoff.ZeroBackOff{} }

func TestService_Transcribe(t *testing.T) {
	t.Parallel()

	t.Run("empty audio rejected before the call", func(t *testing.T) {
		t.Parallel()

		p := &fakeProvider{}
		_, err := NewService(p).Transcribe(context.Background(), nil, "audio/ogg")
		require.ErrorIs(t, err, ErrEmptyAudio)
		require.Zero(t, p.calls)
	})

	t.Run("success trims text and defaults mime type", func(t *testing.T) {
		t.Parallel()

		p := &fakeProvider{results: []*Transcript{{Text: "  ho pagato dieci euro \n"}}}
		got, err := NewService(p, WithBackOff(noDelay)).Transcribe(context.Background(), []byte("audio"), "")
		require.NoError(t, err)
		require.Equal(t, "ho pagato dieci euro", got.Text)
		require.Equal(t, DefaultMIMEType, p.mime)
		require.Equal(t, 1, p.calls)
	})

	t.Run("transient failures are retried", func(t *testing.T) {
		t.Parallel()

		p := &fakeProvider{
			errs:    []error{errors.New("503"), errors.New("503")},
			results: []*Transcript{nil, nil, {Text: "oggi"}},
		}
		got, err := NewService(p, WithBackOff(noDelay)).Transcribe(context.Background(), []byte("audio"), "audio/mpeg")
		require.NoError(t, err)
		require.Equal(t, "oggi", got.Text)
		require.Equal(t, 3, p.calls)
	})

	t.Run("retry budget exhausted", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("503")
		p := &fakeProvider{errs: []error{boom, boom, boom, boom}}
		_, err := NewService(p, WithBackOff(noDelay), WithRetries(1)).Transcribe(context.Background(), []byte("audio"), "")
		require.ErrorIs(t, err, ErrTranscriptionFailed)
		require.ErrorIs(t, err, boom)
		require.Equal(t, 2, p.calls)
	})

	t.Run("empty transcript is not retried", func(t *testing.T) {
		t.Parallel()

		p := &fakeProvider{results: []*Transcript{{Text: "   "}, {Text: "late"}}}
		_, err := NewService(p, WithBackOff(noDelay)).Transcribe(context.Background(), []byte("audio"), "")
		require.ErrorIs(t, err, ErrNoSpeech)
		require.Equal(t, 1, p.calls)
	})

	t.Run("canceled context stops retries", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := &fakeProvider{errs: []error{context.Canceled, context.Canceled, context.Canceled}}
		_, err := NewService(p, WithBackOff(noDelay)).Transcribe(ctx, []byte("audio"), "")
		require.ErrorIs(t, err, context.Canceled)
		require.NotErrorIs(t, err, ErrTranscriptionFailed)
		require.LessOrEqual(t, p.calls, 1)
	})
}

func TestTranscript_Confidence(t *testing.T) {
	t.Parallel()

	var empty Transcript
	_, ok := empty.Confidence()
	require.False(t, ok)

	tr := Transcript{Segments: []Segment{
		{Start: 0, End: 3 * time.Second, Confidence: 0.9},
		{Start: 3 * time.Second, End: 4 * time.Second, Confidence: 0.5},
	}}
	got, ok := tr.Confidence()
	require.True(t, ok)
	require.InDelta(t, 0.8, got, 0.0001)
}
