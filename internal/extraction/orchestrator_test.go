package extraction

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
	"gitlab.com/yelinaung/cashflow-ledger/internal/normalize"
)

var now = time.Date(2024, time.June, 12, 15, 4, 5, 0, time.UTC)

type reply struct {
	text string
	err  error
}

// scriptedExtractor returns one reply per call and records the prompts it saw.
type scriptedExtractor struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

func (s *scriptedExtractor) Extract(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.text, r.err
}

func (s *scriptedExtractor) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

const transcript = "ho pagato 37,43 euro al Bar Roma oggi con il bancomat"

func TestRun_FirstAttemptSucceeds(t *testing.T) {
	t.Parallel()

	ext := &scriptedExtractor{replies: []reply{{
		text: "```json\n{\"tipo\": \"spesa\", \"importo\": \"37,43\", \"azienda\": \"Bar Roma\", \"metodo_pagamento\": \"bancomat\", \"data_fattura\": \"oggi\"}\n```",
	}}}

	result, err := New(ext, normalize.DefaultPolicy()).Run(context.Background(), transcript, now)
	require.NoError(t, err)
	require.Equal(t, 1, ext.calls())
	require.Equal(t, 1, result.Attempts)
	require.Equal(t, FullTemplate.Name, result.Template)
	require.False(t, result.Fallback)

	require.True(t, result.Report.Valid, result.Report.Summary())
	require.Equal(t, models.KindExpense, result.Record.Kind)
	require.True(t, decimal.RequireFromString("37.43").Equal(result.Record.Amount))
	require.Equal(t, "Bar Roma", result.Record.Counterparty)
	require.Equal(t, normalize.PaymentPOS, result.Record.PaymentMethod)
	require.Equal(t, "2024-06-12", result.Record.OccurredOnString())
	require.Equal(t, "AUTO-20240612-150405", result.Record.DocumentRef)
}

func TestRun_RetriesWithSimplifiedTemplate(t *testing.T) {
	t.Parallel()

	ext := &scriptedExtractor{replies: []reply{
		{text: "Certo! Ecco i dati richiesti."},
		{text: `Here you go: {"tipo": "entrata", "importo": 250, "data_entrata": "ieri"} hope it helps`},
	}}

	result, err := New(ext, normalize.DefaultPolicy()).Run(context.Background(), "ho incassato 250 euro ieri", now)
	require.NoError(t, err)
	require.Equal(t, 2, result.Attempts)
	require.Equal(t, SimplifiedTemplate.Name, result.Template)
	require.False(t, result.Fallback)
	require.Equal(t, models.KindIncome, result.Record.Kind)
	require.Equal(t, "2024-06-11", result.Record.OccurredOnString())

	require.Len(t, ext.prompts, 2)
	require.Contains(t, ext.prompts[0], "Estrai in formato JSON")
	require.Contains(t, ext.prompts[1], "Rispondi con un solo oggetto JSON")
}

func TestRun_KindFromTranscriptDrivesDateDefault(t *testing.T) {
	t.Parallel()

	ext := &scriptedExtractor{replies: []reply{{text: `{"tipo": "", "importo": "100"}`}}}

	result, err := New(ext, normalize.DefaultPolicy()).Run(context.Background(), "ho incassato cento euro oggi", now)
	require.NoError(t, err)
	require.True(t, result.Report.Valid, result.Report.Summary())
	require.Equal(t, models.KindIncome, result.Record.Kind)
	require.Equal(t, "2024-06-12", result.Record.OccurredOnString())
	require.Equal(t, "income", result.Fields.String(normalize.FieldKind))
	require.Equal(t, "2024-06-12", result.Fields.String(normalize.FieldIncomeDate))
	require.False(t, result.Fields.Has(normalize.FieldInvoiceDate))
}

func TestRun_FallbackAfterParseFailures(t *testing.T) {
	t.Parallel()

	ext := &scriptedExtractor{replies: []reply{
		{text: "non lo so"},
		{text: "{not json"},
		{text: "{\"tipo\": }"},
	}}

	result, err := New(ext, normalize.DefaultPolicy()).Run(context.Background(), "ho incassato la fattura", now)
	require.NoError(t, err)
	require.Equal(t, 3, ext.calls())
	require.Equal(t, 3, result.Attempts)
	require.True(t, result.Fallback)
	require.Empty(t, result.Template)

	require.Equal(t, models.KindIncome, result.Record.Kind)
	require.True(t, result.Record.Amount.IsZero())
	require.False(t, result.Report.Valid)
	require.Equal(t, models.NotAvailable, result.Fields[normalize.FieldCounterparty])
	require.Equal(t, "2024-06-12", result.Fields[normalize.FieldIncomeDate])
}

func TestRun_RetryBudgetFromPolicy(t *testing.T) {
	t.Parallel()

	policy := normalize.DefaultPolicy()
	policy.ExtractionRetries = 0

	ext := &scriptedExtractor{replies: []reply{{text: "nope"}, {text: `{"importo": "5"}`}}}
	result, err := New(ext, policy).Run(context.Background(), transcript, now)
	require.NoError(t, err)
	require.Equal(t, 1, ext.calls())
	require.True(t, result.Fallback)
}

func TestRun_ProcessingFailed(t *testing.T) {
	t.Parallel()

	boom := errors.New("service unavailable")
	ext := &scriptedExtractor{replies: []reply{{err: boom}, {err: boom}, {err: boom}}}

	result, err := New(ext, normalize.DefaultPolicy()).Run(context.Background(), transcript, now)
	require.Nil(t, result)
	require.ErrorIs(t, err, ErrProcessingFailed)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, ext.calls())
}

func TestRun_TransientFailureThenSuccess(t *testing.T) {
	t.Parallel()

	ext := &scriptedExtractor{replies: []reply{
		{err: errors.New("timeout")},
		{text: `{"tipo": "spesa", "importo": "10", "azienda": "Edicola"}`},
	}}

	result, err := New(ext, normalize.DefaultPolicy()).Run(context.Background(), transcript, now)
	require.NoError(t, err)
	require.Equal(t, 2, result.Attempts)
	require.True(t, result.Report.Valid)
}

func TestRun_MixedFailuresFallBack(t *testing.T) {
	t.Parallel()

	ext := &scriptedExtractor{replies: []reply{
		{err: errors.New("timeout")},
		{text: "garbage"},
		{err: errors.New("timeout")},
	}}

	result, err := New(ext, normalize.DefaultPolicy()).Run(context.Background(), transcript, now)
	require.NoError(t, err)
	require.True(t, result.Fallback)
}

func TestRun_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ext := ExtractorFunc(func(context.Context, string) (string, error) {
		cancel()
		return "", context.Canceled
	})

	calls := 0
	counting := ExtractorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return ext.Extract(ctx, prompt)
	})

	result, err := New(counting, normalize.DefaultPolicy()).Run(ctx, transcript, now)
	require.Nil(t, result)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrProcessingFailed)
	require.Equal(t, 1, calls)
}

func TestRun_EmptyTranscript(t *testing.T) {
	t.Parallel()

	ext := &scriptedExtractor{}
	_, err := New(ext, normalize.DefaultPolicy()).Run(context.Background(), "   ", now)
	require.ErrorIs(t, err, ErrEmptyTranscript)
	require.Zero(t, ext.calls())
}

func TestRun_CustomTemplates(t *testing.T) {
	t.Parallel()

	only := Template{Name: "only", format: "T=%s D=%s"}
	ext := &scriptedExtractor{replies: []reply{{text: "x"}, {text: "y"}, {text: "z"}}}

	_, err := New(ext, normalize.DefaultPolicy(), WithTemplates(only)).Run(context.Background(), "abc", now)
	require.NoError(t, err)
	require.Equal(t, []string{"T=abc D=2024-06-12", "T=abc D=2024-06-12", "T=abc D=2024-06-12"}, ext.prompts)
}

func TestSanitizeForPrompt(t *testing.T) {
	t.Parallel()

	require.Equal(t, "say 'hi' now", SanitizeForPrompt("say \"hi\"\n\n now", 100))
	require.Equal(t, "ciao", SanitizeForPrompt("ciao mondo", 5))
	require.Equal(t, "però", SanitizeForPrompt("però sì", 4))
	require.Equal(t, strings.Repeat("a", 10), SanitizeForPrompt(strings.Repeat("a", 50), 10))
}
