// Package extraction turns a free-form transcript into a canonical record by
// driving an external extraction collaborator through a bounded retry ladder.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.com/yelinaung/cashflow-ledger/internal/classify"
	"gitlab.com/yelinaung/cashflow-ledger/internal/logger"
	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
	"gitlab.com/yelinaung/cashflow-ledger/internal/normalize"
)

var (
	// ErrProcessingFailed indicates every extraction attempt failed in the collaborator.
	ErrProcessingFailed = errors.New("processing failed")
	// ErrEmptyTranscript indicates there was nothing to extract from.
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// Extractor submits an instruction prompt and returns free text that should
// contain one JSON object.
type Extractor interface {
	Extract(ctx context.Context, prompt string) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, prompt string) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Result is the outcome of one orchestration.
type Result struct {
	Record   models.Record
	Report   classify.Report
	Fields   normalize.Fields
	Attempts int
	Template string
	Fallback bool
}

// Orchestrator runs extraction, normalization and classification. It never persists.
type Orchestrator struct {
	extractor  Extractor
	policy     normalize.Policy
	normalizer *normalize.Normalizer
	classifier *classify.Classifier
	templates  []Template
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTemplates replaces the retry ladder.
func WithTemplates(templates ...Template) Option {
	return func(o *Orchestrator) {
		if len(templates) > 0 {
			o.templates = templates
		}
	}
}

// New creates an Orchestrator.
func New(extractor Extractor, policy normalize.Policy, opts ...Option) *Orchestrator {
	policy = policy.WithDefaults()
	o := &Orchestrator{
		extractor:  extractor,
		policy:     policy,
		normalizer: normalize.New(policy),
		classifier: classify.New(policy),
		templates:  DefaultTemplates,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run extracts a record from transcript. The first attempt uses the first
// template and every retry the next one, staying on the last. When no attempt
// yields parseable JSON a minimal fallback record is built from keyword
// heuristics. When every attempt fails in the collaborator ErrProcessingFailed
// is returned and there is no result.
func (o *Orchestrator) Run(ctx context.Context, transcript string, now time.Time) (*Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrEmptyTranscript
	}

	log := logger.FromContext(ctx)
	attempts := 1 + o.policy.ExtractionRetries

	var (
		raw          normalize.Fields
		template     Template
		failures     int
		lastErr      error
		attemptsMade int
	)

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extraction aborted: %w", err)
		}

		template = o.templates[min(attempt, len(o.templates)-1)]
		attemptsMade++

		text, err := o.extractor.Extract(ctx, template.Render(transcript, now))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("extraction aborted: %w", ctxErr)
			}
			failures++
			lastErr = err
			log.Warn().Err(err).
				Int("attempt", attempt+1).
				Str("template", template.Name).
				Msg("extraction call failed")
			continue
		}

		fields, err := ParseResponse(text)
		if err != nil {
			log.Warn().Err(err).
				Int("attempt", attempt+1).
				Str("template", template.Name).
				Str("response", logger.SanitizeText(text)).
				Msg("extraction response not parseable")
			continue
		}

		raw = fields
		break
	}

	result := &Result{Attempts: attemptsMade}
	switch {
	case raw != nil:
		result.Template = template.Name
	case failures == attemptsMade:
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrProcessingFailed, attemptsMade, lastErr)
	default:
		raw = o.fallbackFields(transcript)
		result.Fallback = true
		log.Warn().
			Int("attempts", attemptsMade).
			Str("transcript", logger.SanitizeText(transcript)).
			Msg("using fallback record")
	}

	decided, kind := o.classifier.Decide(raw, transcript)
	result.Fields = o.normalizer.Normalize(decided, now)
	result.Record, result.Report = o.classifier.Validate(result.Fields, kind, now)

	log.Debug().
		Str("kind", string(result.Record.Kind)).
		Bool("valid", result.Report.Valid).
		Bool("fallback", result.Fallback).
		Int("attempts", result.Attempts).
		Msg("extraction finished")

	return result, nil
}

// fallbackFields builds the minimal record used when nothing could be parsed.
// Date fields stay empty so the normalizer defaults them to today.
func (o *Orchestrator) fallbackFields(transcript string) normalize.Fields {
	fields := normalize.Fields{
		normalize.FieldKind:   string(classify.DetectKind(o.policy.Matcher(), transcript)),
		normalize.FieldAmount: "0",
	}
	for _, key := range []string{
		normalize.FieldInvoiceNumber,
		normalize.FieldCounterparty,
		normalize.FieldPaymentTerms,
		normalize.FieldPaymentMethod,
		normalize.FieldBank,
		normalize.FieldDocumentType,
		normalize.FieldStatus,
		normalize.FieldDescription,
	} {
		fields[key] = models.NotAvailable
	}
	return fields
}
