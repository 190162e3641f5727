package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service counters. A nil *Metrics records nothing.
type Metrics struct {
	recordsIngested     metric.Int64Counter
	extractionFallbacks metric.Int64Counter
	authzDenials        metric.Int64Counter
}

// NewMetrics registers the counters on meter. A nil meter uses the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(ServiceName)
	}

	var (
		m   Metrics
		err error
	)
	m.recordsIngested, err = meter.Int64Counter("ledger.records.ingested",
		metric.WithDescription("Records stored, by kind and source"))
	if err != nil {
		return nil, fmt.Errorf("failed to create records counter: %w", err)
	}
	m.extractionFallbacks, err = meter.Int64Counter("ledger.extraction.fallbacks",
		metric.WithDescription("Extractions that produced the minimal fallback record"))
	if err != nil {
		return nil, fmt.Errorf("failed to create fallback counter: %w", err)
	}
	m.authzDenials, err = meter.Int64Counter("ledger.authz.denials",
		metric.WithDescription("Authorization denials, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create denial counter: %w", err)
	}
	return &m, nil
}

// RecordIngested counts a stored record.
func (m *Metrics) RecordIngested(ctx context.Context, kind, source string) {
	if m == nil {
		return
	}
	m.recordsIngested.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("source", source),
	))
}

// ExtractionFallback counts a fallback record.
func (m *Metrics) ExtractionFallback(ctx context.Context) {
	if m == nil {
		return
	}
	m.extractionFallbacks.Add(ctx, 1)
}

// AuthzDenied counts a denied authorization by outcome.
func (m *Metrics) AuthzDenied(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.authzDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
