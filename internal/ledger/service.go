// Package ledger ties normalization, classification, extraction and
// authorization together and persists the resulting records.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.com/yelinaung/cashflow-ledger/internal/authz"
	"gitlab.com/yelinaung/cashflow-ledger/internal/classify"
	"gitlab.com/yelinaung/cashflow-ledger/internal/events"
	"gitlab.com/yelinaung/cashflow-ledger/internal/exchange"
	"gitlab.com/yelinaung/cashflow-ledger/internal/extraction"
	"gitlab.com/yelinaung/cashflow-ledger/internal/logger"
	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
	"gitlab.com/yelinaung/cashflow-ledger/internal/normalize"
	"gitlab.com/yelinaung/cashflow-ledger/internal/repository"
	"gitlab.com/yelinaung/cashflow-ledger/internal/telemetry"
	"gitlab.com/yelinaung/cashflow-ledger/internal/transcription"
)

var (
	// ErrInvalidRecord is matched by every ValidationError.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrNotConfigured means the ingestion path lacks its collaborator.
	ErrNotConfigured = errors.New("ingestion path not configured")
)

// ValidationError carries the report of a record that was not persisted.
type ValidationError struct {
	Report classify.Report
}

func (e *ValidationError) Error() string {
	return ErrInvalidRecord.Error() + ": " + e.Report.Summary()
}

// Unwrap makes errors.Is(err, ErrInvalidRecord) hold.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidRecord
}

// RecordStore persists records. All operations are keyed by tenant.
type RecordStore interface {
	Insert(ctx context.Context, record *models.Record) error
	GetByID(ctx context.Context, id int64, tenantID string) (*models.Record, error)
	Update(ctx context.Context, id int64, tenantID string, record *models.Record) error
	Delete(ctx context.Context, id int64, tenantID string) error
	ListByTenant(ctx context.Context, filter repository.RecordFilter) ([]models.Record, error)
	TotalsByDay(ctx context.Context, filter repository.RecordFilter) ([]repository.DayTotal, error)
}

// MembershipChecker confirms an actor belongs to a tenant. *authz.Guard satisfies it.
type MembershipChecker interface {
	Membership(ctx context.Context, actorID, tenantID string) (*models.Membership, error)
}

// Actor is the authenticated caller and the tenant it acts in.
type Actor struct {
	ID       string
	TenantID string
}

// Outcome is the result of a create call. Record is nil when nothing was stored.
type Outcome struct {
	Record     *models.Record            `json:"record,omitempty"`
	Report     classify.Report           `json:"report"`
	Transcript *transcription.Transcript `json:"transcript,omitempty"`
	Fallback   bool                      `json:"fallback"`
	Attempts   int                       `json:"attempts,omitempty"`
}

// Service is the ledger facade.
type Service struct {
	store        RecordStore
	members      MembershipChecker
	orchestrator *extraction.Orchestrator
	transcriber  transcription.Transcriber
	normalizer   *normalize.Normalizer
	classifier   *classify.Classifier
	publisher    events.Publisher
	metrics      *telemetry.Metrics
	rates        exchange.RateSource
	currency     string
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTranscriber enables audio ingestion.
func WithTranscriber(t transcription.Transcriber) Option {
	return func(s *Service) { s.transcriber = t }
}

// WithPublisher sets the record event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithRates lets Stats fold totals in other currencies into the policy's
// default currency.
func WithRates(r exchange.RateSource) Option {
	return func(s *Service) { s.rates = r }
}

// WithMetrics sets the counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. The orchestrator may be nil when transcript
// ingestion is not offered.
func NewService(
	store RecordStore,
	members MembershipChecker,
	orchestrator *extraction.Orchestrator,
	policy normalize.Policy,
	opts ...Option,
) *Service {
	s := &Service{
		store:        store,
		members:      members,
		orchestrator: orchestrator,
		normalizer:   normalize.New(policy),
		classifier:   classify.New(policy),
		publisher:    events.Noop{},
		currency:     policy.WithDefaults().DefaultCurrency,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Normalize canonicalizes raw fields, classifies and validates them, and
// stamps the record with the caller's owner and tenant.
func (s *Service) Normalize(raw normalize.Fields, transcript string, now time.Time, actor Actor) (models.Record, classify.Report) {
	decided, kind := s.classifier.Decide(raw, transcript)
	fields := s.normalizer.Normalize(decided, now)
	record, report := s.classifier.Validate(fields, kind, now)
	record.OwnerID = actor.ID
	record.TenantID = actor.TenantID
	return record, report
}

// Classify decides the kind of raw fields, using transcript keywords when
// the fields do not carry a valid kind.
func (s *Service) Classify(raw normalize.Fields, transcript string) models.Kind {
	return s.classifier.Classify(raw, transcript)
}

// CreateStructured stores a record submitted as fields.
func (s *Service) CreateStructured(ctx context.Context, actor Actor, raw normalize.Fields) (*Outcome, error) {
	m, err := s.membership(ctx, actor)
	if err != nil {
		return nil, err
	}

	now := s.now()
	record, report := s.Normalize(raw, raw.String(normalize.FieldDescription), now, actor)
	record.Source = models.SourceAPI

	return s.persist(ctx, actor, m, &record, &Outcome{Report: report})
}

// CreateFromTranscript extracts a record from free text and stores it when valid.
func (s *Service) CreateFromTranscript(ctx context.Context, actor Actor, transcript string) (*Outcome, error) {
	m, err := s.membership(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.fromTranscript(ctx, actor, m, transcript, models.SourceTranscript, &Outcome{})
}

// CreateFromAudio transcribes audio, extracts a record and stores it when valid.
func (s *Service) CreateFromAudio(ctx context.Context, actor Actor, audio []byte, mimeType string) (*Outcome, error) {
	if s.transcriber == nil {
		return nil, fmt.Errorf("%w: no transcriber", ErrNotConfigured)
	}
	m, err := s.membership(ctx, actor)
	if err != nil {
		return nil, err
	}

	transcript, err := s.transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe audio: %w", err)
	}

	return s.fromTranscript(ctx, actor, m, transcript.Text, models.SourceVoice, &Outcome{Transcript: transcript})
}

func (s *Service) fromTranscript(
	ctx context.Context,
	actor Actor,
	m *models.Membership,
	transcript, source string,
	out *Outcome,
) (*Outcome, error) {
	if s.orchestrator == nil {
		return nil, fmt.Errorf("%w: no extractor", ErrNotConfigured)
	}

	result, err := s.orchestrator.Run(ctx, transcript, s.now())
	if err != nil {
		return nil, err
	}
	if result.Fallback {
		s.metrics.ExtractionFallback(ctx)
	}

	record := result.Record
	record.OwnerID = actor.ID
	record.TenantID = actor.TenantID
	record.Source = source

	out.Report = result.Report
	out.Fallback = result.Fallback
	out.Attempts = result.Attempts
	return s.persist(ctx, actor, m, &record, out)
}

// persist authorizes creation for the record's kind and inserts it when valid.
func (s *Service) persist(ctx context.Context, actor Actor, m *models.Membership, record *models.Record, out *Outcome) (*Outcome, error) {
	if _, err := s.decide(ctx, m, authz.ResourceForKind(record.Kind), authz.ActionCreate, models.ScopeNone); err != nil {
		return nil, err
	}

	if !out.Report.Valid {
		return out, &ValidationError{Report: out.Report}
	}

	if err := s.store.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store record: %w", err)
	}
	out.Record = record

	s.metrics.RecordIngested(ctx, string(record.Kind), record.Source)
	s.publish(ctx, events.TypeRecordCreated, actor, record)

	logger.FromContext(ctx).Info().
		Int64("record_id", record.ID).
		Str("kind", string(record.Kind)).
		Str("source", record.Source).
		Str("description", logger.SanitizeDescription(record.Description)).
		Str("tenant", logger.HashID(actor.TenantID)).
		Msg("record stored")

	return out, nil
}

// Replace overwrites a stored record with new fields. The kind, owner and
// source of the stored record are kept.
func (s *Service) Replace(ctx context.Context, actor Actor, id int64, raw normalize.Fields) (*Outcome, error) {
	m, existing, err := s.loadForWrite(ctx, actor, id, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}

	fields := raw.Clone()
	fields[normalize.FieldKind] = string(existing.Kind)

	now := s.now()
	record, report := s.Normalize(fields, "", now, actor)
	record.ID = existing.ID
	record.OwnerID = existing.OwnerID
	record.Source = existing.Source
	record.RecordedAt = existing.RecordedAt
	if record.Status == "" {
		record.Status = existing.Status
	}

	out := &Outcome{Report: report}
	if !report.Valid {
		return out, &ValidationError{Report: report}
	}

	if err := s.store.Update(ctx, id, actor.TenantID, &record); err != nil {
		return nil, fmt.Errorf("failed to replace record: %w", err)
	}
	out.Record = &record

	s.publish(ctx, events.TypeRecordUpdated, actor, &record)
	logger.FromContext(ctx).Info().
		Int64("record_id", id).
		Str("role", m.Role.Name).
		Msg("record replaced")

	return out, nil
}

// Delete removes a stored record.
func (s *Service) Delete(ctx context.Context, actor Actor, id int64) error {
	_, existing, err := s.loadForWrite(ctx, actor, id, authz.ActionDelete)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id, actor.TenantID); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	s.publish(ctx, events.TypeRecordDeleted, actor, existing)
	return nil
}

// loadForWrite fetches a record and checks the actor may apply action to it.
// Under own scope only the actor's own records qualify.
func (s *Service) loadForWrite(ctx context.Context, actor Actor, id int64, action string) (*models.Membership, *models.Record, error) {
	m, err := s.membership(ctx, actor)
	if err != nil {
		return nil, nil, err
	}

	existing, err := s.store.GetByID(ctx, id, actor.TenantID)
	if err != nil {
		return nil, nil, err
	}

	d, err := s.decide(ctx, m, authz.ResourceForKind(existing.Kind), action, models.ScopeNone)
	if err != nil {
		return nil, nil, err
	}
	if d.Scope == models.ScopeOwn && existing.OwnerID != actor.ID {
		s.metrics.AuthzDenied(ctx, string(authz.OutcomeScopeTooNarrow))
		return nil, nil, fmt.Errorf("%w: record belongs to another user", authz.ErrInsufficientPermission)
	}
	return m, existing, nil
}

func (s *Service) membership(ctx context.Context, actor Actor) (*models.Membership, error) {
	m, err := s.members.Membership(ctx, actor.ID, actor.TenantID)
	if err != nil {
		switch {
		case errors.Is(err, authz.ErrUnauthenticated):
			s.metrics.AuthzDenied(ctx, string(authz.OutcomeUnauthenticated))
		case errors.Is(err, authz.ErrNotMember):
			s.metrics.AuthzDenied(ctx, string(authz.OutcomeNotMember))
			logger.FromContext(ctx).Warn().
				Str("actor", logger.HashID(actor.ID)).
				Str("tenant", logger.HashID(actor.TenantID)).
				Msg("actor is not a member of the company")
		}
		return nil, err
	}
	return m, nil
}

func (s *Service) decide(ctx context.Context, m *models.Membership, resource, action string, scope models.Scope) (authz.Decision, error) {
	d := authz.Resolve(m, resource, action, scope)
	if err := d.Err(); err != nil {
		s.metrics.AuthzDenied(ctx, string(d.Outcome))
		logger.FromContext(ctx).Warn().
			Str("role", d.Role).
			Str("outcome", string(d.Outcome)).
			Str("reason", d.Reason).
			Msg("permission denied")
		return d, err
	}
	return d, nil
}

func (s *Service) publish(ctx context.Context, eventType string, actor Actor, record *models.Record) {
	event := events.NewRecordEvent(eventType, actor.ID, record, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.FromContext(ctx).Error().Err(err).
			Str("event", eventType).
			Int64("record_id", record.ID).
			Msg("failed to publish record event")
	}
}
