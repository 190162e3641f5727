// Package classify decides whether a normalized record is an expense or an
// income, validates it and builds the canonical ledger record.
package classify

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
	"gitlab.com/yelinaung/cashflow-ledger/internal/normalize"
)

// DocumentRefPrefix starts every synthesized document reference.
const DocumentRefPrefix = models.SynthesizedRefPrefix

const documentRefLayout = "20060102-150405"

// Issue is a single validation finding tied to a field.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Field + ": " + i.Message
}

// Report is the outcome of validating a record. Errors block persistence,
// warnings do not.
type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *Report) addError(field, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) addWarning(field, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Summary joins the error messages, or returns "" for a valid report.
func (r Report) Summary() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}

// Classifier decides the record kind and validates required fields.
type Classifier struct {
	policy  normalize.Policy
	matcher normalize.Matcher
}

// New creates a Classifier for the given policy.
func New(policy normalize.Policy) *Classifier {
	policy = policy.WithDefaults()
	return &Classifier{policy: policy, matcher: policy.Matcher()}
}

// Classify returns the record kind. A valid kind already present in the
// fields is trusted; otherwise the transcript keywords decide.
func (c *Classifier) Classify(fields normalize.Fields, transcript string) models.Kind {
	if kind, ok := normalize.ParseKind(fields.String(normalize.FieldKind)); ok {
		return kind
	}
	return DetectKind(c.matcher, transcript)
}

// Decide classifies raw fields before normalization and returns a copy with
// the decided kind written into the kind field, so the normalizer defaults
// the date field of that kind.
func (c *Classifier) Decide(raw normalize.Fields, transcript string) (normalize.Fields, models.Kind) {
	kind := c.Classify(raw, transcript)
	out := raw.Clone()
	out[normalize.FieldKind] = string(kind)
	return out, kind
}

// Validate builds a record of the given kind from normalized fields and reports
// every invariant it violates. The record carries no owner or tenant; callers
// inject them from the authenticated context.
func (c *Classifier) Validate(fields normalize.Fields, kind models.Kind, now time.Time) (models.Record, Report) {
	var report Report

	record := models.Record{
		Kind:        kind,
		Amount:      normalize.ParseAmount(fields[normalize.FieldAmount]),
		Currency:    strings.ToUpper(fields.String(normalize.FieldCurrency)),
		RecordedAt:  now,
		Bank:        available(fields, normalize.FieldBank),
		Status:      available(fields, normalize.FieldStatus),
		Description: available(fields, normalize.FieldDescription),
	}

	if !record.Amount.IsPositive() {
		report.addError(normalize.FieldAmount, "amount must be greater than zero")
	}

	if record.Currency == "" {
		record.Currency = c.policy.DefaultCurrency
	}
	if _, ok := models.SupportedCurrencies[record.Currency]; !ok {
		report.addError(normalize.FieldCurrency, "unsupported currency %q", record.Currency)
	}

	dateField := normalize.DateFieldFor(kind)
	occurredOn := fields.String(dateField)
	if parsed, err := time.Parse(models.DateLayout, occurredOn); err == nil && normalize.IsStrictDate(occurredOn) {
		record.OccurredOn = parsed
	} else {
		report.addError(dateField, "date %q is not a valid YYYY-MM-DD date", occurredOn)
	}

	record.PaymentMethod = canonicalOrEmpty(fields, normalize.FieldPaymentMethod, normalize.IsCanonicalPaymentMethod, &report)
	record.PaymentTerms = canonicalOrEmpty(fields, normalize.FieldPaymentTerms, normalize.IsCanonicalPaymentTerms, &report)

	switch kind {
	case models.KindExpense:
		c.validateExpense(fields, &record, &report, now)
	case models.KindIncome:
		validateIncome(fields, &record, &report)
	default:
		report.addError(normalize.FieldKind, "kind %q is neither expense nor income", kind)
	}

	report.Valid = len(report.Errors) == 0
	return record, report
}

func (c *Classifier) validateExpense(fields normalize.Fields, record *models.Record, report *Report, now time.Time) {
	record.Counterparty = available(fields, normalize.FieldCounterparty)
	if record.Counterparty == "" {
		if c.policy.RequireCounterparty {
			report.addError(normalize.FieldCounterparty, "counterparty is required for expenses")
		} else {
			report.addWarning(normalize.FieldCounterparty, "counterparty is missing")
		}
	}

	record.DocumentType = canonicalOrEmpty(fields, normalize.FieldDocumentType, normalize.IsCanonicalDocumentType, report)

	record.DocumentRef = available(fields, normalize.FieldInvoiceNumber)
	if record.DocumentRef == "" {
		record.DocumentRef = SynthesizeDocumentRef(now)
		report.addWarning(normalize.FieldInvoiceNumber, "document reference synthesized as %s", record.DocumentRef)
	}
}

// validateIncome drops expense-only fields. A document reference is kept when
// given so issued invoices stay traceable, but it is never synthesized.
func validateIncome(fields normalize.Fields, record *models.Record, report *Report) {
	for _, key := range []string{normalize.FieldCounterparty, normalize.FieldDocumentType} {
		if available(fields, key) != "" {
			report.addWarning(key, "ignored for income records")
		}
	}
	record.DocumentRef = available(fields, normalize.FieldInvoiceNumber)
}

// SynthesizeDocumentRef returns the placeholder reference for an expense without one.
func SynthesizeDocumentRef(now time.Time) string {
	return DocumentRefPrefix + now.Format(documentRefLayout)
}

func available(fields normalize.Fields, key string) string {
	if !fields.Available(key) {
		return ""
	}
	return fields.String(key)
}

func canonicalOrEmpty(fields normalize.Fields, key string, canonical func(string) bool, report *Report) string {
	value := available(fields, key)
	if value == "" {
		return ""
	}
	if !canonical(value) {
		report.addWarning(key, "unrecognized value %q dropped", value)
		return ""
	}
	return value
}
