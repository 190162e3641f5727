// Package normalize turns loosely typed extracted fields into canonical values.
//
// Normalization is total and idempotent: it never fails, and running it on an
// already normalized record returns the same record.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
)

// Field names used by the extraction collaborator and the structured API.
const (
	FieldKind          = "tipo"
	FieldAmount        = "importo"
	FieldCurrency      = "valuta"
	FieldInvoiceNumber = "numero_fattura"
	FieldInvoiceDate   = "data_fattura"
	FieldIncomeDate    = "data_entrata"
	FieldCreatedOn     = "data_creazione"
	FieldDueDate       = "scadenza"
	FieldCounterparty  = "azienda"
	FieldPaymentTerms  = "tipo_pagamento"
	FieldPaymentMethod = "metodo_pagamento"
	FieldBank          = "banca"
	FieldDocumentType  = "tipo_documento"
	FieldStatus        = "stato"
	FieldDescription   = "descrizione"
)

// DateFields lists every date-bearing field.
var DateFields = []string{FieldInvoiceDate, FieldIncomeDate, FieldCreatedOn, FieldDueDate}

var textFields = []string{FieldInvoiceNumber, FieldCounterparty, FieldBank, FieldStatus, FieldDescription}

// Today is the relative keyword used as the default for the record date.
const Today = "today"

// Fields is a raw record of extracted or submitted values keyed by field name.
type Fields map[string]any

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the value for key as trimmed text. Absent and nil values are "".
func (f Fields) String(key string) string {
	return strings.TrimSpace(asString(f[key]))
}

// Has reports whether key holds a non-empty value.
func (f Fields) Has(key string) bool {
	return f.String(key) != ""
}

// Available reports whether key holds a value other than the "not available" sentinel.
func (f Fields) Available(key string) bool {
	s := f.String(key)
	return s != "" && !strings.EqualFold(s, models.NotAvailable)
}

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// DateFieldFor returns the record date field for a kind. Unknown kinds use
// the expense date field.
func DateFieldFor(kind models.Kind) string {
	if kind == models.KindIncome {
		return FieldIncomeDate
	}
	return FieldInvoiceDate
}

// Normalizer applies the canonicalization tables and the date resolver to raw fields.
type Normalizer struct {
	policy Policy
	dates  DateResolver
}

// New creates a Normalizer for the given policy.
func New(policy Policy) *Normalizer {
	policy = policy.WithDefaults()
	return &Normalizer{
		policy: policy,
		dates:  NewDateResolver(policy.Matcher()),
	}
}

// Policy returns the policy in effect.
func (n *Normalizer) Policy() Policy {
	return n.policy
}

// Normalize returns a canonicalized copy of raw, resolving dates against now.
func (n *Normalizer) Normalize(raw Fields, now time.Time) Fields {
	out := raw.Clone()

	for _, key := range textFields {
		if s, ok := out[key].(string); ok {
			out[key] = strings.TrimSpace(s)
		}
	}

	if v, ok := out[FieldKind]; ok && v != nil {
		s := strings.TrimSpace(asString(v))
		if kind, ok := ParseKind(s); ok {
			out[FieldKind] = string(kind)
		} else {
			out[FieldKind] = s
		}
	}

	canonicalizeField(out, FieldPaymentMethod, NormalizePaymentMethod)
	canonicalizeField(out, FieldDocumentType, NormalizeDocumentType)
	canonicalizeField(out, FieldPaymentTerms, NormalizePaymentTerms)
	repairPaymentFields(out)

	if currency := out.String(FieldCurrency); currency == "" {
		out[FieldCurrency] = n.policy.DefaultCurrency
	} else {
		out[FieldCurrency] = NormalizeCurrency(currency)
	}

	kind, _ := ParseKind(out.String(FieldKind))
	primary := DateFieldFor(kind)
	if !out.Has(primary) {
		out[primary] = Today
	}
	for _, key := range DateFields {
		if !out.Has(key) {
			continue
		}
		out[key] = n.normalizeDate(out.String(key), now)
	}

	out[FieldAmount] = ParseAmount(out[FieldAmount]).String()

	return out
}

func (n *Normalizer) normalizeDate(value string, now time.Time) string {
	if strings.EqualFold(value, models.NotAvailable) {
		return models.NotAvailable
	}
	resolved := n.dates.Resolve(value, now)
	if IsStrictDate(resolved) {
		return resolved
	}
	if n.policy.DateFallback == DateFallbackStrict {
		return value
	}
	return now.Format(models.DateLayout)
}

func canonicalizeField(f Fields, key string, canonical func(string) string) {
	v, ok := f[key]
	if !ok || v == nil {
		return
	}
	s := asString(v)
	if strings.TrimSpace(s) == "" {
		f[key] = ""
		return
	}
	f[key] = canonical(s)
}

// repairPaymentFields moves a payment method that the extractor put in the
// payment terms field into the payment method field.
func repairPaymentFields(f Fields) {
	terms := f.String(FieldPaymentTerms)
	if terms == "" || IsPaymentTerms(terms) || !IsPaymentMethod(terms) {
		return
	}
	if !f.Available(FieldPaymentMethod) {
		f[FieldPaymentMethod] = NormalizePaymentMethod(terms)
	}
	f[FieldPaymentTerms] = ""
}
