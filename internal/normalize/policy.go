package normalize

import "gitlab.com/yelinaung/cashflow-ledger/internal/models"

// DateFallback selects what happens to a date that cannot be resolved.
type DateFallback string

// Date fallback policies.
const (
	// DateFallbackLenient silently replaces an unresolvable date with the anchor date.
	DateFallbackLenient DateFallback = "lenient"
	// DateFallbackStrict keeps the unresolved token so validation reports it.
	DateFallbackStrict DateFallback = "strict"
)

// KeywordMatch selects how relative-day and category keywords are found in text.
type KeywordMatch string

// Keyword matching policies.
const (
	// KeywordMatchWord matches whole tokens and token sequences.
	KeywordMatchWord KeywordMatch = "word"
	// KeywordMatchSubstring matches anywhere in the text, so "todays" matches "today".
	KeywordMatchSubstring KeywordMatch = "substring"
)

// DefaultPolicyVersion identifies the default engine policy.
const DefaultPolicyVersion = "2024-06"

// DefaultExtractionRetries is the number of retries after the first extraction attempt.
const DefaultExtractionRetries = 2

// Policy is the versioned configuration shared by the normalizer, the classifier
// and the extraction orchestrator.
type Policy struct {
	Version             string
	DateFallback        DateFallback
	KeywordMatch        KeywordMatch
	ExtractionRetries   int
	DefaultCurrency     string
	RequireCounterparty bool
}

// DefaultPolicy returns the lenient policy with word-boundary keyword matching.
func DefaultPolicy() Policy {
	return Policy{
		Version:           DefaultPolicyVersion,
		DateFallback:      DateFallbackLenient,
		KeywordMatch:      KeywordMatchWord,
		ExtractionRetries: DefaultExtractionRetries,
		DefaultCurrency:   models.DefaultCurrency,
	}
}

// WithDefaults fills zero-valued settings from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	def := DefaultPolicy()
	if p.Version == "" {
		p.Version = def.Version
	}
	if p.DateFallback != DateFallbackStrict {
		p.DateFallback = DateFallbackLenient
	}
	if p.KeywordMatch != KeywordMatchSubstring {
		p.KeywordMatch = KeywordMatchWord
	}
	if p.ExtractionRetries < 0 {
		p.ExtractionRetries = 0
	}
	if p.DefaultCurrency == "" {
		p.DefaultCurrency = def.DefaultCurrency
	}
	return p
}

// Matcher returns the keyword matcher selected by the policy.
func (p Policy) Matcher() Matcher {
	return Matcher{mode: p.KeywordMatch}
}
