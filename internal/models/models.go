// Package models defines the domain entities for the cash-flow ledger.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the domestic currency assumed when none is given.
const DefaultCurrency = "EUR"

// DateLayout is the strict calendar date format used across the ledger.
const DateLayout = "2006-01-02"

// SynthesizedRefPrefix starts every placeholder document reference. Placeholders
// identify nothing, so they are exempt from the per-tenant uniqueness rule.
const SynthesizedRefPrefix = "AUTO-"

// IsSynthesizedRef reports whether ref is a placeholder document reference.
func IsSynthesizedRef(ref string) bool {
	return strings.HasPrefix(ref, SynthesizedRefPrefix)
}

// NotAvailable marks a field as intentionally unknown.
const NotAvailable = "not available"

// SupportedCurrencies lists all supported currency codes.
var SupportedCurrencies = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"CHF": "CHF",
	"JPY": "¥",
	"CNY": "¥",
	"SGD": "S$",
	"AUD": "A$",
	"CAD": "C$",
	"SEK": "kr",
	"NOK": "kr",
	"DKK": "kr",
	"PLN": "zł",
	"CZK": "Kč",
	"HUF": "Ft",
	"RON": "lei",
	"INR": "₹",
}

// Kind classifies a record as outgoing or incoming cash.
type Kind string

// Record kinds.
const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// Valid reports whether k is one of the two record kinds.
func (k Kind) Valid() bool {
	return k == KindExpense || k == KindIncome
}

// Record sources.
const (
	SourceAPI        = "api"
	SourceVoice      = "voice"
	SourceTranscript = "transcript"
)

// Record status values.
const (
	RecordStatusConfirmed = "confirmed"
	RecordStatusDraft     = "draft"
)

// Record is a canonical ledger entry, either an expense document or an income event.
type Record struct {
	ID            int64           `json:"id"`
	Kind          Kind            `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	OccurredOn    time.Time       `json:"occurred_on"`
	RecordedAt    time.Time       `json:"recorded_at"`
	Counterparty  string          `json:"counterparty"`
	PaymentMethod string          `json:"payment_method"`
	PaymentTerms  string          `json:"payment_terms"`
	Bank          string          `json:"bank"`
	DocumentRef   string          `json:"document_ref"`
	DocumentType  string          `json:"document_type"`
	Status        string          `json:"status"`
	Description   string          `json:"description"`
	Source        string          `json:"source"`
	OwnerID       string          `json:"owner_id"`
	TenantID      string          `json:"tenant_id"`
}

// OccurredOnString returns the strict date form of OccurredOn, or "" when unset.
func (r *Record) OccurredOnString() string {
	if r.OccurredOn.IsZero() {
		return ""
	}
	return r.OccurredOn.Format(DateLayout)
}

// Company is a tenant: an isolated business boundary for data and permissions.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Scope is the breadth of data a role may see or act upon.
type Scope string

// Scopes, ordered by breadth.
const (
	ScopeNone    Scope = ""
	ScopeOwn     Scope = "own"
	ScopeCompany Scope = "company"
	ScopeGlobal  Scope = "global"
)

// Rank orders scopes own < company < global. Unknown scopes rank zero.
func (s Scope) Rank() int {
	switch s {
	case ScopeOwn:
		return 1
	case ScopeCompany:
		return 2
	case ScopeGlobal:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the three configured scopes.
func (s Scope) Valid() bool {
	return s.Rank() > 0
}

// ParseScope converts a string into a Scope. Empty input yields ScopeNone.
func ParseScope(s string) (Scope, error) {
	scope := Scope(s)
	if scope == ScopeNone || scope.Valid() {
		return scope, nil
	}
	return ScopeNone, fmt.Errorf("unknown scope %q", s)
}

// ResourcePermission holds the actions a role may perform on one resource
// and the scope it may perform them in.
type ResourcePermission struct {
	Actions map[string]bool
	Scope   Scope
}

// Allows reports whether the action is granted.
func (p ResourcePermission) Allows(action string) bool {
	return p.Actions[action]
}

// UnmarshalJSON decodes the stored shape {"create": true, "read": true, "scope": "own"}.
func (p *ResourcePermission) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode resource permission: %w", err)
	}

	p.Actions = make(map[string]bool, len(raw))
	for key, value := range raw {
		if key == "scope" {
			var scope string
			if err := json.Unmarshal(value, &scope); err != nil {
				return fmt.Errorf("failed to decode scope: %w", err)
			}
			parsed, err := ParseScope(scope)
			if err != nil {
				return err
			}
			p.Scope = parsed
			continue
		}
		var allowed bool
		if err := json.Unmarshal(value, &allowed); err != nil {
			return fmt.Errorf("failed to decode action %q: %w", key, err)
		}
		p.Actions[key] = allowed
	}
	return nil
}

// MarshalJSON encodes the permission back into the stored shape.
func (p ResourcePermission) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Actions)+1)
	for action, allowed := range p.Actions {
		out[action] = allowed
	}
	if p.Scope != ScopeNone {
		out["scope"] = string(p.Scope)
	}
	return json.Marshal(out)
}

// RolePermissionSet maps resource names to their permissions.
type RolePermissionSet map[string]ResourcePermission

// Role is a named permission set.
type Role struct {
	ID          int
	Name        string
	Permissions RolePermissionSet
}

// Membership binds an actor to a company with a role.
type Membership struct {
	ActorID   string
	CompanyID string
	Role      Role
	CreatedAt time.Time
}
