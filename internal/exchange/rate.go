// Package exchange looks up currency rates so totals in several currencies
// can be reported in one.
package exchange

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrRateUnavailable is returned when no rate is known for a pair.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	// ErrInvalidCurrency is returned for an empty or malformed currency code.
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// Rate converts one unit of a currency into another.
type Rate struct {
	Value decimal.Decimal
	Date  time.Time
}

// Apply converts amount, rounding to cents.
func (r Rate) Apply(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(r.Value).Round(2)
}

// Identity is the rate between a currency and itself.
var Identity = Rate{Value: decimal.NewFromInt(1)}

// RateSource returns the rate from one currency to another.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (Rate, error)
}

// RateSourceFunc adapts a function to RateSource.
type RateSourceFunc func(ctx context.Context, from, to string) (Rate, error)

// Rate calls f.
func (f RateSourceFunc) Rate(ctx context.Context, from, to string) (Rate, error) {
	return f(ctx, from, to)
}

// pair validates and upper-cases both codes.
func pair(from, to string) (string, string, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if len(from) != 3 || len(to) != 3 {
		return "", "", ErrInvalidCurrency
	}
	return from, to, nil
}
