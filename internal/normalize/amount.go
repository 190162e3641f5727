package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmountExponent bounds exponent-form amounts; anything wider is not money.
const maxAmountExponent = 32

// ParseAmount extracts a non-negative decimal from a loosely typed value.
// "12,50 euro" yields 12.50, "-7" yields 7 and anything unparseable yields zero.
func ParseAmount(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val.Abs()
	case float64:
		return fromFloat(val)
	case float32:
		return fromFloat(float64(val))
	case int:
		return decimal.NewFromInt(int64(val)).Abs()
	case int64:
		return decimal.NewFromInt(val).Abs()
	case int32:
		return decimal.NewFromInt(int64(val)).Abs()
	case json.Number:
		// Exact JSON numbers may use exponent form, which the loose parser would mangle.
		if d, err := decimal.NewFromString(val.String()); err == nil {
			if d.Exponent() < -maxAmountExponent || d.Exponent() > maxAmountExponent {
				return decimal.Zero
			}
			return d.Abs()
		}
		return parseAmountString(val.String())
	case string:
		return parseAmountString(val)
	default:
		return parseAmountString(fmt.Sprint(val))
	}
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f).Abs()
}

func parseAmountString(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := unifySeparators(b.String())
	if cleaned == "" {
		return decimal.Zero
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return amount.Abs()
}

// unifySeparators converts the decimal comma to a dot. When both separators
// appear ("1.234,56" or "1,234.56") the last one is the decimal separator and
// the other is dropped as a thousands separator.
func unifySeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		return strings.ReplaceAll(s, ",", ".")
	case lastComma >= 0 && lastDot >= 0:
		return strings.ReplaceAll(s, ",", "")
	default:
		return strings.ReplaceAll(s, ",", ".")
	}
}
