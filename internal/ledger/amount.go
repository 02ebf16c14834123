package ledger

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a loosely typed numeric value into a decimal.
// Anything that cannot be read as a finite number yields zero.
func ParseAmount(v any) decimal.Decimal {
	switch n := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return n
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero
		}
		return *n
	case decimal.NullDecimal:
		if !n.Valid {
			return decimal.Zero
		}
		return n.Decimal
	case string:
		return parseString(n)
	case *string:
		if n == nil {
			return decimal.Zero
		}
		return parseString(*n)
	case json.Number:
		return parseString(n.String())
	case float64:
		return fromFloat(n)
	case *float64:
		if n == nil {
			return decimal.Zero
		}
		return fromFloat(*n)
	case float32:
		return fromFloat(float64(n))
	case int:
		return decimal.NewFromInt(int64(n))
	case int32:
		return decimal.NewFromInt32(n)
	case int64:
		return decimal.NewFromInt(n)
	default:
		return decimal.Zero
	}
}

func parseString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// decimal.NewFromFloat panics on NaN and infinities.
func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// LegacyPaidAmount reads the deprecated "paidAmount" field out of an
// invoice's free-form metadata payload. Malformed payloads count as zero.
func LegacyPaidAmount(metadata []byte) decimal.Decimal {
	if len(metadata) == 0 {
		return decimal.Zero
	}
	dec := json.NewDecoder(strings.NewReader(string(metadata)))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return decimal.Zero
	}
	for _, key := range legacyPaidKeys {
		if v, ok := payload[key]; ok {
			return ParseAmount(v)
		}
	}
	return decimal.Zero
}

var legacyPaidKeys = []string{"paidAmount", "paid_amount"}
