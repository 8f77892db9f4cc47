package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// ComputedPrecision is the number of significant digits kept for
	// commission and converted amounts.
	ComputedPrecision int32 = 5
	// Scale is the number of decimal places stored for balances and values.
	Scale int32 = 5
)

// RoundSignificant rounds d half-to-even to the given number of significant digits.
func RoundSignificant(d decimal.Decimal, digits int32) decimal.Decimal {
	if d.IsZero() || digits <= 0 {
		return d
	}
	// position of the most significant digit relative to the decimal point
	adjusted := int32(d.NumDigits()) + d.Exponent() - 1
	return d.RoundBank(digits - 1 - adjusted)
}

// Quantize brings d to the storage scale.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(Scale)
}

// ComputeAmount returns base*factor rounded the way commission and conversion
// amounts are: five significant digits, then the storage scale.
func ComputeAmount(base, factor decimal.Decimal) decimal.Decimal {
	return Quantize(RoundSignificant(base.Mul(factor), ComputedPrecision))
}

// ValidateValue checks a requested transfer value against the minimum and the
// storage scale.
func ValidateValue(value, minValue decimal.Decimal) error {
	if !value.IsPositive() {
		return fmt.Errorf("%w: value must be positive, got %s", ErrInvalidValue, value.String())
	}
	if value.LessThan(minValue) {
		return fmt.Errorf("%w: value %s is less than minimum %s", ErrInvalidValue, value.String(), minValue.String())
	}
	if !value.Equal(value.Truncate(Scale)) {
		return fmt.Errorf("%w: value %s has more than %d decimal places", ErrInvalidValue, value.String(), Scale)
	}
	return nil
}
