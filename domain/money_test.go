package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"currency-ledger/domain"
)

func TestRoundSignificant(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0.05", "0.05"},
		{"123.456789", "123.46"},
		{"65", "65"},
		{"1234567", "1234600"},
		{"0.000123456", "0.00012346"},
		// half-even
		{"1.234450", "1.2344"},
		{"1.234550", "1.2346"},
		{"0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := domain.RoundSignificant(dec(tt.in), domain.ComputedPrecision)
			assert.True(t, got.Equal(dec(tt.want)), "RoundSignificant(%s) = %s, want %s", tt.in, got, tt.want)
		})
	}
}

func TestComputeAmount(t *testing.T) {
	tests := []struct {
		name         string
		base, factor string
		want         string
	}{
		{"Commission", "1", "0.05", "0.05"},
		{"CommissionOfTen", "10", "0.05", "0.5"},
		{"CommissionRoundsToScale", "0.00001", "0.05", "0"},
		{"Conversion", "1", "65", "65"},
		{"ConversionInverse", "65", "0.0153846153846154", "1"},
		{"ConversionLarge", "123456", "0.8666666666666667", "107000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.ComputeAmount(dec(tt.base), dec(tt.factor))
			assert.True(t, got.Equal(dec(tt.want)), "ComputeAmount(%s, %s) = %s, want %s", tt.base, tt.factor, got, tt.want)
		})
	}
}

func TestValidateValue(t *testing.T) {
	minValue := dec("0.00001")

	assert.NoError(t, domain.ValidateValue(dec("0.00001"), minValue))
	assert.NoError(t, domain.ValidateValue(dec("100.5"), minValue))

	for _, raw := range []string{"0", "-1", "0.000001", "1.000001"} {
		t.Run(raw, func(t *testing.T) {
			assert.ErrorIs(t, domain.ValidateValue(dec(raw), minValue), domain.ErrInvalidValue)
		})
	}

	assert.ErrorIs(t, domain.ValidateValue(dec("0.5"), dec("1")), domain.ErrInvalidValue)
}
