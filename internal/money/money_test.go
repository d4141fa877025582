package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRound2HalfAwayFromZero(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "1.005", want: "1.01"},
		{in: "1.004", want: "1"},
		{in: "-1.005", want: "-1.01"},
		{in: "2.675", want: "2.68"},
		{in: "10", want: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Round2(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestLine(t *testing.T) {
	assert.Equal(t, "254.85", Line(3, decimal.RequireFromString("84.95")).String())
	assert.Equal(t, "0", Line(4, decimal.Zero).String())
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, "47.5", PercentOf(decimal.RequireFromString("475"), decimal.NewFromInt(10)).String())
	assert.Equal(t, "2.47", PercentOf(decimal.RequireFromString("16.45"), decimal.NewFromInt(15)).String())
}

func TestNonNegative(t *testing.T) {
	assert.True(t, NonNegative(decimal.NewFromInt(-3)).IsZero())
	assert.Equal(t, "3", NonNegative(decimal.NewFromInt(3)).String())
}
