package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"dot thousands comma decimal", "5.000,50", "5000.5"},
		{"comma thousands dot decimal", "5,000.50", "5000.5"},
		{"plain dot decimal", "5000.50", "5000.5"},
		{"digits with garbage", "abc5000xyz", "5000"},
		{"lone comma decimal", "5000,50", "5000.5"},
		{"currency prefix", "$ 1.234.567,89", "1234567.89"},
		{"multiple thousands dots", "1.234.567", "1234567"},
		{"bare integer", "42", "42"},
		{"leading whitespace", "  99,90 ", "99.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			require.NoError(t, err)

			want, err := decimal.NewFromString(tt.want)
			require.NoError(t, err)
			assert.True(t, got.Equal(want), "got %s, want %s", got, want)
		})
	}
}

func TestParseAmountUnparsable(t *testing.T) {
	for _, input := range []string{"", "   ", "sin monto", ",", "."} {
		_, err := ParseAmount(input)
		assert.ErrorIs(t, err, ErrUnparsableAmount, "input %q", input)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.005", "1.01"}, // half rounds up
		{"1.004", "1"},
		{"2.675", "2.68"},
		{"1000", "1000"},
		{"0.125", "0.13"},
	}

	for _, tt := range tests {
		in := decimal.RequireFromString(tt.input)
		want := decimal.RequireFromString(tt.want)
		assert.True(t, Round2(in).Equal(want), "Round2(%s) = %s, want %s", tt.input, Round2(in), want)
	}
}
