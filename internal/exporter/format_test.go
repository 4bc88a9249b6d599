package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{
			name:     "zero value",
			input:    0.0,
			expected: "0.00",
		},
		{
			name:     "integer value gains decimals",
			input:    123.0,
			expected: "123.00",
		},
		{
			name:     "one decimal place padded",
			input:    13.4,
			expected: "13.40",
		},
		{
			name:     "two decimal places kept",
			input:    1.12,
			expected: "1.12",
		},
		{
			name:     "negative value",
			input:    -0.5,
			expected: "-0.50",
		},
		{
			name:     "extra precision truncated by rounding",
			input:    2.499,
			expected: "2.50",
		},
		{
			name:     "large value",
			input:    1234567.891,
			expected: "1234567.89",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFloat(tt.input))
		})
	}
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "0", formatInt(0))
	assert.Equal(t, "42", formatInt(42))
	assert.Equal(t, "-7", formatInt(-7))
	assert.Equal(t, "9223372036854775807", formatInt(9223372036854775807))
}
