package utils

import (
	"math"
	"testing"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		input    float64
		places   int32
		expected string
	}{
		{0, 2, "0.00"},
		{10.450583, 4, "10.4506"},
		{999.995, 2, "1,000.00"},
		{1234.5, 2, "1,234.50"},
		{1234567.891, 2, "1,234,567.89"},
		{-98765.4, 1, "-98,765.4"},
		{42, 0, "42"},
		{math.NaN(), 2, "NaN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatPrice(tt.input, tt.places)
			if result != tt.expected {
				t.Errorf("FormatPrice(%v, %d) = %s, want %s", tt.input, tt.places, result, tt.expected)
			}
		})
	}
}

func TestFormatPct(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{2.45, "+2.45%"},
		{-1.23, "-1.23%"},
		{0, "+0.00%"},
		{100, "+100.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatPct(tt.input)
			if result != tt.expected {
				t.Errorf("FormatPct(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatRate(t *testing.T) {
	if got := FormatRate(0.4123); got != "41.23%" {
		t.Errorf("FormatRate(0.4123) = %s", got)
	}
	if got := FormatRate(0.05); got != "5.00%" {
		t.Errorf("FormatRate(0.05) = %s", got)
	}
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{500, "500"},
		{1500, "1.50K"},
		{2500000, "2.50M"},
		{15000000000, "15.00B"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatVolume(tt.input)
			if result != tt.expected {
				t.Errorf("FormatVolume(%d) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}
