package domain

import (
	"math/big"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	wei := func(s string) *big.Int {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			t.Fatalf("bad literal %q", s)
		}
		return n
	}

	tests := []struct {
		amount   *big.Int
		decimals uint8
		want     string
	}{
		{wei("1000000000000000000"), 18, "1"},
		{wei("1500000000000000000"), 18, "1.5"},
		{wei("1"), 18, "0.000000000000000001"},
		{wei("0"), 18, "0"},
		{nil, 18, "0"},
		{wei("-2500000000000000000"), 18, "-2.5"},
		{wei("12345"), 0, "12345"},
		{wei("123456789"), 8, "1.23456789"},
	}

	for _, tt := range tests {
		if got := FormatUnits(tt.amount, tt.decimals); got != tt.want {
			t.Errorf("FormatUnits(%v, %d) = %q, want %q", tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"1.5", 18, "1500000000000000000"},
		{"0.000000000000000001", 18, "1"},
		{"-2.5", 18, "-2500000000000000000"},
		{"100", 0, "100"},
		{".5", 2, "50"},
	}

	for _, tt := range tests {
		got, err := ParseUnits(tt.in, tt.decimals)
		if err != nil {
			t.Errorf("ParseUnits(%q, %d): %v", tt.in, tt.decimals, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseUnits(%q, %d) = %s, want %s", tt.in, tt.decimals, got, tt.want)
		}
	}
}

func TestParseUnits_Invalid(t *testing.T) {
	for _, in := range []string{"", ".", "abc", "1.234"} {
		if _, err := ParseUnits(in, 2); err == nil {
			t.Errorf("ParseUnits(%q) must fail", in)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	amount, _ := new(big.Int).SetString("123456789000000000000", 10)
	s := FormatUnits(amount, 18)
	back, err := ParseUnits(s, 18)
	if err != nil {
		t.Fatalf("ParseUnits(%q): %v", s, err)
	}
	if back.Cmp(amount) != 0 {
		t.Errorf("round trip %s -> %q -> %s", amount, s, back)
	}
}
