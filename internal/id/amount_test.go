package id

import "testing"

func TestNormalizeAmountBaseUnits(t *testing.T) {
	base, dec, err := NormalizeAmount("1000000", "", 6)
	if err != nil {
		t.Fatalf("NormalizeAmount failed: %v", err)
	}
	if base != "1000000" || dec != "1" {
		t.Fatalf("unexpected result: base=%s dec=%s", base, dec)
	}
}

func TestNormalizeAmountDecimal(t *testing.T) {
	base, dec, err := NormalizeAmount("", "1.25", 6)
	if err != nil {
		t.Fatalf("NormalizeAmount failed: %v", err)
	}
	if base != "1250000" || dec != "1.25" {
		t.Fatalf("unexpected result: base=%s dec=%s", base, dec)
	}
}

func TestNormalizeAmountValidation(t *testing.T) {
	if _, _, err := NormalizeAmount("10", "1", 6); err == nil {
		t.Fatal("expected mutual exclusivity error")
	}
	if _, _, err := NormalizeAmount("", "1.1234567", 6); err == nil {
		t.Fatal("expected precision error")
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		base     string
		decimals int
		want     string
	}{
		{"0", 6, "0"},
		{"2037265", 6, "2.037265"},
		{"711", 8, "0.00000711"},
		{"1000000000", 9, "1"},
		{"abc", 6, ""},
	}
	for _, tc := range cases {
		if got := FormatUnits(tc.base, tc.decimals); got != tc.want {
			t.Fatalf("FormatUnits(%s, %d) = %q, want %q", tc.base, tc.decimals, got, tc.want)
		}
	}
}

func TestNormalizeAmountRejectsZero(t *testing.T) {
	if _, _, err := NormalizeAmount("0", "", 6); err == nil {
		t.Fatal("expected zero base amount error")
	}
	if _, _, err := NormalizeAmount("", "0.000", 6); err == nil {
		t.Fatal("expected zero decimal amount error")
	}
}

func TestNormalizeAmountTrailingZerosWithinPrecision(t *testing.T) {
	base, dec, err := NormalizeAmount("", "1.1000000", 6)
	if err != nil {
		t.Fatalf("NormalizeAmount failed: %v", err)
	}
	if base != "1100000" || dec != "1.1" {
		t.Fatalf("unexpected result: base=%s dec=%s", base, dec)
	}
}
