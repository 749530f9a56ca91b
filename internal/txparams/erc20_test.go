package txparams

import (
	"strings"
	"testing"
)

func TestEncodeERC20TransferValid(t *testing.T) {
	amounts := []string{"1000000", "1", "1000000000000000000000000", "0"}
	for _, amount := range amounts {
		got := EncodeERC20Transfer("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", amount)
		if len(got) != 138 || !strings.HasPrefix(got, "0xa9059cbb") {
			t.Fatalf("unexpected calldata for %s: %s", amount, got)
		}
	}
	got := EncodeERC20Transfer("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", "1000000")
	if !strings.HasSuffix(got, "00000000000000000000000000000000000000000000000000000000000f4240") {
		t.Fatalf("amount word not encoded: %s", got)
	}
	if !strings.Contains(got, "000000000000000000000000742d35cc6634c0532925a3b844bc9e7595f0beb0") {
		t.Fatalf("recipient word not encoded: %s", got)
	}
}

func TestEncodeERC20TransferCaseInsensitive(t *testing.T) {
	upper := EncodeERC20Transfer("0x742D35CC6634C0532925A3B844BC9E7595F0BEB0", "1000000")
	lower := EncodeERC20Transfer("0x742d35cc6634c0532925a3b844bc9e7595f0beb0", "1000000")
	if upper != lower {
		t.Fatalf("encoding depends on address case: %s vs %s", upper, lower)
	}
}

func TestEncodeERC20TransferMalformed(t *testing.T) {
	addrs := []string{
		"0x1234",
		"1234",
		"742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
		"0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb00",
		"0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb",
		"",
	}
	for _, addr := range addrs {
		if got := EncodeERC20Transfer(addr, "1000000"); got != "0x" {
			t.Fatalf("expected empty calldata for %q, got %s", addr, got)
		}
	}
	for _, amount := range []string{"not_a_number", "", "-1"} {
		if got := EncodeERC20Transfer("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", amount); got != "0x" {
			t.Fatalf("expected empty calldata for amount %q, got %s", amount, got)
		}
	}
}
