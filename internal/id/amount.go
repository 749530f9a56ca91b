package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
)

var (
	baseUnitsPattern = regexp.MustCompile(`^[0-9]+$`)
	decimalPattern   = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// NormalizeAmount accepts exactly one of a base-unit integer or a decimal
// amount and returns both forms. Swap amounts must be positive.
func NormalizeAmount(baseUnits, decimalAmount string, decimals int) (string, string, error) {
	baseUnits = strings.TrimSpace(baseUnits)
	decimalAmount = strings.TrimSpace(decimalAmount)
	switch {
	case baseUnits != "" && decimalAmount != "":
		return "", "", clierr.New(clierr.CodeUsage, "use either --amount or --amount-decimal, not both")
	case baseUnits == "" && decimalAmount == "":
		return "", "", clierr.New(clierr.CodeUsage, "amount is required")
	case decimals < 0:
		return "", "", clierr.New(clierr.CodeUsage, "decimals must be >= 0")
	}

	if baseUnits != "" {
		if !baseUnitsPattern.MatchString(baseUnits) {
			return "", "", clierr.New(clierr.CodeUsage, "--amount must be a positive integer string")
		}
		n, _ := new(big.Int).SetString(baseUnits, 10)
		if n.Sign() == 0 {
			return "", "", clierr.New(clierr.CodeUsage, "--amount must be greater than zero")
		}
		return n.String(), FormatUnits(n.String(), decimals), nil
	}

	if !decimalPattern.MatchString(decimalAmount) {
		return "", "", clierr.New(clierr.CodeUsage, "--amount-decimal must be in decimal form like 1.23")
	}
	d, err := decimal.NewFromString(decimalAmount)
	if err != nil {
		return "", "", clierr.Wrap(clierr.CodeUsage, "invalid decimal amount", err)
	}
	if -d.Exponent() > int32(decimals) && !d.Equal(d.Truncate(int32(decimals))) {
		return "", "", clierr.New(clierr.CodeUsage, fmt.Sprintf("decimal precision exceeds token decimals (%d)", decimals))
	}
	base := d.Shift(int32(decimals))
	if !base.IsPositive() {
		return "", "", clierr.New(clierr.CodeUsage, "--amount-decimal must be greater than zero")
	}
	return base.BigInt().String(), d.String(), nil
}

// FormatUnits renders a base-unit integer string with the given decimals.
// Unparseable input yields an empty string.
func FormatUnits(baseUnits string, decimals int) string {
	n, ok := new(big.Int).SetString(strings.TrimSpace(baseUnits), 10)
	if !ok || decimals < 0 {
		return ""
	}
	return decimal.NewFromBigInt(n, -int32(decimals)).String()
}
