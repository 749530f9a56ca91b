// Package txparams builds the unsigned deposit transfer for a firm route, one
// shape per chain family.
package txparams

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gagliardetto/solana-go"

	"github.com/ggonzalez94/swap-router/internal/amount"
	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
)

const (
	EVMGasLimitNativeTransfer = 21_000
	EVMGasLimitERC20Transfer  = 65_000
)

// Deposit describes funds moving from the caller to a venue deposit address.
type Deposit struct {
	Chain id.Chain
	// TokenAddress is empty for the chain's native asset.
	TokenAddress   string
	TokenDecimals  int
	From           string
	DepositAddress string
	Amount         string
	// GasPrice is optional and only used on EVM chains.
	GasPrice string
}

func (d Deposit) IsToken() bool {
	return strings.TrimSpace(d.TokenAddress) != ""
}

// Build returns the transaction parameters for d's chain family.
func Build(d Deposit) (model.TransactionParams, error) {
	if strings.TrimSpace(d.DepositAddress) == "" {
		return nil, clierr.New(clierr.CodeProvider, "deposit address is required to build transaction params")
	}
	value := amount.Parse(d.Amount)
	if !value.Defined() || value.Lt(amount.Zero()) {
		return nil, clierr.New(clierr.CodeProvider, fmt.Sprintf("invalid deposit amount %q", d.Amount))
	}

	switch d.Chain.Family {
	case id.FamilyEVM:
		return buildEVM(d, value)
	case id.FamilySolana:
		return buildSolana(d, value)
	case id.FamilyBitcoin:
		if _, err := btcutil.DecodeAddress(d.DepositAddress, &chaincfg.MainNetParams); err != nil {
			return nil, clierr.Wrap(clierr.CodeProvider, "invalid bitcoin deposit address", err)
		}
		return model.BitcoinTransactionParams{Chain: d.Chain.Slug, To: d.DepositAddress, Value: value.String(), RefundTo: d.From}, nil
	case id.FamilyCardano:
		return model.CardanoTransactionParams{Chain: d.Chain.Slug, To: d.DepositAddress, Value: value.String(), RefundTo: d.From}, nil
	case id.FamilyZcash:
		return model.ZcashTransactionParams{Chain: d.Chain.Slug, To: d.DepositAddress, Value: value.String(), RefundTo: d.From}, nil
	default:
		return nil, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("no transaction format for chain %s", d.Chain.Slug))
	}
}

func buildEVM(d Deposit, value amount.Amount) (model.TransactionParams, error) {
	if !id.IsEVMAddress(d.DepositAddress) {
		return nil, clierr.New(clierr.CodeProvider, fmt.Sprintf("invalid EVM deposit address %q", d.DepositAddress))
	}
	params := model.EVMTransactionParams{
		Chain:    d.Chain.Slug,
		From:     d.From,
		GasPrice: d.GasPrice,
	}
	if d.IsToken() {
		params.To = d.TokenAddress
		params.Value = "0"
		params.Data = EncodeERC20Transfer(d.DepositAddress, value.String())
		params.GasLimit = fmt.Sprintf("%d", EVMGasLimitERC20Transfer)
		return params, nil
	}
	params.To = d.DepositAddress
	params.Value = value.String()
	params.Data = "0x"
	params.GasLimit = fmt.Sprintf("%d", EVMGasLimitNativeTransfer)
	return params, nil
}

func buildSolana(d Deposit, value amount.Amount) (model.TransactionParams, error) {
	if _, err := solana.PublicKeyFromBase58(d.DepositAddress); err != nil {
		return nil, clierr.Wrap(clierr.CodeProvider, "invalid solana deposit address", err)
	}
	params := model.SolanaTransactionParams{
		Chain: d.Chain.Slug,
		From:  d.From,
		To:    d.DepositAddress,
	}
	if d.IsToken() {
		decimals := d.TokenDecimals
		params.Value = "0"
		params.SPLTokenMint = d.TokenAddress
		params.SPLTokenAmount = value.String()
		params.Decimals = &decimals
		return params, nil
	}
	params.Value = value.String()
	return params, nil
}
