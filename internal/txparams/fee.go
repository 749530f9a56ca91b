package txparams

import (
	"context"

	"github.com/ggonzalez94/swap-router/internal/amount"
	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
	"github.com/ggonzalez94/swap-router/internal/providers"
)

const (
	SolanaBaseFeeLamports = 5_000
	// Compute unit price is expressed in micro-lamports.
	SolanaComputeUnitPriceMicroLamports = 1
	SolanaComputeUnitLimit              = 200_000
)

// DepositFee estimates the network fee of funding a deposit. It returns nil
// when the family has no estimate or the oracle has no gas price.
func DepositFee(ctx context.Context, oracle providers.GasPriceOracle, chain id.Chain, isToken bool) (*model.NetworkFee, error) {
	var fee amount.Amount
	switch chain.Family {
	case id.FamilyEVM:
		if oracle == nil {
			return nil, nil
		}
		price, err := oracle.EVMGasPrice(ctx, chain)
		if err != nil {
			return nil, err
		}
		limit := amount.FromInt64(EVMGasLimitNativeTransfer)
		if isToken {
			limit = amount.FromInt64(EVMGasLimitERC20Transfer)
		}
		fee = limit.Mul(amount.FromBig(price))
	case id.FamilySolana:
		priority := amount.FromInt64(SolanaComputeUnitPriceMicroLamports * SolanaComputeUnitLimit).Div(amount.FromInt64(1_000_000))
		fee = amount.FromInt64(SolanaBaseFeeLamports).Add(priority)
	default:
		return nil, nil
	}
	if !fee.Defined() {
		return nil, nil
	}
	return &model.NetworkFee{
		Amount:   fee.String(),
		Decimals: chain.NativeDecimals,
		Symbol:   chain.NativeSymbol,
	}, nil
}
