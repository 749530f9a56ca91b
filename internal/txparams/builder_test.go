package txparams

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
)

func mustChain(t *testing.T, slug string) id.Chain {
	t.Helper()
	chain, err := id.ParseChain(slug)
	if err != nil {
		t.Fatalf("ParseChain(%s): %v", slug, err)
	}
	return chain
}

func TestBuildEVMNative(t *testing.T) {
	params, err := Build(Deposit{
		Chain:          mustChain(t, "ethereum"),
		From:           "0x1111111111111111111111111111111111111111",
		DepositAddress: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
		Amount:         "1000000000000000",
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	evm, ok := params.(model.EVMTransactionParams)
	if !ok {
		t.Fatalf("expected EVM params, got %T", params)
	}
	if evm.To != "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0" || evm.Value != "1000000000000000" || evm.Data != "0x" || evm.GasLimit != "21000" {
		t.Fatalf("unexpected native params %+v", evm)
	}
}

func TestBuildEVMToken(t *testing.T) {
	params, err := Build(Deposit{
		Chain:          mustChain(t, "base"),
		TokenAddress:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		TokenDecimals:  6,
		From:           "0x1111111111111111111111111111111111111111",
		DepositAddress: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
		Amount:         "2057265",
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	evm := params.(model.EVMTransactionParams)
	if evm.To != "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913" || evm.Value != "0" || evm.GasLimit != "65000" {
		t.Fatalf("unexpected token params %+v", evm)
	}
	if evm.Data != EncodeERC20Transfer("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", "2057265") {
		t.Fatalf("unexpected calldata %s", evm.Data)
	}
}

func TestBuildSolanaSPL(t *testing.T) {
	params, err := Build(Deposit{
		Chain:          mustChain(t, "solana"),
		TokenAddress:   "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		TokenDecimals:  6,
		From:           "8eekKfUAGSJbq3CdA2TmHb8tKuyzd5gtEas3MYAtXzrT",
		DepositAddress: "9RdSjLtfFJLvj6CAR4w7H7tUbv2kvwkkrYZuoojKDBkE",
		Amount:         "2057265",
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	sol := params.(model.SolanaTransactionParams)
	if sol.Value != "0" || sol.SPLTokenAmount != "2057265" || sol.SPLTokenMint != "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v" {
		t.Fatalf("unexpected SPL params %+v", sol)
	}
	if sol.Decimals == nil || *sol.Decimals != 6 {
		t.Fatalf("missing decimals %+v", sol)
	}
}

func TestBuildSolanaNative(t *testing.T) {
	params, err := Build(Deposit{
		Chain:          mustChain(t, "solana"),
		From:           "8eekKfUAGSJbq3CdA2TmHb8tKuyzd5gtEas3MYAtXzrT",
		DepositAddress: "9RdSjLtfFJLvj6CAR4w7H7tUbv2kvwkkrYZuoojKDBkE",
		Amount:         "1000000000",
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	sol := params.(model.SolanaTransactionParams)
	if sol.Value != "1000000000" || sol.SPLTokenMint != "" || sol.Decimals != nil {
		t.Fatalf("unexpected native SOL params %+v", sol)
	}
}

func TestBuildUTXOFamilies(t *testing.T) {
	params, err := Build(Deposit{
		Chain:          mustChain(t, "bitcoin"),
		From:           "bc1qpjqsdj3qvfl4hzfa49p28ns9xkpl73cyg9exzn",
		DepositAddress: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
		Amount:         "711",
	})
	if err != nil {
		t.Fatalf("Build bitcoin failed: %v", err)
	}
	btc := params.(model.BitcoinTransactionParams)
	if btc.To != "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4" || btc.Value != "711" || btc.RefundTo != "bc1qpjqsdj3qvfl4hzfa49p28ns9xkpl73cyg9exzn" {
		t.Fatalf("unexpected bitcoin params %+v", btc)
	}
	if _, err := Build(Deposit{Chain: mustChain(t, "bitcoin"), DepositAddress: "not-an-address", Amount: "1"}); err == nil {
		t.Fatal("expected invalid bitcoin address error")
	}

	zec, err := Build(Deposit{Chain: mustChain(t, "zcash"), DepositAddress: "t1abc", Amount: "5", From: "t1refund"})
	if err != nil || zec.Family() != id.FamilyZcash {
		t.Fatalf("unexpected zcash result %#v %v", zec, err)
	}
	ada, err := Build(Deposit{Chain: mustChain(t, "cardano"), DepositAddress: "addr1xyz", Amount: "5"})
	if err != nil || ada.Family() != id.FamilyCardano {
		t.Fatalf("unexpected cardano result %#v %v", ada, err)
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	if _, err := Build(Deposit{Chain: mustChain(t, "ethereum"), Amount: "1"}); err == nil {
		t.Fatal("expected missing deposit address error")
	}
	if _, err := Build(Deposit{Chain: mustChain(t, "ethereum"), DepositAddress: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", Amount: "abc"}); err == nil {
		t.Fatal("expected invalid amount error")
	}
	if _, err := Build(Deposit{Chain: mustChain(t, "filecoin"), DepositAddress: "f1abc", Amount: "1"}); err == nil {
		t.Fatal("expected unsupported family error")
	}
}

type fixedOracle struct {
	price *big.Int
	err   error
}

func (o fixedOracle) EVMGasPrice(context.Context, id.Chain) (*big.Int, error) {
	return o.price, o.err
}

func TestDepositFee(t *testing.T) {
	ctx := context.Background()
	eth := mustChain(t, "ethereum")

	fee, err := DepositFee(ctx, fixedOracle{price: big.NewInt(1_000_000_000)}, eth, true)
	if err != nil || fee == nil {
		t.Fatalf("DepositFee failed: %v", err)
	}
	if fee.Amount != "65000000000000" || fee.Symbol != "ETH" || fee.Decimals != 18 {
		t.Fatalf("unexpected EVM fee %+v", fee)
	}

	fee, err = DepositFee(ctx, fixedOracle{}, eth, false)
	if err != nil || fee != nil {
		t.Fatalf("missing gas price should yield nil fee, got %+v %v", fee, err)
	}

	if _, err := DepositFee(ctx, fixedOracle{err: errors.New("rpc down")}, eth, false); err == nil {
		t.Fatal("expected oracle error")
	}

	fee, err = DepositFee(ctx, nil, mustChain(t, "solana"), false)
	if err != nil || fee == nil || fee.Amount != "5000" || fee.Symbol != "SOL" {
		t.Fatalf("unexpected solana fee %+v %v", fee, err)
	}

	fee, err = DepositFee(ctx, nil, mustChain(t, "bitcoin"), false)
	if err != nil || fee != nil {
		t.Fatalf("bitcoin has no estimate, got %+v", fee)
	}
}
