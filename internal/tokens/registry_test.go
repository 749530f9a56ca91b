package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
)

type fakeCache struct {
	lists map[model.ProviderID][]model.TokenInfo
	err   error
}

func (f *fakeCache) Get(_ context.Context, provider model.ProviderID) ([]model.TokenInfo, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	list, ok := f.lists[provider]
	return list, ok, nil
}

func (f *fakeCache) Set(context.Context, model.ProviderID, []model.TokenInfo, time.Duration) error {
	return nil
}

func TestLookupNativeAndBuiltin(t *testing.T) {
	r := NewRegistry(nil)

	native, ok, err := r.Lookup(context.Background(), id.CoinSOL, "0x65", "")
	if err != nil || !ok {
		t.Fatalf("native lookup failed: ok=%v err=%v", ok, err)
	}
	if native.Symbol != "SOL" || native.Decimals != 9 || native.Address != "" {
		t.Fatalf("unexpected native token: %+v", native)
	}

	usdc, ok, err := r.Lookup(context.Background(), id.CoinETH, "0x2105", "0x833589FCD6EDB6E08F4C7C32D4F71B54BDA02913")
	if err != nil || !ok {
		t.Fatalf("base usdc lookup failed: ok=%v err=%v", ok, err)
	}
	if usdc.Symbol != "USDC" || usdc.Decimals != 6 || usdc.Address != "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913" {
		t.Fatalf("unexpected base usdc: %+v", usdc)
	}

	// Solana mints are case-sensitive.
	if _, ok, _ := r.Lookup(context.Background(), id.CoinSOL, "0x65", "epjfwdd5aufqssqem2qn1xzybapc8g4wegGkzwytdt1v"); ok {
		t.Fatal("expected miss for mis-cased solana mint")
	}
	if _, ok, _ := r.Lookup(context.Background(), id.CoinETH, "0xdead", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"); ok {
		t.Fatal("expected miss for unknown chain")
	}
}

func TestLookupFallsBackToCachedProviderLists(t *testing.T) {
	bonk := model.TokenInfo{Coin: id.CoinSOL, ChainID: "0x65", Address: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Symbol: "BONK", Decimals: 5}
	cache := &fakeCache{lists: map[model.ProviderID][]model.TokenInfo{
		model.ProviderNearIntents: {bonk},
	}}
	r := NewRegistry(cache, model.ProviderJupiter, model.ProviderNearIntents)

	got, ok, err := r.Lookup(context.Background(), id.CoinSOL, "0x65", bonk.Address)
	if err != nil || !ok {
		t.Fatalf("expected cached hit: ok=%v err=%v", ok, err)
	}
	if got.Symbol != "BONK" || got.Decimals != 5 {
		t.Fatalf("unexpected token: %+v", got)
	}

	if _, ok, _ := r.Lookup(context.Background(), id.CoinSOL, "0x65", "UnknownMint1111111111111111111111111111111"); ok {
		t.Fatal("expected miss")
	}

	cache.err = errors.New("disk gone")
	if _, _, err := r.Lookup(context.Background(), id.CoinSOL, "0x65", bonk.Address); err == nil {
		t.Fatal("expected cache error to surface")
	}
}

func TestResolve(t *testing.T) {
	base, _ := id.ParseChain("base")
	sol, _ := id.ParseChain("solana")
	btc, _ := id.ParseChain("bitcoin")

	tests := []struct {
		name  string
		chain id.Chain
		input string
		want  string
	}{
		{name: "empty is native", chain: base, input: "", want: ""},
		{name: "native symbol", chain: base, input: "eth", want: ""},
		{name: "symbol", chain: base, input: "usdc", want: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"},
		{name: "evm address lowercased", chain: base, input: "0x4200000000000000000000000000000000000006", want: "0x4200000000000000000000000000000000000006"},
		{name: "solana symbol", chain: sol, input: "JUP", want: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"},
		{name: "solana mint passthrough", chain: sol, input: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", want: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"},
		{name: "bitcoin native", chain: btc, input: "BTC", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.chain, tc.input)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}

	_, err := Resolve(base, "PEPE")
	if err == nil {
		t.Fatal("expected unknown symbol error")
	}
	if clierr.ExitCode(err) != int(clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestBuiltinStartsWithNative(t *testing.T) {
	eth, _ := id.ParseChain("ethereum")
	list := Builtin(eth)
	if len(list) != 5 {
		t.Fatalf("expected native plus 4 tokens, got %d", len(list))
	}
	if list[0].Address != "" || list[0].Symbol != "ETH" {
		t.Fatalf("expected native first, got %+v", list[0])
	}
	for _, tok := range list[1:] {
		if tok.Coin != id.CoinETH || tok.ChainID != "0x1" {
			t.Fatalf("unexpected chain identity: %+v", tok)
		}
	}
}
