package cache

import (
	"context"
	"testing"
	"time"

	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
)

func sampleTokens() []model.TokenInfo {
	return []model.TokenInfo{
		{Coin: id.CoinSOL, ChainID: "0x65", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Decimals: 6},
		{Coin: id.CoinBTC, ChainID: "bitcoin_mainnet", Symbol: "BTC", Decimals: 8},
	}
}

func TestTokenCacheRoundTripThroughStore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	writer := NewTokenCache(store, time.Minute)
	if err := writer.Set(ctx, model.ProviderNearIntents, sampleTokens(), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reader := NewTokenCache(store, time.Minute)
	tokens, ok, err := reader.Get(ctx, model.ProviderNearIntents)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if len(tokens) != 2 || tokens[0].Symbol != "USDC" || tokens[1].Address != "" {
		t.Fatalf("unexpected tokens %+v", tokens)
	}
	if _, ok, _ := reader.Get(ctx, model.ProviderSquid); ok {
		t.Fatal("unexpected hit for another provider")
	}
}

func TestTokenCacheSkipsEmptyLists(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	c := NewTokenCache(store, time.Minute)
	if err := c.Set(ctx, model.ProviderNearIntents, nil, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok, _ := c.Get(ctx, model.ProviderNearIntents); ok {
		t.Fatal("empty list must not be cached")
	}
	if res, _ := store.Get(tokensKey(model.ProviderNearIntents), 0); res.Hit {
		t.Fatal("empty list must not reach the store")
	}
}

func TestTokenCacheMemoryTierExpires(t *testing.T) {
	c := NewTokenCache(nil, time.Minute)
	now := time.Date(2025, 12, 11, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, model.ProviderNearIntents, sampleTokens(), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok, _ := c.Get(ctx, model.ProviderNearIntents); !ok {
		t.Fatal("expected memory hit")
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, model.ProviderNearIntents); ok {
		t.Fatal("memory tier should expire")
	}
}
