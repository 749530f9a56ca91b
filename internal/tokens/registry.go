// Package tokens resolves token metadata from a small built-in registry and
// from the supported-token lists providers have cached.
package tokens

import (
	"context"
	"fmt"
	"sort"
	"strings"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
	"github.com/ggonzalez94/swap-router/internal/providers"
)

const sourceRegistry = "registry"

type entry struct {
	Symbol   string
	Name     string
	Address  string
	Decimals int
}

// Bootstrap registry keyed by chain slug. Native assets are derived from the
// chain itself and are not listed here.
var builtin = map[string][]entry{
	"ethereum": {
		{Symbol: "USDC", Name: "USD Coin", Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6},
		{Symbol: "USDT", Name: "Tether USD", Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Decimals: 6},
		{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Decimals: 18},
		{Symbol: "WETH", Name: "Wrapped Ether", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
	},
	"base": {
		{Symbol: "USDC", Name: "USD Coin", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
		{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb", Decimals: 18},
		{Symbol: "WETH", Name: "Wrapped Ether", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	},
	"arbitrum": {
		{Symbol: "USDC", Name: "USD Coin", Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6},
		{Symbol: "USDT", Name: "Tether USD", Address: "0xFd086bC7CD5C481DCC9C85ebe478A1C0b69FCbb9", Decimals: 6},
		{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1", Decimals: 18},
		{Symbol: "WETH", Name: "Wrapped Ether", Address: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", Decimals: 18},
	},
	"optimism": {
		{Symbol: "USDC", Name: "USD Coin", Address: "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85", Decimals: 6},
		{Symbol: "USDT", Name: "Tether USD", Address: "0x94b008aA00579c1307B0EF2c499aD98a8ce58e58", Decimals: 6},
		{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1", Decimals: 18},
		{Symbol: "WETH", Name: "Wrapped Ether", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	},
	"polygon": {
		{Symbol: "USDC", Name: "USD Coin", Address: "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359", Decimals: 6},
		{Symbol: "USDT", Name: "Tether USD", Address: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", Decimals: 6},
		{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063", Decimals: 18},
		{Symbol: "WETH", Name: "Wrapped Ether", Address: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", Decimals: 18},
	},
	"bsc": {
		{Symbol: "USDC", Name: "USD Coin", Address: "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d", Decimals: 18},
		{Symbol: "USDT", Name: "Tether USD", Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18},
		{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0x1AF3F329e8BE154074D8769D1FFa4eE058B1DBc3", Decimals: 18},
		{Symbol: "WETH", Name: "Wrapped Ether", Address: "0x2170Ed0880ac9A755fd29B2688956BD959F933F8", Decimals: 18},
	},
	"avalanche": {
		{Symbol: "USDC", Name: "USD Coin", Address: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", Decimals: 6},
		{Symbol: "USDT", Name: "Tether USD", Address: "0x9702230A8Ea53601f5cD2dc00fDBc13d4dF4A8c7", Decimals: 6},
		{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0xd586E7F844cEa2F87f50152665BCbc2C279D8d70", Decimals: 18},
		{Symbol: "WETH", Name: "Wrapped Ether", Address: "0x49D5c2BdFfac6CE2BFdB6640F4F80f226bc10bAB", Decimals: 18},
	},
	"solana": {
		{Symbol: "USDC", Name: "USD Coin", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
		{Symbol: "USDT", Name: "Tether USD", Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6},
		{Symbol: "SOL", Name: "Wrapped SOL", Address: "So11111111111111111111111111111111111111112", Decimals: 9},
		{Symbol: "JUP", Name: "Jupiter", Address: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6},
		{Symbol: "JTO", Name: "Jito", Address: "jtojtomepa8beP8AuQc6eXt5FriJwfFMwGQx2v2f9mCL", Decimals: 9},
	},
}

// Native returns the chain's native asset. Its Address is empty.
func Native(chain id.Chain) model.TokenInfo {
	return model.TokenInfo{
		Coin:     chain.Coin,
		ChainID:  chain.ChainID,
		Name:     chain.NativeSymbol,
		Symbol:   chain.NativeSymbol,
		Decimals: chain.NativeDecimals,
		Sources:  []string{sourceRegistry},
	}
}

// Builtin lists the chain's native asset followed by its registry tokens.
func Builtin(chain id.Chain) []model.TokenInfo {
	out := []model.TokenInfo{Native(chain)}
	for _, e := range builtin[chain.Slug] {
		out = append(out, e.token(chain))
	}
	return out
}

func (e entry) token(chain id.Chain) model.TokenInfo {
	return model.TokenInfo{
		Coin:     chain.Coin,
		ChainID:  chain.ChainID,
		Address:  normalizeAddress(chain, e.Address),
		Name:     e.Name,
		Symbol:   e.Symbol,
		Decimals: e.Decimals,
		Sources:  []string{sourceRegistry},
	}
}

func normalizeAddress(chain id.Chain, address string) string {
	address = strings.TrimSpace(address)
	if chain.IsEVM() {
		return strings.ToLower(address)
	}
	return address
}

// addressEqual is case-insensitive on EVM chains and exact elsewhere.
func addressEqual(chain id.Chain, a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if chain.IsEVM() {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// Registry implements providers.TokenLookup. Built-in entries win; after
// that the cached lists of the configured source providers are searched in
// order.
type Registry struct {
	cache   providers.SupportedTokenCache
	sources []model.ProviderID
}

func NewRegistry(cache providers.SupportedTokenCache, sources ...model.ProviderID) *Registry {
	return &Registry{cache: cache, sources: sources}
}

func (r *Registry) Lookup(ctx context.Context, coin id.Coin, chainID, address string) (model.TokenInfo, bool, error) {
	chain, ok := id.LookupChain(coin, chainID)
	if !ok {
		return model.TokenInfo{}, false, nil
	}
	if strings.TrimSpace(address) == "" {
		return Native(chain), true, nil
	}
	for _, e := range builtin[chain.Slug] {
		if addressEqual(chain, e.Address, address) {
			return e.token(chain), true, nil
		}
	}
	if r == nil || r.cache == nil {
		return model.TokenInfo{}, false, nil
	}
	for _, source := range r.sources {
		list, hit, err := r.cache.Get(ctx, source)
		if err != nil {
			return model.TokenInfo{}, false, err
		}
		if !hit {
			continue
		}
		for _, t := range list {
			if t.Coin == chain.Coin && strings.EqualFold(t.ChainID, chain.ChainID) && addressEqual(chain, t.Address, address) {
				return t, true, nil
			}
		}
	}
	return model.TokenInfo{}, false, nil
}

// Resolve turns CLI token input into an address on chain. Empty input and the
// native symbol select the native asset; well-formed addresses pass through;
// anything else is looked up by symbol in the built-in registry.
func Resolve(chain id.Chain, input string) (string, error) {
	raw := strings.TrimSpace(input)
	if raw == "" || strings.EqualFold(raw, "native") || strings.EqualFold(raw, chain.NativeSymbol) {
		return "", nil
	}
	if chain.IsEVM() && id.IsEVMAddress(raw) {
		return normalizeAddress(chain, raw), nil
	}
	if chain.IsSolana() && id.IsSolanaAddress(raw) {
		return raw, nil
	}

	var matches []string
	for _, e := range builtin[chain.Slug] {
		if strings.EqualFold(e.Symbol, raw) {
			matches = append(matches, normalizeAddress(chain, e.Address))
		}
	}
	switch len(matches) {
	case 0:
		if !chain.IsEVM() && !chain.IsSolana() {
			return raw, nil
		}
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("token %s not found in registry for chain %s", input, chain.Slug))
	case 1:
		return matches[0], nil
	}
	sort.Strings(matches)
	return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("symbol %s is ambiguous on chain %s, use an address (%s)", input, chain.Slug, strings.Join(matches, ", ")))
}
