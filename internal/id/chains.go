package id

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
)

// Coin is the wallet coin type a chain belongs to. Every EVM network shares ETH.
type Coin string

const (
	CoinADA Coin = "ADA"
	CoinBTC Coin = "BTC"
	CoinETH Coin = "ETH"
	CoinFIL Coin = "FIL"
	CoinSOL Coin = "SOL"
	CoinZEC Coin = "ZEC"
)

// Family selects the transaction format used to move funds on a chain.
type Family string

const (
	FamilyEVM      Family = "evm"
	FamilySolana   Family = "solana"
	FamilyBitcoin  Family = "bitcoin"
	FamilyCardano  Family = "cardano"
	FamilyZcash    Family = "zcash"
	FamilyFilecoin Family = "filecoin"
)

var (
	evmAddressPattern    = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	solanaAddressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

type Chain struct {
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	Coin           Coin   `json:"coin"`
	ChainID        string `json:"chain_id"`
	Family         Family `json:"family"`
	EVMChainID     int64  `json:"evm_chain_id,omitempty"`
	NativeSymbol   string `json:"native_symbol"`
	NativeDecimals int    `json:"native_decimals"`
	NearIntentsID  string `json:"near_intents_id,omitempty"`
	AlchemyID      string `json:"alchemy_id,omitempty"`
}

func (c Chain) IsEVM() bool    { return c.Family == FamilyEVM }
func (c Chain) IsSolana() bool { return c.Family == FamilySolana }

// Key is the "coin:chain_id" pair that identifies the chain across providers.
func (c Chain) Key() string {
	return string(c.Coin) + ":" + c.ChainID
}

var chains = []Chain{
	{Name: "Ethereum", Slug: "ethereum", Coin: CoinETH, ChainID: "0x1", Family: FamilyEVM, EVMChainID: 1, NativeSymbol: "ETH", NativeDecimals: 18, NearIntentsID: "eth", AlchemyID: "eth-mainnet"},
	{Name: "Arbitrum", Slug: "arbitrum", Coin: CoinETH, ChainID: "0xa4b1", Family: FamilyEVM, EVMChainID: 42161, NativeSymbol: "ETH", NativeDecimals: 18, NearIntentsID: "arb", AlchemyID: "arb-mainnet"},
	{Name: "Avalanche", Slug: "avalanche", Coin: CoinETH, ChainID: "0xa86a", Family: FamilyEVM, EVMChainID: 43114, NativeSymbol: "AVAX", NativeDecimals: 18, NearIntentsID: "avax", AlchemyID: "avax-mainnet"},
	{Name: "Base", Slug: "base", Coin: CoinETH, ChainID: "0x2105", Family: FamilyEVM, EVMChainID: 8453, NativeSymbol: "ETH", NativeDecimals: 18, NearIntentsID: "base", AlchemyID: "base-mainnet"},
	{Name: "BNB Chain", Slug: "bsc", Coin: CoinETH, ChainID: "0x38", Family: FamilyEVM, EVMChainID: 56, NativeSymbol: "BNB", NativeDecimals: 18, NearIntentsID: "bsc", AlchemyID: "bnb-mainnet"},
	{Name: "Optimism", Slug: "optimism", Coin: CoinETH, ChainID: "0xa", Family: FamilyEVM, EVMChainID: 10, NativeSymbol: "ETH", NativeDecimals: 18, NearIntentsID: "op", AlchemyID: "opt-mainnet"},
	{Name: "Polygon", Slug: "polygon", Coin: CoinETH, ChainID: "0x89", Family: FamilyEVM, EVMChainID: 137, NativeSymbol: "POL", NativeDecimals: 18, NearIntentsID: "pol", AlchemyID: "polygon-mainnet"},
	{Name: "Bitcoin", Slug: "bitcoin", Coin: CoinBTC, ChainID: "bitcoin_mainnet", Family: FamilyBitcoin, NativeSymbol: "BTC", NativeDecimals: 8, NearIntentsID: "btc", AlchemyID: "bitcoin-mainnet"},
	{Name: "Solana", Slug: "solana", Coin: CoinSOL, ChainID: "0x65", Family: FamilySolana, NativeSymbol: "SOL", NativeDecimals: 9, NearIntentsID: "sol", AlchemyID: "sol-mainnet"},
	{Name: "Filecoin", Slug: "filecoin", Coin: CoinFIL, ChainID: "f", Family: FamilyFilecoin, NativeSymbol: "FIL", NativeDecimals: 18, AlchemyID: "filecoin-mainnet"},
	{Name: "Cardano", Slug: "cardano", Coin: CoinADA, ChainID: "cardano_mainnet", Family: FamilyCardano, NativeSymbol: "ADA", NativeDecimals: 6, NearIntentsID: "cardano", AlchemyID: "cardano-mainnet"},
	{Name: "Zcash", Slug: "zcash", Coin: CoinZEC, ChainID: "zcash_mainnet", Family: FamilyZcash, NativeSymbol: "ZEC", NativeDecimals: 8, NearIntentsID: "zec", AlchemyID: "zcash-mainnet"},
}

var chainAliases = map[string]string{
	"mainnet":      "ethereum",
	"eth":          "ethereum",
	"arb":          "arbitrum",
	"avax":         "avalanche",
	"bnb":          "bsc",
	"op":           "optimism",
	"pol":          "polygon",
	"matic":        "polygon",
	"btc":          "bitcoin",
	"sol":          "solana",
	"mainnet-beta": "solana",
	"ada":          "cardano",
	"zec":          "zcash",
	"fil":          "filecoin",
}

var (
	chainBySlug        = map[string]Chain{}
	chainByKey         = map[string]Chain{}
	chainByNearIntents = map[string]Chain{}
	chainByEVMID       = map[int64]Chain{}
)

func init() {
	for _, c := range chains {
		chainBySlug[c.Slug] = c
		chainByKey[strings.ToLower(c.Key())] = c
		if c.NearIntentsID != "" {
			chainByNearIntents[c.NearIntentsID] = c
		}
		if c.EVMChainID != 0 {
			chainByEVMID[c.EVMChainID] = c
		}
	}
}

// Chains returns the registry sorted by slug.
func Chains() []Chain {
	out := append([]Chain(nil), chains...)
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// LookupChain resolves a chain by its coin and chain id, e.g. (ETH, "0xa4b1").
func LookupChain(coin Coin, chainID string) (Chain, bool) {
	c, ok := chainByKey[strings.ToLower(string(coin)+":"+strings.TrimSpace(chainID))]
	return c, ok
}

func ChainByNearIntentsID(blockchain string) (Chain, bool) {
	c, ok := chainByNearIntents[strings.ToLower(strings.TrimSpace(blockchain))]
	return c, ok
}

func ChainByEVMID(chainID int64) (Chain, bool) {
	c, ok := chainByEVMID[chainID]
	return c, ok
}

func ParseCoin(input string) (Coin, error) {
	coin := Coin(strings.ToUpper(strings.TrimSpace(input)))
	switch coin {
	case CoinADA, CoinBTC, CoinETH, CoinFIL, CoinSOL, CoinZEC:
		return coin, nil
	case "":
		return "", clierr.New(clierr.CodeUsage, "coin is required")
	}
	return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported coin: %s", input))
}

// ParseChain accepts a slug ("base"), an alias ("arb"), a "coin:chain_id" pair
// ("ETH:0x2105"), or a decimal EVM chain id ("8453").
func ParseChain(input string) (Chain, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Chain{}, clierr.New(clierr.CodeUsage, "chain is required")
	}
	norm := strings.ToLower(raw)

	if c, ok := chainBySlug[norm]; ok {
		return c, nil
	}
	if slug, ok := chainAliases[norm]; ok {
		return chainBySlug[slug], nil
	}
	if c, ok := chainByKey[norm]; ok {
		return c, nil
	}
	if n, err := strconv.ParseInt(norm, 10, 64); err == nil {
		if c, ok := chainByEVMID[n]; ok {
			return c, nil
		}
	}
	if strings.HasPrefix(norm, "0x") {
		if n, err := strconv.ParseInt(norm[2:], 16, 64); err == nil {
			if c, ok := chainByEVMID[n]; ok {
				return c, nil
			}
		}
	}
	return Chain{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported chain input: %s", input))
}

func IsEVMAddress(v string) bool {
	return evmAddressPattern.MatchString(strings.TrimSpace(v))
}

func IsSolanaAddress(v string) bool {
	return solanaAddressPattern.MatchString(strings.TrimSpace(v))
}

// AddressEqual compares token addresses, treating empty as the native asset.
func AddressEqual(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return a == b
	}
	return strings.EqualFold(a, b)
}
