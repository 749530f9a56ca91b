// Package gas estimates EVM gas prices over JSON-RPC for deposit fee quotes.
package gas

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/id"
)

const DefaultCacheTTL = 2 * time.Minute

// Public endpoints used when no override is configured.
var defaultRPCByChainID = map[int64]string{
	1:     "https://eth.llamarpc.com",
	10:    "https://mainnet.optimism.io",
	56:    "https://bsc-dataseed.binance.org",
	137:   "https://polygon-rpc.com",
	8453:  "https://mainnet.base.org",
	42161: "https://arb1.arbitrum.io/rpc",
	43114: "https://api.avax.network/ext/bc/C/rpc",
}

func DefaultRPCURL(chainID int64) (string, bool) {
	v, ok := defaultRPCByChainID[chainID]
	return v, ok
}

// Endpoints resolves the JSON-RPC URL for a chain.
type Endpoints struct {
	// Overrides maps chain slugs to RPC URLs.
	Overrides     map[string]string
	AlchemyAPIKey string
}

// Resolve prefers a slug override, then an Alchemy endpoint when a key is
// configured, then the public default.
func (e Endpoints) Resolve(chain id.Chain) (string, bool) {
	if v := strings.TrimSpace(e.Overrides[chain.Slug]); v != "" {
		return v, true
	}
	if key := strings.TrimSpace(e.AlchemyAPIKey); key != "" && chain.AlchemyID != "" {
		return AlchemyRPCURL(chain.AlchemyID, key), true
	}
	return DefaultRPCURL(chain.EVMChainID)
}

func AlchemyRPCURL(network, key string) string {
	return fmt.Sprintf("https://%s.g.alchemy.com/v2/%s", network, key)
}

type priceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	Close()
}

type cachedPrice struct {
	price   *big.Int
	expires time.Time
}

// Oracle implements providers.GasPriceOracle with one cached price per chain.
type Oracle struct {
	endpoints Endpoints
	ttl       time.Duration
	log       *slog.Logger
	now       func() time.Time
	dial      func(ctx context.Context, url string) (priceSource, error)

	mu     sync.Mutex
	prices map[int64]cachedPrice
}

func NewOracle(endpoints Endpoints, ttl time.Duration, logger *slog.Logger) *Oracle {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Oracle{
		endpoints: endpoints,
		ttl:       ttl,
		log:       logger,
		now:       time.Now,
		dial:      dialEthclient,
		prices:    map[int64]cachedPrice{},
	}
}

func dialEthclient(ctx context.Context, url string) (priceSource, error) {
	return ethclient.DialContext(ctx, url)
}

// EVMGasPrice returns nil for non-EVM chains and chains without an endpoint.
func (o *Oracle) EVMGasPrice(ctx context.Context, chain id.Chain) (*big.Int, error) {
	if !chain.IsEVM() {
		return nil, nil
	}
	if price, ok := o.cached(chain.EVMChainID); ok {
		return price, nil
	}
	url, ok := o.endpoints.Resolve(chain)
	if !ok {
		o.log.Debug("no rpc endpoint for chain", "chain", chain.Slug)
		return nil, nil
	}

	client, err := o.dial(ctx, url)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("connect rpc for %s", chain.Slug), err)
	}
	defer client.Close()

	price, err := o.fetchPrice(ctx, client, chain)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("fetch gas price for %s", chain.Slug), err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, nil
	}

	o.mu.Lock()
	o.prices[chain.EVMChainID] = cachedPrice{price: new(big.Int).Set(price), expires: o.now().Add(o.ttl)}
	o.mu.Unlock()
	return price, nil
}

// fetchPrice returns base fee plus priority tip on London chains and falls
// back to the legacy gas price when either half is unavailable.
func (o *Oracle) fetchPrice(ctx context.Context, client priceSource, chain id.Chain) (*big.Int, error) {
	tip, err := client.SuggestGasTipCap(ctx)
	if err == nil {
		var head *types.Header
		head, err = client.HeaderByNumber(ctx, nil)
		if err == nil && head != nil && head.BaseFee != nil && tip != nil {
			return new(big.Int).Add(head.BaseFee, tip), nil
		}
	}
	o.log.Debug("falling back to legacy gas price", "chain", chain.Slug, "error", err)
	return client.SuggestGasPrice(ctx)
}

func (o *Oracle) cached(chainID int64) (*big.Int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.prices[chainID]
	if !ok || !o.now().Before(entry.expires) {
		return nil, false
	}
	return new(big.Int).Set(entry.price), true
}
