package providers

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
)

// ErrNotImplemented is returned by optional operations a venue does not offer.
var ErrNotImplemented = errors.New("operation not implemented by provider")

type Provider interface {
	Info() model.ProviderInfo
}

// Capabilities are static, per-adapter behaviour flags echoed onto every route.
type Capabilities struct {
	RequiresFirmRoute      bool
	RequiresTokenAllowance bool
	HasPostSubmitHook      bool
	HasAutoSlippageSupport bool
}

func (c Capabilities) Apply(route *model.SwapRoute) {
	route.RequiresFirmRoute = c.RequiresFirmRoute
	route.RequiresTokenAllowance = c.RequiresTokenAllowance
	route.HasPostSubmitHook = c.HasPostSubmitHook
}

// SwapProvider is the contract every swap venue adapter satisfies.
type SwapProvider interface {
	Provider
	ID() model.ProviderID
	Capabilities() Capabilities
	// HasSupport is a cheap, side-effect-free pair check. It never requests a quote.
	HasSupport(ctx context.Context, req model.SwapSupportRequest) (bool, error)
	IndicativeRoutes(ctx context.Context, req model.SwapRequest) ([]model.SwapRoute, error)
	FirmRoute(ctx context.Context, req model.SwapRequest) (model.SwapRoute, error)
	Status(ctx context.Context, req model.SwapStatusRequest) (model.SwapStatusResponse, error)
	PostSubmitHook(ctx context.Context, req model.SwapStatusRequest) error
	SupportedTokens(ctx context.Context) ([]model.TokenInfo, error)
}

type TokenLookup interface {
	Lookup(ctx context.Context, coin id.Coin, chainID, address string) (model.TokenInfo, bool, error)
}

type SupportedTokenCache interface {
	Get(ctx context.Context, provider model.ProviderID) ([]model.TokenInfo, bool, error)
	Set(ctx context.Context, provider model.ProviderID, tokens []model.TokenInfo, ttl time.Duration) error
}

// DepositIdempotency guards deposit notifications. ShouldSubmit returns true
// at most once per address within the guard window.
type DepositIdempotency interface {
	ShouldSubmit(ctx context.Context, depositAddress string) (bool, error)
	Clear(ctx context.Context, depositAddress string) error
}

// GasPriceOracle returns a nil price when no estimate is available.
type GasPriceOracle interface {
	EVMGasPrice(ctx context.Context, chain id.Chain) (*big.Int, error)
}
