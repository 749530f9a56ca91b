package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/httpx"
	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
	"github.com/ggonzalez94/swap-router/internal/providers"
)

const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	usdtMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	taker    = "8eekKfUAGSJbq3CdA2TmHb8tKuyzd5gtEas3MYAtXzrT"
)

type tokenTable map[string]model.TokenInfo

func (t tokenTable) Lookup(_ context.Context, coin id.Coin, chainID, address string) (model.TokenInfo, bool, error) {
	tok, ok := t[string(coin)+":"+chainID+":"+address]
	return tok, ok, nil
}

func solTokens() tokenTable {
	t := tokenTable{}
	t["SOL:0x65:"] = model.TokenInfo{Coin: id.CoinSOL, ChainID: "0x65", Symbol: "SOL", Name: "Solana", Decimals: 9}
	t["SOL:0x65:"+usdcMint] = model.TokenInfo{Coin: id.CoinSOL, ChainID: "0x65", Address: usdcMint, Symbol: "USDC", Decimals: 6}
	t["SOL:0x65:"+usdtMint] = model.TokenInfo{Coin: id.CoinSOL, ChainID: "0x65", Address: usdtMint, Symbol: "USDT", Decimals: 6}
	return t
}

const orderFixture = `{
	"inAmount": "100000000",
	"outAmount": "13882709",
	"otherAmountThreshold": "13811907",
	"swapMode": "ExactIn",
	"slippageBps": 51,
	"priceImpact": "-0.00011902847845983851",
	"routePlan": [
		{"percent": 100, "swapInfo": {"label": "HumidiFi", "inputMint": "So11111111111111111111111111111111111111112", "outputMint": "` + usdtMint + `", "inAmount": "100000000", "outAmount": "13889289"}},
		{"percent": 100, "swapInfo": {"label": "Aquifer", "inputMint": "` + usdtMint + `", "outputMint": "` + usdcMint + `", "inAmount": "13889289", "outAmount": "13882709"}}
	],
	"feeMint": "So11111111111111111111111111111111111111112",
	"feeBps": 2,
	"taker": "11111111111111111111111111111111",
	"gasless": false,
	"signatureFeeLamports": 5000,
	"prioritizationFeeLamports": 1000,
	"transaction": "AQAAAAAAAAAAAAAA",
	"inputMint": "So11111111111111111111111111111111111111112",
	"outputMint": "` + usdcMint + `",
	"router": "iris",
	"requestId": "019b9505-9f12-7071-a0eb-763a5f5c4b70",
	"mode": "ultra",
	"error": null,
	"totalTime": 363,
	"expireAt": "1736251200"
}`

func solRequest(swapType model.SwapType) model.SwapRequest {
	return model.SwapRequest{
		SwapSupportRequest: model.SwapSupportRequest{
			SourceCoin:              id.CoinSOL,
			SourceChainID:           "0x65",
			DestinationCoin:         id.CoinSOL,
			DestinationChainID:      "0x65",
			DestinationTokenAddress: usdcMint,
			Recipient:               taker,
		},
		Amount:   "100000000",
		SwapType: swapType,
		RefundTo: taker,
		Provider: model.ProviderJupiter,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ultra/v1/order", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(httpx.New(2*time.Second, 0), srv.URL, "test-key", solTokens())
}

func TestHasSupportSolanaOnly(t *testing.T) {
	c := New(httpx.New(time.Second, 0), "", "", nil)
	ok, err := c.HasSupport(context.Background(), solRequest(model.SwapTypeExactInput).SwapSupportRequest)
	if err != nil || !ok {
		t.Fatalf("expected solana support, got %v %v", ok, err)
	}
	cross := model.SwapSupportRequest{SourceCoin: id.CoinETH, SourceChainID: "0x1", DestinationCoin: id.CoinSOL, DestinationChainID: "0x65"}
	if ok, _ := c.HasSupport(context.Background(), cross); ok {
		t.Fatal("cross-chain pair must not be supported")
	}
	if ok, _ := c.HasSupport(context.Background(), model.SwapSupportRequest{SourceCoin: id.CoinSOL, SourceChainID: "0x99"}); ok {
		t.Fatal("unknown chain must not be supported")
	}
}

func TestIndicativeRoutesParsesOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("expected x-api-key header, got %q", got)
		}
		q := r.URL.Query()
		if q.Get("inputMint") != SOLMint || q.Get("outputMint") != usdcMint || q.Get("swapMode") != "ExactIn" || q.Get("taker") != taker {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Has("receiver") {
			t.Errorf("receiver must be omitted when it equals the taker")
		}
		_, _ = w.Write([]byte(orderFixture))
	})

	routes, err := c.IndicativeRoutes(context.Background(), solRequest(model.SwapTypeExactInput))
	if err != nil {
		t.Fatalf("IndicativeRoutes failed: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("expected one route, got %d", len(routes))
	}
	route := routes[0]
	if route.Provider != model.ProviderJupiter || route.DestinationAmount != "13882709" || route.EstimatedTime != 0 {
		t.Fatalf("unexpected route %+v", route)
	}
	if route.SourceAmount != "100000000" || route.DestinationAmountMin != "13811907" {
		t.Fatalf("unexpected amounts %+v", route)
	}
	if len(route.Steps) != 2 {
		t.Fatalf("expected two steps, got %d", len(route.Steps))
	}
	if route.Steps[0].SourceToken.Symbol != "SOL" || route.Steps[0].DestinationToken.Symbol != "USDT" || route.Steps[1].DestinationToken.Symbol != "USDC" {
		t.Fatalf("unexpected step tokens %+v", route.Steps)
	}
	if route.PriceImpact == nil || *route.PriceImpact > -0.0118 || *route.PriceImpact < -0.0120 {
		t.Fatalf("unexpected price impact %v", route.PriceImpact)
	}
	if route.NetworkFee == nil || route.NetworkFee.Amount != "6000" || route.NetworkFee.Symbol != "SOL" || route.NetworkFee.Decimals != 9 {
		t.Fatalf("unexpected network fee %+v", route.NetworkFee)
	}
	if route.SlippagePercentage != "0.51" {
		t.Fatalf("expected venue slippage, got %s", route.SlippagePercentage)
	}
	if !strings.HasPrefix(route.ID, "jup_") || len(route.ID) != 16 {
		t.Fatalf("unexpected route id %s", route.ID)
	}
	if route.ExpiresAt == nil || route.ExpiresAt.Unix() != 1736251200 {
		t.Fatalf("unexpected expiry %v", route.ExpiresAt)
	}
	params, ok := route.TransactionParams.(model.SolanaTransactionParams)
	if !ok || params.VersionedTransaction != "AQAAAAAAAAAAAAAA" || params.From != taker || params.Value != "0" {
		t.Fatalf("unexpected transaction params %#v", route.TransactionParams)
	}
	if route.RequiresFirmRoute || route.RequiresTokenAllowance || route.HasPostSubmitHook {
		t.Fatalf("unexpected capability flags %+v", route)
	}
}

func TestFirmRouteExactOutputUsesThreshold(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("swapMode") != "ExactOut" {
			t.Errorf("expected ExactOut swap mode")
		}
		if r.URL.Query().Get("receiver") != "9RdSjLtfFJLvj6CAR4w7H7tUbv2kvwkkrYZuoojKDBkE" {
			t.Errorf("expected receiver for third-party recipient")
		}
		_, _ = w.Write([]byte(orderFixture))
	})
	req := solRequest(model.SwapTypeExactOutput)
	req.Recipient = "9RdSjLtfFJLvj6CAR4w7H7tUbv2kvwkkrYZuoojKDBkE"
	route, err := c.FirmRoute(context.Background(), req)
	if err != nil {
		t.Fatalf("FirmRoute failed: %v", err)
	}
	if route.SourceAmount != "13811907" {
		t.Fatalf("expected threshold as source amount, got %s", route.SourceAmount)
	}
}

func TestOrderErrorInSuccessfulResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Insufficient liquidity for this trade"}`))
	})
	_, err := c.FirmRoute(context.Background(), solRequest(model.SwapTypeExactInput))
	if err == nil {
		t.Fatal("expected venue error")
	}
	if clierr.KindOf(err) != clierr.KindInsufficientLiquidity || !strings.Contains(err.Error(), "Insufficient liquidity") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestOrderAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid parameters"}`))
	})
	_, err := c.FirmRoute(context.Background(), solRequest(model.SwapTypeExactInput))
	if err == nil {
		t.Fatal("expected api error")
	}
	if clierr.KindOf(err) != clierr.KindUnknown || !strings.Contains(err.Error(), "Invalid parameters") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestEmptyRoutePlanIsProviderError(t *testing.T) {
	var order map[string]any
	if err := json.Unmarshal([]byte(orderFixture), &order); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	order["routePlan"] = []any{}
	body, _ := json.Marshal(order)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	})
	_, err := c.IndicativeRoutes(context.Background(), solRequest(model.SwapTypeExactInput))
	if clierr.ExitCode(err) != int(clierr.CodeProvider) {
		t.Fatalf("expected provider error for empty route plan, got %v", err)
	}
}

func TestUnknownSourceTokenFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(orderFixture))
	})
	c.tokens = tokenTable{}
	if _, err := c.FirmRoute(context.Background(), solRequest(model.SwapTypeExactInput)); err == nil {
		t.Fatal("expected token lookup error")
	}
}

func TestOptionalOperations(t *testing.T) {
	c := New(httpx.New(time.Second, 0), "", "", nil)
	if _, err := c.SupportedTokens(context.Background()); !errors.Is(err, providers.ErrNotImplemented) {
		t.Fatalf("expected not implemented, got %v", err)
	}
	if _, err := c.Status(context.Background(), model.SwapStatusRequest{}); !errors.Is(err, providers.ErrNotImplemented) {
		t.Fatalf("expected not implemented, got %v", err)
	}
	if err := c.PostSubmitHook(context.Background(), model.SwapStatusRequest{}); err != nil {
		t.Fatalf("post submit hook should be a no-op, got %v", err)
	}
	if !c.Capabilities().HasAutoSlippageSupport {
		t.Fatal("jupiter picks its own slippage")
	}
}
