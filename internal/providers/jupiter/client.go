package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/httpx"
	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
	"github.com/ggonzalez94/swap-router/internal/providers"
)

const (
	DefaultBaseURL = "https://api.jup.ag"
	// SOLMint is the wrapped SOL mint Jupiter uses for native SOL.
	SOLMint = "So11111111111111111111111111111111111111112"
)

var tool = model.SwapTool{
	Name: "Jupiter",
	Logo: "https://static1.tokenterminal.com/jupiter/logo.png",
}

var errorPhrases = []string{
	"insufficient liquidity",
	"not enough liquidity",
	"liquidity",
	"amount too small",
	"amount too low",
}

type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	tokens  providers.TokenLookup
}

func New(httpClient *httpx.Client, baseURL, apiKey string, tokens providers.TokenLookup) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		tokens:  tokens,
	}
}

func (c *Client) ID() model.ProviderID { return model.ProviderJupiter }

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:          string(model.ProviderJupiter),
		Type:          "swap",
		RequiresKey:   false,
		KeyEnvVarName: "SWAPS_JUPITER_API_KEY",
		Capabilities: []string{
			"swap.quote",
			"swap.firm",
		},
	}
}

func (c *Client) Capabilities() providers.Capabilities {
	return providers.Capabilities{
		RequiresFirmRoute:      false,
		RequiresTokenAllowance: false,
		HasPostSubmitHook:      false,
		HasAutoSlippageSupport: true,
	}
}

// HasSupport accepts same-chain Solana swaps only.
func (c *Client) HasSupport(_ context.Context, req model.SwapSupportRequest) (bool, error) {
	src, ok := req.SourceChain()
	if !ok {
		return false, nil
	}
	dst, ok := req.DestinationChain()
	if !ok {
		return false, nil
	}
	return src.IsSolana() && dst.IsSolana(), nil
}

func (c *Client) SupportedTokens(context.Context) ([]model.TokenInfo, error) {
	return nil, providers.ErrNotImplemented
}

func (c *Client) Status(context.Context, model.SwapStatusRequest) (model.SwapStatusResponse, error) {
	return model.SwapStatusResponse{}, providers.ErrNotImplemented
}

func (c *Client) PostSubmitHook(context.Context, model.SwapStatusRequest) error {
	return nil
}

// IndicativeRoutes issues the same order call as FirmRoute; every Jupiter
// order already carries a signable transaction.
func (c *Client) IndicativeRoutes(ctx context.Context, req model.SwapRequest) ([]model.SwapRoute, error) {
	route, err := c.FirmRoute(ctx, req)
	if err != nil {
		return nil, err
	}
	return []model.SwapRoute{route}, nil
}

func (c *Client) FirmRoute(ctx context.Context, req model.SwapRequest) (model.SwapRoute, error) {
	order, err := c.order(ctx, req)
	if err != nil {
		return model.SwapRoute{}, err
	}
	return c.toRoute(ctx, order, req)
}

type swapInfo struct {
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
}

type routePlan struct {
	Percent  float64  `json:"percent"`
	SwapInfo swapInfo `json:"swapInfo"`
}

type orderResponse struct {
	InAmount                  string      `json:"inAmount"`
	OutAmount                 string      `json:"outAmount"`
	OtherAmountThreshold      string      `json:"otherAmountThreshold"`
	SwapMode                  string      `json:"swapMode"`
	SlippageBps               int64       `json:"slippageBps"`
	PriceImpact               string      `json:"priceImpact"`
	RoutePlan                 []routePlan `json:"routePlan"`
	FeeMint                   string      `json:"feeMint"`
	FeeBps                    int64       `json:"feeBps"`
	Taker                     string      `json:"taker"`
	Gasless                   bool        `json:"gasless"`
	SignatureFeeLamports      int64       `json:"signatureFeeLamports"`
	PrioritizationFeeLamports int64       `json:"prioritizationFeeLamports"`
	Transaction               string      `json:"transaction"`
	InputMint                 string      `json:"inputMint"`
	OutputMint                string      `json:"outputMint"`
	Router                    string      `json:"router"`
	RequestID                 string      `json:"requestId"`
	Mode                      string      `json:"mode"`
	Error                     string      `json:"error"`
	ErrorCode                 *int64      `json:"errorCode"`
	ErrorMessage              string      `json:"errorMessage"`
	TotalTime                 int64       `json:"totalTime"`
	ExpireAt                  string      `json:"expireAt"`
}

func errorMessage(body []byte) string {
	var payload struct {
		Error        string `json:"error"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.ErrorMessage
}

func (c *Client) order(ctx context.Context, req model.SwapRequest) (orderResponse, error) {
	vals := url.Values{}
	vals.Set("inputMint", mintOrSOL(req.SourceTokenAddress))
	vals.Set("outputMint", mintOrSOL(req.DestinationTokenAddress))
	vals.Set("amount", req.Amount)
	vals.Set("taker", req.RefundTo)
	if req.IsExactOutput() {
		vals.Set("swapMode", "ExactOut")
	} else {
		vals.Set("swapMode", "ExactIn")
	}
	if r := strings.TrimSpace(req.Recipient); r != "" && !strings.EqualFold(r, strings.TrimSpace(req.RefundTo)) {
		vals.Set("receiver", r)
	}

	endpoint := fmt.Sprintf("%s/ultra/v1/order?%s", c.baseURL, vals.Encode())
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return orderResponse{}, clierr.Wrap(clierr.CodeInternal, "build jupiter order request", err)
	}
	if c.apiKey != "" {
		hReq.Header.Set("x-api-key", c.apiKey)
	}

	var resp orderResponse
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return orderResponse{}, providers.ClassifyUpstream(model.ProviderJupiter, err, errorPhrases, errorMessage)
	}
	// An error alongside a quote is a warning for the caller; without a quote it is fatal.
	if strings.TrimSpace(resp.Error) != "" && strings.TrimSpace(resp.InAmount) == "" {
		return orderResponse{}, providers.VenueError(model.ProviderJupiter, resp.Error, errorPhrases)
	}
	if strings.TrimSpace(resp.OutAmount) == "" {
		return orderResponse{}, clierr.New(clierr.CodeUnavailable, "jupiter order missing output amount")
	}
	return resp, nil
}

func (c *Client) toRoute(ctx context.Context, order orderResponse, req model.SwapRequest) (model.SwapRoute, error) {
	solana, ok := id.LookupChain(id.CoinSOL, "0x65")
	if !ok {
		return model.SwapRoute{}, clierr.New(clierr.CodeInternal, "solana chain missing from registry")
	}
	if len(order.RoutePlan) == 0 {
		return model.SwapRoute{}, clierr.New(clierr.CodeProvider, "jupiter order response has an empty route plan").WithKind(clierr.KindUnknown)
	}

	source, err := c.lookupStrict(ctx, order.InputMint)
	if err != nil {
		return model.SwapRoute{}, err
	}
	destination, err := c.lookupStrict(ctx, order.OutputMint)
	if err != nil {
		return model.SwapRoute{}, err
	}

	known := map[string]model.TokenInfo{
		mintOrSOL(source.Address):      source,
		mintOrSOL(destination.Address): destination,
	}
	steps := make([]model.SwapRouteStep, 0, len(order.RoutePlan))
	for _, hop := range order.RoutePlan {
		in := c.hopToken(ctx, known, hop.SwapInfo.InputMint)
		out := c.hopToken(ctx, known, hop.SwapInfo.OutputMint)
		step := model.SwapRouteStep{
			SourceToken:       in,
			SourceAmount:      hop.SwapInfo.InAmount,
			DestinationToken:  out,
			DestinationAmount: hop.SwapInfo.OutAmount,
			Tool:              tool,
		}
		if hop.Percent > 0 {
			pct := hop.Percent
			step.Percent = &pct
		}
		steps = append(steps, step)
	}

	sourceAmount := order.InAmount
	if req.IsExactOutput() {
		sourceAmount = order.OtherAmountThreshold
	}

	route := model.SwapRoute{
		ID:                   providers.NewRouteID("jup_"),
		Provider:             model.ProviderJupiter,
		Steps:                steps,
		SourceAmount:         sourceAmount,
		DestinationAmount:    order.OutAmount,
		DestinationAmountMin: order.OtherAmountThreshold,
		EstimatedTime:        0,
		PriceImpact:          priceImpactPct(order.PriceImpact),
		NetworkFee:           networkFee(order, solana),
		ExpiresAt:            parseExpiry(order.ExpireAt),
		SlippagePercentage:   decimal.New(order.SlippageBps, -2).String(),
		Gasless:              order.Gasless,
	}
	if strings.TrimSpace(order.Transaction) != "" {
		route.TransactionParams = model.SolanaTransactionParams{
			Chain:                solana.Slug,
			From:                 req.RefundTo,
			To:                   order.Taker,
			Value:                "0",
			VersionedTransaction: order.Transaction,
		}
	}
	c.Capabilities().Apply(&route)
	return route, nil
}

func (c *Client) lookupStrict(ctx context.Context, mint string) (model.TokenInfo, error) {
	token, ok, err := c.lookup(ctx, mint)
	if err != nil {
		return model.TokenInfo{}, err
	}
	if !ok {
		return model.TokenInfo{}, clierr.New(clierr.CodeProvider, fmt.Sprintf("could not find token info for mint %s", mint))
	}
	return token, nil
}

// hopToken resolves an intermediate hop token, falling back to an
// address-only token when the registry does not know it.
func (c *Client) hopToken(ctx context.Context, known map[string]model.TokenInfo, mint string) model.SwapStepToken {
	if t, ok := known[mint]; ok {
		return model.StepTokenFrom(t)
	}
	if t, ok, err := c.lookup(ctx, mint); err == nil && ok {
		known[mint] = t
		return model.StepTokenFrom(t)
	}
	return model.SwapStepToken{Coin: id.CoinSOL, ChainID: "0x65", ContractAddress: mint}
}

func (c *Client) lookup(ctx context.Context, mint string) (model.TokenInfo, bool, error) {
	if c.tokens == nil {
		return model.TokenInfo{}, false, nil
	}
	address := mint
	if mint == SOLMint {
		address = ""
	}
	return c.tokens.Lookup(ctx, id.CoinSOL, "0x65", address)
}

func mintOrSOL(address string) string {
	if strings.TrimSpace(address) == "" {
		return SOLMint
	}
	return strings.TrimSpace(address)
}

func priceImpactPct(v string) *float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return nil
	}
	f := d.Mul(decimal.NewFromInt(100)).InexactFloat64()
	return &f
}

func networkFee(order orderResponse, solana id.Chain) *model.NetworkFee {
	total := order.SignatureFeeLamports + order.PrioritizationFeeLamports
	if total <= 0 {
		return nil
	}
	return &model.NetworkFee{
		Amount:   strconv.FormatInt(total, 10),
		Decimals: solana.NativeDecimals,
		Symbol:   solana.NativeSymbol,
	}
}

// parseExpiry accepts unix seconds or RFC 3339.
func parseExpiry(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		t := time.Unix(secs, 0).UTC()
		return &t
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}
