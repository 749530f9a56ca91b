package squid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ggonzalez94/swap-router/internal/amount"
	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/httpx"
	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
	"github.com/ggonzalez94/swap-router/internal/providers"
)

const (
	DefaultBaseURL = "https://v2.api.squidrouter.com"
	// NativeToken is Squid's placeholder address for a chain's native asset.
	NativeToken    = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
	bitcoinToken   = "satoshi"
	bitcoinChain   = "bitcoin"
	solanaChain    = "solana-mainnet-beta"
	explorerURL    = "https://axelarscan.io/gmp/"
)

var errorPhrases = []string{
	"insufficient liquidity",
	"not enough liquidity",
	"liquidity",
	"no route found",
	"amount too small",
	"amount too low",
}

var statusTable = providers.StatusTable{
	"SUCCESS":         model.SwapStatusSuccess,
	"ONGOING":         model.SwapStatusProcessing,
	"PARTIAL_SUCCESS": model.SwapStatusProcessing,
	"NEEDS_GAS":       model.SwapStatusPending,
	"NOT_FOUND":       model.SwapStatusPending,
	"REFUND":          model.SwapStatusRefunded,
}

type Client struct {
	http         *httpx.Client
	baseURL      string
	integratorID string
}

func New(httpClient *httpx.Client, baseURL, integratorID string) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:         httpClient,
		baseURL:      strings.TrimRight(baseURL, "/"),
		integratorID: strings.TrimSpace(integratorID),
	}
}

func (c *Client) ID() model.ProviderID { return model.ProviderSquid }

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:          string(model.ProviderSquid),
		Type:          "swap",
		RequiresKey:   true,
		KeyEnvVarName: "SWAPS_SQUID_INTEGRATOR_ID",
		Capabilities: []string{
			"swap.quote",
			"swap.firm",
			"swap.status",
		},
	}
}

func (c *Client) Capabilities() providers.Capabilities {
	return providers.Capabilities{
		RequiresFirmRoute:      false,
		RequiresTokenAllowance: true,
		HasPostSubmitHook:      false,
		HasAutoSlippageSupport: true,
	}
}

// ChainID returns Squid's identifier for chain: the decimal chain id on EVM
// chains and a fixed name for Bitcoin and Solana.
func ChainID(chain id.Chain) (string, bool) {
	switch {
	case chain.IsEVM() && chain.EVMChainID > 0:
		return strconv.FormatInt(chain.EVMChainID, 10), true
	case chain.Family == id.FamilyBitcoin:
		return bitcoinChain, true
	case chain.IsSolana():
		return solanaChain, true
	}
	return "", false
}

func chainFromSquid(squidID string) (id.Chain, bool) {
	switch squidID {
	case bitcoinChain:
		return id.LookupChain(id.CoinBTC, "bitcoin_mainnet")
	case solanaChain:
		return id.LookupChain(id.CoinSOL, "0x65")
	}
	n, err := strconv.ParseInt(squidID, 10, 64)
	if err != nil {
		return id.Chain{}, false
	}
	return id.ChainByEVMID(n)
}

func tokenAddress(chain id.Chain, address string) string {
	address = strings.TrimSpace(address)
	if chain.Family == id.FamilyBitcoin {
		return bitcoinToken
	}
	if address == "" {
		return NativeToken
	}
	return address
}

// canonicalAddress maps Squid's native placeholders back to the empty address.
func canonicalAddress(chain id.Chain, address string) string {
	if strings.EqualFold(address, NativeToken) || (chain.Family == id.FamilyBitcoin && address == bitcoinToken) {
		return ""
	}
	return address
}

// HasSupport accepts EVM sources bridging to EVM, Bitcoin or Solana.
func (c *Client) HasSupport(_ context.Context, req model.SwapSupportRequest) (bool, error) {
	if req.SourceCoin != id.CoinETH {
		return false, nil
	}
	switch req.DestinationCoin {
	case id.CoinETH, id.CoinBTC, id.CoinSOL:
	default:
		return false, nil
	}
	src, ok := req.SourceChain()
	if !ok {
		return false, nil
	}
	dst, ok := req.DestinationChain()
	if !ok {
		return false, nil
	}
	_, srcOK := ChainID(src)
	_, dstOK := ChainID(dst)
	return srcOK && dstOK, nil
}

func (c *Client) SupportedTokens(context.Context) ([]model.TokenInfo, error) {
	return nil, providers.ErrNotImplemented
}

func (c *Client) PostSubmitHook(context.Context, model.SwapStatusRequest) error {
	return nil
}

// IndicativeRoutes issues the same route call as FirmRoute; Squid routes
// always carry the transaction request.
func (c *Client) IndicativeRoutes(ctx context.Context, req model.SwapRequest) ([]model.SwapRoute, error) {
	route, err := c.FirmRoute(ctx, req)
	if err != nil {
		return nil, err
	}
	return []model.SwapRoute{route}, nil
}

func (c *Client) FirmRoute(ctx context.Context, req model.SwapRequest) (model.SwapRoute, error) {
	if req.IsExactOutput() {
		return model.SwapRoute{}, clierr.New(clierr.CodeUnsupported, "squid does not support EXACT_OUTPUT swaps")
	}
	ok, err := c.HasSupport(ctx, req.SwapSupportRequest)
	if err != nil {
		return model.SwapRoute{}, err
	}
	if !ok {
		return model.SwapRoute{}, clierr.New(clierr.CodeUnsupported, "squid: unsupported chain")
	}
	src, _ := req.SourceChain()
	dst, _ := req.DestinationChain()

	resp, err := c.route(ctx, req, src, dst)
	if err != nil {
		return model.SwapRoute{}, err
	}
	return c.toRoute(resp, req, src)
}

type routeRequest struct {
	FromChain   string   `json:"fromChain"`
	FromToken   string   `json:"fromToken"`
	FromAmount  string   `json:"fromAmount"`
	ToChain     string   `json:"toChain"`
	ToToken     string   `json:"toToken"`
	ToAddress   string   `json:"toAddress"`
	Slippage    *float64 `json:"slippage,omitempty"`
	FromAddress string   `json:"fromAddress"`
	QuoteOnly   bool     `json:"quoteOnly"`
}

type token struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	ChainID  string `json:"chainId"`
	Decimals int    `json:"decimals"`
	LogoURI  string `json:"logoURI"`
}

type gasCost struct {
	Type      string `json:"type"`
	Token     token  `json:"token"`
	Amount    string `json:"amount"`
	GasLimit  string `json:"gasLimit"`
	AmountUSD string `json:"amountUsd"`
}

type action struct {
	FromToken  token  `json:"fromToken"`
	ToToken    token  `json:"toToken"`
	FromAmount string `json:"fromAmount"`
	ToAmount   string `json:"toAmount"`
	Provider   string `json:"provider"`
	LogoURI    string `json:"logoURI"`
}

type estimate struct {
	Actions                []action  `json:"actions"`
	FromAmount             string    `json:"fromAmount"`
	ToAmount               string    `json:"toAmount"`
	ToAmountMin            string    `json:"toAmountMin"`
	EstimatedRouteDuration int64     `json:"estimatedRouteDuration"`
	GasCosts               []gasCost `json:"gasCosts"`
	AggregateSlippage      float64   `json:"aggregateSlippage"`
	AggregatePriceImpact   string    `json:"aggregatePriceImpact"`
}

type transactionRequest struct {
	Target   string `json:"target"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit string `json:"gasLimit"`
	GasPrice string `json:"gasPrice"`
}

type routeResponse struct {
	Route struct {
		Estimate           estimate            `json:"estimate"`
		TransactionRequest *transactionRequest `json:"transactionRequest"`
		QuoteID            string              `json:"quoteId"`
	} `json:"route"`
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Errors) > 0 && payload.Errors[0].Message != "" {
		return payload.Errors[0].Message
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func (c *Client) headers() map[string]string {
	return map[string]string{"x-integrator-id": c.integratorID}
}

func (c *Client) route(ctx context.Context, req model.SwapRequest, src, dst id.Chain) (routeResponse, error) {
	fromChain, _ := ChainID(src)
	toChain, _ := ChainID(dst)
	toAddress := strings.TrimSpace(req.Recipient)
	if toAddress == "" {
		toAddress = req.RefundTo
	}
	body := routeRequest{
		FromChain:   fromChain,
		FromToken:   tokenAddress(src, req.SourceTokenAddress),
		FromAmount:  req.Amount,
		ToChain:     toChain,
		ToToken:     tokenAddress(dst, req.DestinationTokenAddress),
		ToAddress:   toAddress,
		FromAddress: req.RefundTo,
	}
	if req.SlippagePercentage != nil && strings.TrimSpace(*req.SlippagePercentage) != "" {
		d, err := decimal.NewFromString(strings.TrimSpace(*req.SlippagePercentage))
		if err != nil {
			return routeResponse{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid slippage percentage %q", *req.SlippagePercentage))
		}
		f := d.InexactFloat64()
		body.Slippage = &f
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return routeResponse{}, clierr.Wrap(clierr.CodeInternal, "encode squid route request", err)
	}

	var resp routeResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+"/v2/route", buf, c.headers(), &resp); err != nil {
		return routeResponse{}, providers.ClassifyUpstream(model.ProviderSquid, err, errorPhrases, errorMessage)
	}
	return resp, nil
}

func (c *Client) toRoute(resp routeResponse, req model.SwapRequest, src id.Chain) (model.SwapRoute, error) {
	est := resp.Route.Estimate
	if len(est.Actions) == 0 {
		return model.SwapRoute{}, clierr.New(clierr.CodeProvider, "squid route response missing actions in estimate")
	}
	steps := make([]model.SwapRouteStep, 0, len(est.Actions))
	for _, a := range est.Actions {
		pct := 100.0
		steps = append(steps, model.SwapRouteStep{
			SourceToken:       stepToken(a.FromToken),
			SourceAmount:      a.FromAmount,
			DestinationToken:  stepToken(a.ToToken),
			DestinationAmount: a.ToAmount,
			Tool:              model.SwapTool{Name: a.Provider, Logo: a.LogoURI},
			Percent:           &pct,
		})
	}

	route := model.SwapRoute{
		ID:                   resp.Route.QuoteID,
		Provider:             model.ProviderSquid,
		Steps:                steps,
		SourceAmount:         est.FromAmount,
		DestinationAmount:    est.ToAmount,
		DestinationAmountMin: est.ToAmountMin,
		EstimatedTime:        est.EstimatedRouteDuration,
		NetworkFee:           networkFee(resp, req, src),
		SlippagePercentage:   decimal.NewFromFloat(est.AggregateSlippage).String(),
	}
	if route.ID == "" {
		route.ID = providers.NewRouteID("squid_")
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(est.AggregatePriceImpact), 64); err == nil {
		route.PriceImpact = &f
	}
	if tx := resp.Route.TransactionRequest; tx != nil {
		route.DepositAddress = tx.Target
		if src.IsEVM() {
			route.TransactionParams = model.EVMTransactionParams{
				Chain:    src.Slug,
				From:     req.RefundTo,
				To:       tx.Target,
				Value:    tx.Value,
				Data:     tx.Data,
				GasLimit: tx.GasLimit,
				GasPrice: tx.GasPrice,
			}
		}
	}
	c.Capabilities().Apply(&route)
	return route, nil
}

func stepToken(t token) model.SwapStepToken {
	chain, ok := chainFromSquid(t.ChainID)
	if !ok {
		return model.SwapStepToken{ChainID: t.ChainID, ContractAddress: t.Address, Symbol: t.Symbol, Decimals: t.Decimals, Logo: t.LogoURI}
	}
	return model.SwapStepToken{
		Coin:            chain.Coin,
		ChainID:         chain.ChainID,
		ContractAddress: canonicalAddress(chain, t.Address),
		Symbol:          t.Symbol,
		Decimals:        t.Decimals,
		Logo:            t.LogoURI,
	}
}

// networkFee sums source-chain gas costs and the part of the transaction
// value that is not the swapped amount itself.
func networkFee(resp routeResponse, req model.SwapRequest, src id.Chain) *model.NetworkFee {
	est := resp.Route.Estimate
	total := amount.Zero()
	for _, g := range est.GasCosts {
		if chain, ok := chainFromSquid(g.Token.ChainID); ok && chain.Key() == src.Key() {
			total = total.Add(amount.Parse(g.Amount))
		}
	}
	if tx := resp.Route.TransactionRequest; tx != nil && src.IsEVM() {
		value := amount.Parse(tx.Value)
		if value.IsPositive() {
			if strings.TrimSpace(req.SourceTokenAddress) == "" {
				if from := amount.Parse(est.FromAmount); value.Gt(from) {
					total = total.Add(value.Sub(from))
				}
			} else {
				total = total.Add(value)
			}
		}
	}
	if !total.Defined() || total.IsZero() {
		return nil
	}
	return &model.NetworkFee{
		Amount:   total.String(),
		Decimals: src.NativeDecimals,
		Symbol:   src.NativeSymbol,
	}
}

type statusResponse struct {
	ID                     string `json:"id"`
	Status                 string `json:"status"`
	SquidTransactionStatus string `json:"squidTransactionStatus"`
}

func (c *Client) Status(ctx context.Context, req model.SwapStatusRequest) (model.SwapStatusResponse, error) {
	src, ok := id.LookupChain(req.SourceCoin, req.SourceChainID)
	if !ok {
		return model.SwapStatusResponse{}, clierr.New(clierr.CodeUnsupported, "squid: unsupported chain")
	}
	dst, ok := id.LookupChain(req.DestinationCoin, req.DestinationChainID)
	if !ok {
		return model.SwapStatusResponse{}, clierr.New(clierr.CodeUnsupported, "squid: unsupported chain")
	}
	fromChain, srcOK := ChainID(src)
	toChain, dstOK := ChainID(dst)
	if !srcOK || !dstOK {
		return model.SwapStatusResponse{}, clierr.New(clierr.CodeUnsupported, "squid: unsupported chain")
	}
	if strings.TrimSpace(req.TxHash) == "" {
		return model.SwapStatusResponse{}, clierr.New(clierr.CodeUsage, "squid status requires a tx hash")
	}

	vals := url.Values{}
	vals.Set("transactionId", req.TxHash)
	vals.Set("fromChainId", fromChain)
	vals.Set("toChainId", toChain)
	if req.RouteID != "" {
		vals.Set("quoteId", req.RouteID)
	}
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/status?"+vals.Encode(), nil)
	if err != nil {
		return model.SwapStatusResponse{}, clierr.Wrap(clierr.CodeInternal, "build squid status request", err)
	}
	if c.integratorID != "" {
		hReq.Header.Set("x-integrator-id", c.integratorID)
	}

	var resp statusResponse
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return model.SwapStatusResponse{}, providers.ClassifyUpstream(model.ProviderSquid, err, errorPhrases, errorMessage)
	}
	return model.SwapStatusResponse{
		Status:             statusTable.Map(resp.Status),
		InternalStatus:     resp.SquidTransactionStatus,
		ExplorerURL:        explorerURL + req.TxHash,
		SourceCoin:         req.SourceCoin,
		SourceChainID:      req.SourceChainID,
		DestinationCoin:    req.DestinationCoin,
		DestinationChainID: req.DestinationChainID,
		Provider:           model.ProviderSquid,
	}, nil
}
