package nearintents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/shopspring/decimal"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/httpx"
	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
	"github.com/ggonzalez94/swap-router/internal/providers"
	"github.com/ggonzalez94/swap-router/internal/txparams"
	"github.com/ggonzalez94/swap-router/internal/version"
)

const (
	DefaultBaseURL       = "https://1click.chaindefuser.com"
	DefaultReferral      = "swaps"
	DefaultQuoteDeadline = time.Hour
	DefaultTokenTTL      = 24 * time.Hour
	explorerURL          = "https://explorer.near-intents.org/transactions/"
	defaultSlippage      = "0.5"
)

var tool = model.SwapTool{
	Name: "NEAR Intents",
	Logo: "https://static1.tokenterminal.com/near/products/nearintents/logo.png",
}

var errorPhrases = []string{
	"too low",
	"too small",
	"insufficient liquidity",
	"not enough liquidity",
	"liquidity",
	"try at least",
}

var statusTable = providers.StatusTable{
	"KNOWN_DEPOSIT_TX":   model.SwapStatusPending,
	"PENDING_DEPOSIT":    model.SwapStatusPending,
	"INCOMPLETE_DEPOSIT": model.SwapStatusPending,
	"PROCESSING":         model.SwapStatusProcessing,
	"SUCCESS":            model.SwapStatusSuccess,
	"REFUNDED":           model.SwapStatusRefunded,
	"FAILED":             model.SwapStatusFailed,
}

type Config struct {
	BaseURL  string
	JWT      string
	Referral string
	// QuoteDeadline is how long a firm deposit address stays valid.
	QuoteDeadline time.Duration
	TokenTTL      time.Duration
}

// Collaborators are the injected services the adapter reads and writes. Any
// of them may be nil.
type Collaborators struct {
	Tokens   providers.SupportedTokenCache
	Deposits providers.DepositIdempotency
	Gas      providers.GasPriceOracle
	Logger   *slog.Logger
}

type Client struct {
	http     *httpx.Client
	sdk      *oneclick.APIClient
	cfg      Config
	tokens   providers.SupportedTokenCache
	deposits providers.DepositIdempotency
	gas      providers.GasPriceOracle
	log      *slog.Logger
	now      func() time.Time
}

func New(httpClient *httpx.Client, cfg Config, deps Collaborators) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.JWT = strings.TrimSpace(cfg.JWT)
	if strings.TrimSpace(cfg.Referral) == "" {
		cfg.Referral = DefaultReferral
	}
	if cfg.QuoteDeadline <= 0 {
		cfg.QuoteDeadline = DefaultQuoteDeadline
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sdkCfg := oneclick.NewConfiguration()
	sdkCfg.Servers = oneclick.ServerConfigurations{{URL: cfg.BaseURL}}
	sdkCfg.HTTPClient = httpClient.HTTPClient()
	sdkCfg.UserAgent = version.UserAgent()

	return &Client{
		http:     httpClient,
		sdk:      oneclick.NewAPIClient(sdkCfg),
		cfg:      cfg,
		tokens:   deps.Tokens,
		deposits: deps.Deposits,
		gas:      deps.Gas,
		log:      logger,
		now:      time.Now,
	}
}

func (c *Client) ID() model.ProviderID { return model.ProviderNearIntents }

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:          string(model.ProviderNearIntents),
		Type:          "swap",
		RequiresKey:   false,
		KeyEnvVarName: "SWAPS_NEAR_INTENTS_JWT",
		Capabilities: []string{
			"swap.quote",
			"swap.firm",
			"swap.submit",
			"swap.status",
			"tokens.list",
		},
	}
}

func (c *Client) Capabilities() providers.Capabilities {
	return providers.Capabilities{
		RequiresFirmRoute:      true,
		RequiresTokenAllowance: false,
		HasPostSubmitHook:      true,
		HasAutoSlippageSupport: false,
	}
}

// HasSupport requires both chains to be reachable through NEAR Intents and
// both tokens to appear in the venue's supported list.
func (c *Client) HasSupport(ctx context.Context, req model.SwapSupportRequest) (bool, error) {
	src, ok := req.SourceChain()
	if !ok || src.NearIntentsID == "" {
		return false, nil
	}
	dst, ok := req.DestinationChain()
	if !ok || dst.NearIntentsID == "" {
		return false, nil
	}
	supported, err := c.SupportedTokens(ctx)
	if err != nil {
		return false, err
	}
	_, srcOK := findToken(supported, req.SourceCoin, req.SourceChainID, req.SourceTokenAddress)
	_, dstOK := findToken(supported, req.DestinationCoin, req.DestinationChainID, req.DestinationTokenAddress)
	return srcOK && dstOK, nil
}

func findToken(tokens []model.TokenInfo, coin id.Coin, chainID, address string) (model.TokenInfo, bool) {
	for _, t := range tokens {
		if t.Coin == coin && strings.EqualFold(t.ChainID, chainID) && id.AddressEqual(t.Address, address) {
			return t, true
		}
	}
	return model.TokenInfo{}, false
}

func (c *Client) IndicativeRoutes(ctx context.Context, req model.SwapRequest) ([]model.SwapRoute, error) {
	route, err := c.quote(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return []model.SwapRoute{route}, nil
}

func (c *Client) FirmRoute(ctx context.Context, req model.SwapRequest) (model.SwapRoute, error) {
	route, err := c.quote(ctx, req, false)
	if err != nil {
		return model.SwapRoute{}, err
	}
	if route.DepositAddress == "" {
		return model.SwapRoute{}, clierr.New(clierr.CodeProvider, "near_intents: firm quote missing deposit address")
	}
	return route, nil
}

type quoteRequest struct {
	Dry                bool   `json:"dry"`
	DepositMode        string `json:"depositMode"`
	SwapType           string `json:"swapType"`
	SlippageTolerance  int64  `json:"slippageTolerance"`
	OriginAsset        string `json:"originAsset"`
	DepositType        string `json:"depositType"`
	DestinationAsset   string `json:"destinationAsset"`
	Amount             string `json:"amount"`
	RefundTo           string `json:"refundTo"`
	RefundType         string `json:"refundType"`
	Recipient          string `json:"recipient"`
	RecipientType      string `json:"recipientType"`
	Deadline           string `json:"deadline"`
	Referral           string `json:"referral,omitempty"`
	QuoteWaitingTimeMs int64  `json:"quoteWaitingTimeMs"`
}

type quoteData struct {
	AmountIn           string     `json:"amountIn"`
	AmountInFormatted  string     `json:"amountInFormatted"`
	AmountInUSD        *string    `json:"amountInUsd"`
	MinAmountIn        string     `json:"minAmountIn"`
	MaxAmountIn        string     `json:"maxAmountIn"`
	AmountOut          string     `json:"amountOut"`
	AmountOutFormatted string     `json:"amountOutFormatted"`
	AmountOutUSD       *string    `json:"amountOutUsd"`
	MinAmountOut       string     `json:"minAmountOut"`
	TimeEstimate       int64      `json:"timeEstimate"`
	Deadline           *time.Time `json:"deadline"`
	TimeWhenInactive   *time.Time `json:"timeWhenInactive"`
	DepositAddress     *string    `json:"depositAddress"`
	DepositMemo        *string    `json:"depositMemo"`
}

type quoteResponse struct {
	Timestamp    *time.Time      `json:"timestamp"`
	Signature    string          `json:"signature"`
	QuoteRequest json.RawMessage `json:"quoteRequest"`
	Quote        quoteData       `json:"quote"`
}

func errorMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Message) > 0 {
		var msg string
		if err := json.Unmarshal(payload.Message, &msg); err == nil && msg != "" {
			return msg
		}
		var msgs []string
		if err := json.Unmarshal(payload.Message, &msgs); err == nil && len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return payload.Error
}

type resolvedPair struct {
	src, dst           id.Chain
	srcToken, dstToken model.TokenInfo
}

func (c *Client) resolve(ctx context.Context, req model.SwapRequest) (resolvedPair, error) {
	var p resolvedPair
	var ok bool
	if p.src, ok = req.SourceChain(); !ok {
		return p, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("unknown source chain %s:%s", req.SourceCoin, req.SourceChainID))
	}
	if p.dst, ok = req.DestinationChain(); !ok {
		return p, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("unknown destination chain %s:%s", req.DestinationCoin, req.DestinationChainID))
	}
	supported, err := c.SupportedTokens(ctx)
	if err != nil {
		return p, err
	}
	if p.srcToken, ok = findToken(supported, req.SourceCoin, req.SourceChainID, req.SourceTokenAddress); !ok {
		return p, clierr.New(clierr.CodeUnsupported, "near_intents: source token not supported")
	}
	if p.dstToken, ok = findToken(supported, req.DestinationCoin, req.DestinationChainID, req.DestinationTokenAddress); !ok {
		return p, clierr.New(clierr.CodeUnsupported, "near_intents: destination token not supported")
	}
	return p, nil
}

func (c *Client) quote(ctx context.Context, req model.SwapRequest, dry bool) (model.SwapRoute, error) {
	pair, err := c.resolve(ctx, req)
	if err != nil {
		return model.SwapRoute{}, err
	}
	slippage := defaultSlippage
	if req.SlippagePercentage != nil && strings.TrimSpace(*req.SlippagePercentage) != "" {
		slippage = strings.TrimSpace(*req.SlippagePercentage)
	}
	bps, err := slippageBps(slippage)
	if err != nil {
		return model.SwapRoute{}, err
	}

	body := quoteRequest{
		Dry:                dry,
		DepositMode:        "SIMPLE",
		SwapType:           string(req.SwapType),
		SlippageTolerance:  bps,
		OriginAsset:        pair.srcToken.NearIntentsAssetID,
		DepositType:        "ORIGIN_CHAIN",
		DestinationAsset:   pair.dstToken.NearIntentsAssetID,
		Amount:             req.Amount,
		RefundTo:           req.RefundTo,
		RefundType:         "ORIGIN_CHAIN",
		Recipient:          req.Recipient,
		RecipientType:      "DESTINATION_CHAIN",
		Deadline:           c.now().UTC().Add(c.cfg.QuoteDeadline).Format("2006-01-02T15:04:05.000000Z"),
		Referral:           c.cfg.Referral,
		QuoteWaitingTimeMs: 0,
	}
	if body.SwapType == "" {
		body.SwapType = string(model.SwapTypeExactInput)
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return model.SwapRoute{}, clierr.Wrap(clierr.CodeInternal, "encode near intents quote request", err)
	}

	var resp quoteResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.cfg.BaseURL+"/v0/quote", buf, c.headers(), &resp); err != nil {
		return model.SwapRoute{}, providers.ClassifyUpstream(model.ProviderNearIntents, err, errorPhrases, errorMessage)
	}
	return c.toRoute(ctx, resp.Quote, req, pair, slippage)
}

func (c *Client) headers() map[string]string {
	h := map[string]string{}
	if c.cfg.JWT != "" {
		h["Authorization"] = "Bearer " + c.cfg.JWT
	}
	return h
}

func (c *Client) toRoute(ctx context.Context, q quoteData, req model.SwapRequest, pair resolvedPair, slippage string) (model.SwapRoute, error) {
	if strings.TrimSpace(q.AmountOut) == "" {
		return model.SwapRoute{}, clierr.New(clierr.CodeUnavailable, "near intents quote missing output amount")
	}
	sourceAmount, depositAmount := q.AmountIn, q.AmountIn
	if req.IsExactOutput() {
		if q.MinAmountIn != "" {
			sourceAmount = q.MinAmountIn
		}
		if q.MaxAmountIn != "" {
			depositAmount = q.MaxAmountIn
		}
	}

	route := model.SwapRoute{
		Provider: model.ProviderNearIntents,
		Steps: []model.SwapRouteStep{{
			SourceToken:       model.StepTokenFrom(pair.srcToken),
			SourceAmount:      sourceAmount,
			DestinationToken:  model.StepTokenFrom(pair.dstToken),
			DestinationAmount: q.AmountOut,
			Tool:              tool,
		}},
		SourceAmount:         sourceAmount,
		DestinationAmount:    q.AmountOut,
		DestinationAmountMin: q.MinAmountOut,
		EstimatedTime:        q.TimeEstimate,
		PriceImpact:          PriceImpact(q.AmountInUSD, q.AmountOutUSD),
		SlippagePercentage:   slippage,
	}

	if q.DepositAddress != nil && strings.TrimSpace(*q.DepositAddress) != "" {
		route.ID = *q.DepositAddress
		route.DepositAddress = *q.DepositAddress
		if q.DepositMemo != nil {
			route.DepositMemo = *q.DepositMemo
		}
		if q.Deadline != nil {
			t := q.Deadline.UTC()
			route.ExpiresAt = &t
		}
		deposit := txparams.Deposit{
			Chain:          pair.src,
			TokenAddress:   pair.srcToken.Address,
			TokenDecimals:  pair.srcToken.Decimals,
			From:           req.RefundTo,
			DepositAddress: route.DepositAddress,
			Amount:         depositAmount,
		}
		params, err := txparams.Build(deposit)
		if err != nil {
			return model.SwapRoute{}, err
		}
		route.TransactionParams = params
		fee, err := txparams.DepositFee(ctx, c.gas, pair.src, deposit.IsToken())
		if err != nil {
			c.log.Warn("deposit fee estimate failed", "provider", model.ProviderNearIntents, "chain", pair.src.Slug, "error", err)
		}
		route.NetworkFee = fee
	} else {
		route.ID = providers.NewRouteID("near_")
	}
	c.Capabilities().Apply(&route)
	return route, nil
}

// PriceImpact is the USD change from input to output in percent. It is nil
// when either figure is missing or not numeric, or the input is zero.
func PriceImpact(inUSD, outUSD *string) *float64 {
	if inUSD == nil || outUSD == nil {
		return nil
	}
	in, err := decimal.NewFromString(strings.TrimSpace(*inUSD))
	if err != nil || in.IsZero() {
		return nil
	}
	out, err := decimal.NewFromString(strings.TrimSpace(*outUSD))
	if err != nil {
		return nil
	}
	f := out.Div(in).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).InexactFloat64()
	return &f
}

func slippageBps(pct string) (int64, error) {
	d, err := decimal.NewFromString(pct)
	if err != nil || d.IsNegative() {
		return 0, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid slippage percentage %q", pct))
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

type chainTx struct {
	Hash        string `json:"hash"`
	ExplorerURL string `json:"explorerUrl"`
}

type swapDetails struct {
	IntentHashes             []string  `json:"intentHashes"`
	NearTxHashes             []string  `json:"nearTxHashes"`
	AmountIn                 string    `json:"amountIn"`
	AmountInFormatted        string    `json:"amountInFormatted"`
	AmountInUSD              string    `json:"amountInUsd"`
	AmountOut                string    `json:"amountOut"`
	AmountOutFormatted       string    `json:"amountOutFormatted"`
	AmountOutUSD             string    `json:"amountOutUsd"`
	RefundedAmount           string    `json:"refundedAmount"`
	RefundedAmountFormatted  string    `json:"refundedAmountFormatted"`
	OriginChainTxHashes      []chainTx `json:"originChainTxHashes"`
	DestinationChainTxHashes []chainTx `json:"destinationChainTxHashes"`
}

type statusResponse struct {
	Status        string        `json:"status"`
	UpdatedAt     *time.Time    `json:"updatedAt"`
	SwapDetails   swapDetails   `json:"swapDetails"`
	QuoteResponse quoteResponse `json:"quoteResponse"`
}

// Status polls the venue. A deposit the venue has not noticed yet is reported
// to it when a tx hash is known; terminal statuses clear the submit marker.
func (c *Client) Status(ctx context.Context, req model.SwapStatusRequest) (model.SwapStatusResponse, error) {
	if strings.TrimSpace(req.DepositAddress) == "" {
		return model.SwapStatusResponse{}, clierr.New(clierr.CodeUsage, "near_intents status requires a deposit address")
	}
	vals := url.Values{}
	vals.Set("depositAddress", req.DepositAddress)
	if req.DepositMemo != "" {
		vals.Set("depositMemo", req.DepositMemo)
	}
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v0/status?"+vals.Encode(), nil)
	if err != nil {
		return model.SwapStatusResponse{}, clierr.Wrap(clierr.CodeInternal, "build near intents status request", err)
	}
	for k, v := range c.headers() {
		hReq.Header.Set(k, v)
	}
	var resp statusResponse
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return model.SwapStatusResponse{}, providers.ClassifyUpstream(model.ProviderNearIntents, err, errorPhrases, errorMessage)
	}

	status := statusTable.Map(resp.Status)
	switch {
	case strings.EqualFold(resp.Status, "PENDING_DEPOSIT") && strings.TrimSpace(req.TxHash) != "":
		if err := c.submitGuarded(ctx, req, false); err != nil {
			c.log.Warn("deposit notification failed", "provider", model.ProviderNearIntents, "deposit_address", req.DepositAddress, "error", err)
		}
	case status.IsTerminal() && c.deposits != nil:
		if err := c.deposits.Clear(ctx, req.DepositAddress); err != nil {
			c.log.Debug("clear deposit marker failed", "deposit_address", req.DepositAddress, "error", err)
		}
	}
	return toStatus(resp, req, status), nil
}

func toStatus(resp statusResponse, req model.SwapStatusRequest, status model.SwapStatus) model.SwapStatusResponse {
	srcChain, dstChain := chainSlug(req.SourceCoin, req.SourceChainID), chainSlug(req.DestinationCoin, req.DestinationChainID)
	sd := resp.SwapDetails
	txs := make([]model.TransactionDetails, 0, len(sd.OriginChainTxHashes)+len(sd.DestinationChainTxHashes))
	for _, tx := range sd.OriginChainTxHashes {
		txs = append(txs, model.TransactionDetails{Chain: srcChain, Hash: tx.Hash, ExplorerURL: tx.ExplorerURL})
	}
	for _, tx := range sd.DestinationChainTxHashes {
		txs = append(txs, model.TransactionDetails{Chain: dstChain, Hash: tx.Hash, ExplorerURL: tx.ExplorerURL})
	}
	out := model.SwapStatusResponse{
		Status:             status,
		InternalStatus:     resp.Status,
		ExplorerURL:        explorerURL + req.DepositAddress,
		SourceCoin:         req.SourceCoin,
		SourceChainID:      req.SourceChainID,
		DestinationCoin:    req.DestinationCoin,
		DestinationChainID: req.DestinationChainID,
		Details: &model.SwapDetails{
			AmountIn:                sd.AmountIn,
			AmountInFormatted:       sd.AmountInFormatted,
			AmountInUSD:             sd.AmountInUSD,
			AmountOut:               sd.AmountOut,
			AmountOutFormatted:      sd.AmountOutFormatted,
			AmountOutUSD:            sd.AmountOutUSD,
			RefundedAmount:          sd.RefundedAmount,
			RefundedAmountFormatted: sd.RefundedAmountFormatted,
			Transactions:            txs,
		},
		Provider: model.ProviderNearIntents,
	}
	if len(resp.QuoteResponse.QuoteRequest) > 0 {
		var qr struct {
			Recipient string `json:"recipient"`
		}
		if err := json.Unmarshal(resp.QuoteResponse.QuoteRequest, &qr); err == nil {
			out.Recipient = qr.Recipient
		}
	}
	if resp.UpdatedAt != nil {
		t := resp.UpdatedAt.UTC()
		out.UpdatedAt = &t
	}
	return out
}

func chainSlug(coin id.Coin, chainID string) string {
	if chain, ok := id.LookupChain(coin, chainID); ok {
		return chain.Slug
	}
	return chainID
}

// PostSubmitHook tells the venue about the deposit transaction. A second
// call for the same deposit address inside the guard window is rejected.
func (c *Client) PostSubmitHook(ctx context.Context, req model.SwapStatusRequest) error {
	if strings.TrimSpace(req.DepositAddress) == "" || strings.TrimSpace(req.TxHash) == "" {
		return clierr.New(clierr.CodeUsage, "near_intents submit requires a deposit address and tx hash")
	}
	return c.submitGuarded(ctx, req, true)
}

func (c *Client) submitGuarded(ctx context.Context, req model.SwapStatusRequest, strict bool) error {
	if c.deposits != nil {
		ok, err := c.deposits.ShouldSubmit(ctx, req.DepositAddress)
		if err != nil {
			return err
		}
		if !ok {
			if strict {
				return clierr.New(clierr.CodeRateLimited, fmt.Sprintf("deposit for %s was submitted recently", req.DepositAddress))
			}
			return nil
		}
	}
	return c.submitDeposit(ctx, req)
}
