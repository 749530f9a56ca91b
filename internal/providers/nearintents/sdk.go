package nearintents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/httpx"
	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
	"github.com/ggonzalez94/swap-router/internal/providers"
)

func (c *Client) authContext(ctx context.Context) context.Context {
	if c.cfg.JWT == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.cfg.JWT)
}

// SupportedTokens lists the venue's tokens on chains the registry knows.
// Non-empty lists are cached for the configured TTL.
func (c *Client) SupportedTokens(ctx context.Context) ([]model.TokenInfo, error) {
	if c.tokens != nil {
		cached, ok, err := c.tokens.Get(ctx, model.ProviderNearIntents)
		if err != nil {
			c.log.Debug("supported token cache read failed", "provider", model.ProviderNearIntents, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	list, httpResp, err := c.sdk.OneClickAPI.GetTokens(c.authContext(ctx)).Execute()
	closeBody(httpResp)
	if err != nil {
		return nil, sdkError("tokens", httpResp, err)
	}

	tokens := make([]model.TokenInfo, 0, len(list))
	for _, t := range list {
		chain, ok := id.ChainByNearIntentsID(t.GetBlockchain())
		if !ok {
			c.log.Debug("skipping token on unknown chain", "provider", model.ProviderNearIntents, "blockchain", t.GetBlockchain(), "asset_id", t.GetAssetId())
			continue
		}
		tokens = append(tokens, model.TokenInfo{
			Coin:               chain.Coin,
			ChainID:            chain.ChainID,
			Address:            strings.TrimSpace(t.GetContractAddress()),
			Name:               t.GetSymbol(),
			Symbol:             t.GetSymbol(),
			Decimals:           int(t.GetDecimals()),
			Sources:            []string{string(model.ProviderNearIntents)},
			NearIntentsAssetID: t.GetAssetId(),
		})
	}

	if c.tokens != nil && len(tokens) > 0 {
		if err := c.tokens.Set(ctx, model.ProviderNearIntents, tokens, c.cfg.TokenTTL); err != nil {
			c.log.Debug("supported token cache write failed", "provider", model.ProviderNearIntents, "error", err)
		}
	}
	return tokens, nil
}

// submitRequest mirrors the deposit submit body. The SDK request type has no
// memo field, so memo-bearing deposits are posted directly.
type submitRequest struct {
	TxHash         string `json:"txHash"`
	DepositAddress string `json:"depositAddress"`
	Memo           string `json:"memo,omitempty"`
}

func (c *Client) submitDeposit(ctx context.Context, req model.SwapStatusRequest) error {
	if memo := strings.TrimSpace(req.DepositMemo); memo != "" {
		buf, err := json.Marshal(submitRequest{TxHash: req.TxHash, DepositAddress: req.DepositAddress, Memo: memo})
		if err != nil {
			return clierr.Wrap(clierr.CodeInternal, "encode near intents deposit submit", err)
		}
		if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.cfg.BaseURL+"/v0/deposit/submit", buf, c.headers(), nil); err != nil {
			return providers.ClassifyUpstream(model.ProviderNearIntents, err, errorPhrases, errorMessage)
		}
		return nil
	}

	body := oneclick.NewSubmitDepositTxRequestWithDefaults()
	body.SetTxHash(req.TxHash)
	body.SetDepositAddress(req.DepositAddress)

	_, httpResp, err := c.sdk.OneClickAPI.SubmitDepositTx(c.authContext(ctx)).SubmitDepositTxRequest(*body).Execute()
	closeBody(httpResp)
	// The venue accepted the deposit even if the echoed status body does not decode.
	if err != nil && (httpResp == nil || httpResp.StatusCode < 200 || httpResp.StatusCode >= 300) {
		return sdkError("deposit submit", httpResp, err)
	}
	return nil
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}

// sdkError maps a 1Click SDK failure onto the same codes httpx uses.
func sdkError(op string, resp *http.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	var apiErr *oneclick.GenericOpenAPIError
	if !errors.As(err, &apiErr) || status == 0 {
		return clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("near intents %s request failed", op), err).WithKind(clierr.KindUnknown)
	}

	code := clierr.CodeProvider
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = clierr.CodeAuth
	case status == http.StatusTooManyRequests:
		code = clierr.CodeRateLimited
	case status >= http.StatusInternalServerError:
		code = clierr.CodeUnavailable
	}
	wrapped := clierr.Wrap(code, fmt.Sprintf("near intents %s failed (status %d)", op, status), &httpx.ResponseError{
		StatusCode: status,
		Body:       apiErr.Body(),
	})
	return providers.ClassifyUpstream(model.ProviderNearIntents, wrapped, errorPhrases, errorMessage)
}
