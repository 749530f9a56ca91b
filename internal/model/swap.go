package model

import (
	"time"

	"github.com/ggonzalez94/swap-router/internal/id"
)

type ProviderID string

const (
	ProviderNearIntents ProviderID = "near_intents"
	ProviderJupiter     ProviderID = "jupiter"
	ProviderSquid       ProviderID = "squid"
	// ProviderAuto asks the router to fan out to every supporting provider.
	ProviderAuto ProviderID = "auto"
)

type SwapType string

const (
	SwapTypeExactInput  SwapType = "EXACT_INPUT"
	SwapTypeExactOutput SwapType = "EXACT_OUTPUT"
)

type SwapStatus string

const (
	SwapStatusPending    SwapStatus = "PENDING"
	SwapStatusProcessing SwapStatus = "PROCESSING"
	SwapStatusSuccess    SwapStatus = "SUCCESS"
	SwapStatusFailed     SwapStatus = "FAILED"
	SwapStatusRefunded   SwapStatus = "REFUNDED"
)

func (s SwapStatus) IsTerminal() bool {
	switch s {
	case SwapStatusSuccess, SwapStatusFailed, SwapStatusRefunded:
		return true
	}
	return false
}

// TokenInfo is a read-only token snapshot. An empty Address is the chain's native asset.
type TokenInfo struct {
	Coin               id.Coin  `json:"coin"`
	ChainID            string   `json:"chain_id"`
	Address            string   `json:"address,omitempty"`
	Name               string   `json:"name"`
	Symbol             string   `json:"symbol"`
	Decimals           int      `json:"decimals"`
	Logo               string   `json:"logo,omitempty"`
	Sources            []string `json:"sources,omitempty"`
	NearIntentsAssetID string   `json:"near_intents_asset_id,omitempty"`
}

type SwapSupportRequest struct {
	SourceCoin              id.Coin `json:"source_coin"`
	SourceChainID           string  `json:"source_chain_id"`
	SourceTokenAddress      string  `json:"source_token_address,omitempty"`
	DestinationCoin         id.Coin `json:"destination_coin"`
	DestinationChainID      string  `json:"destination_chain_id"`
	DestinationTokenAddress string  `json:"destination_token_address,omitempty"`
	Recipient               string  `json:"recipient"`
}

func (r SwapSupportRequest) SourceChain() (id.Chain, bool) {
	return id.LookupChain(r.SourceCoin, r.SourceChainID)
}

func (r SwapSupportRequest) DestinationChain() (id.Chain, bool) {
	return id.LookupChain(r.DestinationCoin, r.DestinationChainID)
}

type SwapRequest struct {
	SwapSupportRequest
	Amount   string     `json:"amount"`
	SwapType SwapType   `json:"swap_type"`
	RefundTo string     `json:"refund_to"`
	Provider ProviderID `json:"provider"`
	// SlippagePercentage is nil when the venue should pick its own tolerance.
	SlippagePercentage *string `json:"slippage_percentage"`
}

func (r SwapRequest) IsExactOutput() bool {
	return r.SwapType == SwapTypeExactOutput
}

type SwapStepToken struct {
	Coin            id.Coin `json:"coin"`
	ChainID         string  `json:"chain_id"`
	ContractAddress string  `json:"contract_address,omitempty"`
	Symbol          string  `json:"symbol"`
	Decimals        int     `json:"decimals"`
	Logo            string  `json:"logo,omitempty"`
}

func StepTokenFrom(t TokenInfo) SwapStepToken {
	return SwapStepToken{
		Coin:            t.Coin,
		ChainID:         t.ChainID,
		ContractAddress: t.Address,
		Symbol:          t.Symbol,
		Decimals:        t.Decimals,
		Logo:            t.Logo,
	}
}

type SwapTool struct {
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

type SwapRouteStep struct {
	SourceToken       SwapStepToken `json:"source_token"`
	SourceAmount      string        `json:"source_amount"`
	DestinationToken  SwapStepToken `json:"destination_token"`
	DestinationAmount string        `json:"destination_amount"`
	Tool              SwapTool      `json:"tool"`
	Percent           *float64      `json:"percent,omitempty"`
}

type NetworkFee struct {
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
	Symbol   string `json:"symbol"`
}

type SwapRoute struct {
	ID                   string            `json:"id"`
	Provider             ProviderID        `json:"provider"`
	Steps                []SwapRouteStep   `json:"steps"`
	SourceAmount         string            `json:"source_amount"`
	DestinationAmount    string            `json:"destination_amount"`
	DestinationAmountMin string            `json:"destination_amount_min"`
	EstimatedTime        int64             `json:"estimated_time"`
	PriceImpact          *float64          `json:"price_impact"`
	NetworkFee           *NetworkFee       `json:"network_fee"`
	DepositAddress       string            `json:"deposit_address,omitempty"`
	DepositMemo          string            `json:"deposit_memo,omitempty"`
	ExpiresAt            *time.Time        `json:"expires_at"`
	TransactionParams    TransactionParams `json:"transaction_params"`
	SlippagePercentage   string            `json:"slippage_percentage,omitempty"`
	Gasless              bool              `json:"gasless"`

	RequiresFirmRoute      bool `json:"requires_firm_route"`
	RequiresTokenAllowance bool `json:"requires_token_allowance"`
	HasPostSubmitHook      bool `json:"has_post_submit_hook"`
}

type SwapQuote struct {
	Routes []SwapRoute `json:"routes"`
}

type SwapSupport struct {
	Supported bool         `json:"supported"`
	Providers []ProviderID `json:"providers"`
}

type SwapStatusRequest struct {
	TxHash             string     `json:"tx_hash"`
	SourceCoin         id.Coin    `json:"source_coin"`
	SourceChainID      string     `json:"source_chain_id"`
	DestinationCoin    id.Coin    `json:"destination_coin"`
	DestinationChainID string     `json:"destination_chain_id"`
	DepositAddress     string     `json:"deposit_address,omitempty"`
	DepositMemo        string     `json:"deposit_memo,omitempty"`
	Provider           ProviderID `json:"provider"`
	RouteID            string     `json:"route_id,omitempty"`
}

// TrackingKey identifies one swap across polls.
func (r SwapStatusRequest) TrackingKey() string {
	ref := r.DepositAddress
	if ref == "" {
		ref = r.TxHash
	}
	if ref == "" {
		ref = r.RouteID
	}
	return string(r.Provider) + ":" + ref
}

type TransactionDetails struct {
	Chain       string `json:"chain,omitempty"`
	Hash        string `json:"hash"`
	ExplorerURL string `json:"explorer_url,omitempty"`
	Status      string `json:"status,omitempty"`
}

type SwapDetails struct {
	AmountIn                string               `json:"amount_in,omitempty"`
	AmountInFormatted       string               `json:"amount_in_formatted,omitempty"`
	AmountInUSD             string               `json:"amount_in_usd,omitempty"`
	AmountOut               string               `json:"amount_out,omitempty"`
	AmountOutFormatted      string               `json:"amount_out_formatted,omitempty"`
	AmountOutUSD            string               `json:"amount_out_usd,omitempty"`
	RefundedAmount          string               `json:"refunded_amount,omitempty"`
	RefundedAmountFormatted string               `json:"refunded_amount_formatted,omitempty"`
	Transactions            []TransactionDetails `json:"transactions,omitempty"`
}

type SwapStatusResponse struct {
	Status             SwapStatus   `json:"status"`
	InternalStatus     string       `json:"internal_status,omitempty"`
	ExplorerURL        string       `json:"explorer_url,omitempty"`
	SourceCoin         id.Coin      `json:"source_coin"`
	SourceChainID      string       `json:"source_chain_id"`
	DestinationCoin    id.Coin      `json:"destination_coin"`
	DestinationChainID string       `json:"destination_chain_id"`
	Recipient          string       `json:"recipient,omitempty"`
	Details            *SwapDetails `json:"swap_details,omitempty"`
	UpdatedAt          *time.Time   `json:"updated_at,omitempty"`
	Provider           ProviderID   `json:"provider"`
}
