package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
	"github.com/ggonzalez94/swap-router/internal/tokens"
)

const quoteCacheTTL = 15 * time.Second

// pairFlags are the source/destination selectors shared by every swap command.
type pairFlags struct {
	fromChain string
	fromToken string
	toChain   string
	toToken   string
	recipient string
}

func (f *pairFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fromChain, "from-chain", "", "Source chain (slug, alias, coin:chain_id or EVM chain id)")
	cmd.Flags().StringVar(&f.fromToken, "from-token", "", "Source token (address, symbol or native)")
	cmd.Flags().StringVar(&f.toChain, "to-chain", "", "Destination chain")
	cmd.Flags().StringVar(&f.toToken, "to-token", "", "Destination token (address, symbol or native)")
	cmd.Flags().StringVar(&f.recipient, "recipient", "", "Destination address")
	_ = cmd.MarkFlagRequired("from-chain")
	_ = cmd.MarkFlagRequired("to-chain")
}

func (f *pairFlags) supportRequest() (model.SwapSupportRequest, error) {
	src, err := id.ParseChain(f.fromChain)
	if err != nil {
		return model.SwapSupportRequest{}, err
	}
	dst, err := id.ParseChain(f.toChain)
	if err != nil {
		return model.SwapSupportRequest{}, err
	}
	srcToken, err := tokens.Resolve(src, f.fromToken)
	if err != nil {
		return model.SwapSupportRequest{}, err
	}
	dstToken, err := tokens.Resolve(dst, f.toToken)
	if err != nil {
		return model.SwapSupportRequest{}, err
	}
	return model.SwapSupportRequest{
		SourceCoin:              src.Coin,
		SourceChainID:           src.ChainID,
		SourceTokenAddress:      srcToken,
		DestinationCoin:         dst.Coin,
		DestinationChainID:      dst.ChainID,
		DestinationTokenAddress: dstToken,
		Recipient:               strings.TrimSpace(f.recipient),
	}, nil
}

type swapFlags struct {
	pairFlags
	amountBase    string
	amountDecimal string
	swapType      string
	slippage      string
	refundTo      string
	provider      string
}

func (f *swapFlags) bind(cmd *cobra.Command, defaultProvider string) {
	f.pairFlags.bind(cmd)
	cmd.Flags().StringVar(&f.amountBase, "amount", "", "Amount in base units")
	cmd.Flags().StringVar(&f.amountDecimal, "amount-decimal", "", "Amount in decimal units")
	cmd.Flags().StringVar(&f.swapType, "swap-type", string(model.SwapTypeExactInput), "EXACT_INPUT|EXACT_OUTPUT")
	cmd.Flags().StringVar(&f.slippage, "slippage", "", "Slippage tolerance in percent (venue default when unset)")
	cmd.Flags().StringVar(&f.refundTo, "refund-to", "", "Refund address on the source chain")
	cmd.Flags().StringVar(&f.provider, "provider", defaultProvider, "Provider: near_intents|jupiter|squid|auto")
}

func (f *swapFlags) swapRequest(ctx context.Context, s *runtimeState) (model.SwapRequest, error) {
	support, err := f.supportRequest()
	if err != nil {
		return model.SwapRequest{}, err
	}
	swapType, err := parseSwapType(f.swapType)
	if err != nil {
		return model.SwapRequest{}, err
	}

	// EXACT_OUTPUT amounts are denominated in the destination token.
	coin, chainID, address := support.SourceCoin, support.SourceChainID, support.SourceTokenAddress
	if swapType == model.SwapTypeExactOutput {
		coin, chainID, address = support.DestinationCoin, support.DestinationChainID, support.DestinationTokenAddress
	}
	decimals := 0
	if strings.TrimSpace(f.amountDecimal) != "" {
		token, ok, err := s.tokenLookup.Lookup(ctx, coin, chainID, address)
		if err != nil {
			return model.SwapRequest{}, clierr.Wrap(clierr.CodeInternal, "lookup token decimals", err)
		}
		if !ok {
			return model.SwapRequest{}, clierr.New(clierr.CodeUsage, "token decimals unknown, pass --amount in base units")
		}
		decimals = token.Decimals
	}
	base, _, err := id.NormalizeAmount(strings.TrimSpace(f.amountBase), strings.TrimSpace(f.amountDecimal), decimals)
	if err != nil {
		return model.SwapRequest{}, err
	}

	req := model.SwapRequest{
		SwapSupportRequest: support,
		Amount:             base,
		SwapType:           swapType,
		RefundTo:           strings.TrimSpace(f.refundTo),
		Provider:           model.ProviderID(strings.ToLower(strings.TrimSpace(f.provider))),
	}
	if v := strings.TrimSpace(f.slippage); v != "" {
		req.SlippagePercentage = &v
	}
	return req, nil
}

func parseSwapType(v string) (model.SwapType, error) {
	switch model.SwapType(strings.ToUpper(strings.TrimSpace(v))) {
	case "", model.SwapTypeExactInput:
		return model.SwapTypeExactInput, nil
	case model.SwapTypeExactOutput:
		return model.SwapTypeExactOutput, nil
	}
	return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported swap type: %s", v))
}

func (s *runtimeState) newSwapCommand() *cobra.Command {
	root := &cobra.Command{Use: "swap", Short: "Cross-venue swap commands"}
	root.AddCommand(s.newSwapSupportCommand())
	root.AddCommand(s.newSwapQuoteCommand())
	root.AddCommand(s.newSwapFirmCommand())
	root.AddCommand(s.newSwapSubmitCommand())
	root.AddCommand(s.newSwapStatusCommand())
	return root
}

func (s *runtimeState) newSwapSupportCommand() *cobra.Command {
	var flags pairFlags
	cmd := &cobra.Command{
		Use:   "support",
		Short: "List providers that support a token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.supportRequest()
			if err != nil {
				return err
			}
			path := trimRootPath(cmd.CommandPath())
			key := cacheKey(path, req)
			return s.runCachedCommand(path, key, 5*time.Minute, func(ctx context.Context) (any, []model.ProviderStatus, []string, bool, error) {
				return s.router.Support(ctx, req), nil, nil, false, nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func (s *runtimeState) newSwapQuoteCommand() *cobra.Command {
	var flags swapFlags
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Get indicative swap routes, best first",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := trimRootPath(cmd.CommandPath())
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			req, err := flags.swapRequest(ctx, s)
			cancel()
			if err != nil {
				return err
			}
			key := cacheKey(path, req)
			return s.runCachedCommand(path, key, quoteCacheTTL, func(ctx context.Context) (any, []model.ProviderStatus, []string, bool, error) {
				agg, err := s.router.IndicativeRoutes(ctx, req)
				statuses := agg.ProviderStatuses()
				if err != nil {
					return nil, statuses, nil, false, err
				}
				warnings := []string{}
				for _, res := range agg.Results {
					if res.Err != nil {
						warnings = append(warnings, fmt.Sprintf("%s: %v", res.Provider, res.Err))
					}
				}
				return model.SwapQuote{Routes: agg.Routes}, statuses, warnings, agg.Partial(), nil
			})
		},
	}
	flags.bind(cmd, string(model.ProviderAuto))
	return cmd
}

func (s *runtimeState) newSwapFirmCommand() *cobra.Command {
	var flags swapFlags
	cmd := &cobra.Command{
		Use:   "firm",
		Short: "Get an executable route from one provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			s.resetCommandDiagnostics()
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			req, err := flags.swapRequest(ctx, s)
			if err != nil {
				return err
			}
			start := time.Now()
			route, err := s.router.FirmRoute(ctx, req)
			statuses := []model.ProviderStatus{{
				Name:      string(req.Provider),
				Status:    statusFromErr(err),
				LatencyMS: time.Since(start).Milliseconds(),
				Kind:      kindOf(err),
			}}
			s.captureCommandDiagnostics(nil, statuses, false)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), route, nil, cacheMetaBypass(), statuses, false)
		},
	}
	flags.bind(cmd, "")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

type statusFlags struct {
	fromChain      string
	toChain        string
	provider       string
	txHash         string
	depositAddress string
	depositMemo    string
	routeID        string
}

func (f *statusFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fromChain, "from-chain", "", "Source chain")
	cmd.Flags().StringVar(&f.toChain, "to-chain", "", "Destination chain")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Provider that produced the route")
	cmd.Flags().StringVar(&f.txHash, "tx-hash", "", "Source chain transaction hash")
	cmd.Flags().StringVar(&f.depositAddress, "deposit-address", "", "Deposit address returned with the route")
	cmd.Flags().StringVar(&f.depositMemo, "deposit-memo", "", "Deposit memo returned with the route")
	cmd.Flags().StringVar(&f.routeID, "route-id", "", "Route id returned with the route")
	_ = cmd.MarkFlagRequired("from-chain")
	_ = cmd.MarkFlagRequired("to-chain")
	_ = cmd.MarkFlagRequired("provider")
}

func (f *statusFlags) request() (model.SwapStatusRequest, error) {
	src, err := id.ParseChain(f.fromChain)
	if err != nil {
		return model.SwapStatusRequest{}, err
	}
	dst, err := id.ParseChain(f.toChain)
	if err != nil {
		return model.SwapStatusRequest{}, err
	}
	req := model.SwapStatusRequest{
		TxHash:             strings.TrimSpace(f.txHash),
		SourceCoin:         src.Coin,
		SourceChainID:      src.ChainID,
		DestinationCoin:    dst.Coin,
		DestinationChainID: dst.ChainID,
		DepositAddress:     strings.TrimSpace(f.depositAddress),
		DepositMemo:        strings.TrimSpace(f.depositMemo),
		Provider:           model.ProviderID(strings.ToLower(strings.TrimSpace(f.provider))),
		RouteID:            strings.TrimSpace(f.routeID),
	}
	if req.TxHash == "" && req.DepositAddress == "" {
		return model.SwapStatusRequest{}, clierr.New(clierr.CodeUsage, "--tx-hash or --deposit-address is required")
	}
	return req, nil
}

func (s *runtimeState) newSwapSubmitCommand() *cobra.Command {
	var flags statusFlags
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Notify the provider that the source transaction was broadcast",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			if err := s.router.PostSubmitHook(ctx, req); err != nil {
				return err
			}
			data := map[string]any{
				"provider":     req.Provider,
				"tracking_key": req.TrackingKey(),
				"submitted":    true,
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, cacheMetaBypass(), nil, false)
		},
	}
	flags.bind(cmd)
	return cmd
}

func (s *runtimeState) newSwapStatusCommand() *cobra.Command {
	var flags statusFlags
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Poll swap execution status",
		RunE: func(cmd *cobra.Command, args []string) error {
			s.resetCommandDiagnostics()
			req, err := flags.request()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			start := time.Now()
			resp, err := s.router.Status(ctx, req)
			statuses := []model.ProviderStatus{{
				Name:      string(req.Provider),
				Status:    statusFromErr(err),
				LatencyMS: time.Since(start).Milliseconds(),
				Kind:      kindOf(err),
			}}
			s.captureCommandDiagnostics(nil, statuses, false)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), resp, nil, cacheMetaBypass(), statuses, false)
		},
	}
	flags.bind(cmd)
	return cmd
}

func kindOf(err error) string {
	if err == nil {
		return ""
	}
	return string(clierr.KindOf(err))
}
