package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/id"
	"github.com/ggonzalez94/swap-router/internal/model"
	"github.com/ggonzalez94/swap-router/internal/providers"
	"github.com/ggonzalez94/swap-router/internal/tokens"
)

func (s *runtimeState) newProvidersCommand() *cobra.Command {
	root := &cobra.Command{Use: "providers", Short: "Provider commands"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List swap providers and API key metadata (no keys required)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), s.providerInfos, nil, cacheMetaBypass(), nil, false)
		},
	}
	root.AddCommand(list)
	return root
}

func (s *runtimeState) newChainsCommand() *cobra.Command {
	root := &cobra.Command{Use: "chains", Short: "Chain registry commands"}
	var familyArg string
	list := &cobra.Command{
		Use:   "list",
		Short: "List chains the router can address",
		RunE: func(cmd *cobra.Command, args []string) error {
			families := splitCSV(familyArg)
			chains := make([]id.Chain, 0)
			for _, c := range id.Chains() {
				if len(families) > 0 && !containsString(families, string(c.Family)) {
					continue
				}
				chains = append(chains, c)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), chains, nil, cacheMetaBypass(), nil, false)
		},
	}
	list.Flags().StringVar(&familyArg, "family", "", "Filter by family (comma-separated: evm,solana,bitcoin,...)")
	root.AddCommand(list)
	return root
}

func (s *runtimeState) newTokensCommand() *cobra.Command {
	root := &cobra.Command{Use: "tokens", Short: "Token catalog commands"}
	var providerArg, chainArg string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tokens a provider can swap",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := model.ProviderID(strings.ToLower(strings.TrimSpace(providerArg)))
			adapter, ok := s.router.Adapter(provider)
			if !ok {
				return clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported provider: %s", providerArg))
			}
			var chains []id.Chain
			for _, raw := range splitCSV(chainArg) {
				c, err := id.ParseChain(raw)
				if err != nil {
					return err
				}
				chains = append(chains, c)
			}

			path := trimRootPath(cmd.CommandPath())
			key := cacheKey(path, map[string]any{"provider": provider, "chains": chainArg})
			return s.runCachedCommand(path, key, 10*time.Minute, func(ctx context.Context) (any, []model.ProviderStatus, []string, bool, error) {
				start := time.Now()
				list, warnings, err := s.supportedTokens(ctx, adapter, chains)
				status := []model.ProviderStatus{{
					Name:      string(provider),
					Status:    statusFromErr(err),
					LatencyMS: time.Since(start).Milliseconds(),
					Kind:      kindOf(err),
				}}
				if err != nil {
					return nil, status, nil, false, err
				}
				return filterTokens(list, chains), status, warnings, false, nil
			})
		},
	}
	list.Flags().StringVar(&providerArg, "provider", "", "Provider: near_intents|jupiter|squid")
	list.Flags().StringVar(&chainArg, "chain", "", "Filter by chain (comma-separated)")
	_ = list.MarkFlagRequired("provider")
	root.AddCommand(list)
	return root
}

// supportedTokens asks the venue for its catalog. Venues without one fall
// back to the built-in registry for the chains the caller named.
func (s *runtimeState) supportedTokens(ctx context.Context, adapter providers.SwapProvider, chains []id.Chain) ([]model.TokenInfo, []string, error) {
	list, err := adapter.SupportedTokens(ctx)
	if err == nil {
		return list, nil, nil
	}
	if !errors.Is(err, providers.ErrNotImplemented) {
		return nil, nil, err
	}
	if len(chains) == 0 {
		return nil, nil, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("provider %s has no token catalog, pass --chain to list built-in tokens", adapter.ID()))
	}
	out := make([]model.TokenInfo, 0)
	for _, c := range chains {
		out = append(out, tokens.Builtin(c)...)
	}
	return out, []string{fmt.Sprintf("%s has no token catalog; listing built-in registry tokens", adapter.ID())}, nil
}

func filterTokens(list []model.TokenInfo, chains []id.Chain) []model.TokenInfo {
	if len(chains) == 0 {
		return list
	}
	out := make([]model.TokenInfo, 0, len(list))
	for _, t := range list {
		for _, c := range chains {
			if t.Coin == c.Coin && strings.EqualFold(t.ChainID, c.ChainID) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func splitCSV(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func containsString(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
