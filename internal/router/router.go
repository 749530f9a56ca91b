// Package router resolves which venues support a swap, fans indicative
// quotes out across them, ranks the offers and dispatches firm quotes,
// status polls and post-submit hooks to a single named venue.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/metrics"
	"github.com/ggonzalez94/swap-router/internal/model"
	"github.com/ggonzalez94/swap-router/internal/providers"
)

const DefaultSlippage = "0.5"

const (
	opHasSupport     = "has_support"
	opIndicative     = "indicative_routes"
	opFirm           = "firm_route"
	opStatus         = "status"
	opPostSubmitHook = "post_submit_hook"
)

var errNoProvider = clierr.New(clierr.CodeNoProvider, "no provider supports this pair")

// StatusLedger keeps terminal statuses sticky across polls.
type StatusLedger interface {
	Reconcile(ctx context.Context, trackingKey string, resp model.SwapStatusResponse) (model.SwapStatusResponse, error)
}

type Options struct {
	DefaultSlippage string
	Metrics         *metrics.Metrics
	Ledger          StatusLedger
	Logger          *slog.Logger
}

type Router struct {
	adapters        []providers.SwapProvider
	byID            map[model.ProviderID]providers.SwapProvider
	defaultSlippage string
	metrics         *metrics.Metrics
	ledger          StatusLedger
	log             *slog.Logger
}

// New registers adapters in the given order. The auto pseudo-provider is
// never registered.
func New(adapters []providers.SwapProvider, opts Options) *Router {
	r := &Router{
		byID:            map[model.ProviderID]providers.SwapProvider{},
		defaultSlippage: strings.TrimSpace(opts.DefaultSlippage),
		metrics:         opts.Metrics,
		ledger:          opts.Ledger,
		log:             opts.Logger,
	}
	if r.defaultSlippage == "" {
		r.defaultSlippage = DefaultSlippage
	}
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	for _, a := range adapters {
		if a == nil || a.ID() == model.ProviderAuto {
			continue
		}
		if _, dup := r.byID[a.ID()]; dup {
			continue
		}
		r.adapters = append(r.adapters, a)
		r.byID[a.ID()] = a
	}
	return r
}

func (r *Router) Adapters() []providers.SwapProvider {
	return append([]providers.SwapProvider(nil), r.adapters...)
}

func (r *Router) Adapter(provider model.ProviderID) (providers.SwapProvider, bool) {
	a, ok := r.byID[provider]
	return a, ok
}

// Result is one adapter's share of a fan-out.
type Result struct {
	Provider model.ProviderID
	Routes   []model.SwapRoute
	Err      error
	Latency  time.Duration
}

type Aggregate struct {
	Routes  []model.SwapRoute
	Results []Result
}

// Partial reports whether any adapter failed while others answered.
func (a Aggregate) Partial() bool {
	failed := 0
	for _, res := range a.Results {
		if res.Err != nil {
			failed++
		}
	}
	return failed > 0 && failed < len(a.Results)
}

func (a Aggregate) ProviderStatuses() []model.ProviderStatus {
	out := make([]model.ProviderStatus, 0, len(a.Results))
	for _, res := range a.Results {
		status := model.ProviderStatus{Name: string(res.Provider), Status: "ok", LatencyMS: res.Latency.Milliseconds()}
		if res.Err != nil {
			status.Status = statusFromErr(res.Err)
			status.Kind = string(clierr.KindOf(res.Err))
		}
		out = append(out, status)
	}
	return out
}

func statusFromErr(err error) string {
	switch clierr.ExitCode(err) {
	case int(clierr.CodeAuth):
		return "auth_error"
	case int(clierr.CodeRateLimited):
		return "rate_limited"
	case int(clierr.CodeUnavailable):
		return "unavailable"
	case int(clierr.CodeUnsupported):
		return "unsupported"
	default:
		return "error"
	}
}

// ResolveSupportedAdapters returns, in registry order, the adapters whose
// HasSupport is true. Failing adapters are logged and skipped.
func (r *Router) ResolveSupportedAdapters(ctx context.Context, req model.SwapSupportRequest) []providers.SwapProvider {
	out := make([]providers.SwapProvider, 0, len(r.adapters))
	for _, a := range r.adapters {
		ok, err := a.HasSupport(ctx, req)
		if err != nil {
			if !errors.Is(err, providers.ErrNotImplemented) {
				r.log.Warn("support check failed", "provider", a.ID(), "operation", opHasSupport, "error", err, "kind", clierr.KindOf(err))
				r.metrics.ProviderError(a.ID(), string(clierr.KindOf(err)), opHasSupport)
			}
			continue
		}
		if ok {
			out = append(out, a)
		}
	}
	return out
}

func (r *Router) Support(ctx context.Context, req model.SwapSupportRequest) model.SwapSupport {
	supported := r.ResolveSupportedAdapters(ctx, req)
	ids := make([]model.ProviderID, 0, len(supported))
	for _, a := range supported {
		ids = append(ids, a.ID())
	}
	return model.SwapSupport{Supported: len(ids) > 0, Providers: ids}
}

// AllIndicativeRoutes quotes every supporting adapter concurrently. Adapter
// failures only drop that adapter's routes; the call fails when nothing is
// left.
func (r *Router) AllIndicativeRoutes(ctx context.Context, req model.SwapRequest) (Aggregate, error) {
	supported := r.ResolveSupportedAdapters(ctx, req.SwapSupportRequest)
	if len(supported) == 0 {
		return Aggregate{}, errNoProvider
	}

	results := make([]Result, len(supported))
	var wg sync.WaitGroup
	for i, a := range supported {
		wg.Add(1)
		go func(index int, a providers.SwapProvider) {
			defer wg.Done()
			// A panicking adapter fails only its own slot.
			defer func() {
				if p := recover(); p != nil {
					err := clierr.New(clierr.CodeInternal, fmt.Sprintf("%s adapter panicked: %v", a.ID(), p)).WithKind(clierr.KindUnknown)
					r.metrics.ProviderError(a.ID(), string(clierr.KindUnknown), opIndicative)
					results[index] = Result{Provider: a.ID(), Err: err}
				}
			}()
			results[index] = r.indicative(ctx, a, req)
		}(i, a)
	}
	wg.Wait()

	agg := Aggregate{Results: results}
	for _, res := range results {
		if res.Err != nil {
			r.log.Warn("provider quote failed", "provider", res.Provider, "operation", opIndicative, "error", res.Err, "kind", clierr.KindOf(res.Err))
			continue
		}
		agg.Routes = append(agg.Routes, res.Routes...)
	}
	if len(agg.Routes) == 0 {
		return agg, errNoProvider
	}
	RankRoutes(agg.Routes)
	r.metrics.AutoBest(agg.Routes[0].Provider)
	return agg, nil
}

// IndicativeRoutes fans out for auto (or no) provider and otherwise quotes
// only the named adapter.
func (r *Router) IndicativeRoutes(ctx context.Context, req model.SwapRequest) (Aggregate, error) {
	if req.Provider == "" || req.Provider == model.ProviderAuto {
		return r.AllIndicativeRoutes(ctx, req)
	}
	a, err := r.SelectAdapter(ctx, req)
	if err != nil {
		return Aggregate{}, err
	}
	res := r.indicative(ctx, a, req)
	agg := Aggregate{Results: []Result{res}}
	if res.Err != nil {
		return agg, res.Err
	}
	agg.Routes = res.Routes
	RankRoutes(agg.Routes)
	return agg, nil
}

func (r *Router) indicative(ctx context.Context, a providers.SwapProvider, req model.SwapRequest) Result {
	req = r.withDefaultSlippage(a, req)
	start := time.Now()
	routes, err := a.IndicativeRoutes(ctx, req)
	latency := time.Since(start)
	r.metrics.ObserveQuote(a.ID(), metrics.QuoteIndicative, latency, err)
	if err != nil {
		r.metrics.ProviderError(a.ID(), string(clierr.KindOf(err)), opIndicative)
		return Result{Provider: a.ID(), Err: err, Latency: latency}
	}
	for i := range routes {
		if routes[i].Provider == "" {
			routes[i].Provider = a.ID()
		}
	}
	return Result{Provider: a.ID(), Routes: routes, Latency: latency}
}

// SelectAdapter resolves an explicitly named provider and re-checks support.
func (r *Router) SelectAdapter(ctx context.Context, req model.SwapRequest) (providers.SwapProvider, error) {
	a, err := r.named(req.Provider)
	if err != nil {
		return nil, err
	}
	ok, err := a.HasSupport(ctx, req.SwapSupportRequest)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("provider %s does not support this pair", a.ID()))
	}
	return a, nil
}

func (r *Router) named(provider model.ProviderID) (providers.SwapProvider, error) {
	if provider == "" || provider == model.ProviderAuto {
		return nil, clierr.New(clierr.CodeUsage, "must specify a provider")
	}
	a, ok := r.byID[provider]
	if !ok {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported provider: %s", provider))
	}
	return a, nil
}

func (r *Router) FirmRoute(ctx context.Context, req model.SwapRequest) (model.SwapRoute, error) {
	a, err := r.SelectAdapter(ctx, req)
	if err != nil {
		return model.SwapRoute{}, err
	}
	req = r.withDefaultSlippage(a, req)
	start := time.Now()
	route, err := a.FirmRoute(ctx, req)
	r.metrics.ObserveQuote(a.ID(), metrics.QuoteFirm, time.Since(start), err)
	if err != nil {
		r.metrics.ProviderError(a.ID(), string(clierr.KindOf(err)), opFirm)
		return model.SwapRoute{}, err
	}
	if route.Provider == "" {
		route.Provider = a.ID()
	}
	return route, nil
}

// Status polls the named adapter. Once a terminal status has been recorded
// for the swap, later non-terminal answers are replaced by it.
func (r *Router) Status(ctx context.Context, req model.SwapStatusRequest) (model.SwapStatusResponse, error) {
	a, err := r.named(req.Provider)
	if err != nil {
		return model.SwapStatusResponse{}, err
	}
	resp, err := a.Status(ctx, req)
	if err != nil {
		if errors.Is(err, providers.ErrNotImplemented) {
			return model.SwapStatusResponse{}, clierr.Wrap(clierr.CodeUnsupported, fmt.Sprintf("provider %s does not report swap status", a.ID()), err)
		}
		r.metrics.ProviderError(a.ID(), string(clierr.KindOf(err)), opStatus)
		return model.SwapStatusResponse{}, err
	}
	if resp.Provider == "" {
		resp.Provider = a.ID()
	}
	if r.ledger != nil {
		reconciled, err := r.ledger.Reconcile(ctx, req.TrackingKey(), resp)
		if err != nil {
			r.log.Warn("status ledger unavailable", "provider", a.ID(), "error", err)
		} else {
			resp = reconciled
		}
	}
	r.metrics.Outcome(resp.Provider, resp.Status)
	return resp, nil
}

func (r *Router) PostSubmitHook(ctx context.Context, req model.SwapStatusRequest) error {
	a, err := r.named(req.Provider)
	if err != nil {
		return err
	}
	if err := a.PostSubmitHook(ctx, req); err != nil {
		if errors.Is(err, providers.ErrNotImplemented) {
			return nil
		}
		r.metrics.ProviderError(a.ID(), string(clierr.KindOf(err)), opPostSubmitHook)
		return err
	}
	return nil
}

// withDefaultSlippage fills in a tolerance for adapters that cannot choose
// their own.
func (r *Router) withDefaultSlippage(a providers.SwapProvider, req model.SwapRequest) model.SwapRequest {
	if req.SlippagePercentage != nil || a.Capabilities().HasAutoSlippageSupport {
		return req
	}
	slippage := r.defaultSlippage
	req.SlippagePercentage = &slippage
	return req
}

// RankRoutes orders routes by destination amount, best first. Ties keep
// their input order and unparseable amounts sort last.
func RankRoutes(routes []model.SwapRoute) {
	keys := make([]*big.Int, len(routes))
	for i, route := range routes {
		if v, ok := new(big.Int).SetString(strings.TrimSpace(route.DestinationAmount), 10); ok {
			keys[i] = v
		}
	}
	idx := make([]int, len(routes))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := keys[idx[i]], keys[idx[j]]
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Cmp(b) > 0
	})
	sorted := make([]model.SwapRoute, len(routes))
	for i, k := range idx {
		sorted[i] = routes[k]
	}
	copy(routes, sorted)
}
