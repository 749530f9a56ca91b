package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ggonzalez94/swap-router/internal/model"
)

const DefaultLedgerTTL = 7 * 24 * time.Hour

// StatusLedger remembers terminal swap outcomes so a later poll can never
// move a swap back to a non-terminal status.
type StatusLedger struct {
	store *Store
	ttl   time.Duration
}

func NewStatusLedger(store *Store, ttl time.Duration) *StatusLedger {
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &StatusLedger{store: store, ttl: ttl}
}

func ledgerKey(trackingKey string) string {
	return "swap:status:" + trackingKey
}

// Reconcile records resp when it is terminal. For a non-terminal resp it
// returns the recorded terminal outcome if there is one.
func (l *StatusLedger) Reconcile(_ context.Context, trackingKey string, resp model.SwapStatusResponse) (model.SwapStatusResponse, error) {
	if l == nil || l.store == nil {
		return resp, nil
	}
	key := ledgerKey(trackingKey)
	if resp.Status.IsTerminal() {
		res, err := l.store.Get(key, 0)
		if err != nil {
			return resp, err
		}
		if res.Hit && !res.Stale {
			var prior model.SwapStatusResponse
			if err := json.Unmarshal(res.Value, &prior); err == nil && prior.Status.IsTerminal() {
				return prior, nil
			}
		}
		buf, err := json.Marshal(resp)
		if err != nil {
			return resp, err
		}
		return resp, l.store.Set(key, buf, l.ttl)
	}

	res, err := l.store.Get(key, 0)
	if err != nil || !res.Hit || res.Stale {
		return resp, err
	}
	var prior model.SwapStatusResponse
	if err := json.Unmarshal(res.Value, &prior); err != nil {
		return resp, err
	}
	if !prior.Status.IsTerminal() {
		return resp, nil
	}
	return prior, nil
}
