package cache

import (
	"context"
	"sync"
	"time"
)

const DefaultDepositWindow = 5 * time.Second

func depositKey(address string) string {
	return "swap:near_intents:deposit_submit:" + address
}

// DepositGuard lets one deposit notification per address through each
// window. With a nil store the marker lives in process memory.
type DepositGuard struct {
	store  *Store
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewDepositGuard(store *Store, window time.Duration) *DepositGuard {
	if window <= 0 {
		window = DefaultDepositWindow
	}
	return &DepositGuard{store: store, window: window, now: time.Now, seen: map[string]time.Time{}}
}

func (g *DepositGuard) ShouldSubmit(_ context.Context, depositAddress string) (bool, error) {
	if g.store != nil {
		return g.store.SetIfAbsent(depositKey(depositAddress), []byte("1"), g.window)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if until, ok := g.seen[depositAddress]; ok && now.Before(until) {
		return false, nil
	}
	g.seen[depositAddress] = now.Add(g.window)
	return true, nil
}

func (g *DepositGuard) Clear(_ context.Context, depositAddress string) error {
	if g.store != nil {
		return g.store.Delete(depositKey(depositAddress))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, depositAddress)
	return nil
}
