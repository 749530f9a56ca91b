package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ggonzalez94/swap-router/internal/model"
)

const (
	DefaultTokenMemoryTTL = 5 * time.Minute
	DefaultTokenStoreTTL  = 24 * time.Hour
)

func tokensKey(provider model.ProviderID) string {
	return "swap:tokens:" + string(provider)
}

type memTokens struct {
	tokens  []model.TokenInfo
	expires time.Time
}

// TokenCache is the two-tier supported-token cache: a short in-process tier
// in front of the sqlite store. A nil store leaves only the memory tier.
// Empty lists are never cached.
type TokenCache struct {
	store     *Store
	memoryTTL time.Duration
	now       func() time.Time

	mu     sync.Mutex
	memory map[model.ProviderID]memTokens
	group  singleflight.Group
}

func NewTokenCache(store *Store, memoryTTL time.Duration) *TokenCache {
	if memoryTTL <= 0 {
		memoryTTL = DefaultTokenMemoryTTL
	}
	return &TokenCache{
		store:     store,
		memoryTTL: memoryTTL,
		now:       time.Now,
		memory:    map[model.ProviderID]memTokens{},
	}
}

func (c *TokenCache) Get(_ context.Context, provider model.ProviderID) ([]model.TokenInfo, bool, error) {
	if tokens, ok := c.fromMemory(provider); ok {
		return tokens, true, nil
	}
	if c.store == nil {
		return nil, false, nil
	}

	// Concurrent misses for one provider share a single store read and decode.
	v, err, _ := c.group.Do(string(provider), func() (any, error) {
		res, err := c.store.Get(tokensKey(provider), 0)
		if err != nil {
			return nil, err
		}
		if !res.Hit || res.Stale {
			return []model.TokenInfo(nil), nil
		}
		var tokens []model.TokenInfo
		if err := json.Unmarshal(res.Value, &tokens); err != nil {
			return nil, err
		}
		if len(tokens) > 0 {
			c.remember(provider, tokens)
		}
		return tokens, nil
	})
	if err != nil {
		return nil, false, err
	}
	tokens, _ := v.([]model.TokenInfo)
	return tokens, len(tokens) > 0, nil
}

func (c *TokenCache) Set(_ context.Context, provider model.ProviderID, tokens []model.TokenInfo, ttl time.Duration) error {
	if len(tokens) == 0 {
		return nil
	}
	c.remember(provider, tokens)
	if c.store == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTokenStoreTTL
	}
	buf, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return c.store.Set(tokensKey(provider), buf, ttl)
}

func (c *TokenCache) fromMemory(provider model.ProviderID) ([]model.TokenInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.memory[provider]
	if !ok || !c.now().Before(entry.expires) {
		delete(c.memory, provider)
		return nil, false
	}
	return entry.tokens, true
}

func (c *TokenCache) remember(provider model.ProviderID, tokens []model.TokenInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory[provider] = memTokens{tokens: tokens, expires: c.now().Add(c.memoryTTL)}
}
