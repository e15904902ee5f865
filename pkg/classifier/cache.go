package classifier

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/valentinpelus/langfeed/pkg/types"
)

// CachedProvider memoises another provider's predictions for ttl, shared
// across sessions. Errors are never cached.
type CachedProvider struct {
	next  Provider
	cache *gocache.Cache
}

// NewCachedProvider wraps next with a TTL cache keyed by the trimmed text
func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Name returns the wrapped provider's name
func (c *CachedProvider) Name() string {
	return c.next.Name() + " (cached)"
}

// Predict returns a cached label or asks the wrapped provider
func (c *CachedProvider) Predict(ctx context.Context, text string) (types.Label, error) {
	key := strings.TrimSpace(text)
	if key == "" {
		return types.LabelNone, ErrEmptyInput
	}
	if v, ok := c.cache.Get(key); ok {
		return v.(types.Label), nil
	}

	label, err := c.next.Predict(ctx, text)
	if err != nil {
		return label, err
	}
	c.cache.SetDefault(key, label)
	return label, nil
}

// Learn forwards to the wrapped provider when it learns, and flushes the
// cache since the model just changed
func (c *CachedProvider) Learn(text string, label types.Label) {
	if l, ok := c.next.(Learner); ok {
		l.Learn(text, label)
		c.cache.Flush()
	}
}

// Unwrap returns the wrapped provider
func (c *CachedProvider) Unwrap() Provider {
	return c.next
}
