package market

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheOptions configures CachedProvider.
type CacheOptions struct {
	Size     int
	QuoteTTL time.Duration
	BarsTTL  time.Duration
}

// CachedProvider memoizes another Provider. Quotes expire quickly; daily bars
// are kept longer.
type CachedProvider struct {
	next   Provider
	quotes *expirable.LRU[string, Quote]
	bars   *expirable.LRU[string, []Bar]
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps next.
func NewCachedProvider(next Provider, optFns ...func(o *CacheOptions)) *CachedProvider {
	opts := CacheOptions{Size: 256, QuoteTTL: time.Minute, BarsTTL: time.Hour}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &CachedProvider{
		next:   next,
		quotes: expirable.NewLRU[string, Quote](opts.Size, nil, opts.QuoteTTL),
		bars:   expirable.NewLRU[string, []Bar](opts.Size, nil, opts.BarsTTL),
	}
}

// Quote implements Provider.
func (c *CachedProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	key := NormalizeSymbol(symbol)
	if q, ok := c.quotes.Get(key); ok {
		return q, nil
	}
	q, err := c.next.Quote(ctx, key)
	if err != nil {
		return Quote{}, err
	}
	c.quotes.Add(key, q)
	return q, nil
}

// Bars implements Provider.
func (c *CachedProvider) Bars(ctx context.Context, symbol string, days int) ([]Bar, error) {
	key := fmt.Sprintf("%s/%d", NormalizeSymbol(symbol), days)
	if b, ok := c.bars.Get(key); ok {
		return append([]Bar(nil), b...), nil
	}
	b, err := c.next.Bars(ctx, NormalizeSymbol(symbol), days)
	if err != nil {
		return nil, err
	}
	c.bars.Add(key, append([]Bar(nil), b...))
	return b, nil
}

// Len returns the number of cached entries.
func (c *CachedProvider) Len() int { return c.quotes.Len() + c.bars.Len() }
