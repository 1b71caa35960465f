package entrycache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/richnote/internal/richtext"
)

// Cache holds resolved entities across requests. Only hits are cached; an ID
// the store did not return is asked for again next time.
type Cache struct {
	lru *expirable.LRU[string, richtext.Entity]
}

func New(size int, ttl time.Duration) *Cache {
	if size <= 0 || ttl <= 0 {
		return nil
	}
	return &Cache{lru: expirable.NewLRU[string, richtext.Entity](size, nil, ttl)}
}

// Wrap returns a store that consults the cache before next. scope separates
// callers whose stores see different data, typically the user ID.
func (c *Cache) Wrap(next richtext.EntityStore, scope string) richtext.EntityStore {
	if c == nil || next == nil {
		return next
	}
	return &lruStore{next: next, scope: scope, cache: c}
}

// Invalidate drops every cached copy of an entry within scope, whatever site
// it was fetched for.
func (c *Cache) Invalidate(scope string, entryID int64) {
	if c == nil {
		return
	}
	prefix := scope + "|"
	suffix := "|" + strconv.FormatInt(entryID, 10)
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix) {
			c.lru.Remove(key)
		}
	}
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

type lruStore struct {
	next  richtext.EntityStore
	scope string
	cache *Cache
}

func (l *lruStore) FetchByIDs(ctx context.Context, ids []int64, site richtext.Site) (map[int64]richtext.Entity, error) {
	out := make(map[int64]richtext.Entity, len(ids))
	missing := make([]int64, 0, len(ids))
	for _, id := range ids {
		if entity, ok := l.cache.lru.Get(buildCacheKey(l.scope, site, id)); ok {
			out[id] = entity
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		logutil.GetLogger(ctx).Debug("entry cache hit (lru)", zap.Int("count", len(ids)))
		return out, nil
	}
	fetched, err := l.next.FetchByIDs(ctx, missing, site)
	if err != nil {
		return nil, err
	}
	for id, entity := range fetched {
		l.cache.lru.Add(buildCacheKey(l.scope, site, id), entity)
		out[id] = entity
	}
	return out, nil
}

func buildCacheKey(scope string, site richtext.Site, id int64) string {
	return scope + "|" + site.Handle + "|" + site.Locale + "|" + strconv.FormatInt(id, 10)
}
