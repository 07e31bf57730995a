package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-leadgen/core"
)

const pageCacheKeyPrefix = "go-leadgen::page::v1"

// CachedPageStore serves external id lookups from cache. Upserts write
// through to the base store and drop the cached entry.
type CachedPageStore struct {
	base  core.PageStore
	cache repositorycache.CacheService
}

func NewCachedPageStore(base core.PageStore, cacheService repositorycache.CacheService) (*CachedPageStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base page store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: page cache service is required")
	}
	return &CachedPageStore{base: base, cache: cacheService}, nil
}

// PageCacheKey returns go-leadgen::page::v1::<external_id> with the id
// URL-path escaped.
func PageCacheKey(externalID string) (string, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return "", fmt.Errorf("sqlstore: page external id is required")
	}
	return pageCacheKeyPrefix + "::" + url.PathEscape(externalID), nil
}

func (s *CachedPageStore) GetByExternalID(ctx context.Context, externalID string) (core.Page, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Page{}, fmt.Errorf("sqlstore: cached page store is not configured")
	}
	cacheKey, err := PageCacheKey(externalID)
	if err != nil {
		return core.Page{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Page, error) {
		return s.base.GetByExternalID(ctx, strings.TrimSpace(externalID))
	})
}

func (s *CachedPageStore) Upsert(ctx context.Context, in core.UpsertPageInput) (core.Page, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Page{}, fmt.Errorf("sqlstore: cached page store is not configured")
	}
	page, err := s.base.Upsert(ctx, in)
	if err != nil {
		return core.Page{}, err
	}
	cacheKey, err := PageCacheKey(page.ExternalID)
	if err != nil {
		return core.Page{}, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.Page{}, err
	}
	return page, nil
}

func (s *CachedPageStore) GetOwned(ctx context.Context, externalID string, ownerUserID string) (core.Page, error) {
	if s == nil || s.base == nil {
		return core.Page{}, fmt.Errorf("sqlstore: cached page store is not configured")
	}
	return s.base.GetOwned(ctx, externalID, ownerUserID)
}

func (s *CachedPageStore) ListByOwner(ctx context.Context, ownerUserID string) ([]core.Page, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached page store is not configured")
	}
	return s.base.ListByOwner(ctx, ownerUserID)
}
