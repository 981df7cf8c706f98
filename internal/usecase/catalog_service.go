package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"raibridge/internal/domain/model"
	"raibridge/internal/infrastructure/cache"
)

// CatalogSource is the upstream listing surface the catalog service reads
// from. Implemented by upstream.CatalogFetcher.
type CatalogSource interface {
	Search(ctx context.Context, query, userID string) ([]model.Meta, error)
	Recommends(ctx context.Context, contentType string, skip int, userID string) ([]model.Meta, error)
	Section(ctx context.Context, path, contentType string, skip int, userID string) ([]model.Meta, error)
}

// catalogSection maps a catalog id to the portal page it scrapes.
type catalogSection struct {
	path        string
	contentType string
}

var catalogSections = map[string]catalogSection{
	"raiplay-fiction":     {"/fiction", "series"},
	"raiplay-cinema":      {"/cinema", "movie"},
	"raiplay-film-tv":     {"/film-per-la-tv", "movie"},
	"raiplay-documentari": {"/documentari", "movie"},
}

// CatalogService aggregates portal listings with cache-aside reads under
// catalog: keys. Upstream failures degrade to empty listings.
type CatalogService struct {
	source CatalogSource
	cache  *cache.Cache
	logger *slog.Logger
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(source CatalogSource, c *cache.Cache, logger *slog.Logger) *CatalogService {
	return &CatalogService{source: source, cache: c, logger: logger}
}

// GetCatalog returns one page of a catalog. extra carries the optional
// "search" and "skip" parameters from the request path.
func (s *CatalogService) GetCatalog(ctx context.Context, contentType, catalogID string, extra map[string]string, userID string) []model.Meta {
	skip := 0
	if raw, ok := extra["skip"]; ok {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			skip = parsed
		}
	}

	if query := extra["search"]; query != "" {
		return s.cached(fmt.Sprintf("%ssearch:%s", cache.NamespaceCatalog, query), func() ([]model.Meta, error) {
			return s.source.Search(ctx, query, userID)
		})
	}

	key := fmt.Sprintf("%s%s:%s:%d", cache.NamespaceCatalog, catalogID, contentType, skip)

	switch catalogID {
	case "raiplay-series":
		return s.cached(key, func() ([]model.Meta, error) {
			return s.source.Recommends(ctx, "series", skip, userID)
		})
	case "raiplay-movies":
		return s.cached(key, func() ([]model.Meta, error) {
			return s.source.Recommends(ctx, "movie", skip, userID)
		})
	}

	if section, ok := catalogSections[catalogID]; ok {
		return s.cached(key, func() ([]model.Meta, error) {
			return s.source.Section(ctx, section.path, section.contentType, skip, userID)
		})
	}

	return []model.Meta{}
}

// cached runs fetch behind a cache-aside read. Errors and nil listings both
// become an empty, uncached page.
func (s *CatalogService) cached(key string, fetch func() ([]model.Meta, error)) []model.Meta {
	if hit, ok := s.cache.Get(key); ok {
		if metas, valid := hit.([]model.Meta); valid {
			return metas
		}
	}

	metas, err := fetch()
	if err != nil {
		s.logger.Warn("catalog fetch failed", slog.String("key", key), slog.Any("error", err))
		return []model.Meta{}
	}
	if metas == nil {
		metas = []model.Meta{}
	}
	if len(metas) > 0 {
		s.cache.Set(key, metas)
	}
	return metas
}
