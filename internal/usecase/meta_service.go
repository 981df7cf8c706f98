package usecase

import (
	"context"
	"log/slog"
	"strings"

	"raibridge/internal/domain/model"
	"raibridge/internal/infrastructure/cache"
)

// MetaSource fetches per-content metadata. Implemented by
// upstream.CatalogFetcher.
type MetaSource interface {
	ContentMeta(ctx context.Context, contentType, contentID, userID string) (*model.Meta, error)
}

// MetaService serves per-content metadata with cache-aside reads under
// meta: keys. Missing or failed lookups yield nil, never an error.
type MetaService struct {
	source MetaSource
	cache  *cache.Cache
	logger *slog.Logger
}

// NewMetaService creates a MetaService.
func NewMetaService(source MetaSource, c *cache.Cache, logger *slog.Logger) *MetaService {
	return &MetaService{source: source, cache: c, logger: logger}
}

// GetMeta returns metadata for one content id, or nil when unavailable.
func (s *MetaService) GetMeta(ctx context.Context, contentType, contentID, userID string) *model.Meta {
	contentID = strings.TrimPrefix(contentID, "raiplay:")
	if contentID == "" {
		return nil
	}

	key := cache.NamespaceMeta + contentID
	if hit, ok := s.cache.Get(key); ok {
		if meta, valid := hit.(model.Meta); valid {
			return &meta
		}
	}

	meta, err := s.source.ContentMeta(ctx, contentType, contentID, userID)
	if err != nil {
		s.logger.Warn("meta fetch failed", slog.String("content_id", contentID), slog.Any("error", err))
		return nil
	}
	if meta == nil {
		return nil
	}

	s.cache.Set(key, *meta)
	return meta
}
