package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"raibridge/internal/domain/model"
	"raibridge/internal/infrastructure/cache"
	"raibridge/internal/infrastructure/metrics"
	"raibridge/internal/infrastructure/upstream"
)

// Quality preference modes.
const (
	PreferenceHD   = "hd"
	PreferenceSD   = "sd"
	PreferenceAuto = "auto"
)

// SubtitleSource extracts caption tracks for a content id. Best-effort.
type SubtitleSource interface {
	Extract(ctx context.Context, contentID, userID string) []model.Subtitle
}

// StreamResolverConfig holds configuration for StreamResolver.
type StreamResolverConfig struct {
	QualityPreference string
	EnableSubtitles   bool
}

// DefaultStreamResolverConfig returns the production defaults.
func DefaultStreamResolverConfig() StreamResolverConfig {
	return StreamResolverConfig{
		QualityPreference: PreferenceAuto,
	}
}

// ResolveOptions carries the per-request overrides from the user's addon
// configuration. Zero values fall back to the resolver's defaults.
type ResolveOptions struct {
	QualityPreference string
	EnableSubtitles   bool
}

// StreamResolver locates playable stream URLs for a content id by running
// extraction strategies in order until one yields candidates. Results are
// deduplicated, ranked by quality preference, cached for a short window, and
// concurrent resolutions of the same content are coalesced. Resolve never
// fails: exhausted strategies mean an empty list.
type StreamResolver struct {
	strategies []upstream.Strategy
	subtitles  SubtitleSource
	cache      *cache.Cache
	sfGroup    singleflight.Group

	cfg    StreamResolverConfig
	logger *slog.Logger
}

// NewStreamResolver creates a StreamResolver over the given strategies.
// subtitles may be nil when subtitle extraction is disabled.
func NewStreamResolver(
	strategies []upstream.Strategy,
	subtitles SubtitleSource,
	c *cache.Cache,
	cfg StreamResolverConfig,
	logger *slog.Logger,
) *StreamResolver {
	if cfg.QualityPreference == "" {
		cfg.QualityPreference = PreferenceAuto
	}
	return &StreamResolver{
		strategies: strategies,
		subtitles:  subtitles,
		cache:      c,
		cfg:        cfg,
		logger:     logger,
	}
}

// Resolve returns ranked playable streams for the content id. The id may
// carry the "raiplay:" prefix used by the client protocol. opts overrides
// the resolver defaults for this request; ranking and subtitle choices are
// part of the cache key so users with different settings never share a
// cached list.
func (r *StreamResolver) Resolve(ctx context.Context, contentID, userID string, opts ResolveOptions) []model.Stream {
	contentID = strings.TrimPrefix(contentID, "raiplay:")
	if contentID == "" {
		return []model.Stream{}
	}
	opts = r.effective(opts)

	key := fmt.Sprintf("%s%s:%s:%s:%t", cache.NamespaceStream, contentID, userID, opts.QualityPreference, opts.EnableSubtitles)
	if cached, ok := r.cache.Get(key); ok {
		if streams, valid := cached.([]model.Stream); valid {
			return streams
		}
	}

	result, _, shared := r.sfGroup.Do(key, func() (any, error) {
		return r.resolve(ctx, contentID, userID, opts), nil
	})
	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	streams := result.([]model.Stream)
	if len(streams) > 0 {
		r.cache.Set(key, streams)
	}
	return streams
}

// effective merges per-request options with the resolver defaults.
func (r *StreamResolver) effective(opts ResolveOptions) ResolveOptions {
	if opts.QualityPreference == "" {
		opts.QualityPreference = r.cfg.QualityPreference
	}
	opts.EnableSubtitles = opts.EnableSubtitles || r.cfg.EnableSubtitles
	return opts
}

// resolve runs the strategy pipeline and post-processing.
func (r *StreamResolver) resolve(ctx context.Context, contentID, userID string, opts ResolveOptions) []model.Stream {
	start := time.Now()
	var candidates []model.StreamCandidate

	for _, strategy := range r.strategies {
		if ctx.Err() != nil {
			break
		}

		found, err := strategy.Extract(ctx, contentID, userID)
		switch {
		case err != nil:
			// A failing strategy contributes nothing; fall through.
			metrics.StrategyAttemptsTotal.WithLabelValues(strategy.Name(), metrics.StrategyResultError).Inc()
			r.logger.Warn("extraction strategy failed",
				slog.String("strategy", strategy.Name()),
				slog.String("content_id", contentID),
				slog.Any("error", err),
			)
		case len(found) == 0:
			metrics.StrategyAttemptsTotal.WithLabelValues(strategy.Name(), metrics.StrategyResultEmpty).Inc()
		default:
			metrics.StrategyAttemptsTotal.WithLabelValues(strategy.Name(), metrics.StrategyResultHit).Inc()
			candidates = found
		}
		if len(candidates) > 0 {
			break
		}
	}

	candidates = dedupeCandidates(candidates)
	candidates = rankCandidates(candidates, opts.QualityPreference)

	streams := make([]model.Stream, 0, len(candidates))
	for _, c := range candidates {
		streams = append(streams, model.Stream{
			URL:   c.URL,
			Title: streamTitle(c),
		})
	}

	if opts.EnableSubtitles && r.subtitles != nil && len(streams) > 0 {
		if subs := r.subtitles.Extract(ctx, contentID, userID); len(subs) > 0 {
			for i := range streams {
				streams[i].Subtitles = subs
			}
		}
	}

	r.logger.Info("stream resolution finished",
		slog.String("content_id", contentID),
		slog.Int("streams", len(streams)),
		slog.Duration("duration", time.Since(start)),
	)
	return streams
}

func streamTitle(c model.StreamCandidate) string {
	if c.IsRelinker {
		return c.Title
	}
	return fmt.Sprintf("%s %dp", c.Title, c.Quality)
}

// dedupeCandidates drops exact-URL duplicates, keeping the first occurrence.
func dedupeCandidates(candidates []model.StreamCandidate) []model.StreamCandidate {
	if len(candidates) < 2 {
		return candidates
	}
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		out = append(out, c)
	}
	return out
}

// rankCandidates orders candidates by the caller's quality preference.
// hd sorts descending, sd ascending. auto is a stable partition: HD-tier
// candidates move ahead of SD-tier ones while relative order inside each
// tier is preserved.
func rankCandidates(candidates []model.StreamCandidate, preference string) []model.StreamCandidate {
	if len(candidates) < 2 {
		return candidates
	}

	switch preference {
	case PreferenceHD:
		sortStableByQuality(candidates, true)
	case PreferenceSD:
		sortStableByQuality(candidates, false)
	default:
		candidates = partitionHDFirst(candidates)
	}
	return candidates
}

func sortStableByQuality(candidates []model.StreamCandidate, descending bool) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if descending {
			return candidates[i].Quality > candidates[j].Quality
		}
		return candidates[i].Quality < candidates[j].Quality
	})
}

func partitionHDFirst(candidates []model.StreamCandidate) []model.StreamCandidate {
	out := make([]model.StreamCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Quality.IsHD() {
			out = append(out, c)
		}
	}
	for _, c := range candidates {
		if !c.Quality.IsHD() {
			out = append(out, c)
		}
	}
	return out
}
