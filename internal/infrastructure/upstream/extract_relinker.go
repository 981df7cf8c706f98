package upstream

import (
	"context"
	"fmt"
	"strings"

	"raibridge/internal/domain/model"
)

// relinkerVariants are the query-parameter shapes tried against the
// relinker endpoint, in order. output=64 asks for an HLS manifest, output=25
// for a direct MP4.
var relinkerVariants = []string{
	"cont=%s&output=64",
	"cont=%s&output=25",
	"cont=%s",
}

// RelinkerStrategy resolves a content id through the portal's redirect
// indirection endpoint.
type RelinkerStrategy struct {
	client *Client
	auth   *AuthClient
}

// NewRelinkerStrategy creates the relinker extraction strategy.
func NewRelinkerStrategy(client *Client, auth *AuthClient) *RelinkerStrategy {
	return &RelinkerStrategy{client: client, auth: auth}
}

func (s *RelinkerStrategy) Name() string {
	return model.StrategyRelinker
}

// Extract tries each query variant, follows redirects, and accepts the
// final resolved URL if it carries a streaming-format extension. The first
// success wins.
func (s *RelinkerStrategy) Extract(ctx context.Context, contentID, userID string) ([]model.StreamCandidate, error) {
	headers := s.auth.AuthenticatedHeaders(userID)

	for _, variant := range relinkerVariants {
		url := s.client.relinkerURL() + "?" + fmt.Sprintf(variant, contentID)

		resp, err := s.client.get(ctx, url, headers, s.client.cfg.StreamTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if !resp.ok() {
			continue
		}
		if !hasStreamExtension(resp.finalURL) {
			continue
		}

		return []model.StreamCandidate{{
			URL:            resp.finalURL,
			Title:          "RaiPlay",
			Quality:        model.InferQuality(resp.finalURL),
			SourceStrategy: model.StrategyRelinker,
			IsRelinker:     true,
		}}, nil
	}
	return nil, nil
}

// hasStreamExtension reports whether the resolved URL ends in a recognized
// streaming format (query string ignored).
func hasStreamExtension(url string) bool {
	if idx := strings.Index(url, "?"); idx >= 0 {
		url = url[:idx]
	}
	return strings.HasSuffix(url, ".m3u8") ||
		strings.HasSuffix(url, ".mp4") ||
		strings.HasSuffix(url, ".mpd")
}
