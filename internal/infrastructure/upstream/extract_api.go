package upstream

import (
	"context"
	"encoding/json"
	"fmt"

	"raibridge/internal/domain/model"
)

// apiEndpointTemplates are the structured endpoints probed for a content id,
// in order. Probing stops at the first endpoint yielding candidates.
var apiEndpointTemplates = []string{
	"/video/%s.html?json",
	"/api/video/%s",
	"/api/programmi/%s.json",
}

// APIStrategy probes the portal's JSON endpoints for stream URLs.
type APIStrategy struct {
	client *Client
	auth   *AuthClient
}

// NewAPIStrategy creates the structured-API extraction strategy.
func NewAPIStrategy(client *Client, auth *AuthClient) *APIStrategy {
	return &APIStrategy{client: client, auth: auth}
}

func (s *APIStrategy) Name() string {
	return model.StrategyAPI
}

// Extract probes each endpoint template and parses the body against the
// known response shapes. Individual endpoint failures are skipped.
func (s *APIStrategy) Extract(ctx context.Context, contentID, userID string) ([]model.StreamCandidate, error) {
	headers := s.auth.AuthenticatedHeaders(userID)

	for _, tmpl := range apiEndpointTemplates {
		url := s.client.baseURL() + fmt.Sprintf(tmpl, contentID)

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

		if candidates := parseAPIBody(resp.body); len(candidates) > 0 {
			return candidates, nil
		}
	}
	return nil, nil
}

// apiVideoBody covers the "video.sources" response shape.
type apiVideoBody struct {
	Video struct {
		Title   string `json:"title"`
		Sources []struct {
			URL string `json:"url"`
		} `json:"sources"`
	} `json:"video"`
}

// apiFlatBody covers the flat single-URL response shapes.
type apiFlatBody struct {
	Title      string `json:"title"`
	ContentURL string `json:"contentUrl"`
	ContentAlt string `json:"content_url"`
	MediaURI   string `json:"mediaUri"`
	MediaURL   string `json:"media_url"`
	VideoURL   string `json:"video_url"`
	VideoAlt   string `json:"videoUrl"`
	Relinker   string `json:"relinker"`
	Streams    []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Quality string `json:"quality"`
	} `json:"streams"`
}

// parseAPIBody extracts candidates from one JSON response, trying each known
// shape. Malformed bodies yield nothing.
func parseAPIBody(body []byte) []model.StreamCandidate {
	var out []model.StreamCandidate

	var video apiVideoBody
	if err := json.Unmarshal(body, &video); err == nil {
		title := video.Video.Title
		if title == "" {
			title = "RaiPlay"
		}
		for _, src := range video.Video.Sources {
			if !model.IsStreamURL(src.URL) {
				continue
			}
			out = append(out, model.StreamCandidate{
				URL:            src.URL,
				Title:          title,
				Quality:        model.InferQuality(src.URL),
				SourceStrategy: model.StrategyAPI,
			})
		}
	}
	if len(out) > 0 {
		return out
	}

	var flat apiFlatBody
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil
	}
	title := flat.Title
	if title == "" {
		title = "RaiPlay"
	}

	for _, stream := range flat.Streams {
		if !model.IsStreamURL(stream.URL) {
			continue
		}
		quality := model.InferQuality(stream.Quality)
		if quality == model.QualityAuto {
			quality = model.InferQuality(stream.URL)
		}
		out = append(out, model.StreamCandidate{
			URL:            stream.URL,
			Title:          title,
			Quality:        quality,
			SourceStrategy: model.StrategyAPI,
		})
	}
	if len(out) > 0 {
		return out
	}

	for _, url := range []string{flat.ContentURL, flat.ContentAlt, flat.MediaURI, flat.MediaURL, flat.VideoURL, flat.VideoAlt} {
		if url != "" && model.IsStreamURL(url) {
			out = append(out, model.StreamCandidate{
				URL:            url,
				Title:          title,
				Quality:        model.InferQuality(url),
				SourceStrategy: model.StrategyAPI,
			})
			break
		}
	}
	if flat.Relinker != "" {
		out = append(out, model.StreamCandidate{
			URL:            flat.Relinker,
			Title:          title,
			Quality:        model.InferQuality(flat.Relinker),
			SourceStrategy: model.StrategyAPI,
			IsRelinker:     true,
		})
	}
	return out
}
