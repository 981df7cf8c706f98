package upstream

import (
	"bytes"
	"context"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"raibridge/internal/domain/model"
)

var subtitleScriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"subtitles"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"subtitlesUrl"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`https://[^"'\s\\]+\.(?:vtt|srt)`),
}

// SubtitleExtractor pulls caption tracks out of a content page. Best-effort:
// any failure yields an empty list.
type SubtitleExtractor struct {
	client *Client
	auth   *AuthClient
}

// NewSubtitleExtractor creates a subtitle extractor over the shared client.
func NewSubtitleExtractor(client *Client, auth *AuthClient) *SubtitleExtractor {
	return &SubtitleExtractor{client: client, auth: auth}
}

// Extract fetches the content page and collects caption-format URLs from
// track elements and script bodies.
func (s *SubtitleExtractor) Extract(ctx context.Context, contentID, userID string) []model.Subtitle {
	url := s.client.baseURL() + "/video/" + contentID

	resp, err := s.client.get(ctx, url, s.auth.AuthenticatedHeaders(userID), s.client.cfg.RequestTimeout)
	if err != nil || !resp.ok() {
		return nil
	}
	return parseSubtitles(resp.body)
}

func parseSubtitles(page []byte) []model.Subtitle {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []model.Subtitle
	add := func(url, lang string) {
		url = unescapeSlashes(url)
		if url == "" || seen[url] || !model.IsCaptionURL(url) {
			return
		}
		if lang == "" {
			lang = "it"
		}
		seen[url] = true
		out = append(out, model.Subtitle{URL: url, Language: lang})
	}

	doc.Find("track").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		lang, _ := sel.Attr("srclang")
		add(src, lang)
	})

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		content := sel.Text()
		if content == "" {
			return
		}
		for _, pattern := range subtitleScriptPatterns {
			for _, match := range pattern.FindAllStringSubmatch(content, -1) {
				if len(match) > 1 {
					add(match[1], "")
				} else {
					add(match[0], "")
				}
			}
		}
	})
	return out
}
