package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"raibridge/internal/domain/model"
)

// scriptURLPatterns match stream URLs embedded in inline script bodies. The
// portal escapes slashes in some variants, so matches are unescaped before
// use.
var scriptURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"mediaUri"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"contentUrl"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"videoUrl"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"video_url"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"relinker"\s*:\s*"([^"]+)"`),
}

// rawStreamURLPattern is the last-ditch match over the whole page.
var rawStreamURLPattern = regexp.MustCompile(`https://[^"'\s\\]+\.m3u8[^"'\s\\]*`)

// HTMLStrategy scrapes the content's canonical page for stream URLs.
type HTMLStrategy struct {
	client *Client
	auth   *AuthClient
}

// NewHTMLStrategy creates the HTML-scraping extraction strategy.
func NewHTMLStrategy(client *Client, auth *AuthClient) *HTMLStrategy {
	return &HTMLStrategy{client: client, auth: auth}
}

func (s *HTMLStrategy) Name() string {
	return model.StrategyHTML
}

// Extract fetches the content page and collects candidates from embedded
// metadata blocks, script bodies and media elements.
func (s *HTMLStrategy) Extract(ctx context.Context, contentID, userID string) ([]model.StreamCandidate, error) {
	url := s.client.baseURL() + "/video/" + contentID

	resp, err := s.client.get(ctx, url, s.auth.AuthenticatedHeaders(userID), s.client.cfg.StreamTimeout)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, nil
	}
	return parseContentPage(resp.body), nil
}

// ldJSONBlock is the structured metadata block embedded in content pages.
type ldJSONBlock struct {
	Name       string `json:"name"`
	ContentURL string `json:"contentUrl"`
	EmbedURL   string `json:"embedUrl"`
}

// parseContentPage extracts candidates from one HTML document. Only URLs
// carrying a recognized streaming-format marker are accepted.
func parseContentPage(page []byte) []model.StreamCandidate {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	var out []model.StreamCandidate
	add := func(url, title string, relinker bool) {
		url = unescapeSlashes(url)
		if url == "" || !model.IsStreamURL(url) {
			return
		}
		if title == "" {
			title = "RaiPlay"
		}
		out = append(out, model.StreamCandidate{
			URL:            url,
			Title:          title,
			Quality:        model.InferQuality(url),
			SourceStrategy: model.StrategyHTML,
			IsRelinker:     relinker || strings.Contains(url, "relinker"),
		})
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var block ldJSONBlock
		if err := json.Unmarshal([]byte(sel.Text()), &block); err != nil {
			return
		}
		add(block.ContentURL, block.Name, false)
		add(block.EmbedURL, block.Name, false)
	})

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		content := sel.Text()
		if content == "" {
			return
		}
		for _, pattern := range scriptURLPatterns {
			for _, match := range pattern.FindAllStringSubmatch(content, -1) {
				add(match[1], "", false)
			}
		}
	})

	doc.Find("video, source").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			add(src, "", false)
		}
	})

	if len(out) == 0 {
		if match := rawStreamURLPattern.Find(page); match != nil {
			add(string(match), "RaiPlay HLS", false)
		}
	}
	return out
}

// unescapeSlashes undoes JSON-escaped slashes found in script bodies.
func unescapeSlashes(url string) string {
	return strings.ReplaceAll(url, `\/`, `/`)
}
