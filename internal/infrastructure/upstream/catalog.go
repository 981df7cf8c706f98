package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"raibridge/internal/domain/model"
)

// pageSize caps how many items one catalog page returns.
const pageSize = 20

// CatalogFetcher scrapes and queries the portal's listing surfaces.
type CatalogFetcher struct {
	client *Client
	auth   *AuthClient
}

// NewCatalogFetcher creates a catalog fetcher over the shared client.
func NewCatalogFetcher(client *Client, auth *AuthClient) *CatalogFetcher {
	return &CatalogFetcher{client: client, auth: auth}
}

// Search scrapes the portal's search page for the given query.
func (f *CatalogFetcher) Search(ctx context.Context, query, userID string) ([]model.Meta, error) {
	searchURL := f.client.baseURL() + "/ricerca.html?q=" + url.QueryEscape(query)

	resp, err := f.client.get(ctx, searchURL, f.auth.AuthenticatedHeaders(userID), f.client.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.body))
	if err != nil {
		return nil, err
	}

	var metas []model.Meta
	doc.Find(".search-result__item").Each(func(_ int, sel *goquery.Selection) {
		if len(metas) >= pageSize {
			return
		}
		title := strings.TrimSpace(sel.Find(".search-result__title").Text())
		desc := strings.TrimSpace(sel.Find(".search-result__description").Text())
		poster, _ := sel.Find("img").First().Attr("src")
		href, _ := sel.Find("a").First().Attr("href")

		id := ContentIDFromPath(href)
		if id == "" || title == "" {
			return
		}
		metas = append(metas, model.Meta{
			ID:          "raiplay:" + id,
			Type:        "series",
			Name:        title,
			Description: desc,
			Poster:      normalizeImageURL(poster),
			Genres:      GenresFromText(title + " " + desc),
		})
	})
	return metas, nil
}

// recommendsBody covers the known shapes of the recommends API.
type recommendsBody struct {
	Items    []recommendsItem `json:"items"`
	Contents []struct {
		Contents []recommendsItem `json:"contents"`
	} `json:"contents"`
}

type recommendsItem struct {
	Name        string `json:"name"`
	PathID      string `json:"path_id"`
	Weblink     string `json:"weblink"`
	Description string `json:"description"`
	Images      struct {
		Portrait  string `json:"portrait"`
		Landscape string `json:"landscape"`
	} `json:"images"`
}

// Recommends queries the structured listing API for the given content type
// ("series" or "movie") with skip-based pagination.
func (f *CatalogFetcher) Recommends(ctx context.Context, contentType string, skip int, userID string) ([]model.Meta, error) {
	container := "MovieContainer"
	if contentType == "series" {
		container = "SeriesContainer"
	}
	apiURL := f.client.baseURL() + "/api/recommends?type=" + container

	resp, err := f.client.get(ctx, apiURL, f.auth.AuthenticatedHeaders(userID), f.client.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, nil
	}

	var body recommendsBody
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, err
	}

	items := body.Items
	for _, block := range body.Contents {
		items = append(items, block.Contents...)
	}

	var metas []model.Meta
	for i, item := range items {
		if i < skip {
			continue
		}
		if len(metas) >= pageSize {
			break
		}
		path := item.PathID
		if path == "" {
			path = item.Weblink
		}
		id := ContentIDFromPath(path)
		if id == "" || item.Name == "" {
			continue
		}
		poster := item.Images.Portrait
		if poster == "" {
			poster = item.Images.Landscape
		}
		metas = append(metas, model.Meta{
			ID:          "raiplay:" + id,
			Type:        contentType,
			Name:        item.Name,
			Description: item.Description,
			Poster:      normalizeImageURL(poster),
			Genres:      GenresFromText(item.Name + " " + item.Description),
		})
	}
	return metas, nil
}

// Section scrapes one of the portal's themed pages (fiction, cinema,
// documentari) for listing cards.
func (f *CatalogFetcher) Section(ctx context.Context, path, contentType string, skip int, userID string) ([]model.Meta, error) {
	resp, err := f.client.get(ctx, f.client.baseURL()+path, f.auth.AuthenticatedHeaders(userID), f.client.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.body))
	if err != nil {
		return nil, err
	}

	var metas []model.Meta
	doc.Find(".slider-item, .card-container, .content-item").Each(func(i int, sel *goquery.Selection) {
		if i < skip || len(metas) >= pageSize {
			return
		}
		link, _ := sel.Find("a").First().Attr("href")
		title := strings.TrimSpace(sel.Find("h3, .title, .card-title").First().Text())
		image, ok := sel.Find("img").First().Attr("src")
		if !ok || image == "" {
			image, _ = sel.Find("img").First().Attr("data-src")
		}
		desc := strings.TrimSpace(sel.Find(".description, .card-text, p").First().Text())

		id := ContentIDFromPath(link)
		if id == "" || title == "" {
			return
		}
		metas = append(metas, model.Meta{
			ID:          "raiplay:" + id,
			Type:        contentType,
			Name:        title,
			Description: desc,
			Poster:      normalizeImageURL(image),
			Genres:      GenresFromText(title + " " + desc),
		})
	})
	return metas, nil
}

// contentJSONBody covers the per-content metadata endpoint.
type contentJSONBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Images      struct {
		Portrait  string `json:"portrait"`
		Landscape string `json:"landscape"`
	} `json:"images"`
	Video struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"video"`
}

// ContentMeta fetches metadata for a single content id. A missing or
// unparsable response yields (nil, nil).
func (f *CatalogFetcher) ContentMeta(ctx context.Context, contentType, contentID, userID string) (*model.Meta, error) {
	jsonURL := f.client.baseURL() + "/video/" + contentID + ".html?json"

	resp, err := f.client.get(ctx, jsonURL, f.auth.AuthenticatedHeaders(userID), f.client.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, nil
	}

	var body contentJSONBody
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, nil
	}

	name := body.Name
	if name == "" {
		name = body.Video.Title
	}
	if name == "" {
		return nil, nil
	}
	desc := body.Description
	if desc == "" {
		desc = body.Video.Description
	}
	poster := body.Images.Portrait
	if poster == "" {
		poster = body.Images.Landscape
	}
	return &model.Meta{
		ID:          "raiplay:" + contentID,
		Type:        contentType,
		Name:        name,
		Description: desc,
		Poster:      normalizeImageURL(poster),
		Genres:      GenresFromText(name + " " + desc),
	}, nil
}

// ContentIDFromPath normalizes a portal link into a bare content id.
func ContentIDFromPath(path string) string {
	if path == "" {
		return ""
	}
	path = strings.TrimSuffix(path, ".html")
	for _, prefix := range []string{"/programmi/", "/video/", "/"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok {
			path = rest
			break
		}
	}
	if path == "" || strings.Contains(path, "://") {
		return ""
	}
	return path
}

// normalizeImageURL makes protocol-relative poster URLs absolute.
func normalizeImageURL(image string) string {
	if image == "" {
		return ""
	}
	if strings.HasPrefix(image, "//") {
		return "https:" + image
	}
	return image
}
