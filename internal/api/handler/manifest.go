package handler

import "net/http"

// Manifest describes the addon to the media-browsing client.
type Manifest struct {
	ID          string            `json:"id"`
	Version     string            `json:"version"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Resources   []string          `json:"resources"`
	Types       []string          `json:"types"`
	IDPrefixes  []string          `json:"idPrefixes"`
	Catalogs    []ManifestCatalog `json:"catalogs"`
}

type ManifestCatalog struct {
	Type  string   `json:"type"`
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Extra []string `json:"extraSupported,omitempty"`
}

// DefaultManifest returns the addon manifest served at /manifest.json.
func DefaultManifest() Manifest {
	return Manifest{
		ID:          "org.raibridge.addon",
		Version:     "1.0.0",
		Name:        "RaiPlay Bridge",
		Description: "Catalogs, metadata and streams from RaiPlay",
		Resources:   []string{"catalog", "meta", "stream"},
		Types:       []string{"movie", "series"},
		IDPrefixes:  []string{"raiplay:"},
		Catalogs: []ManifestCatalog{
			{Type: "series", ID: "raiplay-series", Name: "RaiPlay Serie", Extra: []string{"search", "skip"}},
			{Type: "movie", ID: "raiplay-movies", Name: "RaiPlay Film", Extra: []string{"search", "skip"}},
			{Type: "series", ID: "raiplay-fiction", Name: "Fiction RAI", Extra: []string{"skip"}},
			{Type: "movie", ID: "raiplay-cinema", Name: "Cinema", Extra: []string{"skip"}},
			{Type: "movie", ID: "raiplay-documentari", Name: "Documentari", Extra: []string{"skip"}},
		},
	}
}

// ServeManifest handles GET /manifest.json.
func ServeManifest(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, DefaultManifest())
}
