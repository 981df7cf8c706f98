package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// anonymousUser is the user id for requests carrying no usable config.
const anonymousUser = "anonymous"

// UserConfig is the per-user addon configuration carried base64-encoded in
// the request path.
type UserConfig struct {
	Email             string `json:"raiplay_email"`
	Password          string `json:"raiplay_password"`
	QualityPreference string `json:"quality_preference"`
	EnableSubtitles   bool   `json:"enable_subtitles"`
}

// UserID derives the session owner from the config. Unconfigured requests
// share the anonymous user.
func (c UserConfig) UserID() string {
	if c.Email != "" {
		return c.Email
	}
	return anonymousUser
}

// parseUserConfig decodes the optional {config} path segment. Malformed
// config degrades to the anonymous defaults rather than failing the request.
func parseUserConfig(r *http.Request) UserConfig {
	encoded := chi.URLParam(r, "config")
	if encoded == "" {
		encoded = r.URL.Query().Get("config")
	}
	if encoded == "" {
		return UserConfig{}
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(encoded); err != nil {
			return UserConfig{}
		}
	}

	var cfg UserConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return UserConfig{}
	}
	return cfg
}
