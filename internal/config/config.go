package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Cache    CacheConfig
	Session  SessionConfig
	Stream   StreamConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"ADDON_PORT" default:"7000"`
	ReadTimeout     time.Duration `envconfig:"ADDON_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"ADDON_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"ADDON_SHUTDOWN_TIMEOUT" default:"10s"`
}

type UpstreamConfig struct {
	BaseURL     string `envconfig:"RAIPLAY_BASE_URL" default:"https://www.raiplay.it"`
	RelinkerURL string `envconfig:"RAIPLAY_RELINKER_URL" default:"https://mediapolis.rai.it/relinker/relinkerServlet.htm"`

	RequestTimeout time.Duration `envconfig:"RAIPLAY_REQUEST_TIMEOUT" default:"10s"`
	AuthTimeout    time.Duration `envconfig:"RAIPLAY_AUTH_TIMEOUT" default:"15s"`
	StreamTimeout  time.Duration `envconfig:"RAIPLAY_STREAM_TIMEOUT" default:"15s"`

	// RequestsPerSecond throttles outbound calls to the portal.
	RequestsPerSecond float64 `envconfig:"RAIPLAY_REQUESTS_PER_SECOND" default:"10"`
	RequestBurst      int     `envconfig:"RAIPLAY_REQUEST_BURST" default:"5"`
}

type CacheConfig struct {
	CatalogTTL time.Duration `envconfig:"CACHE_CATALOG_TTL" default:"1h"`
	StreamTTL  time.Duration `envconfig:"CACHE_STREAM_TTL" default:"5m"`
	MetaTTL    time.Duration `envconfig:"CACHE_META_TTL" default:"30m"`
	AuthTTL    time.Duration `envconfig:"CACHE_AUTH_TTL" default:"24h"`

	CatalogMax int `envconfig:"CACHE_CATALOG_MAX" default:"1000"`
	StreamMax  int `envconfig:"CACHE_STREAM_MAX" default:"100"`
	MetaMax    int `envconfig:"CACHE_META_MAX" default:"500"`

	SweepInterval time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"5m"`
}

type SessionConfig struct {
	MaxSessions     int           `envconfig:"SESSION_MAX" default:"100"`
	Timeout         time.Duration `envconfig:"SESSION_TIMEOUT" default:"24h"`
	CleanupInterval time.Duration `envconfig:"SESSION_CLEANUP_INTERVAL" default:"5m"`

	RateMaxRequests int           `envconfig:"SESSION_RATE_MAX_REQUESTS" default:"100"`
	RateWindow      time.Duration `envconfig:"SESSION_RATE_WINDOW" default:"1m"`
}

type StreamConfig struct {
	QualityPreference string `envconfig:"STREAM_QUALITY_PREFERENCE" default:"auto"`
	EnableSubtitles   bool   `envconfig:"STREAM_ENABLE_SUBTITLES" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
