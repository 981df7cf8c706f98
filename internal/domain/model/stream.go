package model

import "strings"

// Quality is the inferred resolution tier of a stream candidate.
type Quality int

const (
	Quality360  Quality = 360
	Quality480  Quality = 480
	Quality720  Quality = 720
	Quality1080 Quality = 1080
)

// QualityAuto is the default tier assigned when no clue is found.
const QualityAuto = Quality480

// IsHD reports whether the quality sits in the HD tier.
func (q Quality) IsHD() bool {
	return q >= Quality720
}

// Strategy names identifying which extraction path produced a candidate.
const (
	StrategyAPI      = "api"
	StrategyHTML     = "html"
	StrategyRelinker = "relinker"
)

// StreamCandidate is an unranked stream URL discovered by one extraction
// strategy, before deduplication and ranking.
type StreamCandidate struct {
	URL            string
	Title          string
	Quality        Quality
	SourceStrategy string
	IsRelinker     bool
}

// Subtitle is a caption track attached to a resolved stream.
type Subtitle struct {
	URL      string `json:"url"`
	Language string `json:"lang"`
}

// Stream is a ranked, playable stream descriptor returned to the client.
type Stream struct {
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Subtitles []Subtitle `json:"subtitles,omitempty"`
}

// quality clue table, checked in order. Explicit resolutions win over the
// hd/sd keywords, which win over URL suffix tokens.
var qualityClues = []struct {
	token string
	q     Quality
}{
	{"1080p", Quality1080},
	{"1080", Quality1080},
	{"720p", Quality720},
	{"720", Quality720},
	{"480p", Quality480},
	{"480", Quality480},
	{"360p", Quality360},
	{"360", Quality360},
	{"hd", Quality720},
	{"sd", Quality480},
	{"_1080", Quality1080},
	{"-1080", Quality1080},
	{"_720", Quality720},
	{"-720", Quality720},
	{"_480", Quality480},
	{"-480", Quality480},
}

// InferQuality derives a quality tier from textual or URL clues.
func InferQuality(text string) Quality {
	if text == "" {
		return QualityAuto
	}
	lower := strings.ToLower(text)
	for _, clue := range qualityClues {
		if strings.Contains(lower, clue.token) {
			return clue.q
		}
	}
	return QualityAuto
}

// IsStreamURL reports whether a URL looks like a playable stream or a
// relinker indirection worth keeping.
func IsStreamURL(url string) bool {
	return strings.Contains(url, ".m3u8") ||
		strings.Contains(url, ".mp4") ||
		strings.Contains(url, ".mpd") ||
		strings.Contains(url, "relinker")
}

// IsCaptionURL reports whether a URL points at a known caption format.
func IsCaptionURL(url string) bool {
	return strings.Contains(url, ".vtt") || strings.Contains(url, ".srt") || strings.Contains(url, ".ttml")
}
