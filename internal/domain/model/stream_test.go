package model

import "testing"

func TestQuality_IsHD(t *testing.T) {
	tests := []struct {
		name string
		q    Quality
		want bool
	}{
		{"1080 is HD", Quality1080, true},
		{"720 is HD", Quality720, true},
		{"480 is SD", Quality480, false},
		{"360 is SD", Quality360, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.IsHD(); got != tt.want {
				t.Errorf("Quality.IsHD() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInferQuality(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Quality
	}{
		{"explicit 1080p", "Serie 1080p", Quality1080},
		{"bare 1080", "https://cdn/stream_1080.m3u8", Quality1080},
		{"explicit 720p", "clip 720p", Quality720},
		{"hd keyword", "Versione HD", Quality720},
		{"sd keyword", "versione sd", Quality480},
		{"suffix 480", "https://cdn/video-480.mp4", Quality480},
		{"suffix 360", "https://cdn/video_360.mp4", Quality360},
		{"resolution beats keyword", "hd stream at 360", Quality360},
		{"no clue defaults", "https://cdn/video.m3u8", QualityAuto},
		{"empty defaults", "", QualityAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferQuality(tt.text); got != tt.want {
				t.Errorf("InferQuality(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestIsStreamURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"hls manifest", "https://cdn/index.m3u8", true},
		{"hls with query", "https://cdn/index.m3u8?token=x", true},
		{"mp4", "https://cdn/clip.mp4", true},
		{"dash manifest", "https://cdn/stream.mpd", true},
		{"relinker indirection", "https://mediapolis.rai.it/relinker/relinkerServlet.htm?cont=1", true},
		{"poster image", "https://cdn/poster.jpg", false},
		{"html page", "https://cdn/page.html", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStreamURL(tt.url); got != tt.want {
				t.Errorf("IsStreamURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsCaptionURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"webvtt", "https://cdn/subs.vtt", true},
		{"srt", "https://cdn/subs.srt", true},
		{"ttml", "https://cdn/subs.ttml", true},
		{"stream", "https://cdn/index.m3u8", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCaptionURL(tt.url); got != tt.want {
				t.Errorf("IsCaptionURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}
