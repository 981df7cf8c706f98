package upstream

import (
	"sort"
	"strings"
)

// maxGenresPerItem caps how many genres one listing item carries.
const maxGenresPerItem = 3

// genreKeywords maps a normalized genre to the Italian keywords that imply
// it in titles and descriptions.
var genreKeywords = map[string][]string{
	"Drama":       {"drammatico", "dramma", "tragico", "sentimentale"},
	"Comedy":      {"commedia", "divertente", "comico", "umoristico", "satira"},
	"Thriller":    {"thriller", "suspense", "tensione", "brivido"},
	"Mystery":     {"giallo", "mistero", "investigativo", "poliziesco", "detective"},
	"Horror":      {"horror", "paura", "terrore", "incubo"},
	"Action":      {"azione", "adrenalina", "combattimento", "inseguimento"},
	"Romance":     {"romantico", "amore", "passione"},
	"Documentary": {"documentario", "inchiesta", "reportage", "approfondimento"},
	"History":     {"storico", "storia", "epoca"},
	"Biography":   {"biografico", "biografia", "vita di", "storia di"},
	"Kids":        {"bambini", "ragazzi", "cartoni", "educativo"},
	"Science":     {"scienza", "scientifico", "ricerca", "scoperta"},
	"Nature":      {"natura", "animali", "ambiente", "pianeta"},
	"Travel":      {"viaggi", "viaggio", "destinazione"},
	"Music":       {"musica", "musicale", "concerto", "orchestra"},
	"Sport":       {"sport", "calcio", "tennis", "olimpiadi", "campionato"},
	"News":        {"notizie", "informazione", "attualità", "cronaca"},
	"Culture":     {"cultura", "culturale", "arte", "letteratura"},
}

// GenresFromText extracts up to three genres from a title/description blob
// by keyword lookup. Purely static; no upstream calls.
func GenresFromText(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var found []string
	for genre, keywords := range genreKeywords {
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				found = append(found, genre)
				break
			}
		}
	}
	if found == nil {
		return nil
	}
	sort.Strings(found)
	if len(found) > maxGenresPerItem {
		found = found[:maxGenresPerItem]
	}
	return found
}
