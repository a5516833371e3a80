package club

import "strings"

// genreIDs maps French genre names to TMDb genre ids.
var genreIDs = map[string]int{
	"action":          28,
	"aventure":        12,
	"animation":       16,
	"comedie":         35,
	"comédie":         35,
	"crime":           80,
	"documentaire":    99,
	"drame":           18,
	"fantastique":     14,
	"horreur":         27,
	"romance":         10749,
	"sf":              878,
	"science-fiction": 878,
	"thriller":        53,
	"guerre":          10752,
}

// providerIDs maps streaming platform names to TMDb watch-provider ids.
var providerIDs = map[string]int{
	"netflix":     8,
	"disney+":     337,
	"disney":      337,
	"amazon":      119,
	"prime":       119,
	"prime video": 119,
	"canal+":      381,
	"canal":       381,
	"mycanal":     381,
	"apple tv":    350,
	"apple tv+":   350,
	"apple":       350,
	"ocs":         56,
	"paramount+":  531,
	"paramount":   531,
	"crunchyroll": 283,
}

// comedyGenreID is used when a mood cannot be classified.
const comedyGenreID = 35

// GenreID resolves a genre name, case-insensitively.
func GenreID(name string) (int, bool) {
	id, ok := genreIDs[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// ProviderID resolves a streaming platform name, case-insensitively.
func ProviderID(name string) (int, bool) {
	id, ok := providerIDs[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}
