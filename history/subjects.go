package history

import (
	"regexp"
	"strings"

	"github.com/Haga4000/Regelebot/model"
)

var (
	// A run of capitalized words (lowercase connectors allowed inside),
	// optionally closed by bold markers, followed by a year in parentheses.
	yearTitlePattern = regexp.MustCompile(
		`([\p{Lu}0-9][\p{L}0-9'’:&.\-]*(?:\s+(?:(?:de|des|du|la|le|les|l'|d'|of|the|and|et|a|à|in|on)\s+)*[\p{Lu}0-9][\p{L}0-9'’:&.\-]*)*)\**\s*\(((?:18|19|20)\d{2})\)`,
	)
	boldTitlePattern = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)

	fillerWords = map[string]bool{
		"je": true, "tu": true, "il": true, "elle": true, "on": true,
		"nous": true, "vous": true, "ils": true, "elles": true,
		"et": true, "ou": true, "mais": true, "donc": true, "or": true,
		"alors": true, "puis": true, "aussi": true, "sinon": true,
		"ok": true, "voici": true, "voila": true, "voilà": true,
		"bref": true, "enfin": true, "perso": true, "oui": true, "non": true,
	}
)

// ExtractPriorSubjects returns the titles mentioned in previous bot replies,
// deduplicated in first-seen order. User entries are ignored.
func ExtractPriorSubjects(entries []model.HistoryEntry) []string {
	seen := make(map[string]bool)
	subjects := []string{}

	add := func(raw string) {
		title := cleanTitle(raw)
		if title == "" || seen[title] {
			return
		}
		seen[title] = true
		subjects = append(subjects, title)
	}

	for _, e := range entries {
		if !e.IsBot() {
			continue
		}
		for _, span := range collectMatches(e.Content) {
			add(span)
		}
	}

	return subjects
}

// collectMatches returns every candidate title in text, ordered by position.
func collectMatches(text string) []string {
	type hit struct {
		pos   int
		title string
	}
	var hits []hit

	for _, m := range yearTitlePattern.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, hit{pos: m[2], title: text[m[2]:m[3]]})
	}
	for _, m := range boldTitlePattern.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, hit{pos: m[2], title: text[m[2]:m[3]]})
	}

	// insertion sort keeps equal positions stable
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	titles := make([]string, len(hits))
	for i, h := range hits {
		titles[i] = h.title
	}
	return titles
}

// cleanTitle trims punctuation and strips leading filler words.
func cleanTitle(raw string) string {
	title := strings.Trim(strings.TrimSpace(raw), "*,;:!?. ")
	words := strings.Fields(title)
	for len(words) > 0 && fillerWords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}
