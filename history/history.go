// Package history prepares stored conversation entries for replay into a
// model request.
//
// Information Hiding:
// - Token estimation heuristic
// - Window selection and budget trimming order
// - Title extraction patterns
package history

import (
	"unicode/utf8"

	"github.com/Haga4000/Regelebot/model"
)

// Window is an oldest-first run of history entries for one request.
type Window []model.HistoryEntry

// Prepared is the result of running the full preparation pipeline.
type Prepared struct {
	Window        Window
	PriorSubjects []string
}

// EstimateTokens approximates the token cost of a string as a quarter of
// its length, never less than one.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// Tokens returns the summed estimate for every entry in the window.
func (w Window) Tokens() int {
	total := 0
	for _, e := range w {
		total += EstimateTokens(e.Content)
	}
	return total
}

// SelectWindow takes the first size entries of a newest-first list and
// returns them oldest-first. The input is left untouched.
func SelectWindow(newestFirst []model.HistoryEntry, size int) Window {
	if size <= 0 || len(newestFirst) == 0 {
		return Window{}
	}
	if size > len(newestFirst) {
		size = len(newestFirst)
	}

	window := make(Window, size)
	for i := 0; i < size; i++ {
		window[size-1-i] = newestFirst[i]
	}
	return window
}

// TrimToBudget drops the oldest entries until the window fits the budget.
// The last remaining entry is always kept. The caller's slice is not
// modified.
func TrimToBudget(window Window, budget int) Window {
	if len(window) == 0 {
		return Window{}
	}

	costs := make([]int, len(window))
	total := 0
	for i, e := range window {
		costs[i] = EstimateTokens(e.Content)
		total += costs[i]
	}

	start := 0
	for len(window)-start > 1 && total > budget {
		total -= costs[start]
		start++
	}

	trimmed := make(Window, len(window)-start)
	copy(trimmed, window[start:])
	return trimmed
}

// Prepare runs window selection, budget trimming and subject extraction
// on a newest-first list of stored entries.
func Prepare(newestFirst []model.HistoryEntry, windowSize, budget int) Prepared {
	window := TrimToBudget(SelectWindow(newestFirst, windowSize), budget)
	return Prepared{
		Window:        window,
		PriorSubjects: ExtractPriorSubjects(window),
	}
}
