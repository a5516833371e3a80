package tools

import "context"

type excludedTitlesKey struct{}

// WithExcludedTitles returns a context carrying titles the recommendation
// tool must not suggest again, typically films already discussed in the
// conversation.
func WithExcludedTitles(ctx context.Context, titles []string) context.Context {
	if len(titles) == 0 {
		return ctx
	}
	return context.WithValue(ctx, excludedTitlesKey{}, titles)
}

// ExcludedTitles returns the titles set by WithExcludedTitles.
func ExcludedTitles(ctx context.Context) []string {
	titles, _ := ctx.Value(excludedTitlesKey{}).([]string)
	return titles
}
