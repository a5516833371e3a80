package club

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTMDb serves canned JSON per request path and records every query.
type fakeTMDb struct {
	mu      sync.Mutex
	routes  map[string]string
	queries map[string][]url.Values
}

func newFakeTMDb(t *testing.T, routes map[string]string) (*fakeTMDb, *TMDb) {
	t.Helper()
	fake := &fakeTMDb{routes: routes, queries: map[string][]url.Values{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		fake.queries[r.URL.Path] = append(fake.queries[r.URL.Path], r.URL.Query())
		body, ok := fake.routes[r.URL.Path]
		fake.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"status_message":"The resource you requested could not be found."}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return fake, NewTMDb("tmdb-secret-key", WithBaseURL(srv.URL))
}

func (f *fakeTMDb) last(path string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queries[path]
	if len(q) == 0 {
		return nil
	}
	return q[len(q)-1]
}

func (f *fakeTMDb) calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries[path])
}

func TestTMDbSendsKeyAndLanguage(t *testing.T) {
	fake, client := newFakeTMDb(t, map[string]string{
		"/search/movie": `{"results":[{"id":27205,"title":"Inception"}]}`,
	})

	first, ok, err := client.SearchFirst(context.Background(), "Inception", 2010)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(27205), first.Get("id").Int())

	q := fake.last("/search/movie")
	assert.Equal(t, "tmdb-secret-key", q.Get("api_key"))
	assert.Equal(t, "fr-FR", q.Get("language"))
	assert.Equal(t, "Inception", q.Get("query"))
	assert.Equal(t, "2010", q.Get("year"))
}

func TestTMDbSearchWithoutYearOrResults(t *testing.T) {
	fake, client := newFakeTMDb(t, map[string]string{
		"/search/movie": `{"results":[]}`,
	})

	_, ok, err := client.SearchFirst(context.Background(), "zzzz", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, fake.last("/search/movie").Has("year"))
}

func TestTMDbErrorStatusDoesNotLeakKey(t *testing.T) {
	_, client := newFakeTMDb(t, map[string]string{})

	_, err := client.Details(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.NotContains(t, err.Error(), "tmdb-secret-key")
}

func TestTMDbTransportErrorDoesNotLeakKey(t *testing.T) {
	client := NewTMDb("tmdb-secret-key", WithBaseURL("http://127.0.0.1:1"))

	_, err := client.NowPlaying(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "tmdb-secret-key")
}

func TestTMDbInvalidJSON(t *testing.T) {
	_, client := newFakeTMDb(t, map[string]string{"/trending/movie/week": `{"results":`})

	_, err := client.Trending(context.Background(), "week")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}
