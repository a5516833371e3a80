package club

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultTMDbBaseURL is the public TMDb v3 API.
const DefaultTMDbBaseURL = "https://api.themoviedb.org/3"

const (
	tmdbLanguage  = "fr-FR"
	tmdbRegion    = "FR"
	posterBaseURL = "https://image.tmdb.org/t/p/w500"
	maxBodyBytes  = 4 << 20
)

// TMDb is a minimal client for the endpoints the club uses. Responses are
// read with gjson paths rather than full struct decoding.
type TMDb struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// TMDbOption configures a TMDb client.
type TMDbOption func(*TMDb)

// WithBaseURL points the client at another server (tests, proxies).
func WithBaseURL(baseURL string) TMDbOption {
	return func(t *TMDb) {
		t.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the default 10s-timeout client.
func WithHTTPClient(client *http.Client) TMDbOption {
	return func(t *TMDb) {
		t.client = client
	}
}

// NewTMDb creates a client authenticated with an API key.
func NewTMDb(apiKey string, opts ...TMDbOption) *TMDb {
	t := &TMDb{
		apiKey:  apiKey,
		baseURL: DefaultTMDbBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TMDb) get(ctx context.Context, path string, params url.Values) (gjson.Result, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", t.apiKey)
	params.Set("language", tmdbLanguage)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("tmdb %s: failed to create request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// url.Error embeds the query string, which carries the key.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return gjson.Result{}, fmt.Errorf("tmdb %s: request failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("tmdb %s: failed to read response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "status_message").String()
		return gjson.Result{}, fmt.Errorf("tmdb %s: HTTP %d %s", path, resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("tmdb %s: invalid JSON response", path)
	}

	return gjson.ParseBytes(body), nil
}

// SearchFirst returns the best search match for a title, or false when
// nothing matched. A year of 0 means no year filter.
func (t *TMDb) SearchFirst(ctx context.Context, query string, year int) (gjson.Result, bool, error) {
	params := url.Values{"query": {query}}
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	data, err := t.get(ctx, "/search/movie", params)
	if err != nil {
		return gjson.Result{}, false, err
	}

	first := data.Get("results.0")
	return first, first.Exists(), nil
}

// Details fetches one movie, optionally with appended sub-resources.
func (t *TMDb) Details(ctx context.Context, id int64, appendToResponse ...string) (gjson.Result, error) {
	params := url.Values{}
	if len(appendToResponse) > 0 {
		params.Set("append_to_response", strings.Join(appendToResponse, ","))
	}
	return t.get(ctx, "/movie/"+strconv.FormatInt(id, 10), params)
}

// Similar lists movies TMDb considers close to the given one.
func (t *TMDb) Similar(ctx context.Context, id int64) ([]gjson.Result, error) {
	data, err := t.get(ctx, "/movie/"+strconv.FormatInt(id, 10)+"/similar", nil)
	if err != nil {
		return nil, err
	}
	return data.Get("results").Array(), nil
}

// NowPlaying lists the films in French theaters.
func (t *TMDb) NowPlaying(ctx context.Context) ([]gjson.Result, error) {
	data, err := t.get(ctx, "/movie/now_playing", url.Values{"region": {tmdbRegion}})
	if err != nil {
		return nil, err
	}
	return data.Get("results").Array(), nil
}

// Discover runs /discover/movie with raw TMDb filter parameters.
func (t *TMDb) Discover(ctx context.Context, params url.Values) ([]gjson.Result, error) {
	data, err := t.get(ctx, "/discover/movie", params)
	if err != nil {
		return nil, err
	}
	return data.Get("results").Array(), nil
}

// Trending lists trending movies for a "day" or "week" window.
func (t *TMDb) Trending(ctx context.Context, window string) ([]gjson.Result, error) {
	data, err := t.get(ctx, "/trending/movie/"+window, nil)
	if err != nil {
		return nil, err
	}
	return data.Get("results").Array(), nil
}
