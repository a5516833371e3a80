package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haga4000/Regelebot/club"
	"github.com/Haga4000/Regelebot/internal/metrics"
	"github.com/Haga4000/Regelebot/model"
	"github.com/Haga4000/Regelebot/ratelimit"
	"github.com/Haga4000/Regelebot/storage"
)

const testSecret = "s3cret"

type serverFixture struct {
	server        *Server
	responder     *fakeResponder
	conversations *storage.InMemoryStorage
	polls         *club.Polls
	registry      *prometheus.Registry
}

func newServerFixture(t *testing.T, rateLimit int) *serverFixture {
	t.Helper()
	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	require.NoError(t, err)
	limiter, err := ratelimit.New(rateLimit, 0)
	require.NoError(t, err)

	f := &serverFixture{
		responder:     &fakeResponder{reply: "Essaie Parasite, tu vas adorer 🍿"},
		conversations: storage.NewInMemoryStorage(),
		polls:         newTestPolls(t),
		registry:      registry,
	}
	cfg := DefaultConfig()
	cfg.WebhookSecret = testSecret
	cfg.WindowSize = 4

	f.server, err = New(cfg, Deps{
		Responder:     f.responder,
		Conversations: f.conversations,
		Movies:        &fakeMovies{},
		Stats:         &fakeStats{},
		Polls:         f.polls,
		Limiter:       limiter,
		Metrics:       m,
		Gatherer:      registry,
	})
	require.NoError(t, err)
	return f
}

func (f *serverFixture) post(t *testing.T, path string, body any, secret string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(webhookSecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func message(body string) MessageEvent {
	return MessageEvent{
		From:       "group-1@g.us",
		Sender:     "hash-alice",
		SenderName: "Alice",
		Body:       body,
		Timestamp:  time.Now().Unix(),
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(DefaultConfig(), Deps{})
	assert.Error(t, err)
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	f := newServerFixture(t, 10)

	for _, secret := range []string{"", "wrong"} {
		rec := f.post(t, "/webhook/message", message("@regelebot salut"), secret)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid webhook secret", decode(t, rec)["detail"])
	}
	assert.Empty(t, f.responder.calls())
	assert.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(`
# HELP regelebot_webhook_requests_total Webhook requests by route and HTTP status code.
# TYPE regelebot_webhook_requests_total counter
regelebot_webhook_requests_total{code="401",route="/webhook/message"} 2
`), "regelebot_webhook_requests_total"))
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	f := newServerFixture(t, 10)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newServerFixture(t, 10)
	f.post(t, "/webhook/message", message("bonjour"), testSecret)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "regelebot_webhook_requests_total")
}

func TestMessageWithoutMentionIsIgnored(t *testing.T) {
	f := newServerFixture(t, 10)

	rec := f.post(t, "/webhook/message", message("on regarde quoi ce soir ?"), testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply": null}`, rec.Body.String())
	assert.Empty(t, f.responder.calls())

	stored, err := f.conversations.Recent(context.Background(), "group-1@g.us", 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestMentionReachesOrchestrator(t *testing.T) {
	f := newServerFixture(t, 10)
	ctx := context.Background()
	require.NoError(t, f.conversations.StoreMessage(ctx, "group-1@g.us", model.HistoryEntry{
		Role: model.RoleBot, Content: "Je te conseille Inception (2010).",
	}))

	rec := f.post(t, "/webhook/message", message("@Regelebot et un autre film ?"), testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "```Essaie Parasite, tu vas adorer 🍿```", decode(t, rec)["reply"])

	calls := f.responder.calls()
	require.Len(t, calls, 1)
	turn := calls[0]
	assert.Equal(t, "et un autre film ?", turn.Text)
	assert.Equal(t, "Alice", turn.SenderName)
	require.Len(t, turn.History, 1, "the current message is stored after history is read")
	assert.Equal(t, []string{"Inception"}, turn.PriorSubjects)

	stored, err := f.conversations.Recent(ctx, "group-1@g.us", 10)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, model.RoleBot, stored[0].Role)
	assert.Equal(t, "Essaie Parasite, tu vas adorer 🍿", stored[0].Content)
	assert.Equal(t, model.RoleUser, stored[1].Role)
	assert.Equal(t, "@Regelebot et un autre film ?", stored[1].Content)
	assert.Equal(t, "Alice", stored[1].SenderName)
}

func TestCommandBypassesOrchestrator(t *testing.T) {
	f := newServerFixture(t, 10)

	rec := f.post(t, "/webhook/message", message("/sondage Film ? | Dune | Alien"), testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.responder.calls())

	var reply MessageReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.NotNil(t, reply.Reply)
	assert.Contains(t, *reply.Reply, "1. Dune")
	require.NotNil(t, reply.Poll)
	assert.Equal(t, []string{"Dune", "Alien"}, reply.Poll.Options)
}

func TestRateLimit(t *testing.T) {
	f := newServerFixture(t, 2)

	for i := 0; i < 2; i++ {
		rec := f.post(t, "/webhook/message", message("salut"), testSecret)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.post(t, "/webhook/message", message("@regelebot encore"), testSecret)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Rate limit exceeded", decode(t, rec)["detail"])
	assert.Empty(t, f.responder.calls())
	assert.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(`
# HELP regelebot_rate_limited_total Messages rejected by the per-sender rate limiter.
# TYPE regelebot_rate_limited_total counter
regelebot_rate_limited_total 1
`), "regelebot_rate_limited_total"))

	elsewhere := message("@regelebot salut")
	elsewhere.From = "group-2@g.us"
	assert.Equal(t, http.StatusTooManyRequests, f.post(t, "/webhook/message", elsewhere, testSecret).Code)
}

func TestRateLimitIsPerSender(t *testing.T) {
	f := newServerFixture(t, 2)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, f.post(t, "/webhook/message", message("salut"), testSecret).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, f.post(t, "/webhook/message", message("salut"), testSecret).Code)

	bob := message("@regelebot une idee de film ?")
	bob.Sender = "hash-bob"
	bob.SenderName = "Bob"
	rec := f.post(t, "/webhook/message", bob, testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.responder.calls(), 1)
	assert.Equal(t, "Bob", f.responder.calls()[0].SenderName)
}

func TestRateLimitFallsBackToChat(t *testing.T) {
	f := newServerFixture(t, 1)

	anonymous := message("salut")
	anonymous.Sender = ""
	assert.Equal(t, http.StatusOK, f.post(t, "/webhook/message", anonymous, testSecret).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.post(t, "/webhook/message", anonymous, testSecret).Code)

	// A named member of the same chat has its own window.
	assert.Equal(t, http.StatusOK, f.post(t, "/webhook/message", message("salut"), testSecret).Code)
}

func TestMalformedMessage(t *testing.T) {
	f := newServerFixture(t, 10)
	rec := f.post(t, "/webhook/message", map[string]any{"body": "@regelebot"}, testSecret)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestNativePollFlow(t *testing.T) {
	f := newServerFixture(t, 10)
	ctx := context.Background()
	poll, err := f.polls.Create(ctx, "Film ?", []string{"Dune", "Alien"}, "Alice")
	require.NoError(t, err)

	rec := f.post(t, "/webhook/poll-created", PollCreatedEvent{PollID: poll.ID, WAMessageID: "wa-1"}, testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success": true}`, rec.Body.String())

	rec = f.post(t, "/webhook/poll-vote", PollVoteEvent{
		WAMessageID: "wa-1", Voter: "hash-bob", VoterName: "Bob", SelectedOptions: []string{"Alien"},
	}, testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success": true}`, rec.Body.String())

	results, err := f.polls.Results(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, results.TotalVotes)
	assert.Equal(t, "Alien", results.Results[0].Label)

	rec = f.post(t, "/webhook/poll-vote", PollVoteEvent{
		WAMessageID: "wa-unknown", VoterName: "Bob", SelectedOptions: []string{"Alien"},
	}, testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Sondage non trouve pour ce message WhatsApp.", body["error"])
}
