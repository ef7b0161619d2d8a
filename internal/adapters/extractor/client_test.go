package extractor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/tipster/internal/domain/model"
	"github.com/okian/tipster/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	require.NoError(t, logger.Init())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	base := []Option{
		WithBaseURL(srv.URL),
		WithAPIKey("test-key"),
		WithRetries(0, 0),
		WithRate(1000, 10),
		WithTimeout(2 * time.Second),
	}
	return New(append(base, opts...)...), srv
}

func textAnswer(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(messagesResponse{Content: []contentBlock{{Type: "text", Text: text}}})
}

func TestClient_ExtractJSON(t *testing.T) {
	var got messagesRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		textAnswer(w, `{"patterns":["ascot favourites"],"preferred_venues":["ascot"],"preferred_categories":["win"],"risk_tier":"moderate"}`)
	}, WithModel("test-model"), WithMaxTokens(256))

	ext, err := c.Extract(context.Background(), `{"actor_id":"a1"}`)
	require.NoError(t, err)
	assert.Equal(t, model.Extraction{
		Patterns:            []string{"ascot favourites"},
		PreferredVenues:     []string{"ascot"},
		PreferredCategories: []string{"win"},
		RiskTier:            model.RiskModerate,
	}, ext)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Contains(t, got.Messages[0].Content, `"actor_id":"a1"`)
	assert.NotEmpty(t, got.System)
}

func TestClient_ExtractSectionsFallback(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		textAnswer(w, "Betting Patterns:\n- York place bets\nRisk Profile: conservative")
	})

	ext, err := c.Extract(context.Background(), "{}")
	require.NoError(t, err)
	assert.Equal(t, []string{"York place bets"}, ext.Patterns)
	assert.Equal(t, model.RiskConservative, ext.RiskTier)
}

func TestClient_ErrorStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"max_tokens too large"}}`))
	})

	_, err := c.Extract(context.Background(), "{}")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequest)
	assert.Contains(t, err.Error(), "max_tokens too large")
}

func TestClient_CircuitOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithBreaker(2, time.Minute))

	for range 2 {
		_, err := c.Extract(context.Background(), "{}")
		require.ErrorIs(t, err, ErrRequest)
	}
	_, err := c.Extract(context.Background(), "{}")
	assert.ErrorIs(t, err, ErrRequest)
	assert.Equal(t, int32(2), calls.Load(), "open circuit must not reach the server")
}

func TestClient_EmptyAnswer(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		textAnswer(w, "")
	})

	_, err := c.Extract(context.Background(), "{}")
	assert.ErrorIs(t, err, ErrResponse)
}

func TestClient_CancelledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		textAnswer(w, "{}")
	}, WithRate(0.001, 1))

	// Drain the single token so the next call must wait.
	_, _ = c.Extract(context.Background(), "{}")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Extract(ctx, "{}")
	assert.ErrorIs(t, err, ErrRequest)
}
