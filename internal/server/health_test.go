package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/domain"
)

type stubStateRepo struct {
	pingOK bool
}

func (s *stubStateRepo) GetState(ctx context.Context, userID string) (*domain.ConversationState, error) {
	return nil, nil
}

func (s *stubStateRepo) SetState(ctx context.Context, userID string, state *domain.ConversationState) error {
	return nil
}

func (s *stubStateRepo) DeleteState(ctx context.Context, userID string) error { return nil }

func (s *stubStateRepo) CheckRateLimit(ctx context.Context, userID string) (bool, error) {
	return true, nil
}

func (s *stubStateRepo) MarkProcessed(ctx context.Context, noteID string) (bool, error) {
	return true, nil
}

func (s *stubStateRepo) Ping(ctx context.Context) bool { return s.pingOK }

func (s *stubStateRepo) Close() error { return nil }

type stubStats struct {
	processed, duplicates, rateLimited int64
}

func (s *stubStats) Stats() (int64, int64, int64) {
	return s.processed, s.duplicates, s.rateLimited
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := NewHealthServer(0, &stubStateRepo{pingOK: true}, &stubStats{}, zap.NewNop())

		rec := httptest.NewRecorder()
		s.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, 200, rec.Code)
		var resp healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "ok", resp.Checks["valkey"])
		assert.NotEmpty(t, resp.Timestamp)
	})

	t.Run("degraded when store is unreachable", func(t *testing.T) {
		s := NewHealthServer(0, &stubStateRepo{pingOK: false}, &stubStats{}, zap.NewNop())

		rec := httptest.NewRecorder()
		s.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, 503, rec.Code)
		var resp healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "error", resp.Checks["valkey"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewHealthServer(0, &stubStateRepo{pingOK: true}, &stubStats{processed: 7, duplicates: 2, rateLimited: 1}, zap.NewNop())

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "emoji_bot_up 1")
	assert.Contains(t, body, "emoji_bot_mentions_processed_total 7")
	assert.Contains(t, body, "emoji_bot_duplicates_dropped_total 2")
	assert.Contains(t, body, "emoji_bot_rate_limited_total 1")
}
