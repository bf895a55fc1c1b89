package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/repo"
)

// statsProvider exposes the mention pipeline counters for /metrics
type statsProvider interface {
	Stats() (processed, duplicates, rateLimited int64)
}

// HealthServer serves the liveness and metrics endpoints
type HealthServer struct {
	stateRepo repo.StateRepo
	stats     statsProvider
	srv       *http.Server
	log       *zap.Logger
}

// NewHealthServer creates the health/metrics HTTP server
func NewHealthServer(port int, stateRepo repo.StateRepo, stats statsProvider, log *zap.Logger) *HealthServer {
	s := &HealthServer{
		stateRepo: stateRepo,
		stats:     stats,
		log:       log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Start starts the HTTP server and blocks until it stops
func (s *HealthServer) Start() error {
	s.log.Info("HTTP server started", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully
func (s *HealthServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Error("HTTP server shutdown failed", zap.Error(err))
	}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ok := s.stateRepo.Ping(r.Context())

	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    map[string]string{"valkey": "ok"},
	}
	code := http.StatusOK
	if !ok {
		resp.Status = "degraded"
		resp.Checks["valkey"] = "error"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *HealthServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	processed, duplicates, rateLimited := s.stats.Stats()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, `# HELP emoji_bot_up Service availability
# TYPE emoji_bot_up gauge
emoji_bot_up 1
# HELP emoji_bot_mentions_processed_total Mentions accepted for processing
# TYPE emoji_bot_mentions_processed_total counter
emoji_bot_mentions_processed_total %d
# HELP emoji_bot_duplicates_dropped_total Duplicate notes dropped
# TYPE emoji_bot_duplicates_dropped_total counter
emoji_bot_duplicates_dropped_total %d
# HELP emoji_bot_rate_limited_total Mentions dropped by the rate limiter
# TYPE emoji_bot_rate_limited_total counter
emoji_bot_rate_limited_total %d
`, processed, duplicates, rateLimited)
}
