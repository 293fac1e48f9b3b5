// Package server exposes the control API: out-of-band context updates,
// reward submission and read-back, health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/voicekit/gcpassist/internal/metrics"
	"github.com/voicekit/gcpassist/pipeline"
	"github.com/voicekit/gcpassist/rag"
	"github.com/voicekit/gcpassist/reward"
)

// Options configures the control API.
type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	// Done stops the rate limiter's background cleanup.
	Done <-chan struct{}
}

// Server is the control API.
type Server struct {
	contexts *rag.ContextStore
	rewards  *reward.Aggregator
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// New creates the control API server.
func New(contexts *rag.ContextStore, rewards *reward.Aggregator, collector *metrics.Collector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.NewCollector("gcpassist", logger)
	}
	return &Server{
		contexts: contexts,
		rewards:  rewards,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "control_api")),
	}
}

// Handler builds the routed and middleware-wrapped handler.
func (s *Server) Handler(opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("PUT /v1/context", s.handlePutContext)
	mux.HandleFunc("GET /v1/context", s.handleGetContext)
	mux.HandleFunc("POST /v1/rewards", s.handlePostReward)
	mux.HandleFunc("GET /v1/rewards/best", s.handleBestAction)
	mux.HandleFunc("GET /v1/rewards/{action_id}", s.handleGetReward)

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestLogger(s.logger),
		Metrics(s.metrics),
	}
	if opts.RateLimitRPS > 0 {
		done := opts.Done
		if done == nil {
			done = make(chan struct{})
		}
		middlewares = append(middlewares, RateLimit(opts.RateLimitRPS, opts.RateLimitBurst, done))
	}
	return Chain(mux, middlewares...)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// contextUpdateRequest is the PUT /v1/context body.
type contextUpdateRequest struct {
	Context string `json:"context"`
}

func (s *Server) handlePutContext(w http.ResponseWriter, r *http.Request) {
	var req contextUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.contexts.Set(req.Context)
	s.metrics.RecordContextUpdate()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "updated",
		"length": s.contexts.Len(),
	})
}

func (s *Server) handleGetContext(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"context": s.contexts.Get(),
		"length":  s.contexts.Len(),
	})
}

// rewardRequest is the POST /v1/rewards body. It carries the same fields as
// a WebSocket action_feedback frame.
type rewardRequest struct {
	ActionID  string         `json:"action_id"`
	Success   bool           `json:"success"`
	UserDelta float64        `json:"user_delta"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handlePostReward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	value := pipeline.RewardValue(pipeline.FeedbackEvent{
		ActionID:  req.ActionID,
		Success:   req.Success,
		UserDelta: req.UserDelta,
		Metadata:  req.Metadata,
	})
	if err := s.rewards.Record(r.Context(), req.ActionID, value); err != nil {
		if errors.Is(err, reward.ErrInvalidActionID) || errors.Is(err, reward.ErrInvalidValue) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("reward record failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to record reward")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"action_id": req.ActionID,
		"reward":    value,
	})
}

func (s *Server) handleBestAction(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("candidates")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "candidates query parameter is required")
		return
	}
	candidates := strings.Split(raw, ",")

	best, err := s.rewards.BestAction(r.Context(), candidates)
	if err != nil {
		if errors.Is(err, reward.ErrNoObservations) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("best action failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to pick best action")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"action_id": best})
}

func (s *Server) handleGetReward(w http.ResponseWriter, r *http.Request) {
	actionID := r.PathValue("action_id")

	stats, err := s.rewards.Stats(r.Context(), actionID)
	if err != nil {
		if errors.Is(err, reward.ErrInvalidActionID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("reward stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read reward stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"action_id": stats.ActionID,
		"sum":       stats.Sum,
		"count":     stats.Count,
		"mean":      stats.Mean(),
	})
}

// Run serves the handler until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, opts Options) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(opts),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control API listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
