package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voicekit/gcpassist/internal/metrics"
	"github.com/voicekit/gcpassist/rag"
	"github.com/voicekit/gcpassist/reward"
)

func newTestServer(t *testing.T) (*httptest.Server, *rag.ContextStore, *reward.Aggregator) {
	t.Helper()

	contexts := rag.NewContextStore(nil)
	rewards := reward.NewAggregator(nil, nil)
	s := New(contexts, rewards, metrics.NewCollector("test", nil), nil)

	srv := httptest.NewServer(s.Handler(Options{}))
	t.Cleanup(srv.Close)
	return srv, contexts, rewards
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])
}

func TestPutAndGetContext(t *testing.T) {
	srv, contexts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/v1/context", map[string]string{
		"context": "IAM roles grant permissions to principals.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "updated", body["status"])
	assert.Equal(t, float64(42), body["length"])
	assert.Equal(t, "IAM roles grant permissions to principals.", contexts.Get())

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/context", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "IAM roles grant permissions to principals.", body["context"])
}

func TestPutContextInvalidBody(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/v1/context", strings.NewReader("{broken"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostReward(t *testing.T) {
	srv, _, rewards := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/rewards", map[string]any{
		"action_id":  "open_settings",
		"success":    true,
		"user_delta": 12.5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(1.0), body["reward"])

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/rewards", map[string]any{
		"action_id":  "open_settings",
		"success":    true,
		"user_delta": 90,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(-1.0), decodeBody(t, resp)["reward"])

	stats, err := rewards.Stats(context.Background(), "open_settings")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.InDelta(t, 0.0, stats.Sum, 1e-9)
}

func TestPostRewardMissingActionID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/rewards", map[string]any{
		"success": true,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRewardStats(t *testing.T) {
	srv, _, rewards := newTestServer(t)

	require.NoError(t, rewards.Record(context.Background(), "suggest_docs", 1.0))
	require.NoError(t, rewards.Record(context.Background(), "suggest_docs", -1.0))
	require.NoError(t, rewards.Record(context.Background(), "suggest_docs", 1.0))

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/rewards/suggest_docs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "suggest_docs", body["action_id"])
	assert.Equal(t, float64(3), body["count"])
	assert.InDelta(t, 1.0, body["sum"].(float64), 1e-9)
	assert.InDelta(t, 1.0/3.0, body["mean"].(float64), 1e-9)
}

func TestGetRewardStatsUnknownAction(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/rewards/never_seen", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, float64(0), body["mean"])
}

func TestBestAction(t *testing.T) {
	srv, _, rewards := newTestServer(t)

	require.NoError(t, rewards.Record(context.Background(), "a", 1.0))
	require.NoError(t, rewards.Record(context.Background(), "a", -1.0))
	require.NoError(t, rewards.Record(context.Background(), "b", 1.0))

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/rewards/best?candidates=a,b,c", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "b", decodeBody(t, resp)["action_id"])
}

func TestBestActionNoObservations(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/rewards/best?candidates=x,y", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBestActionMissingCandidates(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/rewards/best", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecoveryMiddleware(t *testing.T) {
	var handler http.Handler = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler = Chain(handler, Recovery(zap.NewNop()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimit(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler = Chain(handler, RateLimit(1, 2, done))

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/context", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	assert.Equal(t, http.StatusOK, statuses[0])
	assert.Equal(t, http.StatusOK, statuses[1])
	assert.Contains(t, statuses[2:], http.StatusTooManyRequests)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/v1/rewards/:action_id", normalizePath("/v1/rewards/test_action_001"))
	assert.Equal(t, "/v1/rewards/best", normalizePath("/v1/rewards/best"))
	assert.Equal(t, "/v1/context", normalizePath("/v1/context"))
	assert.Equal(t, "/healthz", normalizePath("/healthz"))
}
