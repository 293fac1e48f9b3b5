package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiProvider_Embed(t *testing.T) {
	var gotPath, gotKey string
	var gotReq geminiBatchEmbedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := geminiBatchEmbedResponse{
			Embeddings: []geminiContentEmbedding{
				{Values: []float32{0.1, 0.2, 0.3}},
				{Values: []float32{0.4, 0.5, 0.6}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewGeminiProvider(GeminiConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})

	vectors, err := p.Embed(context.Background(), []string{"how do I grant access", "second"})
	require.NoError(t, err)

	assert.Equal(t, "/models/embedding-001:batchEmbedContents", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotReq.Requests, 2)
	assert.Equal(t, "how do I grant access", gotReq.Requests[0].Content.Parts[0].Text)

	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])
}

func TestGeminiProvider_EmbedEmptyInput(t *testing.T) {
	p := NewGeminiProvider(DefaultGeminiConfig())
	_, err := p.Embed(context.Background(), nil)
	assert.Error(t, err)
}

func TestGeminiProvider_EmbedAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewGeminiProvider(GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGeminiProvider_EmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiBatchEmbedResponse{
			Embeddings: []geminiContentEmbedding{{Values: []float32{0.1}}},
		})
	}))
	defer srv.Close()

	p := NewGeminiProvider(GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestGeminiProvider_Defaults(t *testing.T) {
	p := NewGeminiProvider(GeminiConfig{APIKey: "k"})
	assert.Equal(t, 768, p.Dimensions())
	assert.Equal(t, "gemini-embedding", p.Name())
}
