package embedding

import (
	"context"
	"encoding/json"
	"knowledge-bot-go/internal/config"
	"knowledge-bot-go/internal/model"
	"knowledge-bot-go/pkg/retry"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	retry.InitialInterval = time.Millisecond
}

func newTestClient(url, key string) Client {
	return NewClient(config.EmbeddingConfig{
		APIKey:         key,
		BaseURL:        url,
		Model:          "text-embedding-test",
		Dimensions:     3,
		TimeoutSeconds: 2,
	})
}

func TestCreateEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"quarterly revenue"}, req.Input)
		assert.Equal(t, 3, req.Dimensions)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "sk-test")
	vec, err := c.CreateEmbedding(context.Background(), "quarterly revenue")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "text-embedding-test", c.ModelVersion())
}

func TestCreateEmbeddingRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1]}]}`))
	}))
	defer srv.Close()

	vec, err := newTestClient(srv.URL, "sk-test").CreateEmbedding(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCreateEmbeddingEmptyVector(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "sk-test").CreateEmbedding(context.Background(), "x")
	assert.ErrorIs(t, err, model.ErrExternalService)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreateEmbeddingMissingKey(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1", "")
	assert.False(t, c.Configured())
	_, err := c.CreateEmbedding(context.Background(), "x")
	assert.ErrorIs(t, err, model.ErrMissingCredentials)
}
