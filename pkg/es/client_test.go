package es

import (
	"context"
	"encoding/json"
	"io"
	"knowledge-bot-go/internal/config"
	"knowledge-bot-go/internal/model"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeES 模拟 Elasticsearch 的 HTTP 接口。
type fakeES struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(w http.ResponseWriter, r *http.Request, body string)
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	f.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.handle(w, r, string(body))
}

func newTestIndex(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body string)) (*VectorIndex, *fakeES) {
	t.Helper()
	fake := &fakeES{handle: handle}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	idx, err := NewVectorIndex(config.ElasticsearchConfig{Addresses: srv.URL, IndexName: "chunks", TimeoutSeconds: 5}, 3)
	require.NoError(t, err)
	return idx, fake
}

func TestNewVectorIndexRequiresAddress(t *testing.T) {
	_, err := NewVectorIndex(config.ElasticsearchConfig{}, 3)
	assert.Error(t, err)
}

func TestEnsureIndexCreatesMissingIndex(t *testing.T) {
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))
	require.Len(t, fake.requests, 2)
	assert.Equal(t, http.MethodPut, fake.requests[1].Method)
	assert.Equal(t, "/chunks", fake.requests[1].Path)

	var mapping map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(fake.requests[1].Body), &mapping))
	vector := mapping["mappings"].(map[string]interface{})["properties"].(map[string]interface{})["vector"].(map[string]interface{})
	assert.Equal(t, "dense_vector", vector["type"])
	assert.Equal(t, float64(3), vector["dims"])
	assert.Equal(t, "cosine", vector["similarity"])
}

func TestEnsureIndexExisting(t *testing.T) {
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, idx.EnsureIndex(context.Background()))
	assert.Len(t, fake.requests, 1)
}

func TestUpsertUsesChunkID(t *testing.T) {
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	err := idx.Upsert(context.Background(), []model.EsChunk{
		{ChunkID: "a.txt_0_1234abcd", Filename: "a.txt", Content: "one", Vector: []float32{1, 0, 0}},
		{ChunkID: "a.txt_1_5678abcd", Filename: "a.txt", ChunkIndex: 1, Content: "two", Vector: []float32{0, 1, 0}},
	})
	require.NoError(t, err)
	require.Len(t, fake.requests, 3)
	assert.Equal(t, "/chunks/_doc/a.txt_0_1234abcd", fake.requests[0].Path)
	assert.Contains(t, fake.requests[1].Body, `"chunk_index":1`)
	// 只在最后刷新一次
	assert.Equal(t, "/chunks/_refresh", fake.requests[2].Path)
}

func TestUpsertError(t *testing.T) {
	idx, _ := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
	})
	err := idx.Upsert(context.Background(), []model.EsChunk{{ChunkID: "x"}})
	assert.ErrorIs(t, err, model.ErrExternalService)
}

func TestUpsertRemovesWrittenChunksOnFailure(t *testing.T) {
	var docWrites int
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		if strings.Contains(r.URL.Path, "/_doc/") {
			docWrites++
			if docWrites > 1 {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"result":"created"}`))
			return
		}
		_, _ = w.Write([]byte(`{"deleted":1}`))
	})

	err := idx.Upsert(context.Background(), []model.EsChunk{
		{ChunkID: "a.txt_0_1234abcd", Filename: "a.txt", Content: "one"},
		{ChunkID: "a.txt_1_5678abcd", Filename: "a.txt", ChunkIndex: 1, Content: "two"},
		{ChunkID: "a.txt_2_9abcdef0", Filename: "a.txt", ChunkIndex: 2, Content: "three"},
	})
	assert.ErrorIs(t, err, model.ErrExternalService)

	require.Len(t, fake.requests, 3)
	cleanup := fake.requests[2]
	assert.Equal(t, http.MethodPost, cleanup.Method)
	assert.Equal(t, "/chunks/_delete_by_query", cleanup.Path)
	assert.Contains(t, cleanup.Body, `"ids"`)
	assert.Contains(t, cleanup.Body, "a.txt_0_1234abcd")
	assert.NotContains(t, cleanup.Body, "a.txt_1_5678abcd")
	assert.NotContains(t, cleanup.Body, "a.txt_2_9abcdef0")
}

func TestUpsertReportsCleanupFailure(t *testing.T) {
	idx, _ := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/_doc/a_0"):
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"result":"created"}`))
		case strings.HasSuffix(r.URL.Path, "/_delete_by_query"):
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
		}
	})

	err := idx.Upsert(context.Background(), []model.EsChunk{{ChunkID: "a_0"}, {ChunkID: "a_1"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrExternalService)
	assert.Contains(t, err.Error(), "failed to index chunk a_1")
	assert.Contains(t, err.Error(), "cleanup 1 written chunks")
}

func TestUpsertFirstChunkFailureNeedsNoCleanup(t *testing.T) {
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
	})
	err := idx.Upsert(context.Background(), []model.EsChunk{{ChunkID: "a_0"}, {ChunkID: "a_1"}})
	assert.ErrorIs(t, err, model.ErrExternalService)
	assert.Len(t, fake.requests, 1)
}

func TestPing(t *testing.T) {
	idx, _ := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		_, _ = w.Write([]byte(`{"version":{"number":"8.19.0"}}`))
	})
	assert.NoError(t, idx.Ping(context.Background()))

	down, _ := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.ErrorIs(t, down.Ping(context.Background()), model.ErrExternalService)
}

func TestQueryPreservesHitOrder(t *testing.T) {
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_id":"b_0_x","_score":0.93,"_source":{"chunk_id":"b_0_x","filename":"b.pdf","chunk_index":0,"content":"second doc"}},
			{"_id":"a_2_y","_score":0.81,"_source":{"filename":"a.txt","chunk_index":2,"content":"first doc"}}
		]}}`))
	})

	matches, err := idx.Query(context.Background(), []float32{0.1, 0.2, 0.3}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "b_0_x", matches[0].ChunkID)
	assert.Equal(t, "a_2_y", matches[1].ChunkID)
	assert.Equal(t, 2, matches[1].ChunkIndex)
	assert.InDelta(t, 0.93, matches[0].Score, 1e-9)

	require.Len(t, fake.requests, 1)
	assert.True(t, strings.HasSuffix(fake.requests[0].Path, "/chunks/_search"))
	assert.Contains(t, fake.requests[0].Body, `"knn"`)
	assert.Contains(t, fake.requests[0].Body, `"k":2`)
}

func TestDeleteAll(t *testing.T) {
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		_, _ = w.Write([]byte(`{"deleted":4}`))
	})
	require.NoError(t, idx.DeleteAll(context.Background()))
	require.Len(t, fake.requests, 1)
	assert.Equal(t, "/chunks/_delete_by_query", fake.requests[0].Path)
	assert.Contains(t, fake.requests[0].Body, "match_all")
}

func TestDeleteAllMissingIndex(t *testing.T) {
	idx, _ := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"index_not_found_exception"}`))
	})
	assert.NoError(t, idx.DeleteAll(context.Background()))
}
