// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"knowledge-bot-go/internal/config"
	"knowledge-bot-go/internal/model"
	"knowledge-bot-go/pkg/log"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// VectorIndex 把分块向量存放在一个 dense_vector 索引中，并通过 kNN 查询近邻。
type VectorIndex struct {
	client  *elasticsearch.Client
	index   string
	dims    int
	timeout time.Duration
}

// NewVectorIndex 创建 Elasticsearch 客户端。传输层失败最多重试一次。
func NewVectorIndex(esCfg config.ElasticsearchConfig, dims int) (*VectorIndex, error) {
	if strings.TrimSpace(esCfg.Addresses) == "" {
		return nil, errors.New("elasticsearch addresses is empty")
	}
	timeout := time.Duration(esCfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg := elasticsearch.Config{
		Addresses:  strings.Split(esCfg.Addresses, ","),
		Username:   esCfg.Username,
		Password:   esCfg.Password,
		MaxRetries: 1,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &VectorIndex{client: client, index: esCfg.IndexName, dims: dims, timeout: timeout}, nil
}

func (v *VectorIndex) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, v.timeout)
}

// EnsureIndex 检查索引是否存在，如果不存在则创建它
func (v *VectorIndex) EnsureIndex(ctx context.Context) error {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	res, err := v.client.Indices.Exists([]string{v.index}, v.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("[VectorIndex] 检查索引是否存在时出错: %v", err)
		return fmt.Errorf("%w: %v", model.ErrExternalService, err)
	}
	res.Body.Close()
	// 如果 res.StatusCode 是 200，说明索引已存在
	if res.StatusCode == http.StatusOK {
		log.Infof("[VectorIndex] 索引 '%s' 已存在", v.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("[VectorIndex] 检查索引 '%s' 是否存在时收到意外的状态码: %d", v.index, res.StatusCode)
		return fmt.Errorf("%w: unexpected status checking index: %d", model.ErrExternalService, res.StatusCode)
	}

	res, err = v.client.Indices.Create(
		v.index,
		v.client.Indices.Create.WithContext(ctx),
		v.client.Indices.Create.WithBody(strings.NewReader(indexMapping(v.dims))),
	)
	if err != nil {
		log.Errorf("[VectorIndex] 创建索引 '%s' 失败: %v", v.index, err)
		return fmt.Errorf("%w: %v", model.ErrExternalService, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[VectorIndex] 创建索引 '%s' 时 Elasticsearch 返回错误: %s", v.index, res.String())
		return fmt.Errorf("%w: create index: %s", model.ErrExternalService, res.Status())
	}

	log.Infof("[VectorIndex] 索引 '%s' 创建成功, dims: %d", v.index, v.dims)
	return nil
}

// indexMapping 返回分块索引的 mapping，向量使用 cosine 相似度。
func indexMapping(dims int) string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id": { "type": "keyword" },
				"filename": { "type": "keyword" },
				"file_type": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, dims)
}

// Upsert 以 chunk_id 为文档 ID 写入分块，已存在的同 ID 分块会被覆盖。
// 每个分块单独计算超时，全部写入后刷新一次索引。
// 任一分块失败时删除本次已写入的分块，避免检索到未入库文档的内容。
func (v *VectorIndex) Upsert(ctx context.Context, chunks []model.EsChunk) error {
	written := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if err := v.indexChunk(ctx, chunk); err != nil {
			return v.rollback(ctx, written, err)
		}
		written = append(written, chunk.ChunkID)
	}
	if len(written) == 0 {
		return nil
	}
	if err := v.refresh(ctx); err != nil {
		return v.rollback(ctx, written, err)
	}
	return nil
}

func (v *VectorIndex) indexChunk(ctx context.Context, chunk model.EsChunk) error {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	docBytes, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      v.index,
		DocumentID: chunk.ChunkID,
		Body:       bytes.NewReader(docBytes),
	}
	res, err := req.Do(ctx, v.client)
	if err != nil {
		log.Errorf("[VectorIndex] 写入分块失败, chunk_id: %s, error: %v", chunk.ChunkID, err)
		return fmt.Errorf("%w: %v", model.ErrExternalService, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[VectorIndex] 索引分块到 Elasticsearch 出错: %s", res.String())
		return fmt.Errorf("%w: failed to index chunk %s", model.ErrExternalService, chunk.ChunkID)
	}
	return nil
}

func (v *VectorIndex) refresh(ctx context.Context) error {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	res, err := v.client.Indices.Refresh(
		v.client.Indices.Refresh.WithContext(ctx),
		v.client.Indices.Refresh.WithIndex(v.index),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrExternalService, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: refresh returned %s", model.ErrExternalService, res.Status())
	}
	return nil
}

// rollback 删除已写入的分块并返回原始错误，清理失败时一并返回。
func (v *VectorIndex) rollback(ctx context.Context, ids []string, cause error) error {
	if len(ids) == 0 {
		return cause
	}
	// 调用方的 ctx 可能已经取消，清理使用独立的超时
	if err := v.deleteChunks(context.WithoutCancel(ctx), ids); err != nil {
		log.Errorf("[VectorIndex] 清理已写入的分块失败, count: %d, error: %v", len(ids), err)
		return errors.Join(cause, fmt.Errorf("cleanup %d written chunks: %w", len(ids), err))
	}
	log.Warnf("[VectorIndex] 写入失败，已删除本次写入的 %d 个分块", len(ids))
	return cause
}

func (v *VectorIndex) deleteChunks(ctx context.Context, ids []string) error {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{"ids": map[string]interface{}{"values": ids}},
	})
	if err != nil {
		return err
	}
	res, err := v.client.DeleteByQuery(
		[]string{v.index},
		bytes.NewReader(body),
		v.client.DeleteByQuery.WithContext(ctx),
		v.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("delete by query returned %s", res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string        `json:"_id"`
			Score  float64       `json:"_score"`
			Source model.EsChunk `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Query 返回与 vector 最近的 topK 个分块，顺序与 Elasticsearch 返回一致。
func (v *VectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]model.ChunkMatch, error) {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	numCandidates := topK * 10
	if numCandidates < 50 {
		numCandidates = 50
	}
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": numCandidates,
		},
		"_source": []string{"chunk_id", "filename", "chunk_index", "content"},
		"size":    topK,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := v.client.Search(
		v.client.Search.WithContext(ctx),
		v.client.Search.WithIndex(v.index),
		v.client.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[VectorIndex] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("%w: %v", model.ErrExternalService, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[VectorIndex] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("%w: elasticsearch search returned %s", model.ErrExternalService, res.Status())
	}

	var esResponse searchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		log.Errorf("[VectorIndex] 解析 Elasticsearch 响应失败: %v", err)
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	matches := make([]model.ChunkMatch, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		id := hit.Source.ChunkID
		if id == "" {
			id = hit.ID
		}
		matches = append(matches, model.ChunkMatch{
			ChunkID:    id,
			Filename:   hit.Source.Filename,
			ChunkIndex: hit.Source.ChunkIndex,
			Content:    hit.Source.Content,
			Score:      hit.Score,
		})
	}
	return matches, nil
}

// DeleteAll 删除索引中的全部分块。索引不存在时视为成功。
func (v *VectorIndex) DeleteAll(ctx context.Context) error {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	res, err := v.client.DeleteByQuery(
		[]string{v.index},
		strings.NewReader(`{"query":{"match_all":{}}}`),
		v.client.DeleteByQuery.WithContext(ctx),
		v.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		log.Errorf("[VectorIndex] 清空索引失败: %v", err)
		return fmt.Errorf("%w: %v", model.ErrExternalService, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		log.Errorf("[VectorIndex] 清空索引时 Elasticsearch 返回错误: %s", res.String())
		return fmt.Errorf("%w: delete by query returned %s", model.ErrExternalService, res.Status())
	}
	log.Infof("[VectorIndex] 索引 '%s' 已清空", v.index)
	return nil
}

// Ping 检查 Elasticsearch 是否可达。
func (v *VectorIndex) Ping(ctx context.Context) error {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()
	res, err := v.client.Ping(v.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrExternalService, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: ping returned %s", model.ErrExternalService, res.Status())
	}
	return nil
}
