// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"knowledge-bot-go/internal/config"
	"knowledge-bot-go/internal/model"
	"knowledge-bot-go/pkg/log"
	"knowledge-bot-go/pkg/retry"
	"net/http"
	"strings"
	"time"
)

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	Configured() bool
	ModelVersion() string
}

type openAICompatibleClient struct {
	cfg     config.EmbeddingConfig
	client  *http.Client
	timeout time.Duration
}

// NewClient creates a new embedding client based on the provider in the config.
func NewClient(cfg config.EmbeddingConfig) Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &openAICompatibleClient{
		cfg:     cfg,
		client:  &http.Client{},
		timeout: timeout,
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *openAICompatibleClient) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

func (c *openAICompatibleClient) ModelVersion() string {
	return c.cfg.Model
}

// CreateEmbedding calls the OpenAI-compatible API to get the vector for a given text.
func (c *openAICompatibleClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("embedding api key is not configured: %w", model.ErrMissingCredentials)
	}
	log.Infof("[EmbeddingClient] 开始调用 Embedding API, model: %s, input_len: %d", c.cfg.Model, len(text))
	reqBody := embeddingRequest{
		Model:      c.cfg.Model,
		Input:      []string{text},
		Dimensions: c.cfg.Dimensions,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	var vector []float32
	err = retry.Do(ctx, c.timeout, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create embedding request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.client.Do(req)
		if err != nil {
			log.Warnf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
			return fmt.Errorf("failed to call embedding api: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read embedding response: %w", err)
		}
		if err := retry.CheckStatus(resp.StatusCode, string(body)); err != nil {
			log.Warnf("[EmbeddingClient] Embedding API 返回非 2xx 状态码: %d", resp.StatusCode)
			return err
		}

		var embeddingResp embeddingResponse
		if err := json.Unmarshal(body, &embeddingResp); err != nil {
			return retry.Permanent(fmt.Errorf("failed to decode embedding response: %w", err))
		}
		if len(embeddingResp.Data) == 0 || len(embeddingResp.Data[0].Embedding) == 0 {
			log.Warnf("[EmbeddingClient] Embedding API 返回了空的向量数据")
			return retry.Permanent(errors.New("received empty embedding from api"))
		}
		vector = embeddingResp.Data[0].Embedding
		return nil
	})
	if err != nil {
		log.Errorf("[EmbeddingClient] 获取向量失败, model: %s, error: %v", c.cfg.Model, err)
		return nil, fmt.Errorf("%w: %v", model.ErrExternalService, err)
	}

	log.Infof("[EmbeddingClient] 成功从 Embedding API 获取向量, 维度: %d", len(vector))
	return vector, nil
}
