// Package llm provides a client for interacting with Large Language Models.
package llm

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

// Client defines the interface for an LLM client.
type Client interface {
	// ChatMessages 以 role-based 消息与可选生成参数调用聊天接口，返回完整回答。
	ChatMessages(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
	// Configured 报告是否配置了 API Key。
	Configured() bool
}

type openAICompatibleClient struct {
	cfg     config.LLMConfig
	client  *http.Client
	timeout time.Duration
}

// NewClient creates a new OpenAI-compatible chat completion client.
func NewClient(cfg config.LLMConfig) Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &openAICompatibleClient{
		cfg:     cfg,
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

func (c *openAICompatibleClient) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// ChatMessages 调用 /chat/completions。网络错误、429 与 5xx 最多重试一次。
func (c *openAICompatibleClient) ChatMessages(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("llm api key is not configured: %w", model.ErrMissingCredentials)
	}

	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
	}
	// 传参优先，否则从配置注入（若非零值）
	if gen != nil {
		reqBody.Temperature = gen.Temperature
		reqBody.TopP = gen.TopP
		reqBody.MaxTokens = gen.MaxTokens
	} else {
		if c.cfg.Generation.Temperature != 0 {
			t := c.cfg.Generation.Temperature
			reqBody.Temperature = &t
		}
		if c.cfg.Generation.TopP != 0 {
			p := c.cfg.Generation.TopP
			reqBody.TopP = &p
		}
		if c.cfg.Generation.MaxTokens != 0 {
			m := c.cfg.Generation.MaxTokens
			reqBody.MaxTokens = &m
		}
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	var answer string
	attempt := 0
	err = retry.Do(ctx, c.timeout, func(ctx context.Context) error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create chat request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.client.Do(req)
		if err != nil {
			log.Warnf("[LLMClient] 第 %d 次调用 Chat API 失败: %v", attempt, err)
			return fmt.Errorf("failed to call chat api: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read chat response: %w", err)
		}
		if err := retry.CheckStatus(resp.StatusCode, string(body)); err != nil {
			log.Warnf("[LLMClient] 第 %d 次调用 Chat API 返回非 2xx 状态码: %s", attempt, resp.Status)
			return err
		}

		var chatResp chatResponse
		if err := json.Unmarshal(body, &chatResp); err != nil {
			return retry.Permanent(fmt.Errorf("failed to decode chat response: %w", err))
		}
		if len(chatResp.Choices) == 0 {
			return retry.Permanent(errors.New("chat api returned no choices"))
		}
		answer = chatResp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		log.Errorf("[LLMClient] 调用 Chat API 失败, model: %s, error: %v", c.cfg.Model, err)
		return "", fmt.Errorf("%w: %v", model.ErrExternalService, err)
	}
	log.Infof("[LLMClient] Chat API 调用成功, model: %s, answer_len: %d", c.cfg.Model, len(answer))
	return answer, nil
}
