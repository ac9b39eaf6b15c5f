package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus 描述外部依赖的配置情况，由启动流程填充。
type HealthStatus struct {
	OpenAIConfigured    bool
	EmbeddingConfigured bool
	RetrievalStrategy   string
}

// IndexPinger 检查向量索引是否可达。
type IndexPinger interface {
	Ping(ctx context.Context) error
}

const indexPingTimeout = 2 * time.Second

// DocumentCounter 返回当前文档数量。
type DocumentCounter interface {
	Count() int
}

// HealthHandler 负责存活检查。
type HealthHandler struct {
	docs   DocumentCounter
	status HealthStatus
	index  IndexPinger
}

// NewHealthHandler 创建一个新的 HealthHandler。index 为 nil 表示未启用向量索引。
func NewHealthHandler(docs DocumentCounter, status HealthStatus, index IndexPinger) *HealthHandler {
	return &HealthHandler{docs: docs, status: status, index: index}
}

// Root 返回服务运行提示。
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Knowledge Bot is running!", "status": "healthy"})
}

// Health 返回存活状态、文档数量和外部凭据是否配置。缺少凭据或索引不可达时仍返回 200。
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":                  "healthy",
		"message":                 "Bot is running!",
		"documents":               h.docs.Count(),
		"openai_configured":       h.status.OpenAIConfigured,
		"embedding_configured":    h.status.EmbeddingConfigured,
		"vector_index_configured": h.indexReachable(c.Request.Context()),
		"retrieval_strategy":      h.status.RetrievalStrategy,
	})
}

func (h *HealthHandler) indexReachable(ctx context.Context) bool {
	if h.index == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, indexPingTimeout)
	defer cancel()
	return h.index.Ping(ctx) == nil
}
