package handler

import (
	"knowledge-bot-go/internal/middleware"
	"knowledge-bot-go/internal/service"

	"github.com/gin-gonic/gin"
)

// RouterDeps 汇总注册路由所需的依赖。
type RouterDeps struct {
	Documents      service.DocumentService
	Chat           service.ChatService
	Health         HealthStatus
	VectorIndex    IndexPinger // 未启用向量检索时为 nil
	MaxUploadBytes int64
}

// NewRouter 创建 Gin 引擎并注册所有路由。
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())
	if deps.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = deps.MaxUploadBytes
	}

	docHandler := NewDocumentHandler(deps.Documents, deps.MaxUploadBytes)
	chatHandler := NewChatHandler(deps.Chat)
	healthHandler := NewHealthHandler(deps.Documents, deps.Health, deps.VectorIndex)

	r.GET("/", healthHandler.Root)
	r.GET("/health", healthHandler.Health)

	r.POST("/upload", docHandler.Upload)
	r.POST("/email", docHandler.AddEmail)
	r.POST("/email/forward", docHandler.ForwardEmail)
	r.POST("/chat", chatHandler.Chat)

	documents := r.Group("/documents")
	{
		documents.GET("", docHandler.List)
		documents.DELETE("", docHandler.Clear)
		documents.GET("/history", docHandler.History)
	}
	return r
}
