package handler

import (
	"knowledge-bot-go/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ChatHandler 负责处理问答请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat 读取表单字段 question 并返回回答。外部服务失败时仍返回 200，错误写在 answer 中。
func (h *ChatHandler) Chat(c *gin.Context) {
	res, err := h.chatService.Chat(c.Request.Context(), c.PostForm("question"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
