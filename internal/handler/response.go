// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"knowledge-bot-go/internal/model"
	"knowledge-bot-go/pkg/log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusFor 把错误分类映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnsupportedFileType), errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrEmptyExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrMissingCredentials):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError 以统一的结构返回错误。
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("[Handler] %s %s 失败: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"status": "error", "message": err.Error()})
}
