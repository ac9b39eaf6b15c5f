package handler

import (
	"errors"
	"fmt"
	"io"
	"knowledge-bot-go/internal/model"
	"knowledge-bot-go/internal/service"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// multipartOverhead 是 multipart 请求体中边界与分段头允许占用的额外字节数。
const multipartOverhead = 64 << 10

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	docService     service.DocumentService
	maxUploadBytes int64
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{docService: docService, maxUploadBytes: maxUploadBytes}
}

// Upload 处理 multipart 文件上传。请求体超过上限时在读取过程中即被截断。
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondTooLarge(c, "request body")
			return
		}
		respondError(c, fmt.Errorf("file is required: %w", model.ErrInvalidInput))
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		h.respondTooLarge(c, fileHeader.Filename)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	res, err := h.docService.Upload(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "success",
		"filename":        res.Filename,
		"file_type":       res.FileType,
		"message":         res.Message,
		"total_documents": res.TotalDocuments,
	})
}

func (h *DocumentHandler) respondTooLarge(c *gin.Context, what string) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"status":  "error",
		"message": fmt.Sprintf("%s exceeds the %d byte upload limit", what, h.maxUploadBytes),
	})
}

// AddEmail 处理表单提交的邮件。
func (h *DocumentHandler) AddEmail(c *gin.Context) {
	res, err := h.docService.AddEmail(c.Request.Context(), c.PostForm("subject"), c.PostForm("from_email"), c.PostForm("body"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "filename": res.Filename, "message": res.Message})
}

// ForwardEmail 处理转发的邮件原文。
func (h *DocumentHandler) ForwardEmail(c *gin.Context) {
	res, err := h.docService.ForwardEmail(c.Request.Context(), c.PostForm("email_text"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "filename": res.Filename, "message": res.Message})
}

// List 返回当前已入库的文档。
func (h *DocumentHandler) List(c *gin.Context) {
	docs := h.docService.List()
	c.JSON(http.StatusOK, gin.H{
		"total_documents": len(docs),
		"documents":       docs,
	})
}

// Clear 清空所有文档。
func (h *DocumentHandler) Clear(c *gin.Context) {
	n := h.docService.Clear(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"message":   fmt.Sprintf("Cleared %d documents", n),
		"remaining": h.docService.Count(),
	})
}

// History 返回最近的上传记录。
func (h *DocumentHandler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		respondError(c, fmt.Errorf("limit must be between 1 and 500: %w", model.ErrInvalidInput))
		return
	}
	records, err := h.docService.History(c.Request.Context(), limit)
	if errors.Is(err, service.ErrHistoryUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(records), "records": records})
}
