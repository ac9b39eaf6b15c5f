// Package extract 负责把上传的原始文件转换为纯文本。
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"knowledge-bot-go/internal/model"
	"knowledge-bot-go/pkg/log"
	"strings"
	"unicode/utf8"
)

// TextExtractor 是外部文本提取服务（Tika）的抽象。
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// Extractor 按文件后缀把原始字节分派到对应的提取方式。
type Extractor struct {
	tika TextExtractor
}

// NewExtractor 创建 Extractor。tika 负责 pdf/doc/docx/ppt/pptx。
func NewExtractor(tika TextExtractor) *Extractor {
	return &Extractor{tika: tika}
}

// Extract 返回文件的文本与推断出的类型。
// 不支持的后缀返回 ErrUnsupportedFileType，txt 文件不是合法 UTF-8 时返回 ErrInvalidInput。
// 返回的文本可能为空，由调用方判断。
func (e *Extractor) Extract(ctx context.Context, fileName string, data []byte) (string, model.FileType, error) {
	fileType, ok := model.FileTypeFromName(fileName)
	if !ok {
		return "", "", fmt.Errorf("%w: %s. Supports: PDF, Word, PowerPoint, TXT, Email (.eml)", model.ErrUnsupportedFileType, fileName)
	}

	switch fileType {
	case model.FileTypeTxt:
		if !utf8.Valid(data) {
			return "", fileType, fmt.Errorf("%w: %s is not valid UTF-8 text", model.ErrInvalidInput, fileName)
		}
		return string(data), fileType, nil
	case model.FileTypeEmail:
		// 与原始解码一致：丢弃非法字节
		raw := strings.ToValidUTF8(string(data), "")
		return ParseEmail(raw).Content(), fileType, nil
	default:
		if e.tika == nil {
			return "", fileType, fmt.Errorf("%w: text extraction service is not configured", model.ErrExternalService)
		}
		text, err := e.tika.ExtractText(ctx, bytes.NewReader(data), fileName)
		if err != nil {
			log.Errorf("[Extractor] Tika 提取文本失败, file: %s, error: %v", fileName, err)
			return "", fileType, fmt.Errorf("extract %s: %w", fileName, err)
		}
		log.Infof("[Extractor] Tika 提取文本成功, file: %s, text_len: %d", fileName, len(text))
		return text, fileType, nil
	}
}
