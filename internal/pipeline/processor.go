// Package pipeline 定义了文档向量化入库的核心流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"knowledge-bot-go/internal/config"
	"knowledge-bot-go/internal/model"
	"knowledge-bot-go/pkg/log"
	"knowledge-bot-go/pkg/tasks"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Embedder 把文本转换为向量。
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkIndex 是存放分块向量的外部索引。
type ChunkIndex interface {
	Upsert(ctx context.Context, chunks []model.EsChunk) error
	DeleteAll(ctx context.Context) error
}

// chunkNamespace 用于生成分块 ID 的 UUID 命名空间。
var chunkNamespace = uuid.MustParse("6f1c4d1e-8a57-4f3b-9a43-0d2b8f6c2a10")

// Processor 封装了切块、向量化与写入索引的所有依赖和逻辑。
type Processor struct {
	embedder     Embedder
	index        ChunkIndex
	modelVersion string
	chunkSize    int
	chunkOverlap int
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(embedder Embedder, index ChunkIndex, modelVersion string, cfg config.RetrievalConfig) *Processor {
	chunkSize, chunkOverlap := cfg.ChunkSize, cfg.ChunkOverlap
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Processor{
		embedder:     embedder,
		index:        index,
		modelVersion: modelVersion,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Process 处理一条来自 Kafka 的索引任务。
func (p *Processor) Process(ctx context.Context, task tasks.IndexingTask) error {
	return p.Index(ctx, model.Document{
		Content:  task.Content,
		Filename: task.Filename,
		FileType: model.FileType(task.FileType),
		Size:     task.Size,
	})
}

// Index 把文档切块、逐块向量化后写入索引。
// 分块 ID 由文件名、序号和内容确定，同一任务重试时会覆盖而不是重复写入。
func (p *Processor) Index(ctx context.Context, doc model.Document) error {
	log.Infof("[Processor] 开始处理文档, FileName: %s, 内容长度: %d 字符", doc.Filename, utf8.RuneCountInString(doc.Content))

	// 1. 文本切块
	pieces := splitText(doc.Content, p.chunkSize, p.chunkOverlap)
	log.Infof("[Processor] 步骤1: 文本分块完成, chunkSize: %d, chunkOverlap: %d, 共生成 %d 个分块", p.chunkSize, p.chunkOverlap, len(pieces))
	if len(pieces) == 0 {
		log.Warnf("[Processor] 未生成任何文本分块, 处理中止, FileName: %s", doc.Filename)
		return errors.New("未生成任何文本分块")
	}

	// 2. 向量化
	chunks := make([]model.EsChunk, 0, len(pieces))
	for i, piece := range pieces {
		vector, err := p.embedder.CreateEmbedding(ctx, piece)
		if err != nil {
			log.Errorf("[Processor] 分块 %d 向量化失败, Error: %v", i, err)
			return fmt.Errorf("块 %d 向量化失败: %w", i, err)
		}
		chunks = append(chunks, model.EsChunk{
			ChunkID:      ChunkID(doc.Filename, i, piece),
			Filename:     doc.Filename,
			FileType:     doc.FileType,
			ChunkIndex:   i,
			Content:      piece,
			Vector:       vector,
			ModelVersion: p.modelVersion,
		})
	}

	// 3. 写入索引
	if err := p.index.Upsert(ctx, chunks); err != nil {
		log.Errorf("[Processor] 写入向量索引失败, FileName: %s, Error: %v", doc.Filename, err)
		return fmt.Errorf("写入向量索引失败: %w", err)
	}
	log.Infof("[Processor] 文档处理成功完成, FileName: %s, 分块数: %d", doc.Filename, len(chunks))
	return nil
}

// Reset 清空向量索引。
func (p *Processor) Reset(ctx context.Context) error {
	return p.index.DeleteAll(ctx)
}

// ChunkID 返回形如 {filename}_{index}_{uuid8} 的分块 ID。
func ChunkID(filename string, index int, content string) string {
	seed := fmt.Sprintf("%s\x00%d\x00%s", filename, index, content)
	return fmt.Sprintf("%s_%d_%s", filename, index, uuid.NewSHA1(chunkNamespace, []byte(seed)).String()[:8])
}

// splitText 将长文本按指定大小和重叠进行切分。
func splitText(text string, chunkSize int, chunkOverlap int) []string {
	if chunkSize <= chunkOverlap {
		// overlap 不合法时退化为不重叠切分
		chunkOverlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := chunkSize - chunkOverlap
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
