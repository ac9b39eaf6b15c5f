package pipeline

import (
	"context"
	"knowledge-bot-go/internal/model"
	"knowledge-bot-go/pkg/log"
	"knowledge-bot-go/pkg/tasks"
)

// Indexer 决定一篇新文档如何进入向量索引。
type Indexer interface {
	Index(ctx context.Context, doc model.Document) error
	Reset(ctx context.Context) error
}

// TaskPublisher 把索引任务投递到消息队列。
type TaskPublisher interface {
	PublishTask(ctx context.Context, task tasks.IndexingTask) error
}

// AsyncIndexer 只发布任务，由后台消费者调用 Processor 完成索引。
type AsyncIndexer struct {
	publisher TaskPublisher
	processor *Processor
}

// NewAsyncIndexer 创建 AsyncIndexer。
func NewAsyncIndexer(publisher TaskPublisher, processor *Processor) *AsyncIndexer {
	return &AsyncIndexer{publisher: publisher, processor: processor}
}

func (a *AsyncIndexer) Index(ctx context.Context, doc model.Document) error {
	return a.publisher.PublishTask(ctx, tasks.IndexingTask{
		Filename: doc.Filename,
		FileType: string(doc.FileType),
		Content:  doc.Content,
		Size:     doc.Size,
	})
}

func (a *AsyncIndexer) Reset(ctx context.Context) error {
	return a.processor.Reset(ctx)
}

type noopIndexer struct{}

// NewNoopIndexer 返回词法检索模式下使用的 Indexer，不做任何事。
func NewNoopIndexer() Indexer {
	log.Info("[Indexer] 未启用向量检索，跳过向量索引")
	return noopIndexer{}
}

func (noopIndexer) Index(context.Context, model.Document) error { return nil }
func (noopIndexer) Reset(context.Context) error                 { return nil }
