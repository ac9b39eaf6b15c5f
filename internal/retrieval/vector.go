package retrieval

import (
	"context"
	"fmt"
	"knowledge-bot-go/internal/model"
	"knowledge-bot-go/pkg/log"
)

// Embedder 把文本转换为向量。
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher 在外部向量索引中查询近邻分块。
type VectorSearcher interface {
	Query(ctx context.Context, vector []float32, topK int) ([]model.ChunkMatch, error)
}

type vectorRetriever struct {
	embedder Embedder
	searcher VectorSearcher
	topK     int
}

// NewVectorRetriever 创建基于 Embedding 与向量索引的检索器。
// 它以分块为粒度工作，不使用关键词阈值与停用词。
func NewVectorRetriever(embedder Embedder, searcher VectorSearcher, topK int) Retriever {
	if topK <= 0 {
		topK = MaxResults
	}
	return &vectorRetriever{embedder: embedder, searcher: searcher, topK: topK}
}

// Retrieve 向量化问题并查询 topK 个最近分块，结果保持索引返回的顺序。
func (r *vectorRetriever) Retrieve(ctx context.Context, question string, _ []model.Document) (*Result, error) {
	vector, err := r.embedder.CreateEmbedding(ctx, question)
	if err != nil {
		log.Errorf("[VectorRetriever] 向量化问题失败: %v", err)
		return nil, fmt.Errorf("embed question: %w", err)
	}
	matches, err := r.searcher.Query(ctx, vector, r.topK)
	if err != nil {
		log.Errorf("[VectorRetriever] 查询向量索引失败: %v", err)
		return nil, fmt.Errorf("query vector index: %w", err)
	}
	log.Infof("[VectorRetriever] 命中 %d 个分块, topK: %d", len(matches), r.topK)
	return &Result{
		Strategy:   StrategyVector,
		UseContext: len(matches) > 0,
		Chunks:     matches,
	}, nil
}

func (r *vectorRetriever) Strategy() string { return StrategyVector }
