package retrieval

import (
	"context"
	"knowledge-bot-go/internal/model"
)

// 检索策略名称
const (
	StrategyLexical = "lexical"
	StrategyVector  = "vector"
)

// Result 是一次检索的结果。词法策略填充 Documents，向量策略填充 Chunks。
type Result struct {
	Strategy   string
	UseContext bool
	Tier       Tier
	Documents  []model.Document
	Chunks     []model.ChunkMatch
}

// Retriever 是检索后端的统一接口，具体实现在启动时由配置选定。
type Retriever interface {
	Retrieve(ctx context.Context, question string, docs []model.Document) (*Result, error)
	Strategy() string
}

type lexicalRetriever struct{}

// NewLexicalRetriever 创建基于关键词重叠与分层策略的检索器，它不会返回错误。
func NewLexicalRetriever() Retriever {
	return lexicalRetriever{}
}

func (lexicalRetriever) Retrieve(_ context.Context, question string, docs []model.Document) (*Result, error) {
	d := Decide(question, docs)
	return &Result{
		Strategy:   StrategyLexical,
		UseContext: d.UseContext,
		Tier:       d.Tier,
		Documents:  d.Documents,
	}, nil
}

func (lexicalRetriever) Strategy() string { return StrategyLexical }
