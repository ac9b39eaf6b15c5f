// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"knowledge-bot-go/internal/model"
	"knowledge-bot-go/internal/repository"
	"knowledge-bot-go/internal/retrieval"
	"knowledge-bot-go/pkg/llm"
	"knowledge-bot-go/pkg/log"
	"strings"
)

// ChatResult 是一次问答的结果。
type ChatResult struct {
	Question        string   `json:"question"`
	Answer          string   `json:"answer"`
	Source          string   `json:"source,omitempty"`
	DocumentsUsed   int      `json:"documents_used"`
	SourceDocuments []string `json:"source_documents,omitempty"`
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Chat 检索上下文并调用 LLM。外部服务失败不会返回 error，而是体现在以 "Error: " 开头的回答中；
	// 只有空问题返回 ErrInvalidInput。
	Chat(ctx context.Context, question string) (*ChatResult, error)
}

type chatService struct {
	store        repository.DocumentRepository
	retriever    retrieval.Retriever
	llmClient    llm.Client
	systemPrompt string
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(store repository.DocumentRepository, retriever retrieval.Retriever, llmClient llm.Client, systemPrompt string) ChatService {
	return &chatService{
		store:        store,
		retriever:    retriever,
		llmClient:    llmClient,
		systemPrompt: systemPrompt,
	}
}

func (s *chatService) Chat(ctx context.Context, question string) (*ChatResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required: %w", model.ErrInvalidInput)
	}
	result := &ChatResult{Question: question}

	// 1. 检索上下文
	docs := s.store.List()
	retrieved, err := s.retriever.Retrieve(ctx, question, docs)
	if err != nil {
		log.Errorf("[ChatService] 检索上下文失败, strategy: %s, error: %v", s.retriever.Strategy(), err)
		result.Answer = "Error: " + err.Error()
		return result, nil
	}

	// 2. 构建提示词
	var prompt, annotation string
	var names []string
	switch {
	case retrieved.Strategy == retrieval.StrategyVector:
		prompt, names = buildChunkPrompt(question, retrieved.Chunks)
		if len(names) > 0 {
			annotation = annotationBasedOn(names)
			result.DocumentsUsed = len(retrieved.Chunks)
		} else {
			annotation = annotationGeneral
		}
	case retrieved.UseContext && len(retrieved.Documents) > 0:
		prompt, names = buildDocumentPrompt(question, retrieved.Documents)
		annotation = annotationBasedOn(names)
		result.DocumentsUsed = len(retrieved.Documents)
	case len(docs) > 0 && mentionsReference(question):
		prompt = buildNoContentPrompt(question)
		annotation = annotationNoContent
	default:
		prompt = buildGeneralPrompt(question)
		annotation = annotationGeneral
	}
	log.Infof("[ChatService] 检索完成, strategy: %s, tier: %s, documents_used: %d", retrieved.Strategy, retrieved.Tier, result.DocumentsUsed)

	// 3. 调用 LLM
	answer, err := s.llmClient.ChatMessages(ctx, []llm.Message{
		{Role: "system", Content: s.systemPrompt},
		{Role: "user", Content: prompt},
	}, nil)
	if err != nil {
		log.Errorf("[ChatService] 调用 LLM 失败: %v", err)
		result.Answer = "Error: " + err.Error()
		result.DocumentsUsed = 0
		return result, nil
	}

	result.Answer = answer + annotation
	result.Source = annotation
	result.SourceDocuments = names
	return result, nil
}
