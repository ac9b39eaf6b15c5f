package service

import (
	"fmt"
	"knowledge-bot-go/internal/model"
	"strings"
)

// 回答末尾附加的来源说明
const (
	annotationGeneral   = " (General knowledge)"
	annotationNoContent = " (No relevant content found)"
)

// referenceWords 出现在问题中时，即使没有命中文档也提示用户内容可能不在上传文件中。
var referenceWords = []string{"email", "message", "document"}

func annotationBasedOn(names []string) string {
	return fmt.Sprintf(" (Based on: %s)", strings.Join(names, ", "))
}

// buildDocumentPrompt 把命中的文档渲染为上下文，返回提示词和文档名列表。
func buildDocumentPrompt(question string, docs []model.Document) (string, []string) {
	parts := make([]string, 0, len(docs))
	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, fmt.Sprintf("=== %s %s ===\n%s", doc.FileType.Icon(), doc.Filename, doc.Content))
		names = append(names, doc.Filename)
	}
	context := strings.Join(parts, "\n\n")
	prompt := fmt.Sprintf("Based on these documents and emails, answer the question:\n\n%s\n\nQuestion: %s\n\nAnswer:", context, question)
	return prompt, names
}

func buildNoContentPrompt(question string) string {
	return fmt.Sprintf("The user is asking about emails/documents, but I couldn't find relevant information in the uploaded files. Question: %s\n\n"+
		"Please let them know that the information might not be in their uploaded content, but provide a general answer if possible.", question)
}

func buildGeneralPrompt(question string) string {
	return "Answer this general question: " + question
}

// buildChunkPrompt 用向量检索命中的分块构建提示词，返回提示词和去重后的来源文件名。
func buildChunkPrompt(question string, chunks []model.ChunkMatch) (string, []string) {
	if len(chunks) == 0 {
		return "No relevant documents found. Please answer this general question: " + question, nil
	}
	parts := make([]string, 0, len(chunks))
	var names []string
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Content)
		if _, ok := seen[c.Filename]; !ok {
			seen[c.Filename] = struct{}{}
			names = append(names, c.Filename)
		}
	}
	prompt := fmt.Sprintf("Based on the following context, answer the question. If the answer is not in the context, say so.\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:",
		strings.Join(parts, "\n\n"), question)
	return prompt, names
}

func mentionsReference(question string) bool {
	q := strings.ToLower(question)
	for _, w := range referenceWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}
