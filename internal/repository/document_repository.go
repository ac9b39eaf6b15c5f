// Package repository 提供了数据访问层的实现。
package repository

import (
	"fmt"
	"knowledge-bot-go/internal/model"
	"strings"
	"sync"
)

// DocumentRepository 是进程内、只追加的文档集合。
// 除整体清空外不支持删除或更新；插入顺序用于排序时的稳定次序。
type DocumentRepository interface {
	// Add 追加一篇文档并返回追加后的文档总数。内容为空白时拒绝写入。
	Add(doc model.Document) (int, error)
	// List 返回当前文档的只读快照。
	List() []model.Document
	// Clear 清空所有文档并返回清空前的数量。
	Clear() int
	Count() int
}

type memoryDocumentRepository struct {
	mu   sync.RWMutex
	docs []model.Document
}

// NewDocumentRepository 创建一个新的内存 DocumentRepository 实例。
func NewDocumentRepository() DocumentRepository {
	return &memoryDocumentRepository{}
}

func (r *memoryDocumentRepository) Add(doc model.Document) (int, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return 0, fmt.Errorf("%s: %w", doc.Filename, model.ErrEmptyExtraction)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return len(r.docs), nil
}

func (r *memoryDocumentRepository) List() []model.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make([]model.Document, len(r.docs))
	copy(snapshot, r.docs)
	return snapshot
}

func (r *memoryDocumentRepository) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.docs)
	r.docs = nil
	return n
}

func (r *memoryDocumentRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}
