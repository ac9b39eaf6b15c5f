package service

import (
	"context"
	"errors"
	"fmt"
	"knowledge-bot-go/internal/extract"
	"knowledge-bot-go/internal/model"
	"knowledge-bot-go/internal/pipeline"
	"knowledge-bot-go/internal/repository"
	"knowledge-bot-go/pkg/log"
	"strings"
)

// ErrHistoryUnavailable 表示未配置 MySQL，无法查询上传历史。
var ErrHistoryUnavailable = errors.New("upload history is not configured")

// Extractor 把上传的原始文件转换为文本。
type Extractor interface {
	Extract(ctx context.Context, fileName string, data []byte) (string, model.FileType, error)
}

// Archiver 归档原始文件，返回对象名。
type Archiver interface {
	Archive(ctx context.Context, filename string, data []byte) (string, error)
}

// UploadResult 是一次成功入库的结果。
type UploadResult struct {
	Filename       string         `json:"filename"`
	FileType       model.FileType `json:"file_type"`
	Message        string         `json:"message"`
	TotalDocuments int            `json:"total_documents"`
}

// DocumentInfo 是文档列表中的一项。
type DocumentInfo struct {
	Filename string         `json:"filename"`
	Type     model.FileType `json:"type"`
	Size     int64          `json:"size"`
	Icon     string         `json:"icon"`
}

// DocumentService 接口定义了文档管理相关的业务操作。
type DocumentService interface {
	Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error)
	AddEmail(ctx context.Context, subject, from, body string) (*UploadResult, error)
	ForwardEmail(ctx context.Context, rawText string) (*UploadResult, error)
	List() []DocumentInfo
	Clear(ctx context.Context) int
	Count() int
	History(ctx context.Context, limit int) ([]model.UploadRecord, error)
}

type documentService struct {
	store     repository.DocumentRepository
	extractor Extractor
	indexer   pipeline.Indexer
	archiver  Archiver
	records   repository.UploadRepository
}

// DocumentServiceOption 配置可选依赖。
type DocumentServiceOption func(*documentService)

// WithArchiver 在上传成功后把原始文件归档。
func WithArchiver(a Archiver) DocumentServiceOption {
	return func(s *documentService) { s.archiver = a }
}

// WithUploadRecords 记录每次上传尝试。
func WithUploadRecords(r repository.UploadRepository) DocumentServiceOption {
	return func(s *documentService) { s.records = r }
}

// NewDocumentService 创建一个新的 DocumentService 实例。indexer 为 nil 时不建立向量索引。
func NewDocumentService(store repository.DocumentRepository, extractor Extractor, indexer pipeline.Indexer, opts ...DocumentServiceOption) DocumentService {
	if indexer == nil {
		indexer = pipeline.NewNoopIndexer()
	}
	s := &documentService{store: store, extractor: extractor, indexer: indexer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload 提取文本、建立索引并加入文档集合。
func (s *documentService) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	log.Infof("[DocumentService] 收到上传, file: %s, size: %d", filename, len(data))
	text, fileType, err := s.extractor.Extract(ctx, filename, data)
	if err != nil {
		s.record(ctx, filename, fileType, int64(len(data)), "", err)
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("%w from %s", model.ErrEmptyExtraction, filename)
		s.record(ctx, filename, fileType, int64(len(data)), "", err)
		return nil, err
	}

	doc := model.Document{Content: text, Filename: filename, FileType: fileType, Size: int64(len(data))}
	total, err := s.add(ctx, doc)
	if err != nil {
		s.record(ctx, filename, fileType, doc.Size, "", err)
		return nil, err
	}

	objectKey := ""
	if s.archiver != nil {
		// 归档失败不影响入库结果
		if key, err := s.archiver.Archive(ctx, filename, data); err != nil {
			log.Warnf("[DocumentService] 归档原始文件失败, file: %s, error: %v", filename, err)
		} else {
			objectKey = key
		}
	}
	s.record(ctx, filename, fileType, doc.Size, objectKey, nil)

	return &UploadResult{
		Filename:       filename,
		FileType:       fileType,
		Message:        fmt.Sprintf("Successfully processed %s! Total docs: %d", filename, total),
		TotalDocuments: total,
	}, nil
}

// AddEmail 把表单提交的邮件加入文档集合。
func (s *documentService) AddEmail(ctx context.Context, subject, from, body string) (*UploadResult, error) {
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(from) == "" || strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("subject, from_email and body are required: %w", model.ErrInvalidInput)
	}
	email := extract.Email{Subject: subject, From: from, Body: body}
	total, name, err := s.addEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &UploadResult{
		Filename:       name,
		FileType:       model.FileTypeEmail,
		Message:        fmt.Sprintf("Email processed successfully! Subject: '%s'. Total docs: %d", subject, total),
		TotalDocuments: total,
	}, nil
}

// ForwardEmail 解析转发的邮件原文并加入文档集合。
func (s *documentService) ForwardEmail(ctx context.Context, rawText string) (*UploadResult, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("email_text is required: %w", model.ErrInvalidInput)
	}
	email := extract.ParseEmail(rawText)
	total, name, err := s.addEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &UploadResult{
		Filename:       name,
		FileType:       model.FileTypeEmail,
		Message:        fmt.Sprintf("Forwarded email processed! Subject: '%s'. Total docs: %d", email.Subject, total),
		TotalDocuments: total,
	}, nil
}

func (s *documentService) addEmail(ctx context.Context, email extract.Email) (int, string, error) {
	content := email.Content()
	doc := model.Document{
		Content:  content,
		Filename: email.DocumentName(),
		FileType: model.FileTypeEmail,
		Size:     int64(len(content)),
	}
	total, err := s.add(ctx, doc)
	s.record(ctx, doc.Filename, doc.FileType, doc.Size, "", err)
	if err != nil {
		return 0, "", err
	}
	return total, doc.Filename, nil
}

// add 先写向量索引再写文档集合，索引失败时文档不会入库。
func (s *documentService) add(ctx context.Context, doc model.Document) (int, error) {
	if err := s.indexer.Index(ctx, doc); err != nil {
		log.Errorf("[DocumentService] 建立向量索引失败, file: %s, error: %v", doc.Filename, err)
		if errors.Is(err, model.ErrMissingCredentials) || errors.Is(err, model.ErrExternalService) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", model.ErrExternalService, err)
	}
	total, err := s.store.Add(doc)
	if err != nil {
		return 0, err
	}
	log.Infof("[DocumentService] 文档入库成功, file: %s, type: %s, total: %d", doc.Filename, doc.FileType, total)
	return total, nil
}

// record 写入上传历史，失败只记录日志。
func (s *documentService) record(ctx context.Context, filename string, fileType model.FileType, size int64, objectKey string, uploadErr error) {
	if s.records == nil {
		return
	}
	rec := &model.UploadRecord{
		FileName:  filename,
		FileType:  string(fileType),
		Size:      size,
		Status:    model.UploadStatusSuccess,
		ObjectKey: objectKey,
	}
	if uploadErr != nil {
		rec.Status = model.UploadStatusFailed
		msg := []rune(uploadErr.Error())
		if len(msg) > 500 {
			msg = msg[:500]
		}
		rec.Message = string(msg)
	}
	if err := s.records.Create(ctx, rec); err != nil {
		log.Warnf("[DocumentService] 写入上传记录失败, file: %s, error: %v", filename, err)
	}
}

func (s *documentService) List() []DocumentInfo {
	docs := s.store.List()
	infos := make([]DocumentInfo, 0, len(docs))
	for _, d := range docs {
		infos = append(infos, DocumentInfo{Filename: d.Filename, Type: d.FileType, Size: d.Size, Icon: d.FileType.Icon()})
	}
	return infos
}

// Clear 清空文档集合，并尽力清空向量索引。
func (s *documentService) Clear(ctx context.Context) int {
	n := s.store.Clear()
	if err := s.indexer.Reset(ctx); err != nil {
		log.Warnf("[DocumentService] 清空向量索引失败: %v", err)
	}
	log.Infof("[DocumentService] 已清空 %d 篇文档", n)
	return n
}

func (s *documentService) Count() int {
	return s.store.Count()
}

func (s *documentService) History(ctx context.Context, limit int) ([]model.UploadRecord, error) {
	if s.records == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.records.ListRecent(ctx, limit)
}
