// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"knowledge-bot-go/internal/model"

	"gorm.io/gorm"
)

// UploadRepository 接口定义了上传历史相关的数据持久化操作。
type UploadRepository interface {
	Create(ctx context.Context, record *model.UploadRecord) error
	ListRecent(ctx context.Context, limit int) ([]model.UploadRecord, error)
}

// uploadRepository 是 UploadRepository 接口的 GORM 实现。
type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository 创建一个新的 UploadRepository 实例。
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

// AutoMigrate 创建或更新 upload_records 表。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.UploadRecord{})
}

// Create 在数据库中创建一条新的上传记录。
func (r *uploadRepository) Create(ctx context.Context, record *model.UploadRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ListRecent 按时间倒序返回最近的上传记录。
func (r *uploadRepository) ListRecent(ctx context.Context, limit int) ([]model.UploadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []model.UploadRecord
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error
	return records, err
}
