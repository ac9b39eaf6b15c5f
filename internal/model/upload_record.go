package model

import "time"

// 上传记录状态
const (
	UploadStatusSuccess = "success"
	UploadStatusFailed  = "failed"
)

// UploadRecord 定义了 upload_records 表的 ORM 模型，记录每次上传尝试。
// 它只用于审计，文档内容本身只保存在进程内存中。
type UploadRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileName  string    `gorm:"type:varchar(255);not null" json:"fileName"`
	FileType  string    `gorm:"type:varchar(16)" json:"fileType"`
	Size      int64     `gorm:"not null;default:0" json:"size"`
	Status    string    `gorm:"type:varchar(16);not null" json:"status"`
	Message   string    `gorm:"type:varchar(512)" json:"message"`
	ObjectKey string    `gorm:"type:varchar(512)" json:"objectKey"` // MinIO 归档对象名，未归档时为空
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (UploadRecord) TableName() string {
	return "upload_records"
}
