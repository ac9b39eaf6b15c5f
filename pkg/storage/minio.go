// Package storage提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"knowledge-bot-go/internal/config"
	"knowledge-bot-go/pkg/log"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive 把上传的原始文件归档到 MinIO 存储桶。
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewArchive(ctx context.Context, cfg config.MinIOConfig) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("[Archive] MinIO 客户端初始化成功")

	// 检查存储桶 (Bucket) 是否存在，如果不存在则创建
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("[Archive] 存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("[Archive] 存储桶 '%s' 创建成功", cfg.BucketName)
	}
	return &Archive{client: client, bucket: cfg.BucketName}, nil
}

// ObjectName 返回归档对象名：按日期分目录，并加随机前缀避免同名覆盖。
func ObjectName(filename string, now time.Time) string {
	return path.Join("uploads", now.Format("2006/01/02"), uuid.NewString()[:8]+"_"+path.Base(filename))
}

// Archive 上传原始文件，返回对象名。
func (a *Archive) Archive(ctx context.Context, filename string, data []byte) (string, error) {
	objectName := ObjectName(filename, time.Now())
	_, err := a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		log.Errorf("[Archive] 归档文件失败, file: %s, error: %v", filename, err)
		return "", fmt.Errorf("archive %s: %w", filename, err)
	}
	log.Infof("[Archive] 文件已归档, bucket: %s, object: %s", a.bucket, objectName)
	return objectName, nil
}
