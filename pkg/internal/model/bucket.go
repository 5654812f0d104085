package model

import (
	"time"

	"gorm.io/gorm"
)

// Bucket 逻辑文件桶：一组有序 ObjectVersion，带配额与锁标志.
// 发布后记录的桶永远处于 locked 状态；草稿存缴的桶保持解锁.
// 文件字节存放在对象存储中，按 FileID 寻址，同一 FileID 可被多个桶引用
// （快照复制只复制行，不复制字节）.
type Bucket struct {
	ID     string `gorm:"primaryKey;size:26" json:"id"`
	Locked bool   `gorm:"index"              json:"locked"`
	// QuotaSize 桶配额（字节），0 表示不限制
	QuotaSize int64 `json:"quota_size"`
	// MaxFileSize 单文件大小上限（字节），0 表示不限制
	MaxFileSize int64 `json:"max_file_size"`
	// Size 当前头版本占用的字节数，上传/删除时维护
	Size      int64          `json:"size"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ObjectVersion 桶内一个键的一个版本.
// 每个键至多一个 IsHead=true 的版本；删除以删除标记（IsDeleteMarker 的头版本）表达.
type ObjectVersion struct {
	ID       string `gorm:"primaryKey;size:26"                json:"version_id"`
	BucketID string `gorm:"size:26;index;index:idx_bucket_key" json:"bucket_id"`
	Key      string `gorm:"size:1024;index:idx_bucket_key"     json:"key"`
	// FileID 物理字节流 id（对象存储中的 key），删除标记无 FileID
	FileID string `gorm:"size:26;index" json:"file_id,omitempty"`
	Size   int64  `json:"size"`
	// Checksum 形如 md5:<hex>
	Checksum       string `gorm:"size:64"  json:"checksum"`
	ContentType    string `gorm:"size:255" json:"content_type,omitempty"`
	IsHead         bool   `gorm:"index"    json:"is_head"`
	IsDeleteMarker bool   `json:"is_delete_marker,omitempty"`
	// SortOrder 文件列表内的显示顺序（sort_files 操作维护）
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

// MultipartUpload 进行中的分片上传；存在未完成行时发布会被拒绝.
type MultipartUpload struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	BucketID string `gorm:"size:26;index"      json:"bucket_id"`
	Key      string `gorm:"size:1024"          json:"key"`
	// FileID 预分配的物理字节流 id，客户端经预签名 URL 直传
	FileID      string    `gorm:"size:26"  json:"file_id"`
	ContentType string    `gorm:"size:255" json:"content_type,omitempty"`
	Completed   bool      `gorm:"index"    json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
