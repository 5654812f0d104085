package model

import (
	"time"

	"gorm.io/gorm"
)

// DepositStatus 存缴状态.
type DepositStatus string

const (
	DepositStatusDraft     DepositStatus = "draft"
	DepositStatusPublished DepositStatus = "published"
)

// Deposit 存缴：记录的可变工作副本，元数据只允许在这里修改.
// Depid 数值上等于其记录的 recid. 普通编辑不会销毁存缴，
// 只有未发布草稿的显式 delete 才会移除（软删除，recid 同时转 DELETED）.
type Deposit struct {
	Depid int64 `gorm:"primaryKey;autoIncrement:false" json:"depid"`
	// UUID 供索引侧引用（cleanup_indexed_deposits 以此对账）
	UUID         string        `gorm:"size:36;uniqueIndex" json:"uuid"`
	Status       DepositStatus `gorm:"size:16;index"       json:"status"`
	Recid        int64         `gorm:"index"               json:"recid"`
	ConceptRecid int64         `gorm:"index"               json:"concept_recid"`
	// RecordUUID 关联的已发布记录（首次发布前为空）
	RecordUUID string `gorm:"size:36;index" json:"record_uuid,omitempty"`
	// MetadataJSON 草稿元数据（types.DepositMetadata 的 JSON）
	MetadataJSON string `gorm:"type:text" json:"-"`
	OwnersJSON   string `gorm:"type:text" json:"-"`
	// BucketID 主文件桶，draft 态下归存缴独占
	BucketID string `gorm:"size:26;index" json:"bucket_id"`
	// ExtraFormatsBucketID 额外格式桶，与发布后的记录共享
	ExtraFormatsBucketID string         `gorm:"size:26" json:"extra_formats_bucket_id,omitempty"`
	CreatedAt            time.Time      `json:"created"`
	UpdatedAt            time.Time      `json:"updated"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

// VersioningHead 概念级版本关系头：每个概念 recid 一行.
// DraftDepid 记录至多一个草稿子节点；发布/新版本路径通过对该行加写锁串行化
// （并发时后到者得到 ConcurrentVersionError）.
type VersioningHead struct {
	ConceptRecid int64     `gorm:"primaryKey;autoIncrement:false" json:"concept_recid"`
	DraftDepid   *int64    `json:"draft_depid,omitempty"`
	CreatedAt    time.Time `json:"created"`
	UpdatedAt    time.Time `json:"updated"`
}

// VersioningChild 概念下的版本子节点，插入顺序即版本顺序.
type VersioningChild struct {
	ID           uint      `gorm:"primaryKey"                                 json:"id"`
	ConceptRecid int64     `gorm:"index:idx_concept_child,unique;index"       json:"concept_recid"`
	ChildRecid   int64     `gorm:"index:idx_concept_child,unique;uniqueIndex" json:"child_recid"`
	// ChildOrder 概念内的插入序号，从 0 开始，只追加不重排
	ChildOrder int       `json:"child_order"`
	CreatedAt  time.Time `json:"created"`
}
