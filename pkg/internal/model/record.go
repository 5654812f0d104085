package model

import (
	"time"
)

// Record 已发布记录的头版本（head revision）.
// 记录只增不改：每次提交产生新的 RecordRevision，Record 行持有最新内容的冗余副本，
// 历史修订始终可读（见 service 层 RecordService.GetRevision）.
type Record struct {
	UUID         string `gorm:"primaryKey;size:36" json:"uuid"`
	Recid        int64  `gorm:"uniqueIndex"        json:"recid"`
	ConceptRecid int64  `gorm:"index"              json:"concept_recid"`
	DOI          string `gorm:"size:255;index"     json:"doi"`
	ConceptDOI   string `gorm:"size:255"           json:"concept_doi,omitempty"`
	OAIID        string `gorm:"size:255"           json:"oai_id,omitempty"`
	// SchemaURI 元数据契约 $schema
	SchemaURI string `gorm:"size:512" json:"$schema"`
	// Revision 单调递增修订号，首次发布为 0
	Revision int `json:"revision"`
	// MetadataJSON 规范化元数据（types.DepositMetadata 的 JSON）
	MetadataJSON string `gorm:"type:text" json:"-"`
	// FilesJSON 文件清单（types.FilesManifest 的 JSON），发布时由桶快照生成
	FilesJSON string `gorm:"type:text" json:"-"`
	// CommunitiesJSON 已接受的社区（策展调和后的 new_record_comms）
	CommunitiesJSON string `gorm:"type:text" json:"-"`
	// OwnersJSON 属主列表
	OwnersJSON string `gorm:"type:text" json:"-"`
	// BucketID 发布时锁定的快照桶
	BucketID  string    `gorm:"size:26;index" json:"bucket_id"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `gorm:"index" json:"updated"`
}

// RecordRevision 记录的历史修订，(record_uuid, revision) 唯一.
type RecordRevision struct {
	ID              uint      `gorm:"primaryKey"                              json:"id"`
	RecordUUID      string    `gorm:"size:36;index:idx_record_revision,unique" json:"record_uuid"`
	Revision        int       `gorm:"index:idx_record_revision,unique"        json:"revision"`
	MetadataJSON    string    `gorm:"type:text"                               json:"-"`
	FilesJSON       string    `gorm:"type:text"                               json:"-"`
	CommunitiesJSON string    `gorm:"type:text"                               json:"-"`
	CreatedAt       time.Time `json:"created"`
}

// RecordsBuckets 记录与快照桶的关联表.
type RecordsBuckets struct {
	RecordUUID string `gorm:"primaryKey;size:36" json:"record_uuid"`
	BucketID   string `gorm:"primaryKey;size:26" json:"bucket_id"`
}
