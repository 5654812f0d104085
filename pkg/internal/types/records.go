package types

import "time"

// RecordResponse 已发布记录的对外表示（头修订或指定历史修订）.
type RecordResponse struct {
	UUID         string          `json:"uuid"`
	Recid        int64           `json:"recid"`
	ConceptRecid int64           `json:"concept_recid"`
	DOI          string          `json:"doi"`
	ConceptDOI   string          `json:"concept_doi,omitempty"`
	OAIID        string          `json:"oai_id,omitempty"`
	SchemaURI    string          `json:"$schema"`
	Revision     int             `json:"revision"`
	Metadata     DepositMetadata `json:"metadata"`
	Files        FilesManifest   `json:"files"`
	Communities  []string        `json:"communities,omitempty"`
	Owners       []string        `json:"owners"`
	BucketID     string          `json:"bucket_id"`
	Created      time.Time       `json:"created"`
	Updated      time.Time       `json:"updated"`
}

// RecordVersionInfo 概念下的一个版本条目.
type RecordVersionInfo struct {
	Recid    int64     `json:"recid"`
	Index    int       `json:"index"` // 版本序号，从 0 开始
	IsLatest bool      `json:"is_latest"`
	Created  time.Time `json:"created"`
}

// ListRecordVersionsResponse 概念下的全部已发布版本.
type ListRecordVersionsResponse struct {
	ConceptRecid int64               `json:"concept_recid"`
	Versions     []RecordVersionInfo `json:"versions"`
	Total        int                 `json:"total"`
}

// StatsSummary 仓库整体统计.
type StatsSummary struct {
	Deposits       int64 `json:"deposits"`
	Drafts         int64 `json:"drafts"`
	Records        int64 `json:"records"`
	Concepts       int64 `json:"concepts"`
	RegisteredDOIs int64 `json:"registered_dois"`
	PendingDOIs    int64 `json:"pending_dois"`
	TotalFileBytes int64 `json:"total_file_bytes"`
}
