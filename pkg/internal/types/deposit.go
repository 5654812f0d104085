package types

import "time"

// CreateDepositRequest 新建存缴.
type CreateDepositRequest struct {
	Metadata DepositMetadata `json:"metadata"`
}

// UpdateDepositRequest 更新草稿元数据（整体合并语义，见 service.DepositService.Update）.
type UpdateDepositRequest struct {
	Metadata DepositMetadata `json:"metadata"`
}

// DepositResponse 存缴的对外表示.
type DepositResponse struct {
	Depid        int64           `json:"depid"`
	Recid        int64           `json:"recid"`
	ConceptRecid int64           `json:"concept_recid"`
	Status       string          `json:"status"`
	DOI          string          `json:"doi,omitempty"`
	ConceptDOI   string          `json:"concept_doi,omitempty"`
	BucketID     string          `json:"bucket_id"`
	Owners       []string        `json:"owners"`
	Metadata     DepositMetadata `json:"metadata"`
	Created      time.Time       `json:"created"`
	Updated      time.Time       `json:"updated"`
}

// PublishResponse publish 操作的结果.
type PublishResponse struct {
	Recid      int64  `json:"recid"`
	DOI        string `json:"doi"`
	ConceptDOI string `json:"concept_doi,omitempty"`
	Revision   int    `json:"revision"`
	RecordUUID string `json:"record_uuid"`
}

// NewVersionResponse new_version 操作的结果.
type NewVersionResponse struct {
	NewDepid int64 `json:"new_depid"`
	NewRecid int64 `json:"new_recid"`
}

// ConceptDOIResponse register_concept_doi 操作的结果.
type ConceptDOIResponse struct {
	ConceptDOI string `json:"concept_doi"`
}

// ListDepositsRequest 按属主分页列出存缴.
type ListDepositsRequest struct {
	Page     int `form:"page"      json:"page"      rule:"min=0"`
	PageSize int `form:"page_size" json:"page_size" rule:"min=0,max=200"`
}

// ListDepositsResponse 存缴列表.
type ListDepositsResponse struct {
	Deposits []DepositResponse `json:"deposits"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}
