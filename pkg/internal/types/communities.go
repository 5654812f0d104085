package types

import "time"

// CommunityResponse 社区的对外表示.
type CommunityResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Owner       string    `json:"owner"`
	Description string    `json:"description,omitempty"`
	Created     time.Time `json:"created"`
}

// InclusionRequestInfo 待处理的收录请求.
type InclusionRequestInfo struct {
	CommunityID string    `json:"community_id"`
	Recid       int64     `json:"recid"`
	Created     time.Time `json:"created"`
}

// ListInclusionRequestsResponse 某社区的待处理收录请求.
type ListInclusionRequestsResponse struct {
	Requests []InclusionRequestInfo `json:"requests"`
	Total    int                    `json:"total"`
}

// CurationResult 发布时策展调和的产出：写回记录与存缴的社区集合
// 以及需要创建/删除的收录请求.
type CurationResult struct {
	RecordCommunities  []string `json:"record_communities"`
	DepositCommunities []string `json:"deposit_communities"`
	NewRequests        []string `json:"new_requests"`
	RemovedRequests    []string `json:"removed_requests"`
}
