package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
// 建议在发布消息时填充 TraceID、OccurredAt、Producer 等，便于追踪链路与审计.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID，可来自中间件或业务生成.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 存缴生命周期领域 --------------------------

// DepositRef 标识一条存缴及其归属概念.
type DepositRef struct {
	Depid        int64  `json:"depid"`
	Recid        int64  `json:"recid"`
	ConceptRecid int64  `json:"concept_recid"`
	UUID         string `json:"uuid,omitempty"`
	Owner        string `json:"owner,omitempty"`
}

// RecordRef 标识已发布记录的某个修订.
type RecordRef struct {
	Recid        int64  `json:"recid"`
	ConceptRecid int64  `json:"concept_recid"`
	RecordUUID   string `json:"record_uuid"`
	Revision     int    `json:"revision"`
	DOI          string `json:"doi,omitempty"`
	ConceptDOI   string `json:"concept_doi,omitempty"`
}

// DepositCreatedPayload 新建草稿，已预留 recid 与 depid.
type DepositCreatedPayload struct {
	Deposit DepositRef `json:"deposit"`
	// IsNewVersion 表示该草稿由已有概念的 newversion 动作创建.
	IsNewVersion bool `json:"is_new_version,omitempty"`
}

// DepositUpdatedPayload 草稿元数据更新.
type DepositUpdatedPayload struct {
	Deposit DepositRef `json:"deposit"`
}

// DepositPublishedPayload 存缴发布，产生或更新记录修订.
type DepositPublishedPayload struct {
	Deposit DepositRef `json:"deposit"`
	Record  RecordRef  `json:"record"`
	// FirstPublish 表示这是该 recid 的首次发布而非编辑再发布.
	FirstPublish bool `json:"first_publish,omitempty"`
}

// DepositDeletedPayload 未发布草稿被删除，关联 PID 作废.
type DepositDeletedPayload struct {
	Deposit DepositRef `json:"deposit"`
}

// -------------------------- 记录领域 --------------------------

// RecordCommittedPayload 记录提交了一个新修订.
type RecordCommittedPayload struct {
	Record RecordRef `json:"record"`
}

// RecordNewVersionPayload 概念下出现新版本草稿.
type RecordNewVersionPayload struct {
	ConceptRecid int64      `json:"concept_recid"`
	Parent       RecordRef  `json:"parent"`
	Child        DepositRef `json:"child"`
}

// -------------------------- DOI 注册领域 --------------------------

// DOIRegisterRequestedPayload 请求向 DataCite 注册/更新 DOI 元数据.
// Revision 参与消费端去重：同一 (DOI, Revision) 的重复投递只生效一次.
type DOIRegisterRequestedPayload struct {
	Record RecordRef `json:"record"`
	DOI    string    `json:"doi"`
	// LandingURL 为注册到 DataCite 的落地页地址.
	LandingURL string `json:"landing_url,omitempty"`
}

// DOIRegisteredPayload DOI 注册成功.
type DOIRegisteredPayload struct {
	Record RecordRef `json:"record"`
	DOI    string    `json:"doi"`
}

// DOIRegisterFailedPayload 重试耗尽后的最终失败.
type DOIRegisterFailedPayload struct {
	Record   RecordRef `json:"record"`
	DOI      string    `json:"doi"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error"`
}

// -------------------------- 社区策展领域 --------------------------

// CommunityEventPayload 社区与记录概念之间的策展事件.
type CommunityEventPayload struct {
	CommunityID  string `json:"community_id"`
	ConceptRecid int64  `json:"concept_recid"`
	Recid        int64  `json:"recid,omitempty"`
	// Auto 表示该事件由配置驱动的自动策展产生而非人工操作.
	Auto bool `json:"auto,omitempty"`
}

// -------------------------- 索引领域 --------------------------

// IndexDepositPayload 将存缴写入检索索引.
type IndexDepositPayload struct {
	Deposit DepositRef `json:"deposit"`
}

// IndexRemovePayload 将失效存缴从索引移除.
type IndexRemovePayload struct {
	Depid int64 `json:"depid"`
}
