// Package model 定义数据库模型：持久标识符、记录、存缴、文件桶与社区.
package model

import (
	"time"
)

// PIDStatus 持久标识符状态.
// 状态迁移构成 DAG：NEW → RESERVED → REGISTERED → REDIRECTED，任意状态 → DELETED，
// 禁止逆向迁移（见 service 层 PIDService.transition）.
type PIDStatus string

const (
	PIDStatusNew        PIDStatus = "NEW"
	PIDStatusReserved   PIDStatus = "RESERVED"
	PIDStatusRegistered PIDStatus = "REGISTERED"
	PIDStatusRedirected PIDStatus = "REDIRECTED"
	PIDStatusDeleted    PIDStatus = "DELETED"
)

// PID 类型常量.
const (
	PIDTypeRecid = "recid" // 记录号，整数值；概念 recid 共用该类型，靠 ObjectType 区分
	PIDTypeDepid = "depid" // 存缴号，数值上等于其记录的 recid
	PIDTypeDOI   = "doi"   // DOI，可为本地铸造或外部提供
	PIDTypeOAI   = "oai"   // OAI 收割标识
)

// PID 目标对象类型.
const (
	ObjectTypeRecord  = "rec"
	ObjectTypeDeposit = "dep"
	ObjectTypeConcept = "con"
)

// PersistentIdentifier 持久标识符，(pid_type, pid_value) 全局唯一.
// PIDType/PIDValue 显式指定列名，避免默认蛇形化出 p_id_type.
type PersistentIdentifier struct {
	ID       uint      `gorm:"primaryKey"                                                  json:"id"`
	PIDType  string    `gorm:"column:pid_type;size:8;index:idx_pid_type_value,unique"      json:"pid_type"`
	PIDValue string    `gorm:"column:pid_value;size:255;index:idx_pid_type_value,unique"   json:"pid_value"`
	Status   PIDStatus `gorm:"size:16;index"                                               json:"status"`
	// 目标对象（可空）：记录 UUID 或存缴号
	ObjectType string `gorm:"size:8;index"  json:"object_type,omitempty"`
	ObjectUUID string `gorm:"size:64;index" json:"object_uuid,omitempty"`
	// Provider 铸造方标签：local / external / oai
	Provider  string    `gorm:"size:16" json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasObject 判断 PID 是否已绑定目标对象.
func (p *PersistentIdentifier) HasObject() bool {
	return p.ObjectType != "" && p.ObjectUUID != ""
}

// PIDRedirect 重定向关系：概念 recid 始终指向最新已发布版本.
type PIDRedirect struct {
	ID          uint      `gorm:"primaryKey"                           json:"id"`
	SourcePIDID uint      `gorm:"column:source_pid_id;uniqueIndex"     json:"source_pid_id"`
	TargetPIDID uint      `gorm:"column:target_pid_id;index"           json:"target_pid_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PIDSequence recid 的单调递增序列，按类型一行.
// 分配时在事务内先 UPDATE 再读回，借助行级写锁保证并发安全.
type PIDSequence struct {
	PIDType   string `gorm:"column:pid_type;primaryKey;size:8" json:"pid_type"`
	NextValue int64  `json:"next_value"`
}
