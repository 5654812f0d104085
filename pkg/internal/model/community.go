package model

import (
	"time"

	"gorm.io/gorm"
)

// Community 社区：一组经策展的记录集合.
type Community struct {
	ID          string         `gorm:"primaryKey;size:64" json:"id"`
	Title       string         `gorm:"size:255"           json:"title"`
	Owner       string         `gorm:"size:255;index"     json:"owner"`
	Description string         `gorm:"type:text"          json:"description,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// CommunityMembership 已接受的社区成员关系，(community, recid) 至多一行.
// 成员关系是概念级属性：accept/reject 会同时作用于概念下所有版本的行.
type CommunityMembership struct {
	ID          uint      `gorm:"primaryKey"                                json:"id"`
	CommunityID string    `gorm:"size:64;index:idx_membership,unique;index" json:"community_id"`
	Recid       int64     `gorm:"index:idx_membership,unique;index"         json:"recid"`
	CreatedAt   time.Time `json:"created_at"`
}

// InclusionRequest 待策展的收录请求，(community, recid) 至多一行.
type InclusionRequest struct {
	ID          uint      `gorm:"primaryKey"                             json:"id"`
	CommunityID string    `gorm:"size:64;index:idx_inclusion,unique;index" json:"community_id"`
	Recid       int64     `gorm:"index:idx_inclusion,unique;index"       json:"recid"`
	CreatedAt   time.Time `json:"created_at"`
}
