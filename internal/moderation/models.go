package moderation

import (
	"time"

	"gorm.io/gorm"

	"github.com/google/uuid"
)

// 成员状态
const (
	MemberStatusActive    = "active"    // 正常
	MemberStatusSuspended = "suspended" // 停用（到期自动恢复）
	MemberStatusBlocked   = "blocked"   // 封禁
)

// 成员角色
const (
	RoleAdmin     = "admin"     // 平台管理员，不可被处置
	RoleModerator = "moderator" // 审核员
	RoleProducer  = "producer"  // 活动主办方
	RoleDJ        = "dj"        // DJ / 演出者
	RoleMember    = "member"    // 普通成员
)

// 内容状态
const (
	PostStatusPending  = "pending"  // 待审核
	PostStatusApproved = "approved" // 已通过
)

// MemberAccount 成员账号的审核视图
// 完整档案由兄弟服务维护，这里只保留审核动作需要的字段
type MemberAccount struct {
	ID             string     `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayName    string     `gorm:"type:varchar(100)" json:"display_name"`
	Role           string     `gorm:"type:varchar(50);not null;index:idx_member_role" json:"role"`
	Status         string     `gorm:"type:varchar(20);not null;index:idx_member_status" json:"status"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (MemberAccount) TableName() string {
	return "apollo_member_accounts"
}

// BeforeCreate GORM 钩子
func (m *MemberAccount) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = MemberStatusActive
	}
	if m.Role == "" {
		m.Role = RoleMember
	}
	return nil
}

// ContentPost 待审核内容
type ContentPost struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID   string    `gorm:"type:uuid;index:idx_post_author" json:"author_id"`
	Title      string    `gorm:"type:varchar(200)" json:"title"`
	Status     string    `gorm:"type:varchar(20);not null;index:idx_post_status" json:"status"`
	ReviewNote string    `gorm:"type:text" json:"review_note"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (ContentPost) TableName() string {
	return "apollo_content_posts"
}

// BeforeCreate GORM 钩子
func (p *ContentPost) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = PostStatusPending
	}
	return nil
}
