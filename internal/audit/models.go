package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLog 系统级审计日志，只追加不更新
//
// 隐私约束：actor_ip_hash 存放单向哈希，原始 IP 永不落库。
type AuditLog struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	EventType   string    `gorm:"type:varchar(100);not null;index:idx_audit_event_type" json:"event_type"`
	ActorID     string    `gorm:"type:varchar(64);index:idx_audit_actor" json:"actor_id"`
	ActorIPHash string    `gorm:"type:varchar(64)" json:"actor_ip_hash"`
	TargetType  string    `gorm:"type:varchar(50);index:idx_audit_target" json:"target_type"`
	TargetID    string    `gorm:"type:varchar(64);index:idx_audit_target" json:"target_id"`
	Severity    string    `gorm:"type:varchar(20);not null" json:"severity"`
	Message     string    `gorm:"type:text" json:"message"`
	ContextJSON string    `gorm:"type:text;column:context" json:"-"`
	CreatedAt   time.Time `gorm:"not null;index:idx_audit_created_at" json:"created_at"`

	// Context 结构化上下文，持久化走 ContextJSON
	Context map[string]any `gorm:"-" json:"context"`
}

// TableName 指定表名（站点级前缀由约定提供）
func (AuditLog) TableName() string {
	return "apollo_audit_logs"
}

// BeforeCreate GORM 钩子：创建前补全 ID、时间与上下文序列化
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.ContextJSON == "" && len(a.Context) > 0 {
		if b, err := json.Marshal(a.Context); err == nil {
			a.ContextJSON = string(b)
		}
	}
	return nil
}

// AfterFind GORM 钩子：查询后还原上下文，解析失败时为空结构
func (a *AuditLog) AfterFind(tx *gorm.DB) error {
	a.Context = decodeJSONMap(a.ContextJSON)
	return nil
}

// ModerationLog 人工审核动作日志，只追加不更新
//
// actor_role 是动作发生时刻的角色快照，不做外键/实时查询：
// 角色之后变更不影响历史记录的准确性。
type ModerationLog struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID     string    `gorm:"type:varchar(64);not null;index:idx_modlog_actor" json:"actor_id"`
	ActorRole   string    `gorm:"type:varchar(50);not null" json:"actor_role"`
	Action      string    `gorm:"type:varchar(50);not null;index:idx_modlog_action" json:"action"`
	TargetType  string    `gorm:"type:varchar(50);index:idx_modlog_target" json:"target_type"`
	TargetID    string    `gorm:"type:varchar(64);index:idx_modlog_target" json:"target_id"`
	DetailsJSON string    `gorm:"type:text;column:details" json:"-"`
	CreatedAt   time.Time `gorm:"not null;index:idx_modlog_created_at" json:"created_at"`

	// Details 结构化详情，持久化走 DetailsJSON
	Details map[string]any `gorm:"-" json:"details"`
}

// TableName 指定表名
func (ModerationLog) TableName() string {
	return "apollo_moderation_logs"
}

// BeforeCreate GORM 钩子
func (m *ModerationLog) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.DetailsJSON == "" && len(m.Details) > 0 {
		if b, err := json.Marshal(m.Details); err == nil {
			m.DetailsJSON = string(b)
		}
	}
	return nil
}

// AfterFind GORM 钩子
func (m *ModerationLog) AfterFind(tx *gorm.DB) error {
	m.Details = decodeJSONMap(m.DetailsJSON)
	return nil
}

// decodeJSONMap 反序列化 JSON 对象，失败时返回空 map 而不是报错
func decodeJSONMap(raw string) map[string]any {
	result := make(map[string]any)
	if raw == "" {
		return result
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return make(map[string]any)
	}
	return result
}
