// Package audit 提供只追加的审计日志与审核日志服务
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"apollocore/internal/config"
	"apollocore/internal/logger"
	"apollocore/internal/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service 审计日志服务，是两张日志表的唯一写入方
//
// 写入永远是尽力而为：日志失败不能成为主操作失败的原因，
// 因此公开操作不返回 error，只返回是否写入成功。
type Service struct {
	db      *gorm.DB
	enabled bool
	salt    string
}

// NewService 创建审计日志服务
func NewService(db *gorm.DB, cfg *config.AuditConfig) *Service {
	s := &Service{db: db, enabled: true}
	if cfg != nil {
		s.enabled = cfg.Enabled
		s.salt = cfg.IPHashSalt
	}
	return s
}

// Enabled 审计日志总开关状态
func (s *Service) Enabled() bool {
	return s.enabled
}

// AutoMigrate 迁移日志表结构
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&AuditLog{}, &ModerationLog{})
}

// Entry 审计事件写入参数
type Entry struct {
	EventType  string
	ActorID    string // 空字符串表示系统动作
	ActorIP    string // 原始 IP，仅用于单向哈希，不落库
	TargetType string
	TargetID   string
	Severity   Severity
	Message    string
	Context    map[string]any
}

// LogEvent 写入一条审计事件
//
// 输入被规范化而不是拒绝：event_type/target_type 收敛到安全字符集，
// 无效 severity 回退为 info。返回新行 ID 与是否写入；
// 总开关关闭时完全旁路写入路径，返回 ("", false)。
func (s *Service) LogEvent(ctx context.Context, e Entry) (string, bool) {
	if !s.enabled {
		return "", false
	}

	row := &AuditLog{
		EventType:   normalizeIdentifier(e.EventType),
		ActorID:     e.ActorID,
		ActorIPHash: s.HashIP(e.ActorIP),
		TargetType:  normalizeIdentifier(e.TargetType),
		TargetID:    e.TargetID,
		Severity:    string(normalizeSeverity(e.Severity)),
		Message:     e.Message,
		Context:     e.Context,
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		logger.Warn("审计日志写入失败",
			zap.String("event_type", row.EventType),
			zap.Error(err),
		)
		metrics.AuditEventsTotal.WithLabelValues(row.EventType, "error").Inc()
		return "", false
	}

	metrics.AuditEventsTotal.WithLabelValues(row.EventType, "ok").Inc()
	return row.ID, true
}

// LogModerationAction 写入一条审核动作日志
// actorRole 由调用方传入动作时刻的角色快照
func (s *Service) LogModerationAction(ctx context.Context, actorID, actorRole, action, targetType, targetID string, details map[string]any) (string, bool) {
	if !s.enabled {
		return "", false
	}

	row := &ModerationLog{
		ActorID:    actorID,
		ActorRole:  actorRole,
		Action:     normalizeIdentifier(action),
		TargetType: normalizeIdentifier(targetType),
		TargetID:   targetID,
		Details:    details,
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		logger.Warn("审核日志写入失败",
			zap.String("action", row.Action),
			zap.Error(err),
		)
		return "", false
	}

	return row.ID, true
}

// HashIP 对 IP 做加盐单向哈希，空输入返回空串
func (s *Service) HashIP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.salt + "|" + ip))
	return hex.EncodeToString(sum[:])
}

// ============================================================================
// 查询
// ============================================================================

// 可排序列白名单，orderby 永不直接拼接客户端输入
var sortableColumns = map[string]bool{
	"id":         true,
	"created_at": true,
	"severity":   true,
	"event_type": true,
	"action":     true,
}

// Filter 日志查询条件，零值字段表示不过滤
type Filter struct {
	EventType  string
	ActorID    string
	Severity   string
	Action     string
	TargetType string
	TargetID   string
	From       *time.Time
	To         *time.Time
	OrderBy    string // 仅限白名单列，默认 created_at
	Order      string // ASC / DESC，默认 DESC
}

// orderClause 构造排序子句，非法输入回退默认值
func (f Filter) orderClause() string {
	column := "created_at"
	if sortableColumns[strings.ToLower(f.OrderBy)] {
		column = strings.ToLower(f.OrderBy)
	}
	direction := "DESC"
	if strings.EqualFold(f.Order, "ASC") {
		direction = "ASC"
	}
	return column + " " + direction
}

// QueryAuditLogs 查询审计日志（过滤+分页+排序）
func (s *Service) QueryAuditLogs(ctx context.Context, f Filter, limit, offset int) ([]*AuditLog, int64, error) {
	db := s.db.WithContext(ctx).Model(&AuditLog{})

	if f.EventType != "" {
		db = db.Where("event_type = ?", normalizeIdentifier(f.EventType))
	}
	if f.ActorID != "" {
		db = db.Where("actor_id = ?", f.ActorID)
	}
	if f.Severity != "" {
		// 读取路径不做归一化回退：无效级别匹配不到任何行，而不是悄悄放宽为 info
		db = db.Where("severity = ?", strings.ToLower(strings.TrimSpace(f.Severity)))
	}
	if f.TargetType != "" {
		db = db.Where("target_type = ?", normalizeIdentifier(f.TargetType))
	}
	if f.TargetID != "" {
		db = db.Where("target_id = ?", f.TargetID)
	}
	if f.From != nil {
		db = db.Where("created_at >= ?", f.From)
	}
	if f.To != nil {
		db = db.Where("created_at <= ?", f.To)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if strings.EqualFold(f.OrderBy, "action") {
		f.OrderBy = "" // 审计日志没有该列
	}

	var logs []*AuditLog
	if err := db.Order(f.orderClause()).
		Limit(clampLimit(limit)).
		Offset(maxInt(offset, 0)).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// GetAuditLogByID 通过 ID 获取单条审计日志
func (s *Service) GetAuditLogByID(ctx context.Context, id string) (*AuditLog, error) {
	var row AuditLog
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// QueryModerationLogs 查询审核日志（过滤+分页+排序）
func (s *Service) QueryModerationLogs(ctx context.Context, f Filter, limit, offset int) ([]*ModerationLog, int64, error) {
	db := s.db.WithContext(ctx).Model(&ModerationLog{})

	if f.Action != "" {
		db = db.Where("action = ?", normalizeIdentifier(f.Action))
	}
	if f.ActorID != "" {
		db = db.Where("actor_id = ?", f.ActorID)
	}
	if f.TargetType != "" {
		db = db.Where("target_type = ?", normalizeIdentifier(f.TargetType))
	}
	if f.TargetID != "" {
		db = db.Where("target_id = ?", f.TargetID)
	}
	if f.From != nil {
		db = db.Where("created_at >= ?", f.From)
	}
	if f.To != nil {
		db = db.Where("created_at <= ?", f.To)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := f.OrderBy
	if strings.EqualFold(orderBy, "event_type") || strings.EqualFold(orderBy, "severity") {
		orderBy = "" // 审核日志没有这两列
	}
	f.OrderBy = orderBy

	var logs []*ModerationLog
	if err := db.Order(f.orderClause()).
		Limit(clampLimit(limit)).
		Offset(maxInt(offset, 0)).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// ============================================================================
// 保留期清理
// ============================================================================

// CleanupAuditLogs 删除超过保留期的审计日志，返回删除行数
func (s *Service) CleanupAuditLogs(ctx context.Context, retentionDays int) (int64, error) {
	return s.cleanup(ctx, &AuditLog{}, "audit", retentionDays)
}

// CleanupModerationLogs 删除超过保留期的审核日志，返回删除行数
func (s *Service) CleanupModerationLogs(ctx context.Context, retentionDays int) (int64, error) {
	return s.cleanup(ctx, &ModerationLog{}, "moderation", retentionDays)
}

func (s *Service) cleanup(ctx context.Context, model any, logType string, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(model)
	if result.Error != nil {
		return 0, result.Error
	}

	metrics.RetentionDeletedTotal.WithLabelValues(logType).Add(float64(result.RowsAffected))
	return result.RowsAffected, nil
}

// ============================================================================
// 输入规范化
// ============================================================================

// normalizeIdentifier 将标识收敛到安全字符集 [a-z0-9._-]
// 空结果回退为 "unknown"
func normalizeIdentifier(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z',
			r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

// normalizeSeverity 无效级别回退为 info 而不是拒绝
func normalizeSeverity(sev Severity) Severity {
	switch sev {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return sev
	default:
		return SeverityInfo
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
