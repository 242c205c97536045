// Package moderation 提供人工审核动作（通过/停用/封禁）
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apollocore/internal/audit"
	"apollocore/internal/cache"
	"apollocore/internal/common"
	"apollocore/internal/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service 审核服务
//
// 每个动作完成主操作后写入审核日志（带角色快照）并递增相关缓存分组版本。
// 日志与缓存都是尽力而为，不会让主操作失败。
type Service struct {
	db       *gorm.DB
	auditSvc *audit.Service
	cache    *cache.Cache
}

// NewService 创建审核服务
func NewService(db *gorm.DB, auditSvc *audit.Service, c *cache.Cache) *Service {
	return &Service{
		db:       db,
		auditSvc: auditSvc,
		cache:    c,
	}
}

// AutoMigrate 迁移表结构
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&MemberAccount{}, &ContentPost{})
}

// actorRole 读取操作者当前角色快照，查不到时记为 unknown
func (s *Service) actorRole(ctx context.Context, actorID string) string {
	var actor MemberAccount
	if err := s.db.WithContext(ctx).First(&actor, "id = ?", actorID).Error; err != nil {
		return "unknown"
	}
	return actor.Role
}

// ApprovePost 通过内容审核
func (s *Service) ApprovePost(ctx context.Context, actorID, actorIP, postID, note string) (*ContentPost, error) {
	var post ContentPost
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessError(common.CodePostNotFound, "")
		}
		return nil, fmt.Errorf("查询内容失败: %w", err)
	}

	updates := map[string]any{
		"status":      PostStatusApproved,
		"review_note": note,
	}
	if err := s.db.WithContext(ctx).Model(&ContentPost{}).
		Where("id = ?", postID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("更新内容状态失败: %w", err)
	}
	post.Status = PostStatusApproved
	post.ReviewNote = note

	s.recordAction(ctx, actorID, actorIP, audit.ActionApprove, audit.EventModerationApprove,
		"post", postID, map[string]any{"note": note})
	s.cache.BumpGroupVersion(ctx, cache.GroupCore)

	return &post, nil
}

// SuspendMember 停用成员指定天数
// 管理员账号不可被停用，返回专用的禁止类错误
func (s *Service) SuspendMember(ctx context.Context, actorID, actorIP, memberID string, days int, reason string) (*MemberAccount, error) {
	if days <= 0 {
		return nil, common.NewBusinessError(common.CodeInvalidDuration, "")
	}

	member, err := s.loadMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.Role == RoleAdmin {
		return nil, common.NewBusinessError(common.CodeAdminProtected, "")
	}

	until := time.Now().UTC().AddDate(0, 0, days)
	updates := map[string]any{
		"status":          MemberStatusSuspended,
		"suspended_until": until,
	}
	if err := s.db.WithContext(ctx).Model(&MemberAccount{}).
		Where("id = ?", memberID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("停用成员失败: %w", err)
	}
	member.Status = MemberStatusSuspended
	member.SuspendedUntil = &until

	s.recordAction(ctx, actorID, actorIP, audit.ActionSuspend, audit.EventModerationSuspend,
		"member", memberID, map[string]any{"days": days, "reason": reason})
	s.cache.BumpGroupVersion(ctx, cache.GroupMemberships)

	return member, nil
}

// BlockMember 封禁成员
// 管理员账号不可被封禁
func (s *Service) BlockMember(ctx context.Context, actorID, actorIP, memberID, reason string) (*MemberAccount, error) {
	member, err := s.loadMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.Role == RoleAdmin {
		return nil, common.NewBusinessError(common.CodeAdminProtected, "")
	}

	updates := map[string]any{
		"status":          MemberStatusBlocked,
		"suspended_until": nil,
	}
	if err := s.db.WithContext(ctx).Model(&MemberAccount{}).
		Where("id = ?", memberID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("封禁成员失败: %w", err)
	}
	member.Status = MemberStatusBlocked
	member.SuspendedUntil = nil

	s.recordAction(ctx, actorID, actorIP, audit.ActionBlock, audit.EventModerationBlock,
		"member", memberID, map[string]any{"reason": reason})
	s.cache.BumpGroupVersion(ctx, cache.GroupMemberships)

	return member, nil
}

func (s *Service) loadMember(ctx context.Context, memberID string) (*MemberAccount, error) {
	var member MemberAccount
	if err := s.db.WithContext(ctx).First(&member, "id = ?", memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessError(common.CodeMemberNotFound, "")
		}
		return nil, fmt.Errorf("查询成员失败: %w", err)
	}
	return &member, nil
}

// recordAction 写审核日志（带角色快照）与审计事件，失败只记日志
func (s *Service) recordAction(ctx context.Context, actorID, actorIP, action, eventType, targetType, targetID string, details map[string]any) {
	role := s.actorRole(ctx, actorID)

	if _, ok := s.auditSvc.LogModerationAction(ctx, actorID, role, action, targetType, targetID, details); !ok && s.auditSvc.Enabled() {
		logger.Warn("审核日志未写入",
			zap.String("action", action),
			zap.String("target_id", targetID),
		)
	}

	s.auditSvc.LogEvent(ctx, audit.Entry{
		EventType:  eventType,
		ActorID:    actorID,
		ActorIP:    actorIP,
		TargetType: targetType,
		TargetID:   targetID,
		Severity:   audit.SeverityInfo,
		Message:    fmt.Sprintf("审核动作 %s 作用于 %s/%s", action, targetType, targetID),
		Context:    details,
	})
}
