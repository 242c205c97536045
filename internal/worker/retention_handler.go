package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"apollocore/internal/audit"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// RetentionHandler 日志保留期清理任务处理器
type RetentionHandler struct {
	auditSvc *audit.Service
	logger   *zap.Logger
}

// NewRetentionHandler 创建保留期清理处理器
func NewRetentionHandler(auditSvc *audit.Service, logger *zap.Logger) *RetentionHandler {
	return &RetentionHandler{
		auditSvc: auditSvc,
		logger:   logger,
	}
}

// HandleRetentionCleanup 清理超过保留期的审计与审核日志
func (h *RetentionHandler) HandleRetentionCleanup(ctx context.Context, task *asynq.Task) error {
	var payload RetentionCleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("解析任务载荷失败: %w", err)
	}

	auditDeleted, err := h.auditSvc.CleanupAuditLogs(ctx, payload.RetentionDays)
	if err != nil {
		return fmt.Errorf("清理审计日志失败: %w", err)
	}

	modDeleted, err := h.auditSvc.CleanupModerationLogs(ctx, payload.RetentionDays)
	if err != nil {
		return fmt.Errorf("清理审核日志失败: %w", err)
	}

	h.logger.Info("日志保留期清理完成",
		zap.Int("retention_days", payload.RetentionDays),
		zap.Int64("audit_deleted", auditDeleted),
		zap.Int64("moderation_deleted", modDeleted),
	)

	if auditDeleted+modDeleted > 0 {
		h.auditSvc.LogEvent(ctx, audit.Entry{
			EventType: audit.EventRetentionCleanup,
			Severity:  audit.SeverityInfo,
			Message:   "日志保留期清理完成",
			Context: map[string]any{
				"retention_days":     payload.RetentionDays,
				"audit_deleted":      auditDeleted,
				"moderation_deleted": modDeleted,
			},
		})
	}

	return nil
}
