package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"apollocore/internal/config"
	"apollocore/internal/logger"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	_ = logger.Init("error", "console", "stdout")
}

// initTestDB 创建内存数据库用于测试
func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:audit_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&AuditLog{}, &ModerationLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, enabled bool) *Service {
	t.Helper()
	return NewService(initTestDB(t), &config.AuditConfig{
		Enabled:    enabled,
		IPHashSalt: "test-salt",
	})
}

func TestLogEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("写入并返回行ID", func(t *testing.T) {
		s := newTestService(t, true)

		id, ok := s.LogEvent(ctx, Entry{
			EventType:  "moderation.approve",
			ActorID:    "user-1",
			ActorIP:    "203.0.113.5",
			TargetType: "post",
			TargetID:   "post-9",
			Severity:   SeverityInfo,
			Message:    "内容通过审核",
			Context:    map[string]any{"note": "ok"},
		})

		require.True(t, ok)
		require.NotEmpty(t, id)

		stored, err := s.GetAuditLogByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "moderation.approve", stored.EventType)
		assert.Equal(t, "ok", stored.Context["note"])
	})

	t.Run("原始IP不落库", func(t *testing.T) {
		s := newTestService(t, true)

		id, ok := s.LogEvent(ctx, Entry{
			EventType: "security.ratelimit",
			ActorIP:   "203.0.113.5",
			Severity:  SeverityWarning,
		})
		require.True(t, ok)

		stored, err := s.GetAuditLogByID(ctx, id)
		require.NoError(t, err)
		assert.NotEqual(t, "203.0.113.5", stored.ActorIPHash)
		assert.NotContains(t, stored.ActorIPHash, ".")
		assert.Len(t, stored.ActorIPHash, 64) // sha256 hex
		// 同一 IP 哈希稳定
		assert.Equal(t, s.HashIP("203.0.113.5"), stored.ActorIPHash)
	})

	t.Run("无效severity回退为info", func(t *testing.T) {
		s := newTestService(t, true)

		id, ok := s.LogEvent(ctx, Entry{
			EventType: "moderation.block",
			Severity:  Severity("fatal"),
		})
		require.True(t, ok)

		stored, err := s.GetAuditLogByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, string(SeverityInfo), stored.Severity)
	})

	t.Run("标识收敛到安全字符集", func(t *testing.T) {
		s := newTestService(t, true)

		id, ok := s.LogEvent(ctx, Entry{
			EventType:  "Moderation.Approve'; DROP TABLE --",
			TargetType: "POST",
		})
		require.True(t, ok)

		stored, err := s.GetAuditLogByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "moderation.approvedroptable--", stored.EventType)
		assert.Equal(t, "post", stored.TargetType)
	})

	t.Run("总开关关闭时完全旁路", func(t *testing.T) {
		s := newTestService(t, false)

		id, ok := s.LogEvent(ctx, Entry{EventType: "moderation.approve"})
		assert.False(t, ok)
		assert.Empty(t, id)

		var count int64
		require.NoError(t, s.db.Model(&AuditLog{}).Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestQueryAuditLogs(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, true)

	// 按 t1 < t2 < t3 写入三条事件
	base := time.Now().UTC().Add(-time.Hour)
	for i, eventType := range []string{"moderation.approve", "moderation.suspend", "security.ratelimit"} {
		row := &AuditLog{
			EventType: eventType,
			ActorID:   fmt.Sprintf("user-%d", i+1),
			Severity:  string(SeverityInfo),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.db.Create(row).Error)
	}

	t.Run("按创建时间倒序返回", func(t *testing.T) {
		logs, total, err := s.QueryAuditLogs(ctx, Filter{OrderBy: "created_at", Order: "DESC"}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, logs, 3)
		assert.Equal(t, "security.ratelimit", logs[0].EventType)
		assert.Equal(t, "moderation.suspend", logs[1].EventType)
		assert.Equal(t, "moderation.approve", logs[2].EventType)
	})

	t.Run("按事件类型过滤", func(t *testing.T) {
		logs, total, err := s.QueryAuditLogs(ctx, Filter{EventType: "moderation.suspend"}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, logs, 1)
		assert.Equal(t, "user-2", logs[0].ActorID)
	})

	t.Run("orderby白名单外的列回退默认排序", func(t *testing.T) {
		logs, _, err := s.QueryAuditLogs(ctx, Filter{OrderBy: "context; DROP TABLE"}, 50, 0)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		// 回退到 created_at DESC
		assert.Equal(t, "security.ratelimit", logs[0].EventType)
	})

	t.Run("orderby=action在审计日志上回退默认排序", func(t *testing.T) {
		// action 在白名单内但只存在于审核日志表
		logs, _, err := s.QueryAuditLogs(ctx, Filter{OrderBy: "action"}, 50, 0)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, "security.ratelimit", logs[0].EventType)
	})

	t.Run("无效severity过滤不匹配任何行", func(t *testing.T) {
		logs, total, err := s.QueryAuditLogs(ctx, Filter{Severity: "fatal"}, 50, 0)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, logs)

		// 合法级别照常过滤
		_, total, err = s.QueryAuditLogs(ctx, Filter{Severity: "info"}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})

	t.Run("分页", func(t *testing.T) {
		logs, total, err := s.QueryAuditLogs(ctx, Filter{}, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, logs, 1)
	})
}

func TestLogModerationAction(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, true)

	t.Run("角色快照不随后续变更", func(t *testing.T) {
		id, ok := s.LogModerationAction(ctx, "mod-1", "editor", ActionSuspend, "member", "m-7",
			map[string]any{"days": 7, "reason": "spam"})
		require.True(t, ok)
		require.NotEmpty(t, id)

		// 模拟演员角色此后升级为 administrator：日志内容必须保持写入时刻的快照
		logs, _, err := s.QueryModerationLogs(ctx, Filter{ActorID: "mod-1"}, 50, 0)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "editor", logs[0].ActorRole)
		assert.Equal(t, float64(7), logs[0].Details["days"])
	})

	t.Run("按动作过滤", func(t *testing.T) {
		_, ok := s.LogModerationAction(ctx, "mod-2", "moderator", ActionBlock, "member", "m-8", nil)
		require.True(t, ok)

		logs, total, err := s.QueryModerationLogs(ctx, Filter{Action: ActionBlock}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "m-8", logs[0].TargetID)
	})

	t.Run("总开关关闭时不写入", func(t *testing.T) {
		disabled := newTestService(t, false)
		id, ok := disabled.LogModerationAction(ctx, "mod-1", "editor", ActionApprove, "post", "p-1", nil)
		assert.False(t, ok)
		assert.Empty(t, id)
	})
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, true)

	old := time.Now().UTC().AddDate(0, 0, -120)
	recent := time.Now().UTC().AddDate(0, 0, -10)

	require.NoError(t, s.db.Create(&AuditLog{EventType: "moderation.approve", Severity: "info", CreatedAt: old}).Error)
	require.NoError(t, s.db.Create(&AuditLog{EventType: "moderation.approve", Severity: "info", CreatedAt: old.AddDate(0, 0, 1)}).Error)
	require.NoError(t, s.db.Create(&AuditLog{EventType: "moderation.approve", Severity: "info", CreatedAt: recent}).Error)

	t.Run("只删除超过保留期的行", func(t *testing.T) {
		deleted, err := s.CleanupAuditLogs(ctx, 90)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		var remaining int64
		require.NoError(t, s.db.Model(&AuditLog{}).Count(&remaining).Error)
		assert.Equal(t, int64(1), remaining)
	})

	t.Run("再次清理返回0", func(t *testing.T) {
		deleted, err := s.CleanupAuditLogs(ctx, 90)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}
