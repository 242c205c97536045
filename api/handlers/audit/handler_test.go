package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"apollocore/internal/audit"
	"apollocore/internal/config"
	"apollocore/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "console", "stdout")
}

func newTestEnv(t *testing.T) (*gin.Engine, *audit.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:audithandler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&audit.AuditLog{}, &audit.ModerationLog{}))

	svc := audit.NewService(db, &config.AuditConfig{Enabled: true, IPHashSalt: "test"})
	h := NewHandler(svc)

	router := gin.New()
	router.GET("/api/v1/audit/logs", h.ListAuditLogs)
	router.GET("/api/v1/audit/logs/:id", h.GetAuditLog)
	router.GET("/api/v1/moderation/logs", h.ListModerationLogs)

	return router, svc
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type listEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Items      []map[string]any `json:"items"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	} `json:"data"`
}

func TestListAuditLogs(t *testing.T) {
	ctx := context.Background()
	router, svc := newTestEnv(t)

	for _, eventType := range []string{"moderation.approve", "moderation.block", "security.ratelimit"} {
		_, ok := svc.LogEvent(ctx, audit.Entry{EventType: eventType, Severity: audit.SeverityInfo})
		require.True(t, ok)
	}

	t.Run("返回全部日志", func(t *testing.T) {
		w := get(router, "/api/v1/audit/logs")
		require.Equal(t, http.StatusOK, w.Code)

		var resp listEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, int64(3), resp.Data.Pagination.Total)
		assert.Len(t, resp.Data.Items, 3)
	})

	t.Run("按事件类型过滤", func(t *testing.T) {
		w := get(router, "/api/v1/audit/logs?event_type=moderation.block")
		require.Equal(t, http.StatusOK, w.Code)

		var resp listEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.Data.Pagination.Total)
	})

	t.Run("分页", func(t *testing.T) {
		w := get(router, "/api/v1/audit/logs?page=2&page_size=2")
		require.Equal(t, http.StatusOK, w.Code)

		var resp listEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(3), resp.Data.Pagination.Total)
		assert.Len(t, resp.Data.Items, 1)
	})

	t.Run("orderby白名单外的列不报错", func(t *testing.T) {
		w := get(router, "/api/v1/audit/logs?orderby=context%3B+DROP+TABLE")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("orderby=action不报错", func(t *testing.T) {
		w := get(router, "/api/v1/audit/logs?orderby=action")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetAuditLog(t *testing.T) {
	ctx := context.Background()
	router, svc := newTestEnv(t)

	id, ok := svc.LogEvent(ctx, audit.Entry{EventType: "moderation.approve", Severity: audit.SeverityInfo})
	require.True(t, ok)

	t.Run("按ID获取", func(t *testing.T) {
		w := get(router, "/api/v1/audit/logs/"+id)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "moderation.approve")
	})

	t.Run("不存在返回404", func(t *testing.T) {
		w := get(router, "/api/v1/audit/logs/missing")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListModerationLogs(t *testing.T) {
	ctx := context.Background()
	router, svc := newTestEnv(t)

	_, ok := svc.LogModerationAction(ctx, "mod-1", "moderator", audit.ActionSuspend, "member", "m-1",
		map[string]any{"days": 7})
	require.True(t, ok)
	_, ok = svc.LogModerationAction(ctx, "mod-2", "moderator", audit.ActionBlock, "member", "m-2", nil)
	require.True(t, ok)

	t.Run("按动作过滤", func(t *testing.T) {
		w := get(router, "/api/v1/moderation/logs?action=block")
		require.Equal(t, http.StatusOK, w.Code)

		var resp listEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.Data.Pagination.Total)
		assert.Equal(t, "m-2", resp.Data.Items[0]["target_id"])
	})

	t.Run("角色快照包含在响应中", func(t *testing.T) {
		w := get(router, "/api/v1/moderation/logs?actor_id=mod-1")
		require.Equal(t, http.StatusOK, w.Code)

		var resp listEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data.Items, 1)
		assert.Equal(t, "moderator", resp.Data.Items[0]["actor_role"])
	})
}
