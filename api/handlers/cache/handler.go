// Package cache 提供缓存管理的 HTTP 处理器
package cache

import (
	"apollocore/internal/audit"
	"apollocore/internal/cache"
	"apollocore/internal/common"
	"apollocore/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// Handler 缓存管理 API 处理器
type Handler struct {
	cache    *cache.Cache
	auditSvc *audit.Service
}

// NewHandler 创建处理器
func NewHandler(c *cache.Cache, auditSvc *audit.Service) *Handler {
	return &Handler{cache: c, auditSvc: auditSvc}
}

// Flush 刷新全部已知缓存分组
// @Summary 递增全部已知分组的版本，使其缓存整体失效
// @Tags Cache
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/v1/cache/flush [post]
func (h *Handler) Flush(c *gin.Context) {
	ctx := c.Request.Context()
	h.cache.FlushKnownGroups(ctx)

	h.auditSvc.LogEvent(ctx, audit.Entry{
		EventType: audit.EventCacheFlush,
		ActorID:   c.GetHeader(ratelimit.ActorHeader),
		ActorIP:   ratelimit.ResolveClientIP(c.Request.Header, c.Request.RemoteAddr),
		Severity:  audit.SeverityInfo,
		Message:   "全部缓存分组已刷新",
		Context:   map[string]any{"groups": cache.KnownGroups},
	})

	common.ResponseSuccessMessage(c, "缓存已刷新", gin.H{"groups": cache.KnownGroups})
}

// BumpGroup 递增单个分组版本
// @Summary 递增指定分组的版本
// @Tags Cache
// @Produce json
// @Param group path string true "分组名"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/v1/cache/groups/{group}/bump [post]
func (h *Handler) BumpGroup(c *gin.Context) {
	group := c.Param("group")

	known := false
	for _, g := range cache.KnownGroups {
		if g == group {
			known = true
			break
		}
	}
	if !known {
		common.ResponseError(c, common.CodeUnknownGroup, "")
		return
	}

	ctx := c.Request.Context()
	version := h.cache.BumpGroupVersion(ctx, group)

	h.auditSvc.LogEvent(ctx, audit.Entry{
		EventType: audit.EventCacheVersionBump,
		ActorID:   c.GetHeader(ratelimit.ActorHeader),
		ActorIP:   ratelimit.ResolveClientIP(c.Request.Header, c.Request.RemoteAddr),
		Severity:  audit.SeverityInfo,
		Message:   "缓存分组版本已递增",
		Context:   map[string]any{"group": group, "version": version},
	})

	common.ResponseSuccess(c, gin.H{"group": group, "version": version})
}
