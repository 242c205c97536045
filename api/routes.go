package api

import (
	audithandler "apollocore/api/handlers/audit"
	cachehandler "apollocore/api/handlers/cache"
	moderationhandler "apollocore/api/handlers/moderation"
	"apollocore/internal/audit"
	"apollocore/internal/cache"
	"apollocore/internal/config"
	"apollocore/internal/middleware"
	"apollocore/internal/moderation"
	"apollocore/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Handlers API 处理器集合
type Handlers struct {
	Moderation *moderationhandler.Handler
	Audit      *audithandler.Handler
	Cache      *cachehandler.Handler
}

// NewHandlers 创建处理器集合
func NewHandlers(moderationSvc *moderation.Service, auditSvc *audit.Service, c *cache.Cache) *Handlers {
	return &Handlers{
		Moderation: moderationhandler.NewHandler(moderationSvc),
		Audit:      audithandler.NewHandler(auditSvc),
		Cache:      cachehandler.NewHandler(c, auditSvc),
	}
}

// NewRouter 构建 HTTP 路由
func NewRouter(cfg *config.Config, db *gorm.DB, handlers *Handlers, limiter *ratelimit.Limiter, auditSvc *audit.Service) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(Metrics())
	router.Use(CORS())

	// 系统端点不参与限流
	router.GET("/healthz", HealthCheck())
	router.GET("/readyz", ReadinessCheck(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		apiV1.Use(ratelimit.Middleware(limiter, auditSvc))
	}
	registerAPIRoutes(apiV1, handlers)

	return router
}

// registerAPIRoutes 注册业务 API 路由
func registerAPIRoutes(apiGroup *gin.RouterGroup, h *Handlers) {
	// 审核动作
	moderationGroup := apiGroup.Group("/moderation")
	{
		moderationGroup.POST("/posts/:id/approve", h.Moderation.ApprovePost)
		moderationGroup.POST("/members/:id/suspend", h.Moderation.SuspendMember)
		moderationGroup.POST("/members/:id/block", h.Moderation.BlockMember)
		moderationGroup.GET("/logs", h.Audit.ListModerationLogs)
	}

	// 审计日志
	auditGroup := apiGroup.Group("/audit")
	{
		auditGroup.GET("/logs", h.Audit.ListAuditLogs)
		auditGroup.GET("/logs/:id", h.Audit.GetAuditLog)
	}

	// 缓存管理
	cacheGroup := apiGroup.Group("/cache")
	{
		cacheGroup.POST("/flush", h.Cache.Flush)
		cacheGroup.POST("/groups/:group/bump", h.Cache.BumpGroup)
	}
}
