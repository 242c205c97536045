package ratelimit

import (
	"strconv"

	"apollocore/internal/audit"
	"apollocore/internal/common"

	"github.com/gin-gonic/gin"
)

// ActorHeader 网关注入的已认证操作者标识
const ActorHeader = "X-Apollo-Actor"

// Middleware 限流中间件
//
// 限流主体优先取网关注入的操作者标识（user:<id>），
// 匿名请求按客户端 IP（ip:<addr>）限流。
// 不论放行与否都回写 X-RateLimit-* 响应头。
func Middleware(limiter *Limiter, auditSvc *audit.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			// 未匹配路由（404），不参与限流
			c.Next()
			return
		}

		clientIP := ResolveClientIP(c.Request.Header, c.Request.RemoteAddr)
		subject := "ip:" + clientIP
		if actor := c.GetHeader(ActorHeader); actor != "" {
			subject = "user:" + actor
		}

		decision := limiter.Check(c.Request.Context(), endpoint, subject)

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(decision.ResetSeconds))

		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(decision.ResetSeconds))

			auditSvc.LogEvent(c.Request.Context(), audit.Entry{
				EventType: audit.EventRateLimitExceeded,
				ActorID:   c.GetHeader(ActorHeader),
				ActorIP:   clientIP,
				Severity:  audit.SeverityWarning,
				Message:   "请求超过限流窗口上限",
				Context: map[string]any{
					"endpoint": endpoint,
					"attempts": decision.Attempts,
					"limit":    decision.Limit,
				},
			})

			common.AbortWithError(c, common.CodeRateLimited, "")
			return
		}

		c.Next()
	}
}
