package audit

// Severity 审计事件严重级别
type Severity string

const (
	SeverityInfo     Severity = "info"     // 常规事件
	SeverityWarning  Severity = "warning"  // 需要关注
	SeverityCritical Severity = "critical" // 安全关键
)

// 审核相关事件
const (
	EventModerationApprove = "moderation.approve" // 内容通过审核
	EventModerationSuspend = "moderation.suspend" // 成员停用
	EventModerationBlock   = "moderation.block"   // 成员封禁
)

// 安全相关事件
const (
	EventRateLimitExceeded  = "security.ratelimit"    // 超过速率限制
	EventUnauthorizedAccess = "security.unauthorized" // 未授权访问
)

// 系统维护事件
const (
	EventCacheFlush       = "cache.flush"       // 整体刷新缓存分组
	EventCacheVersionBump = "cache.bump"        // 单个分组版本递增
	EventRoleMigration    = "roles.migrate"     // 角色标识迁移
	EventRetentionCleanup = "retention.cleanup" // 日志保留期清理
)

// 审核动作（写入 moderation_logs 的 action 字段）
const (
	ActionApprove = "approve" // 通过
	ActionSuspend = "suspend" // 停用
	ActionBlock   = "block"   // 封禁
)
