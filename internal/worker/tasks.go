package worker

// 任务类型
const (
	TypeRetentionCleanup = "retention:cleanup"
)

// RetentionCleanupPayload 日志保留期清理任务载荷
type RetentionCleanupPayload struct {
	RetentionDays int `json:"retention_days"`
}
