package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apollo_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apollo_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 缓存指标
var (
	// CacheHitsTotal 缓存命中总数
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apollo_cache_hits_total",
			Help: "按分组统计的缓存命中总数",
		},
		[]string{"group"},
	)

	// CacheMissesTotal 缓存未命中总数
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apollo_cache_misses_total",
			Help: "按分组统计的缓存未命中总数",
		},
		[]string{"group"},
	)

	// CacheVersionBumpsTotal 缓存分组版本递增总数
	CacheVersionBumpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apollo_cache_version_bumps_total",
			Help: "按分组统计的版本递增次数",
		},
		[]string{"group"},
	)
)

// 限流指标
var (
	// RateLimitDecisionsTotal 限流判定总数
	RateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apollo_ratelimit_decisions_total",
			Help: "按端点和结果统计的限流判定总数",
		},
		[]string{"endpoint", "result"},
	)
)

// 审计指标
var (
	// AuditEventsTotal 审计事件写入总数
	AuditEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apollo_audit_events_total",
			Help: "按事件类型和结果统计的审计事件写入总数",
		},
		[]string{"event_type", "result"},
	)

	// RetentionDeletedTotal 保留期清理删除的行数
	RetentionDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apollo_retention_deleted_total",
			Help: "按日志类型统计的保留期清理删除行数",
		},
		[]string{"log_type"},
	)
)
