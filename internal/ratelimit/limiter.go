// Package ratelimit 提供按端点+主体的固定窗口限流
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"apollocore/internal/config"
	"apollocore/internal/logger"
	"apollocore/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Rule 单个端点的限流规则
type Rule struct {
	Max    int           // 窗口内最大请求数
	Window time.Duration // 窗口长度
}

// Decision 限流判定结果
type Decision struct {
	Allowed      bool  // 是否放行
	Limit        int   // 窗口内上限
	Remaining    int   // 窗口内剩余配额
	ResetSeconds int   // 距窗口重置的秒数
	Attempts     int64 // 递增后的计数（用于审计）
}

// CounterStore 窗口计数器存储
type CounterStore interface {
	// Incr 递增计数器并返回递增后的计数与剩余窗口
	// 计数器首次写入时以 window 为过期时间
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisCounterStore 基于 Redis 的窗口计数器
type RedisCounterStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisCounterStore 创建 Redis 计数器存储
func NewRedisCounterStore(rdb redis.UniversalClient, prefix string) *RedisCounterStore {
	if prefix == "" {
		prefix = "apollo"
	}
	return &RedisCounterStore{rdb: rdb, prefix: prefix}
}

// Incr 递增计数器
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	full := fmt.Sprintf("%s:rl:%s", s.prefix, key)

	count, err := s.rdb.Incr(ctx, full).Result()
	if err != nil {
		return 0, 0, err
	}

	// 首次写入时设置窗口过期
	if count == 1 {
		if err := s.rdb.Expire(ctx, full, window).Err(); err != nil {
			return count, window, nil
		}
		return count, window, nil
	}

	ttl, err := s.rdb.TTL(ctx, full).Result()
	if err != nil || ttl <= 0 {
		// 计数器意外没有过期时间，补一个，避免永久累积
		_ = s.rdb.Expire(ctx, full, window).Err()
		ttl = window
	}
	return count, ttl, nil
}

// Limiter 固定窗口限流器
//
// 窗口为离散计数桶而非滑动区间，窗口边界处允许短时突发（最高约 2 倍上限），
// 这是有意保留的简化，不是缺陷。
type Limiter struct {
	store       CounterStore
	rules       map[string]Rule
	defaultRule Rule
}

// NewLimiter 根据配置创建限流器
// endpoints 配置格式: 端点标识 -> "max/window_seconds"
func NewLimiter(store CounterStore, cfg *config.RateLimitConfig) *Limiter {
	def := Rule{Max: 60, Window: time.Minute}
	if cfg != nil {
		if cfg.DefaultMax > 0 {
			def.Max = cfg.DefaultMax
		}
		if cfg.DefaultWindow > 0 {
			def.Window = time.Duration(cfg.DefaultWindow) * time.Second
		}
	}

	rules := defaultEndpointRules()
	if cfg != nil {
		for endpoint, spec := range cfg.Endpoints {
			if rule, ok := parseRuleSpec(spec); ok {
				rules[endpoint] = rule
			} else {
				logger.Warn("限流规则格式无效，忽略",
					zap.String("endpoint", endpoint),
					zap.String("spec", spec),
				)
			}
		}
	}

	return &Limiter{
		store:       store,
		rules:       rules,
		defaultRule: def,
	}
}

// defaultEndpointRules 敏感端点的内置限流规则
func defaultEndpointRules() map[string]Rule {
	return map[string]Rule{
		"/api/v1/moderation/posts/:id/approve":   {Max: 30, Window: time.Minute},
		"/api/v1/moderation/members/:id/suspend": {Max: 10, Window: time.Minute},
		"/api/v1/moderation/members/:id/block":   {Max: 10, Window: time.Minute},
		"/api/v1/cache/flush":                    {Max: 5, Window: time.Minute},
	}
}

// parseRuleSpec 解析 "max/window_seconds" 格式的规则
func parseRuleSpec(spec string) (Rule, bool) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 {
		return Rule{}, false
	}
	max, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || max <= 0 {
		return Rule{}, false
	}
	window, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || window <= 0 {
		return Rule{}, false
	}
	return Rule{Max: max, Window: time.Duration(window) * time.Second}, true
}

// RuleFor 返回端点适用的规则，未列出的端点使用默认规则
func (l *Limiter) RuleFor(endpoint string) Rule {
	if rule, ok := l.rules[endpoint]; ok {
		return rule
	}
	return l.defaultRule
}

// Check 递增计数并判定是否放行
//
// 计数器在超限后仍然继续递增（攻击期间保留真实计数），判定以递增后的
// 计数与上限比较。存储不可用时放行（限流是防护手段，不是可用性瓶颈）。
func (l *Limiter) Check(ctx context.Context, endpoint, subject string) Decision {
	rule := l.RuleFor(endpoint)

	count, ttl, err := l.store.Incr(ctx, endpoint+":"+subject, rule.Window)
	if err != nil {
		logger.Warn("限流计数器不可用，放行请求",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		metrics.RateLimitDecisionsTotal.WithLabelValues(endpoint, "error").Inc()
		return Decision{
			Allowed:      true,
			Limit:        rule.Max,
			Remaining:    rule.Max,
			ResetSeconds: int(rule.Window.Seconds()),
		}
	}

	remaining := rule.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}

	allowed := count <= int64(rule.Max)
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	metrics.RateLimitDecisionsTotal.WithLabelValues(endpoint, result).Inc()

	return Decision{
		Allowed:      allowed,
		Limit:        rule.Max,
		Remaining:    remaining,
		ResetSeconds: int(ttl.Round(time.Second).Seconds()),
		Attempts:     count,
	}
}
