package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"apollocore/internal/logger"
	"apollocore/internal/metrics"

	"go.uber.org/zap"
)

// KnownGroups 参与整体刷新的缓存分组
// 新增分组需要手动加入此列表才会被 FlushKnownGroups 覆盖
var KnownGroups = []string{
	GroupForms,
	GroupQuiz,
	GroupMemberships,
	GroupCore,
	GroupEvents,
}

// 缓存分组
const (
	GroupForms       = "forms"       // 报名表单架构
	GroupQuiz        = "quiz"        // 问卷/测验架构
	GroupMemberships = "memberships" // 成员关系列表
	GroupCore        = "core"        // 核心元数据
	GroupEvents      = "events"      // 活动数据
)

// Cache 带分组版本失效的缓存
//
// 每个分组持有一个单调递增的版本号，键写入时追加 _v<version> 后缀。
// 递增版本号即让旧版本键全部不可达（由 TTL 自然过期），无需枚举删除。
type Cache struct {
	store      Store
	versions   VersionStore
	defaultTTL time.Duration
}

// New 创建缓存
func New(store Store, versions VersionStore, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &Cache{
		store:      store,
		versions:   versions,
		defaultTTL: defaultTTL,
	}
}

// VersionedKey 返回带版本后缀的键: "<baseKey>_v<version>"
func (c *Cache) VersionedKey(ctx context.Context, baseKey, group string) string {
	return fmt.Sprintf("%s_v%d", baseKey, c.versions.Current(ctx, group))
}

// BumpGroupVersion 递增分组版本，使该分组已发出的所有版本键失效
func (c *Cache) BumpGroupVersion(ctx context.Context, group string) int64 {
	next := c.versions.Bump(ctx, group)
	metrics.CacheVersionBumpsTotal.WithLabelValues(group).Inc()
	logger.Info("缓存分组版本已递增",
		zap.String("group", group),
		zap.Int64("version", next),
	)
	return next
}

// FlushKnownGroups 递增全部已知分组的版本
func (c *Cache) FlushKnownGroups(ctx context.Context) {
	for _, group := range KnownGroups {
		c.BumpGroupVersion(ctx, group)
	}
}

// Remember 按版本键记忆化计算结果
//
// 命中时直接返回缓存值且无副作用；未命中时执行 compute，将结果以 JSON
// 写入缓存后返回。compute 返回错误时不写缓存，错误原样返回。
// 后端不可用时退化为每次计算，绝不向调用方抛缓存层错误。
func (c *Cache) Remember(ctx context.Context, group, baseKey string, ttl time.Duration, compute func() (any, error)) (json.RawMessage, error) {
	key := c.VersionedKey(ctx, baseKey, group)

	if data, ok := c.store.Get(ctx, group, key); ok {
		metrics.CacheHitsTotal.WithLabelValues(group).Inc()
		return data, nil
	}
	metrics.CacheMissesTotal.WithLabelValues(group).Inc()

	value, err := compute()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("序列化缓存值失败: %w", err)
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.store.Set(ctx, group, key, data, ttl)

	return data, nil
}

// RememberInto 记忆化计算并反序列化到 out
func (c *Cache) RememberInto(ctx context.Context, group, baseKey string, ttl time.Duration, out any, compute func() (any, error)) error {
	data, err := c.Remember(ctx, group, baseKey, ttl, compute)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
