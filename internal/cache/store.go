// Package cache 提供带分组版本失效的键值缓存
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"apollocore/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store 键值缓存后端接口
// 后端不可用时按未命中处理，读取路径永不返回错误
type Store interface {
	Get(ctx context.Context, group, key string) ([]byte, bool)
	Set(ctx context.Context, group, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, group, key string)
}

// VersionStore 分组版本计数器
type VersionStore interface {
	// Current 读取分组当前版本，首次访问默认为 1
	Current(ctx context.Context, group string) int64
	// Bump 递增分组版本并刷新计数器 TTL，返回新版本
	Bump(ctx context.Context, group string) int64
}

// 版本计数器 TTL，每次递增时刷新
const versionTTL = 24 * time.Hour

// RedisStore 基于 Redis 的缓存后端，同时实现 Store 和 VersionStore
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore 创建 Redis 缓存后端
// prefix 为空时默认 apollo
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "apollo"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) cacheKey(group, key string) string {
	return fmt.Sprintf("%s:cache:%s:%s", s.prefix, group, key)
}

func (s *RedisStore) versionKey(group string) string {
	return fmt.Sprintf("%s:cachever:%s", s.prefix, group)
}

// Get 读取缓存，后端错误按未命中处理
func (s *RedisStore) Get(ctx context.Context, group, key string) ([]byte, bool) {
	data, err := s.rdb.Get(ctx, s.cacheKey(group, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Debug("缓存读取失败，按未命中处理",
				zap.String("group", group),
				zap.Error(err),
			)
		}
		return nil, false
	}
	return data, true
}

// Set 写入缓存，后端错误仅记录日志
func (s *RedisStore) Set(ctx context.Context, group, key string, value []byte, ttl time.Duration) {
	if err := s.rdb.Set(ctx, s.cacheKey(group, key), value, ttl).Err(); err != nil {
		logger.Warn("缓存写入失败",
			zap.String("group", group),
			zap.Error(err),
		)
	}
}

// Delete 删除缓存条目
func (s *RedisStore) Delete(ctx context.Context, group, key string) {
	if err := s.rdb.Del(ctx, s.cacheKey(group, key)).Err(); err != nil {
		logger.Debug("缓存删除失败",
			zap.String("group", group),
			zap.Error(err),
		)
	}
}

// Current 读取分组版本，缺失或解析失败时返回 1
func (s *RedisStore) Current(ctx context.Context, group string) int64 {
	val, err := s.rdb.Get(ctx, s.versionKey(group)).Result()
	if err != nil {
		return 1
	}
	version, err := strconv.ParseInt(val, 10, 64)
	if err != nil || version < 1 {
		return 1
	}
	return version
}

// Bump 递增分组版本
// 读取-递增-写回不要求原子性：并发递增丢失一次只会多产生一次缓存未命中，
// 不会导致递增方自身读到失效前的旧值
func (s *RedisStore) Bump(ctx context.Context, group string) int64 {
	next := s.Current(ctx, group) + 1
	if err := s.rdb.Set(ctx, s.versionKey(group), next, versionTTL).Err(); err != nil {
		logger.Warn("缓存版本写入失败",
			zap.String("group", group),
			zap.Error(err),
		)
	}
	return next
}
