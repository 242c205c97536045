// Package worker 提供基于 asynq 的后台任务执行
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"apollocore/internal/audit"
	"apollocore/internal/config"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Server 后台任务服务器
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	client *asynq.Client
	logger *zap.Logger
}

// NewServer 创建后台任务服务器
func NewServer(cfg config.RedisConfig, auditSvc *audit.Service, logger *zap.Logger) *Server {
	redisOpt := asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"maintenance": 2,
				"default":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()

	// 注册保留期清理处理器
	retentionHandler := NewRetentionHandler(auditSvc, logger)
	mux.HandleFunc(TypeRetentionCleanup, retentionHandler.HandleRetentionCleanup)

	return &Server{
		server: srv,
		mux:    mux,
		client: asynq.NewClient(redisOpt),
		logger: logger,
	}
}

// Run 启动任务服务器（阻塞）
func (s *Server) Run() error {
	s.logger.Info("Worker 服务器启动中...")
	return s.server.Run(s.mux)
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("Worker 服务器启动中 (后台)...")
	return s.server.Start(s.mux)
}

// Shutdown 停止任务服务器
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.server.Shutdown()
	_ = s.client.Close()
}

// EnqueueRetentionCleanup 入队一次保留期清理任务
func (s *Server) EnqueueRetentionCleanup(ctx context.Context, retentionDays int) error {
	payload, err := json.Marshal(RetentionCleanupPayload{RetentionDays: retentionDays})
	if err != nil {
		return fmt.Errorf("序列化任务载荷失败: %w", err)
	}

	task := asynq.NewTask(TypeRetentionCleanup, payload)
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.Queue("maintenance"),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("入队清理任务失败: %w", err)
	}
	return nil
}

// StartRetentionScheduler 启动定时清理调度
// 启动时立即入队一次，此后每 24 小时一次
func (s *Server) StartRetentionScheduler(ctx context.Context, retentionDays int) {
	runRetentionLoop(ctx, 24*time.Hour, func() {
		if err := s.EnqueueRetentionCleanup(ctx, retentionDays); err != nil {
			s.logger.Warn("定时清理任务入队失败", zap.Error(err))
		}
	})
}

// runRetentionLoop 先立即触发一次 enqueue，之后按 interval 周期触发，直到 ctx 取消
func runRetentionLoop(ctx context.Context, interval time.Duration, enqueue func()) {
	go func() {
		enqueue()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				enqueue()
			case <-ctx.Done():
				return
			}
		}
	}()
}
