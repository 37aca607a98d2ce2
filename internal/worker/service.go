package worker

import (
	"context"
	"errors"
	"time"

	"github.com/duomai-next/internal/config"
	"github.com/duomai-next/internal/logger"
	"github.com/duomai-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	holdReleaseInterval = time.Hour
	dailyJobInterval    = 24 * time.Hour
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.SettlementService != nil {
		go s.runHoldReleaseLoop(ctx)
		go s.runDailyLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runHoldReleaseLoop 每小时扫描并释放到期冻结
func (s *Service) runHoldReleaseLoop(ctx context.Context) {
	runOnce := func() {
		if _, err := s.consumer.SettlementService.ReleaseDueHolds(time.Now()); err != nil {
			logger.Warnw("worker_hold_release_loop_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(holdReleaseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// runDailyLoop 每日执行自动提现与前一日汇总聚合
func (s *Service) runDailyLoop(ctx context.Context) {
	runOnce := func() {
		now := time.Now()
		if _, err := s.consumer.SettlementService.RunAutoWithdraw(now); err != nil {
			logger.Warnw("worker_auto_withdraw_loop_failed", "error", err)
		}
		if _, err := s.consumer.SettlementService.AggregateDaily(now.AddDate(0, 0, -1)); err != nil {
			logger.Warnw("worker_summary_aggregate_loop_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(dailyJobInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
