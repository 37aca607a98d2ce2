package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/duomai-next/internal/constants"
	"github.com/duomai-next/internal/logger"
	"github.com/duomai-next/internal/provider"
	"github.com/duomai-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskHoldRelease, c.handleHoldRelease)
	mux.HandleFunc(queue.TaskAutoWithdraw, c.handleAutoWithdraw)
	mux.HandleFunc(queue.TaskSummaryAggregate, c.handleSummaryAggregate)
}

func (c *Consumer) handleHoldRelease(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.HoldReleasePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_hold_release_unmarshal_failed", "error", err)
		return err
	}
	at := time.Now()
	if payload.At > 0 {
		at = time.Unix(payload.At, 0)
	}
	if c.SettlementService == nil {
		logger.Warnw("worker_hold_release_skip_service_nil")
		return nil
	}
	report, err := c.SettlementService.ReleaseDueHolds(at)
	if err != nil {
		logger.Warnw("worker_hold_release_failed", "error", err)
		return err
	}
	logger.Debugw("worker_hold_release_done",
		"scanned", report.Scanned,
		"released", report.Released,
		"failed", report.Failed)
	return nil
}

func (c *Consumer) handleAutoWithdraw(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.AutoWithdrawPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_auto_withdraw_unmarshal_failed", "error", err)
		return err
	}
	at := time.Now()
	if payload.At > 0 {
		at = time.Unix(payload.At, 0)
	}
	if c.SettlementService == nil {
		logger.Warnw("worker_auto_withdraw_skip_service_nil")
		return nil
	}
	report, err := c.SettlementService.RunAutoWithdraw(at)
	if err != nil {
		logger.Warnw("worker_auto_withdraw_failed", "error", err)
		return err
	}
	logger.Debugw("worker_auto_withdraw_done",
		"scanned", report.Scanned,
		"created", report.Created,
		"failed", report.Failed)
	return nil
}

func (c *Consumer) handleSummaryAggregate(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.SummaryAggregatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_summary_aggregate_unmarshal_failed", "error", err)
		return err
	}
	day := time.Now().AddDate(0, 0, -1)
	if payload.Day != "" {
		parsed, err := time.ParseInLocation("2006-01-02", payload.Day, time.Local)
		if err != nil {
			logger.Warnw("worker_summary_aggregate_invalid_day", "day", payload.Day, "error", err)
			return nil
		}
		day = parsed
	}
	if c.SettlementService == nil {
		logger.Warnw("worker_summary_aggregate_skip_service_nil")
		return nil
	}
	period := payload.Period
	if period == "" {
		period = constants.SummaryPeriodDaily
	}
	report, err := c.SettlementService.Aggregate(period, day)
	if err != nil {
		logger.Warnw("worker_summary_aggregate_failed",
			"period", period,
			"day", day.Format("2006-01-02"),
			"error", err)
		return err
	}
	logger.Debugw("worker_summary_aggregate_done",
		"period", period,
		"day", day.Format("2006-01-02"),
		"upserted", report.Upserted)
	return nil
}
