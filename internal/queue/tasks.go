package queue

import (
	"encoding/json"

	"github.com/duomai-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskHoldRelease 冻结释放任务
	TaskHoldRelease = constants.TaskHoldRelease
	// TaskAutoWithdraw 自动提现任务
	TaskAutoWithdraw = constants.TaskAutoWithdraw
	// TaskSummaryAggregate 财务汇总聚合任务
	TaskSummaryAggregate = constants.TaskSummaryAggregate
)

// HoldReleasePayload 冻结释放任务载荷
//
// At 为 Unix 秒，任务以该时刻作为到期判断基准，零值用执行时间。
type HoldReleasePayload struct {
	At int64 `json:"at"`
}

// AutoWithdrawPayload 自动提现任务载荷
type AutoWithdrawPayload struct {
	At int64 `json:"at"`
}

// SummaryAggregatePayload 汇总聚合任务载荷
//
// Day 为 2006-01-02 格式的目标日期，空值聚合前一自然日；
// Period 缺省为 daily。
type SummaryAggregatePayload struct {
	Day    string `json:"day"`
	Period string `json:"period"`
}

// NewHoldReleaseTask 创建冻结释放任务
func NewHoldReleaseTask(payload HoldReleasePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHoldRelease, body), nil
}

// NewAutoWithdrawTask 创建自动提现任务
func NewAutoWithdrawTask(payload AutoWithdrawPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAutoWithdraw, body), nil
}

// NewSummaryAggregateTask 创建汇总聚合任务
func NewSummaryAggregateTask(payload SummaryAggregatePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryAggregate, body), nil
}
