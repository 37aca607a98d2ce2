package admin

import (
	"time"

	"github.com/duomai-next/internal/http/response"
	"github.com/duomai-next/internal/queue"

	"github.com/gin-gonic/gin"
)

// TriggerHoldRelease 手动触发到期冻结释放任务
func (h *Handler) TriggerHoldRelease(c *gin.Context) {
	now := time.Now()
	if h.QueueClient != nil && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueHoldRelease(queue.HoldReleasePayload{At: now.Unix()}); err != nil {
			respondError(c, response.CodeInternal, "释放任务入队失败", err)
			return
		}
		response.Success(c, gin.H{"queued": true})
		return
	}
	report, err := h.SettlementService.ReleaseDueHolds(now)
	if err != nil {
		respondError(c, response.CodeInternal, "释放任务执行失败", err)
		return
	}
	response.Success(c, gin.H{"queued": false, "report": report})
}

// TriggerAutoWithdraw 手动触发自动提现任务
func (h *Handler) TriggerAutoWithdraw(c *gin.Context) {
	now := time.Now()
	if h.QueueClient != nil && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueAutoWithdraw(queue.AutoWithdrawPayload{At: now.Unix()}); err != nil {
			respondError(c, response.CodeInternal, "自动提现任务入队失败", err)
			return
		}
		response.Success(c, gin.H{"queued": true})
		return
	}
	report, err := h.SettlementService.RunAutoWithdraw(now)
	if err != nil {
		respondError(c, response.CodeInternal, "自动提现任务执行失败", err)
		return
	}
	response.Success(c, gin.H{"queued": false, "report": report})
}
