package admin

import (
	"errors"
	"strings"
	"time"

	"github.com/duomai-next/internal/constants"
	handlershared "github.com/duomai-next/internal/http/handlers/shared"
	"github.com/duomai-next/internal/http/response"
	"github.com/duomai-next/internal/queue"
	"github.com/duomai-next/internal/repository"
	"github.com/duomai-next/internal/service"

	"github.com/gin-gonic/gin"
)

// SummaryAggregateRequest 手动触发汇总请求
type SummaryAggregateRequest struct {
	Day    string `json:"day"`    // 2006-01-02，缺省为昨日
	Period string `json:"period"` // daily/weekly/monthly/yearly，缺省 daily
}

// ListFinancialSummaries 分页查询财务汇总
func (h *Handler) ListFinancialSummaries(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.SummaryListFilter{
		Page:      page,
		PageSize:  pageSize,
		Scope:     strings.TrimSpace(c.Query("scope")),
		ScopeRef:  handlershared.ParseQueryUint(c, "scope_ref"),
		Period:    strings.TrimSpace(c.Query("period")),
		StartFrom: handlershared.ParseQueryTime(c, "start_from"),
		StartTo:   handlershared.ParseQueryTime(c, "start_to"),
	}
	summaries, total, err := h.SummaryService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "财务汇总查询失败", err)
		return
	}
	response.SuccessWithPage(c, summaries, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetFinancialSummary 查询单期财务汇总
func (h *Handler) GetFinancialSummary(c *gin.Context) {
	scope := strings.TrimSpace(c.Query("scope"))
	period := strings.TrimSpace(c.Query("period"))
	periodStart := handlershared.ParseQueryTime(c, "period_start")
	if scope == "" || period == "" || periodStart == nil {
		respondError(c, response.CodeBadRequest, "scope、period、period_start 均为必填", nil)
		return
	}
	summary, err := h.SummaryService.Get(c.Request.Context(), scope, handlershared.ParseQueryUint(c, "scope_ref"), period, *periodStart)
	if err != nil {
		if errors.Is(err, service.ErrSummaryNotFound) {
			respondError(c, response.CodeNotFound, "财务汇总不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "财务汇总查询失败", err)
		return
	}
	response.Success(c, summary)
}

// TriggerSummaryAggregate 手动触发指定日期的汇总任务
func (h *Handler) TriggerSummaryAggregate(c *gin.Context) {
	var req SummaryAggregateRequest
	_ = c.ShouldBindJSON(&req)
	day := strings.TrimSpace(req.Day)
	if day == "" {
		day = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	} else if _, err := time.ParseInLocation("2006-01-02", day, time.Local); err != nil {
		respondError(c, response.CodeBadRequest, "日期格式须为 2006-01-02", err)
		return
	}
	period := strings.TrimSpace(req.Period)
	if period == "" {
		period = constants.SummaryPeriodDaily
	}
	if h.QueueClient != nil && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueSummaryAggregate(queue.SummaryAggregatePayload{Day: day, Period: period}); err != nil {
			respondError(c, response.CodeInternal, "汇总任务入队失败", err)
			return
		}
		response.Success(c, gin.H{"day": day, "period": period, "queued": true})
		return
	}
	parsed, _ := time.ParseInLocation("2006-01-02", day, time.Local)
	report, err := h.SettlementService.Aggregate(period, parsed)
	if err != nil {
		if errors.Is(err, service.ErrSummaryPeriodInvalid) {
			respondError(c, response.CodeBadRequest, "汇总周期不合法", nil)
			return
		}
		respondError(c, response.CodeInternal, "汇总任务执行失败", err)
		return
	}
	response.Success(c, gin.H{"day": day, "period": period, "queued": false, "upserted": report.Upserted})
}
