package admin

import (
	"errors"
	"strings"

	handlershared "github.com/duomai-next/internal/http/handlers/shared"
	"github.com/duomai-next/internal/http/response"
	"github.com/duomai-next/internal/repository"
	"github.com/duomai-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PayoutReviewRequest 提现审核请求
type PayoutReviewRequest struct {
	Note string `json:"note"`
}

// PayoutRejectRequest 提现拒绝请求
type PayoutRejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// PayoutCancelRequest 管理员撤销请求
type PayoutCancelRequest struct {
	Reason string `json:"reason"`
}

// PayoutCompleteRequest 提现完成请求
type PayoutCompleteRequest struct {
	ExternalTxnRef string `json:"external_txn_ref"`
}

// ListPayouts 分页查询提现申请
func (h *Handler) ListPayouts(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.PayoutListFilter{
		Page:        page,
		PageSize:    pageSize,
		VendorID:    handlershared.ParseQueryUint(c, "vendor_id"),
		Status:      strings.TrimSpace(c.Query("status")),
		MethodType:  strings.TrimSpace(c.Query("method_type")),
		PayoutNo:    strings.TrimSpace(c.Query("payout_no")),
		CreatedFrom: handlershared.ParseQueryTime(c, "created_from"),
		CreatedTo:   handlershared.ParseQueryTime(c, "created_to"),
	}
	payouts, total, err := h.PayoutService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "提现申请查询失败", err)
		return
	}
	response.SuccessWithPage(c, payouts, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetPayout 查询提现申请详情
func (h *Handler) GetPayout(c *gin.Context) {
	id, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "提现申请ID不合法", nil)
		return
	}
	payout, err := h.PayoutService.GetByID(id)
	if err != nil {
		h.respondPayoutError(c, err)
		return
	}
	response.Success(c, payout)
}

// GetPayoutByNo 按提现单号查询提现申请详情
func (h *Handler) GetPayoutByNo(c *gin.Context) {
	payout, err := h.PayoutService.GetByPayoutNo(c.Param("payout_no"))
	if err != nil {
		h.respondPayoutError(c, err)
		return
	}
	response.Success(c, payout)
}

// ReviewPayout 开始审核提现申请
func (h *Handler) ReviewPayout(c *gin.Context) {
	id, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "提现申请ID不合法", nil)
		return
	}
	payout, err := h.PayoutService.Review(id, adminIDFromHeader(c))
	if err != nil {
		h.respondPayoutError(c, err)
		return
	}
	response.Success(c, payout)
}

// ApprovePayout 批准提现申请
func (h *Handler) ApprovePayout(c *gin.Context) {
	id, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "提现申请ID不合法", nil)
		return
	}
	var req PayoutReviewRequest
	_ = c.ShouldBindJSON(&req)
	payout, err := h.PayoutService.Approve(id, adminIDFromHeader(c), req.Note)
	if err != nil {
		h.respondPayoutError(c, err)
		return
	}
	response.Success(c, payout)
}

// RejectPayout 拒绝提现申请并退回预留余额
func (h *Handler) RejectPayout(c *gin.Context) {
	id, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "提现申请ID不合法", nil)
		return
	}
	var req PayoutRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "拒绝原因不能为空", err)
		return
	}
	payout, err := h.PayoutService.Reject(id, adminIDFromHeader(c), req.Reason)
	if err != nil {
		h.respondPayoutError(c, err)
		return
	}
	response.Success(c, payout)
}

// CancelPayout 管理员撤销提现申请并退回预留余额
func (h *Handler) CancelPayout(c *gin.Context) {
	id, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "提现申请ID不合法", nil)
		return
	}
	var req PayoutCancelRequest
	_ = c.ShouldBindJSON(&req)
	payout, err := h.PayoutService.AdminCancel(id, adminIDFromHeader(c), req.Reason)
	if err != nil {
		h.respondPayoutError(c, err)
		return
	}
	response.Success(c, payout)
}

// MarkPayoutProcessing 标记提现进入打款
func (h *Handler) MarkPayoutProcessing(c *gin.Context) {
	id, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "提现申请ID不合法", nil)
		return
	}
	payout, err := h.PayoutService.MarkProcessing(id, adminIDFromHeader(c))
	if err != nil {
		h.respondPayoutError(c, err)
		return
	}
	response.Success(c, payout)
}

// CompletePayout 标记提现完成并出账
func (h *Handler) CompletePayout(c *gin.Context) {
	id, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "提现申请ID不合法", nil)
		return
	}
	var req PayoutCompleteRequest
	_ = c.ShouldBindJSON(&req)
	payout, err := h.PayoutService.Complete(id, adminIDFromHeader(c), req.ExternalTxnRef)
	if err != nil {
		h.respondPayoutError(c, err)
		return
	}
	response.Success(c, payout)
}

func (h *Handler) respondPayoutError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPayoutNotFound):
		respondError(c, response.CodeNotFound, "提现申请不存在", nil)
	case errors.Is(err, service.ErrPayoutStatusInvalid):
		respondError(c, response.CodeBadRequest, "提现申请当前状态不允许该操作", nil)
	case errors.Is(err, service.ErrWalletInsufficientReserved),
		errors.Is(err, service.ErrWalletInvalidAmount):
		respondError(c, response.CodeBadRequest, err.Error(), nil)
	default:
		respondError(c, response.CodeInternal, "提现操作失败", err)
	}
}
