package admin

import (
	"errors"
	"fmt"
	"strings"
	"time"

	handlershared "github.com/duomai-next/internal/http/handlers/shared"
	"github.com/duomai-next/internal/http/response"
	"github.com/duomai-next/internal/models"
	"github.com/duomai-next/internal/repository"
	"github.com/duomai-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// WalletAdjustRequest 管理员余额调整请求
type WalletAdjustRequest struct {
	Delta     string `json:"delta" binding:"required"`
	Reference string `json:"reference"`
	Remark    string `json:"remark" binding:"required"`
}

// GetVendorWallet 查询商家钱包
func (h *Handler) GetVendorWallet(c *gin.Context) {
	vendorID, ok := handlershared.ParsePathUint(c, "vendor_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "商家ID不合法", nil)
		return
	}
	wallet, err := h.WalletService.GetWallet(vendorID)
	if err != nil {
		h.respondWalletError(c, err)
		return
	}
	response.Success(c, wallet)
}

// ListWalletTransactions 分页查询钱包流水
func (h *Handler) ListWalletTransactions(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.WalletTransactionListFilter{
		Page:        page,
		PageSize:    pageSize,
		VendorID:    handlershared.ParseQueryUint(c, "vendor_id"),
		TxnType:     strings.TrimSpace(c.Query("txn_type")),
		Category:    strings.TrimSpace(c.Query("category")),
		OrderID:     handlershared.ParseQueryUint(c, "order_id"),
		CreatedFrom: handlershared.ParseQueryTime(c, "created_from"),
		CreatedTo:   handlershared.ParseQueryTime(c, "created_to"),
	}
	transactions, total, err := h.WalletService.ListTransactions(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "钱包流水查询失败", err)
		return
	}
	response.SuccessWithPage(c, transactions, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// AdjustVendorWallet 管理员调整商家可用余额
func (h *Handler) AdjustVendorWallet(c *gin.Context) {
	vendorID, ok := handlershared.ParsePathUint(c, "vendor_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "商家ID不合法", nil)
		return
	}
	var req WalletAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	delta, err := decimal.NewFromString(strings.TrimSpace(req.Delta))
	if err != nil {
		respondError(c, response.CodeBadRequest, "调整金额格式不正确", err)
		return
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = fmt.Sprintf("adjust:%d:%d", vendorID, time.Now().UnixNano())
	}
	txn, err := h.WalletService.AdminAdjust(service.WalletAdjustInput{
		VendorID:  vendorID,
		Delta:     models.Money{Decimal: delta},
		Reference: reference,
		Remark:    strings.TrimSpace(req.Remark),
	})
	if err != nil {
		h.respondWalletError(c, err)
		return
	}
	response.Success(c, txn)
}

// VerifyVendorLedger 回放流水校验商家钱包一致性
func (h *Handler) VerifyVendorLedger(c *gin.Context) {
	vendorID, ok := handlershared.ParsePathUint(c, "vendor_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "商家ID不合法", nil)
		return
	}
	if err := h.WalletService.VerifyLedger(vendorID); err != nil {
		var consistencyErr *service.ConsistencyError
		if errors.As(err, &consistencyErr) {
			respondError(c, response.CodeConflict, consistencyErr.Error(), nil)
			return
		}
		h.respondWalletError(c, err)
		return
	}
	response.Success(c, gin.H{"vendor_id": vendorID, "consistent": true})
}

func (h *Handler) respondWalletError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWalletNotFound):
		respondError(c, response.CodeNotFound, "商家钱包不存在", nil)
	case errors.Is(err, service.ErrWalletInvalidAmount),
		errors.Is(err, service.ErrWalletInsufficientAvailable),
		errors.Is(err, service.ErrWalletReferenceRequired):
		respondError(c, response.CodeBadRequest, err.Error(), nil)
	default:
		respondError(c, response.CodeInternal, "钱包操作失败", err)
	}
}
