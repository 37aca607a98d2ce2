package hooks

import (
	"errors"
	"strings"

	"github.com/duomai-next/internal/http/response"
	"github.com/duomai-next/internal/models"
	"github.com/duomai-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// OrderItemPayload 订单明细事件负载
type OrderItemPayload struct {
	OrderID     uint   `json:"order_id" binding:"required"`
	OrderItemID uint   `json:"order_item_id" binding:"required"`
	VendorID    uint   `json:"vendor_id" binding:"required"`
	ProductID   uint   `json:"product_id" binding:"required"`
	CategoryID  uint   `json:"category_id"`
	Quantity    int    `json:"quantity" binding:"required"`
	UnitPrice   string `json:"unit_price" binding:"required"`
}

// OrderSaleRequest 订单成交事件
type OrderSaleRequest struct {
	Items []OrderItemPayload `json:"items" binding:"required,min=1,dive"`
}

// OrderEventRequest 订单级事件（履约完成）
type OrderEventRequest struct {
	OrderID uint   `json:"order_id" binding:"required"`
	Remark  string `json:"remark"`
}

// OrderRefundRequest 订单退款事件
//
// refund_amount 缺省为整单全额回冲，给定时只扣减该金额。
type OrderRefundRequest struct {
	OrderID      uint          `json:"order_id" binding:"required"`
	RefundAmount *models.Money `json:"refund_amount"`
	Remark       string        `json:"remark"`
}

// OrderPaid 订单支付成交：按明细计算并落地分佣记录
func (h *Handler) OrderPaid(c *gin.Context) {
	var req OrderSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	items := make([]service.OrderItemInput, 0, len(req.Items))
	for _, payload := range req.Items {
		price, err := decimal.NewFromString(strings.TrimSpace(payload.UnitPrice))
		if err != nil {
			respondError(c, response.CodeBadRequest, "单价格式不正确", err)
			return
		}
		items = append(items, service.OrderItemInput{
			OrderID:     payload.OrderID,
			OrderItemID: payload.OrderItemID,
			VendorID:    payload.VendorID,
			ProductID:   payload.ProductID,
			CategoryID:  payload.CategoryID,
			Quantity:    payload.Quantity,
			UnitPrice:   models.Money{Decimal: price},
		})
	}
	records, err := h.CommissionService.RecordSale(items)
	if err != nil {
		h.respondCommissionError(c, err)
		return
	}
	response.Success(c, records)
}

// OrderFulfilled 订单履约完成：分佣入账到冻结余额
func (h *Handler) OrderFulfilled(c *gin.Context) {
	var req OrderEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	records, err := h.CommissionService.CreditOnFulfillment(req.OrderID)
	if err != nil {
		h.respondCommissionError(c, err)
		return
	}
	response.Success(c, records)
}

// OrderRefunded 订单退款：回冲分佣并扣减钱包
func (h *Handler) OrderRefunded(c *gin.Context) {
	var req OrderRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	records, err := h.CommissionService.HandleRefund(req.OrderID, req.RefundAmount, strings.TrimSpace(req.Remark))
	if err != nil {
		h.respondCommissionError(c, err)
		return
	}
	response.Success(c, records)
}

func (h *Handler) respondCommissionError(c *gin.Context, err error) {
	var consistencyErr *service.ConsistencyError
	if errors.As(err, &consistencyErr) {
		respondError(c, response.CodeConflict, consistencyErr.Error(), nil)
		return
	}
	switch {
	case errors.Is(err, service.ErrOrderCommissionNotFound):
		respondError(c, response.CodeNotFound, "订单分佣记录不存在", nil)
	case errors.Is(err, service.ErrOrderItemInvalid),
		errors.Is(err, service.ErrOrderCommissionStatusInvalid),
		errors.Is(err, service.ErrWalletInvalidAmount):
		respondError(c, response.CodeBadRequest, err.Error(), nil)
	default:
		respondError(c, response.CodeInternal, "订单事件处理失败", err)
	}
}
