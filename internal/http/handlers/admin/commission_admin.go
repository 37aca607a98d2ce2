package admin

import (
	"strings"

	handlershared "github.com/duomai-next/internal/http/handlers/shared"
	"github.com/duomai-next/internal/http/response"
	"github.com/duomai-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListOrderCommissions 分页查询订单分佣记录
func (h *Handler) ListOrderCommissions(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.OrderCommissionListFilter{
		Page:        page,
		PageSize:    pageSize,
		VendorID:    handlershared.ParseQueryUint(c, "vendor_id"),
		OrderID:     handlershared.ParseQueryUint(c, "order_id"),
		Status:      strings.TrimSpace(c.Query("status")),
		CreatedFrom: handlershared.ParseQueryTime(c, "created_from"),
		CreatedTo:   handlershared.ParseQueryTime(c, "created_to"),
	}
	records, total, err := h.CommissionService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "分佣记录查询失败", err)
		return
	}
	response.SuccessWithPage(c, records, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}
