package admin

import (
	"errors"
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

// CommissionRuleRequest 创建/更新佣金规则请求
type CommissionRuleRequest struct {
	Scope                string                 `json:"scope" binding:"required"`
	ScopeRef             uint                   `json:"scope_ref"`
	RuleType             string                 `json:"rule_type" binding:"required"`
	Value                string                 `json:"value"`
	Tiers                models.CommissionTiers `json:"tiers"`
	IncludeSubcategories *bool                  `json:"include_subcategories"`
	IsActive             *bool                  `json:"is_active"`
	StartAt              *time.Time             `json:"start_at"`
	EndAt                *time.Time             `json:"end_at"`
	Priority             int                    `json:"priority"`
	Remark               string                 `json:"remark"`
}

// ResolveRuleRequest 规则解析试算请求
type ResolveRuleRequest struct {
	ProductID  uint   `json:"product_id"`
	CategoryID uint   `json:"category_id"`
	VendorID   uint   `json:"vendor_id"`
	SaleAmount string `json:"sale_amount" binding:"required"`
}

// ListCommissionRules 分页查询佣金规则
func (h *Handler) ListCommissionRules(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.CommissionRuleListFilter{
		Page:       page,
		PageSize:   pageSize,
		Scope:      strings.TrimSpace(c.Query("scope")),
		ScopeRef:   handlershared.ParseQueryUint(c, "scope_ref"),
		RuleType:   strings.TrimSpace(c.Query("rule_type")),
		OnlyActive: c.Query("only_active") == "true",
	}
	rules, total, err := h.RuleService.ListRules(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "佣金规则查询失败", err)
		return
	}
	response.SuccessWithPage(c, rules, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetCommissionRule 查询单条佣金规则
func (h *Handler) GetCommissionRule(c *gin.Context) {
	id, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "规则ID不合法", nil)
		return
	}
	rule, err := h.RuleService.GetRule(id)
	if err != nil {
		if errors.Is(err, service.ErrCommissionRuleNotFound) {
			respondError(c, response.CodeNotFound, "佣金规则不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "佣金规则查询失败", err)
		return
	}
	response.Success(c, rule)
}

// CreateCommissionRule 创建佣金规则
func (h *Handler) CreateCommissionRule(c *gin.Context) {
	input, ok := h.bindRuleInput(c)
	if !ok {
		return
	}
	rule, err := h.RuleService.CreateRule(*input)
	if err != nil {
		h.respondRuleError(c, err)
		return
	}
	response.Success(c, rule)
}

// UpdateCommissionRule 更新佣金规则
func (h *Handler) UpdateCommissionRule(c *gin.Context) {
	id, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "规则ID不合法", nil)
		return
	}
	input, ok := h.bindRuleInput(c)
	if !ok {
		return
	}
	rule, err := h.RuleService.UpdateRule(id, *input)
	if err != nil {
		h.respondRuleError(c, err)
		return
	}
	response.Success(c, rule)
}

// DeleteCommissionRule 删除佣金规则
func (h *Handler) DeleteCommissionRule(c *gin.Context) {
	id, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "规则ID不合法", nil)
		return
	}
	if err := h.RuleService.DeleteRule(id); err != nil {
		h.respondRuleError(c, err)
		return
	}
	response.SuccessWithMsg(c, "规则已删除", nil)
}

// ResolveCommissionRule 规则解析与佣金试算
func (h *Handler) ResolveCommissionRule(c *gin.Context) {
	var req ResolveRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.SaleAmount))
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		respondError(c, response.CodeBadRequest, "销售金额不合法", err)
		return
	}
	now := time.Now()
	resolved, err := h.RuleService.Resolve(req.ProductID, req.CategoryID, req.VendorID, now)
	if err != nil {
		respondError(c, response.CodeInternal, "规则解析失败", err)
		return
	}
	quote, err := h.RuleService.Quote(resolved, req.VendorID, models.NewMoneyFromDecimal(amount), now)
	if err != nil {
		h.respondRuleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"scope":      resolved.Scope,
		"rule":       resolved.Rule,
		"is_default": resolved.IsDefault,
		"quote":      quote,
	})
}

func (h *Handler) bindRuleInput(c *gin.Context) (*service.CommissionRuleInput, bool) {
	var req CommissionRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return nil, false
	}
	value := decimal.Zero
	if raw := strings.TrimSpace(req.Value); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "规则数值不合法", err)
			return nil, false
		}
		value = parsed
	}
	includeSub := true
	if req.IncludeSubcategories != nil {
		includeSub = *req.IncludeSubcategories
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	return &service.CommissionRuleInput{
		Scope:                req.Scope,
		ScopeRef:             req.ScopeRef,
		RuleType:             req.RuleType,
		Value:                models.NewMoneyFromDecimal(value),
		Tiers:                req.Tiers,
		IncludeSubcategories: includeSub,
		IsActive:             isActive,
		StartAt:              req.StartAt,
		EndAt:                req.EndAt,
		Priority:             req.Priority,
		Remark:               req.Remark,
	}, true
}

func (h *Handler) respondRuleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCommissionRuleNotFound):
		respondError(c, response.CodeNotFound, "佣金规则不存在", nil)
	case errors.Is(err, service.ErrCommissionRuleScopeInvalid),
		errors.Is(err, service.ErrCommissionRuleInvalid),
		errors.Is(err, service.ErrCommissionTiersInvalid),
		errors.Is(err, service.ErrOrderItemInvalid):
		respondError(c, response.CodeBadRequest, err.Error(), nil)
	default:
		respondError(c, response.CodeInternal, "佣金规则操作失败", err)
	}
}
