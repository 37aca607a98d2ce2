package service

import (
	"strings"
	"time"

	"github.com/duomai-next/internal/config"
	"github.com/duomai-next/internal/constants"
	"github.com/duomai-next/internal/models"
	"github.com/duomai-next/internal/repository"

	"github.com/shopspring/decimal"
)

// CommissionRuleService 佣金规则服务
//
// 规则解析按 product -> category(含祖先) -> vendor -> platform 顺序，
// 同作用域内 priority 大者优先，priority 相同取 updated_at 较新者。
type CommissionRuleService struct {
	ruleRepo       repository.CommissionRuleRepository
	categoryRepo   repository.CategoryRepository
	commissionRepo repository.CommissionRepository
	cfg            *config.SettlementConfig
}

// CommissionRuleInput 创建/更新佣金规则输入
type CommissionRuleInput struct {
	Scope                string
	ScopeRef             uint
	RuleType             string
	Value                models.Money
	Tiers                models.CommissionTiers
	IncludeSubcategories bool
	IsActive             bool
	StartAt              *time.Time
	EndAt                *time.Time
	Priority             int
	Remark               string
}

// ResolvedRule 规则解析结果
//
// Rule 为 nil 表示四级作用域均未命中，使用平台默认比例兜底。
type ResolvedRule struct {
	Rule        *models.CommissionRule
	Scope       string
	RatePercent models.Money
	IsDefault   bool
}

// CommissionQuote 单笔销售的佣金计算结果
type CommissionQuote struct {
	RuleType         string
	RatePercent      models.Money
	TierLabel        string
	CommissionAmount models.Money
	VendorEarning    models.Money
}

// NewCommissionRuleService 创建佣金规则服务
func NewCommissionRuleService(
	ruleRepo repository.CommissionRuleRepository,
	categoryRepo repository.CategoryRepository,
	commissionRepo repository.CommissionRepository,
	cfg *config.SettlementConfig,
) *CommissionRuleService {
	return &CommissionRuleService{
		ruleRepo:       ruleRepo,
		categoryRepo:   categoryRepo,
		commissionRepo: commissionRepo,
		cfg:            cfg,
	}
}

// CreateRule 创建佣金规则
func (s *CommissionRuleService) CreateRule(input CommissionRuleInput) (*models.CommissionRule, error) {
	rule, err := s.buildRule(input)
	if err != nil {
		return nil, err
	}
	if err := s.ruleRepo.Create(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// UpdateRule 更新佣金规则
//
// 已存在的订单佣金记录保存的是创建时的快照，规则变更不追溯。
func (s *CommissionRuleService) UpdateRule(id uint, input CommissionRuleInput) (*models.CommissionRule, error) {
	existing, err := s.ruleRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrCommissionRuleNotFound
	}
	updated, err := s.buildRule(input)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	if err := s.ruleRepo.Update(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRule 删除佣金规则
func (s *CommissionRuleService) DeleteRule(id uint) error {
	existing, err := s.ruleRepo.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrCommissionRuleNotFound
	}
	return s.ruleRepo.Delete(id)
}

// GetRule 按ID获取佣金规则
func (s *CommissionRuleService) GetRule(id uint) (*models.CommissionRule, error) {
	rule, err := s.ruleRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, ErrCommissionRuleNotFound
	}
	return rule, nil
}

// ListRules 分页查询佣金规则
func (s *CommissionRuleService) ListRules(filter repository.CommissionRuleListFilter) ([]models.CommissionRule, int64, error) {
	return s.ruleRepo.List(filter)
}

// Resolve 解析指定销售上下文命中的佣金规则
func (s *CommissionRuleService) Resolve(productID, categoryID, vendorID uint, at time.Time) (*ResolvedRule, error) {
	if productID != 0 {
		rule, err := s.pickCandidate(constants.CommissionScopeProduct, []uint{productID}, at)
		if err != nil {
			return nil, err
		}
		if rule != nil {
			return s.resolved(rule), nil
		}
	}

	if categoryID != 0 {
		rule, err := s.resolveCategory(categoryID, at)
		if err != nil {
			return nil, err
		}
		if rule != nil {
			return s.resolved(rule), nil
		}
	}

	if vendorID != 0 {
		rule, err := s.pickCandidate(constants.CommissionScopeVendor, []uint{vendorID}, at)
		if err != nil {
			return nil, err
		}
		if rule != nil {
			return s.resolved(rule), nil
		}
	}

	rule, err := s.pickCandidate(constants.CommissionScopePlatform, nil, at)
	if err != nil {
		return nil, err
	}
	if rule != nil {
		return s.resolved(rule), nil
	}

	return &ResolvedRule{
		Scope:       constants.CommissionScopePlatform,
		RatePercent: models.NewMoneyFromDecimal(s.defaultPercent()),
		IsDefault:   true,
	}, nil
}

// Quote 按解析结果计算单笔销售的佣金拆分
//
// vendorEarning 恒为 saleAmount 减去佣金的差额，两侧之和不丢分。
func (s *CommissionRuleService) Quote(resolved *ResolvedRule, vendorID uint, saleAmount models.Money, at time.Time) (*CommissionQuote, error) {
	amount := saleAmount.Decimal.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrOrderItemInvalid
	}
	if resolved == nil || resolved.Rule == nil {
		percent := s.defaultPercent()
		commission := amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
		return &CommissionQuote{
			RuleType:         constants.CommissionRuleTypePercentage,
			RatePercent:      models.NewMoneyFromDecimal(percent),
			CommissionAmount: models.NewMoneyFromDecimal(commission),
			VendorEarning:    models.NewMoneyFromDecimal(amount.Sub(commission)),
		}, nil
	}

	rule := resolved.Rule
	switch rule.RuleType {
	case constants.CommissionRuleTypeFixed:
		// 固定佣金不允许超过销售额本身
		commission := rule.Value.Decimal.Round(2)
		if commission.GreaterThan(amount) {
			commission = amount
		}
		return &CommissionQuote{
			RuleType:         rule.RuleType,
			CommissionAmount: models.NewMoneyFromDecimal(commission),
			VendorEarning:    models.NewMoneyFromDecimal(amount.Sub(commission)),
		}, nil

	case constants.CommissionRuleTypePercentage:
		percent := rule.Value.Decimal
		commission := amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
		return &CommissionQuote{
			RuleType:         rule.RuleType,
			RatePercent:      models.NewMoneyFromDecimal(percent),
			CommissionAmount: models.NewMoneyFromDecimal(commission),
			VendorEarning:    models.NewMoneyFromDecimal(amount.Sub(commission)),
		}, nil

	case constants.CommissionRuleTypeTiered:
		tier, err := s.matchTier(rule.Tiers, vendorID, amount, at)
		if err != nil {
			return nil, err
		}
		percent := tier.Rate.Decimal
		commission := amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
		return &CommissionQuote{
			RuleType:         rule.RuleType,
			RatePercent:      models.NewMoneyFromDecimal(percent),
			TierLabel:        tier.Label,
			CommissionAmount: models.NewMoneyFromDecimal(commission),
			VendorEarning:    models.NewMoneyFromDecimal(amount.Sub(commission)),
		}, nil

	default:
		return nil, ErrCommissionRuleInvalid
	}
}

// resolveCategory 沿类目祖先链解析类目规则
//
// 祖先类目的规则仅在 include_subcategories 打开时命中，距离近者优先。
func (s *CommissionRuleService) resolveCategory(categoryID uint, at time.Time) (*models.CommissionRule, error) {
	chain, err := s.categoryRepo.AncestorChain(categoryID)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		chain = []uint{categoryID}
	}
	candidates, err := s.ruleRepo.ListCandidates(constants.CommissionScopeCategory, chain, at)
	if err != nil {
		return nil, err
	}
	byRef := make(map[uint][]models.CommissionRule, len(candidates))
	for _, rule := range candidates {
		if rule.ScopeRef == nil {
			continue
		}
		byRef[*rule.ScopeRef] = append(byRef[*rule.ScopeRef], rule)
	}
	for depth, ref := range chain {
		for i := range byRef[ref] {
			rule := byRef[ref][i]
			if !rule.ActiveAt(at) {
				continue
			}
			if depth > 0 && !rule.IncludeSubcategories {
				continue
			}
			return &rule, nil
		}
	}
	return nil, nil
}

// pickCandidate 在单一作用域内取排序后第一条有效规则
func (s *CommissionRuleService) pickCandidate(scope string, refs []uint, at time.Time) (*models.CommissionRule, error) {
	candidates, err := s.ruleRepo.ListCandidates(scope, refs, at)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if candidates[i].ActiveAt(at) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// matchTier 按商家当月累计销售额匹配阶梯档位
//
// 累计额 = 本期已记录销售额 + 本笔销售额。
// 累计额低于最低档下限时取第一档兜底，保证始终有档位命中。
func (s *CommissionRuleService) matchTier(tiers models.CommissionTiers, vendorID uint, saleAmount decimal.Decimal, at time.Time) (*models.CommissionTier, error) {
	if len(tiers) == 0 {
		return nil, ErrCommissionTiersInvalid
	}
	from := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	to := from.AddDate(0, 1, 0)
	cumulative, err := s.commissionRepo.SumVendorSales(vendorID, "", from, to)
	if err != nil {
		return nil, err
	}
	total := cumulative.Decimal.Add(saleAmount)
	for i := len(tiers) - 1; i >= 0; i-- {
		tier := tiers[i]
		if total.LessThan(tier.MinAmount.Decimal) {
			continue
		}
		max := tier.MaxAmount.Decimal
		if max.IsPositive() && !total.LessThan(max) {
			continue
		}
		return &tiers[i], nil
	}
	return &tiers[0], nil
}

func (s *CommissionRuleService) resolved(rule *models.CommissionRule) *ResolvedRule {
	result := &ResolvedRule{Rule: rule, Scope: rule.Scope}
	if rule.RuleType == constants.CommissionRuleTypePercentage {
		result.RatePercent = rule.Value
	}
	return result
}

func (s *CommissionRuleService) defaultPercent() decimal.Decimal {
	if s.cfg != nil && s.cfg.DefaultCommissionPercent > 0 {
		return decimal.NewFromFloat(s.cfg.DefaultCommissionPercent).Round(2)
	}
	return decimal.NewFromInt(10)
}

func (s *CommissionRuleService) buildRule(input CommissionRuleInput) (*models.CommissionRule, error) {
	scope := strings.TrimSpace(strings.ToLower(input.Scope))
	switch scope {
	case constants.CommissionScopeProduct, constants.CommissionScopeCategory, constants.CommissionScopeVendor:
		if input.ScopeRef == 0 {
			return nil, ErrCommissionRuleScopeInvalid
		}
	case constants.CommissionScopePlatform:
		if input.ScopeRef != 0 {
			return nil, ErrCommissionRuleScopeInvalid
		}
	default:
		return nil, ErrCommissionRuleScopeInvalid
	}

	ruleType := strings.TrimSpace(strings.ToLower(input.RuleType))
	switch ruleType {
	case constants.CommissionRuleTypeFixed:
		if input.Value.Decimal.IsNegative() {
			return nil, ErrCommissionRuleInvalid
		}
	case constants.CommissionRuleTypePercentage:
		percent := input.Value.Decimal
		if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
			return nil, ErrCommissionRuleInvalid
		}
	case constants.CommissionRuleTypeTiered:
		if err := validateTiers(input.Tiers); err != nil {
			return nil, err
		}
	default:
		return nil, ErrCommissionRuleInvalid
	}

	if input.StartAt != nil && input.EndAt != nil && !input.StartAt.Before(*input.EndAt) {
		return nil, ErrCommissionRuleInvalid
	}

	now := time.Now()
	rule := &models.CommissionRule{
		Scope:                scope,
		RuleType:             ruleType,
		Value:                models.NewMoneyFromDecimal(input.Value.Decimal.Round(2)),
		Tiers:                input.Tiers,
		IncludeSubcategories: input.IncludeSubcategories,
		IsActive:             input.IsActive,
		StartAt:              input.StartAt,
		EndAt:                input.EndAt,
		Priority:             input.Priority,
		Remark:               strings.TrimSpace(input.Remark),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if input.ScopeRef != 0 {
		ref := input.ScopeRef
		rule.ScopeRef = &ref
	}
	return rule, nil
}

// validateTiers 校验阶梯档位：按下限升序、比例合法、区间不重叠
func validateTiers(tiers models.CommissionTiers) error {
	if len(tiers) == 0 {
		return ErrCommissionTiersInvalid
	}
	hundred := decimal.NewFromInt(100)
	for i, tier := range tiers {
		rate := tier.Rate.Decimal
		if rate.IsNegative() || rate.GreaterThan(hundred) {
			return ErrCommissionTiersInvalid
		}
		max := tier.MaxAmount.Decimal
		if max.IsPositive() && !tier.MinAmount.Decimal.LessThan(max) {
			return ErrCommissionTiersInvalid
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if tier.MinAmount.Decimal.LessThan(prev.MinAmount.Decimal) {
			return ErrCommissionTiersInvalid
		}
		prevMax := prev.MaxAmount.Decimal
		if prevMax.IsPositive() && tier.MinAmount.Decimal.LessThan(prevMax) {
			return ErrCommissionTiersInvalid
		}
	}
	return nil
}
