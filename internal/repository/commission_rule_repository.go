package repository

import (
	"errors"
	"time"

	"github.com/duomai-next/internal/models"

	"gorm.io/gorm"
)

// CommissionRuleRepository 佣金规则数据访问接口
type CommissionRuleRepository interface {
	WithTx(tx *gorm.DB) *GormCommissionRuleRepository

	GetByID(id uint) (*models.CommissionRule, error)
	Create(rule *models.CommissionRule) error
	Update(rule *models.CommissionRule) error
	Delete(id uint) error
	List(filter CommissionRuleListFilter) ([]models.CommissionRule, int64, error)
	ListCandidates(scope string, scopeRefs []uint, at time.Time) ([]models.CommissionRule, error)
}

// GormCommissionRuleRepository GORM 佣金规则仓储实现
type GormCommissionRuleRepository struct {
	db *gorm.DB
}

// NewCommissionRuleRepository 创建佣金规则仓储
func NewCommissionRuleRepository(db *gorm.DB) *GormCommissionRuleRepository {
	return &GormCommissionRuleRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRuleRepository) WithTx(tx *gorm.DB) *GormCommissionRuleRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRuleRepository{db: tx}
}

// GetByID 按ID获取规则
func (r *GormCommissionRuleRepository) GetByID(id uint) (*models.CommissionRule, error) {
	if id == 0 {
		return nil, nil
	}
	var rule models.CommissionRule
	if err := r.db.First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// Create 创建规则
func (r *GormCommissionRuleRepository) Create(rule *models.CommissionRule) error {
	return r.db.Create(rule).Error
}

// Update 更新规则
func (r *GormCommissionRuleRepository) Update(rule *models.CommissionRule) error {
	return r.db.Save(rule).Error
}

// Delete 删除规则
func (r *GormCommissionRuleRepository) Delete(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Delete(&models.CommissionRule{}, id).Error
}

// List 分页查询规则
func (r *GormCommissionRuleRepository) List(filter CommissionRuleListFilter) ([]models.CommissionRule, int64, error) {
	query := r.db.Model(&models.CommissionRule{})
	if filter.Scope != "" {
		query = query.Where("scope = ?", filter.Scope)
	}
	if filter.ScopeRef != 0 {
		query = query.Where("scope_ref = ?", filter.ScopeRef)
	}
	if filter.RuleType != "" {
		query = query.Where("rule_type = ?", filter.RuleType)
	}
	if filter.OnlyActive {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var rules []models.CommissionRule
	if err := query.Order("id desc").Find(&rules).Error; err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

// ListCandidates 按作用域列出指定时刻可能生效的规则
//
// scopeRefs 为空时查询 scope_ref IS NULL 的规则（platform 作用域）。
// 时间窗口过滤在数据库侧做粗筛，最终生效判断由调用方 ActiveAt 完成。
func (r *GormCommissionRuleRepository) ListCandidates(scope string, scopeRefs []uint, at time.Time) ([]models.CommissionRule, error) {
	query := r.db.Model(&models.CommissionRule{}).
		Where("scope = ?", scope).
		Where("is_active = ?", true).
		Where("start_at IS NULL OR start_at <= ?", at).
		Where("end_at IS NULL OR end_at > ?", at)
	if len(scopeRefs) > 0 {
		query = query.Where("scope_ref IN ?", scopeRefs)
	} else {
		query = query.Where("scope_ref IS NULL")
	}
	var rules []models.CommissionRule
	if err := query.Order("priority desc, updated_at desc, id desc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}
