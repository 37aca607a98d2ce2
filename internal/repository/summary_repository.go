package repository

import (
	"errors"
	"time"

	"github.com/duomai-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SummaryRepository 财务汇总数据访问接口
type SummaryRepository interface {
	Get(scope string, scopeRef uint, period string, periodStart time.Time) (*models.FinancialSummary, error)
	Upsert(summary *models.FinancialSummary) error
	List(filter SummaryListFilter) ([]models.FinancialSummary, int64, error)
}

// GormSummaryRepository GORM 财务汇总仓储实现
type GormSummaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository 创建财务汇总仓储
func NewSummaryRepository(db *gorm.DB) *GormSummaryRepository {
	return &GormSummaryRepository{db: db}
}

// Get 按唯一键获取汇总
func (r *GormSummaryRepository) Get(scope string, scopeRef uint, period string, periodStart time.Time) (*models.FinancialSummary, error) {
	var summary models.FinancialSummary
	if err := r.db.Where("scope = ? AND scope_ref = ? AND period = ? AND period_start = ?",
		scope, scopeRef, period, periodStart).
		First(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

// Upsert 按唯一键写入汇总，已存在则覆盖聚合列
func (r *GormSummaryRepository) Upsert(summary *models.FinancialSummary) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "scope"}, {Name: "scope_ref"}, {Name: "period"}, {Name: "period_start"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"period_end", "gross_sales", "commission_total", "vendor_earnings_total",
			"payout_total", "refund_total", "net_revenue", "order_count", "updated_at",
		}),
	}).Create(summary).Error
}

// List 分页查询汇总
func (r *GormSummaryRepository) List(filter SummaryListFilter) ([]models.FinancialSummary, int64, error) {
	query := r.db.Model(&models.FinancialSummary{})
	if filter.Scope != "" {
		query = query.Where("scope = ?", filter.Scope)
	}
	if filter.ScopeRef != 0 {
		query = query.Where("scope_ref = ?", filter.ScopeRef)
	}
	if filter.Period != "" {
		query = query.Where("period = ?", filter.Period)
	}
	if filter.StartFrom != nil {
		query = query.Where("period_start >= ?", *filter.StartFrom)
	}
	if filter.StartTo != nil {
		query = query.Where("period_start < ?", *filter.StartTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var summaries []models.FinancialSummary
	if err := query.Order("period_start desc, id desc").Find(&summaries).Error; err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}
