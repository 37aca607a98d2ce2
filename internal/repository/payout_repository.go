package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/duomai-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PayoutRepository 提现申请数据访问接口
type PayoutRepository interface {
	WithTx(tx *gorm.DB) *GormPayoutRepository

	GetByID(id uint) (*models.PayoutRequest, error)
	GetByIDForUpdate(id uint) (*models.PayoutRequest, error)
	GetByPayoutNo(payoutNo string) (*models.PayoutRequest, error)
	Create(request *models.PayoutRequest) error
	Update(request *models.PayoutRequest) error
	List(filter PayoutListFilter) ([]models.PayoutRequest, int64, error)
	GetLatestByVendor(vendorID uint) (*models.PayoutRequest, error)
	CountActiveByVendor(vendorID uint) (int64, error)
	SumCompletedAmount(vendorID uint, from, to time.Time) (models.Money, error)
}

// GormPayoutRepository GORM 提现申请仓储实现
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建提现申请仓储
func NewPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPayoutRepository) WithTx(tx *gorm.DB) *GormPayoutRepository {
	if tx == nil {
		return r
	}
	return &GormPayoutRepository{db: tx}
}

// GetByID 按ID获取提现申请
func (r *GormPayoutRepository) GetByID(id uint) (*models.PayoutRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var request models.PayoutRequest
	if err := r.db.First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// GetByIDForUpdate 按ID加锁获取提现申请
func (r *GormPayoutRepository) GetByIDForUpdate(id uint) (*models.PayoutRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var request models.PayoutRequest
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// GetByPayoutNo 按提现单号获取提现申请
func (r *GormPayoutRepository) GetByPayoutNo(payoutNo string) (*models.PayoutRequest, error) {
	payoutNo = strings.TrimSpace(payoutNo)
	if payoutNo == "" {
		return nil, nil
	}
	var request models.PayoutRequest
	if err := r.db.Where("payout_no = ?", payoutNo).First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// Create 创建提现申请
func (r *GormPayoutRepository) Create(request *models.PayoutRequest) error {
	return r.db.Create(request).Error
}

// Update 更新提现申请
func (r *GormPayoutRepository) Update(request *models.PayoutRequest) error {
	return r.db.Save(request).Error
}

// List 分页查询提现申请
func (r *GormPayoutRepository) List(filter PayoutListFilter) ([]models.PayoutRequest, int64, error) {
	query := r.db.Model(&models.PayoutRequest{})
	if filter.VendorID != 0 {
		query = query.Where("vendor_id = ?", filter.VendorID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.MethodType != "" {
		query = query.Where("method_type = ?", filter.MethodType)
	}
	if no := strings.TrimSpace(filter.PayoutNo); no != "" {
		query = query.Where("payout_no = ?", no)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var requests []models.PayoutRequest
	if err := query.Order("id desc").Find(&requests).Error; err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// GetLatestByVendor 获取商家最近一笔提现申请（频控校验用）
//
// 已取消和被拒绝的申请不计入频控窗口。
func (r *GormPayoutRepository) GetLatestByVendor(vendorID uint) (*models.PayoutRequest, error) {
	if vendorID == 0 {
		return nil, nil
	}
	var request models.PayoutRequest
	if err := r.db.Where("vendor_id = ?", vendorID).
		Where("status NOT IN ?", []string{"cancelled", "rejected"}).
		Order("created_at desc, id desc").
		First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// CountActiveByVendor 统计商家未进入终态的提现申请数量
func (r *GormPayoutRepository) CountActiveByVendor(vendorID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.PayoutRequest{}).
		Where("vendor_id = ?", vendorID).
		Where("status NOT IN ?", []string{"completed", "rejected", "cancelled"}).
		Count(&count).Error
	return count, err
}

// SumCompletedAmount 统计已完成提现金额（汇总聚合用）
func (r *GormPayoutRepository) SumCompletedAmount(vendorID uint, from, to time.Time) (models.Money, error) {
	var result struct {
		Total models.Money
	}
	query := r.db.Model(&models.PayoutRequest{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", "completed").
		Where("processed_at >= ? AND processed_at < ?", from, to)
	if vendorID != 0 {
		query = query.Where("vendor_id = ?", vendorID)
	}
	if err := query.Scan(&result).Error; err != nil {
		return models.Money{}, err
	}
	return result.Total, nil
}
