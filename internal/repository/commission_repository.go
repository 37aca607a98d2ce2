package repository

import (
	"errors"
	"time"

	"github.com/duomai-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionRepository 订单佣金记录数据访问接口
type CommissionRepository interface {
	WithTx(tx *gorm.DB) *GormCommissionRepository

	GetByID(id uint) (*models.OrderCommission, error)
	GetByOrderItem(orderItemID, vendorID uint) (*models.OrderCommission, error)
	GetByOrderIDForUpdate(orderID uint) ([]models.OrderCommission, error)
	Create(record *models.OrderCommission) error
	Update(record *models.OrderCommission) error
	List(filter OrderCommissionListFilter) ([]models.OrderCommission, int64, error)
	SumVendorSales(vendorID uint, status string, from, to time.Time) (models.Money, error)
}

// GormCommissionRepository GORM 订单佣金仓储实现
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建订单佣金仓储
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) *GormCommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// GetByID 按ID获取佣金记录
func (r *GormCommissionRepository) GetByID(id uint) (*models.OrderCommission, error) {
	if id == 0 {
		return nil, nil
	}
	var record models.OrderCommission
	if err := r.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByOrderItem 按订单行与商家获取佣金记录
func (r *GormCommissionRepository) GetByOrderItem(orderItemID, vendorID uint) (*models.OrderCommission, error) {
	if orderItemID == 0 || vendorID == 0 {
		return nil, nil
	}
	var record models.OrderCommission
	if err := r.db.Where("order_item_id = ? AND vendor_id = ?", orderItemID, vendorID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByOrderIDForUpdate 按订单加锁获取全部佣金记录
func (r *GormCommissionRepository) GetByOrderIDForUpdate(orderID uint) ([]models.OrderCommission, error) {
	if orderID == 0 {
		return []models.OrderCommission{}, nil
	}
	var records []models.OrderCommission
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Create 创建佣金记录
func (r *GormCommissionRepository) Create(record *models.OrderCommission) error {
	return r.db.Create(record).Error
}

// Update 更新佣金记录
func (r *GormCommissionRepository) Update(record *models.OrderCommission) error {
	return r.db.Save(record).Error
}

// List 分页查询佣金记录
func (r *GormCommissionRepository) List(filter OrderCommissionListFilter) ([]models.OrderCommission, int64, error) {
	query := r.db.Model(&models.OrderCommission{})
	if filter.VendorID != 0 {
		query = query.Where("vendor_id = ?", filter.VendorID)
	}
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
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

	var records []models.OrderCommission
	if err := query.Order("id desc").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// SumVendorSales 统计商家在时间窗口内的累计销售额（阶梯规则用）
func (r *GormCommissionRepository) SumVendorSales(vendorID uint, status string, from, to time.Time) (models.Money, error) {
	var result struct {
		Total models.Money
	}
	query := r.db.Model(&models.OrderCommission{}).
		Select("COALESCE(SUM(sale_amount), 0) AS total").
		Where("vendor_id = ?", vendorID).
		Where("created_at >= ? AND created_at < ?", from, to)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Scan(&result).Error; err != nil {
		return models.Money{}, err
	}
	return result.Total, nil
}
