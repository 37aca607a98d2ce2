package repository

import (
	"errors"

	"github.com/duomai-next/internal/models"

	"gorm.io/gorm"
)

// VendorRepository 商家提现设置数据访问接口
type VendorRepository interface {
	WithTx(tx *gorm.DB) *GormVendorRepository

	GetProfile(vendorID uint) (*models.VendorPayoutProfile, error)
	CreateProfile(profile *models.VendorPayoutProfile) error
	UpdateProfile(profile *models.VendorPayoutProfile) error
	ListAutoWithdrawEnabled() ([]models.VendorPayoutProfile, error)
}

// GormVendorRepository GORM 商家设置仓储实现
type GormVendorRepository struct {
	db *gorm.DB
}

// NewVendorRepository 创建商家设置仓储
func NewVendorRepository(db *gorm.DB) *GormVendorRepository {
	return &GormVendorRepository{db: db}
}

// WithTx 绑定事务
func (r *GormVendorRepository) WithTx(tx *gorm.DB) *GormVendorRepository {
	if tx == nil {
		return r
	}
	return &GormVendorRepository{db: tx}
}

// GetProfile 按商家ID获取提现设置
func (r *GormVendorRepository) GetProfile(vendorID uint) (*models.VendorPayoutProfile, error) {
	if vendorID == 0 {
		return nil, nil
	}
	var profile models.VendorPayoutProfile
	if err := r.db.Where("vendor_id = ?", vendorID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// CreateProfile 创建提现设置
func (r *GormVendorRepository) CreateProfile(profile *models.VendorPayoutProfile) error {
	return r.db.Create(profile).Error
}

// UpdateProfile 更新提现设置
func (r *GormVendorRepository) UpdateProfile(profile *models.VendorPayoutProfile) error {
	return r.db.Save(profile).Error
}

// ListAutoWithdrawEnabled 列出开启自动提现的商家设置
func (r *GormVendorRepository) ListAutoWithdrawEnabled() ([]models.VendorPayoutProfile, error) {
	var profiles []models.VendorPayoutProfile
	if err := r.db.Where("auto_withdraw_enabled = ?", true).
		Order("vendor_id asc").
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}
