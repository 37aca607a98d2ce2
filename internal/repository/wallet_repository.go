package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/duomai-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepository 商家钱包数据访问接口
type WalletRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormWalletRepository

	GetByVendorID(vendorID uint) (*models.VendorWallet, error)
	GetByVendorIDForUpdate(vendorID uint) (*models.VendorWallet, error)
	GetByVendorIDs(vendorIDs []uint) ([]models.VendorWallet, error)
	Create(wallet *models.VendorWallet) error
	Update(wallet *models.VendorWallet) error

	CreateTransaction(txn *models.WalletTransaction) error
	GetTransactionByReference(reference string) (*models.WalletTransaction, error)
	GetTransactionByIDForUpdate(id uint) (*models.WalletTransaction, error)
	ListTransactions(filter WalletTransactionListFilter) ([]models.WalletTransaction, int64, error)
	ListTransactionsByVendorAsc(vendorID uint) ([]models.WalletTransaction, error)
	ListDueHolds(now time.Time, limit int) ([]models.WalletTransaction, error)
	MarkHoldReleased(id uint, releasedAt time.Time) (int64, error)
}

// GormWalletRepository GORM 商家钱包仓储实现
type GormWalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

// Transaction 开启事务
func (r *GormWalletRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// WithTx 绑定事务
func (r *GormWalletRepository) WithTx(tx *gorm.DB) *GormWalletRepository {
	if tx == nil {
		return r
	}
	return &GormWalletRepository{db: tx}
}

// GetByVendorID 按商家ID获取钱包
func (r *GormWalletRepository) GetByVendorID(vendorID uint) (*models.VendorWallet, error) {
	if vendorID == 0 {
		return nil, nil
	}
	var wallet models.VendorWallet
	if err := r.db.Where("vendor_id = ?", vendorID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// GetByVendorIDForUpdate 按商家ID加锁获取钱包
func (r *GormWalletRepository) GetByVendorIDForUpdate(vendorID uint) (*models.VendorWallet, error) {
	if vendorID == 0 {
		return nil, nil
	}
	var wallet models.VendorWallet
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("vendor_id = ?", vendorID).
		First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// GetByVendorIDs 批量获取钱包
func (r *GormWalletRepository) GetByVendorIDs(vendorIDs []uint) ([]models.VendorWallet, error) {
	if len(vendorIDs) == 0 {
		return []models.VendorWallet{}, nil
	}
	var wallets []models.VendorWallet
	if err := r.db.Where("vendor_id IN ?", vendorIDs).Find(&wallets).Error; err != nil {
		return nil, err
	}
	return wallets, nil
}

// Create 创建钱包
func (r *GormWalletRepository) Create(wallet *models.VendorWallet) error {
	return r.db.Create(wallet).Error
}

// Update 更新钱包
func (r *GormWalletRepository) Update(wallet *models.VendorWallet) error {
	return r.db.Save(wallet).Error
}

// CreateTransaction 追加钱包流水
func (r *GormWalletRepository) CreateTransaction(txn *models.WalletTransaction) error {
	return r.db.Create(txn).Error
}

// GetTransactionByReference 按幂等参考号获取流水
func (r *GormWalletRepository) GetTransactionByReference(reference string) (*models.WalletTransaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	var txn models.WalletTransaction
	if err := r.db.Where("reference = ?", reference).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// GetTransactionByIDForUpdate 按ID加锁获取流水
func (r *GormWalletRepository) GetTransactionByIDForUpdate(id uint) (*models.WalletTransaction, error) {
	if id == 0 {
		return nil, nil
	}
	var txn models.WalletTransaction
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&txn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// ListTransactions 分页查询钱包流水（按时间倒序）
func (r *GormWalletRepository) ListTransactions(filter WalletTransactionListFilter) ([]models.WalletTransaction, int64, error) {
	query := r.db.Model(&models.WalletTransaction{})
	if filter.VendorID != 0 {
		query = query.Where("vendor_id = ?", filter.VendorID)
	}
	if filter.TxnType != "" {
		query = query.Where("txn_type = ?", filter.TxnType)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
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

	var txns []models.WalletTransaction
	if err := query.Order("id desc").Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListTransactionsByVendorAsc 按写入顺序列出商家全部流水（对账回放用）
func (r *GormWalletRepository) ListTransactionsByVendorAsc(vendorID uint) ([]models.WalletTransaction, error) {
	if vendorID == 0 {
		return []models.WalletTransaction{}, nil
	}
	var txns []models.WalletTransaction
	if err := r.db.Where("vendor_id = ?", vendorID).Order("id asc").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// ListDueHolds 列出到期且尚未释放的 hold 流水
func (r *GormWalletRepository) ListDueHolds(now time.Time, limit int) ([]models.WalletTransaction, error) {
	query := r.db.Where("txn_type = ?", "hold").
		Where("release_date IS NOT NULL AND release_date <= ?", now).
		Where("released_at IS NULL").
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var txns []models.WalletTransaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// MarkHoldReleased 以 released_at 空值作为占位条件标记 hold 已释放
//
// 返回受影响行数，0 表示已被其他执行者抢先处理。
func (r *GormWalletRepository) MarkHoldReleased(id uint, releasedAt time.Time) (int64, error) {
	if id == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.WalletTransaction{}).
		Where("id = ? AND released_at IS NULL", id).
		Updates(map[string]interface{}{
			"released_at": releasedAt,
			"updated_at":  releasedAt,
		})
	return result.RowsAffected, result.Error
}
