package repository

import (
	"errors"

	"github.com/duomai-next/internal/models"

	"gorm.io/gorm"
)

// 类目祖先链遍历的最大深度，防御脏数据形成的环
const maxCategoryDepth = 16

// CategoryRepository 商品类目数据访问接口
type CategoryRepository interface {
	GetByID(id uint) (*models.Category, error)
	Create(category *models.Category) error
	AncestorChain(id uint) ([]uint, error)
}

// GormCategoryRepository GORM 类目仓储实现
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository 创建类目仓储
func NewCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// GetByID 按ID获取类目
func (r *GormCategoryRepository) GetByID(id uint) (*models.Category, error) {
	if id == 0 {
		return nil, nil
	}
	var category models.Category
	if err := r.db.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

// Create 创建类目
func (r *GormCategoryRepository) Create(category *models.Category) error {
	return r.db.Create(category).Error
}

// AncestorChain 返回类目自身到根的ID链（自身在前，根在后）
func (r *GormCategoryRepository) AncestorChain(id uint) ([]uint, error) {
	chain := make([]uint, 0, 4)
	current := id
	for depth := 0; current != 0 && depth < maxCategoryDepth; depth++ {
		category, err := r.GetByID(current)
		if err != nil {
			return nil, err
		}
		if category == nil {
			break
		}
		chain = append(chain, category.ID)
		if category.ParentID == nil {
			break
		}
		current = *category.ParentID
	}
	return chain, nil
}
