package models

import "time"

// Category 商品类目（仅服务于佣金规则的类目作用域解析）
type Category struct {
	ID        uint      `gorm:"primarykey" json:"id"`             // 主键
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"` // 父类目ID
	Name      string    `gorm:"type:varchar(128)" json:"name"`    // 类目名称
	CreatedAt time.Time `json:"created_at"`                       // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                       // 更新时间
}

// TableName 指定表名
func (Category) TableName() string {
	return "categories"
}
