package models

import "time"

// OrderCommission 订单佣金分账记录
//
// 每个订单行项目一条，金额与命中的规则在创建时快照，之后不再重算。
// 不变式：CommissionAmount + VendorEarning == SaleAmount。
type OrderCommission struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                                     // 主键
	OrderID          uint       `gorm:"not null;index" json:"order_id"`                                           // 订单ID
	OrderItemID      uint       `gorm:"not null;index:idx_order_commission_unique,unique" json:"order_item_id"`   // 订单行ID
	VendorID         uint       `gorm:"not null;index;index:idx_order_commission_unique,unique" json:"vendor_id"` // 商家ID
	ProductID        uint       `gorm:"not null;index" json:"product_id"`                                         // 商品ID
	CategoryID       uint       `gorm:"index" json:"category_id"`                                                 // 商品类目ID
	Quantity         int        `gorm:"not null;default:1" json:"quantity"`                                       // 数量
	UnitPrice        Money      `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`                  // 单价
	SaleAmount       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"sale_amount"`                 // 销售金额
	RuleType         string     `gorm:"type:varchar(20);not null" json:"rule_type"`                               // 命中规则类型快照
	RatePercent      Money      `gorm:"type:decimal(10,2);not null;default:0" json:"rate_percent"`                // 命中比例快照
	TierLabel        string     `gorm:"type:varchar(64)" json:"tier_label"`                                       // 命中档位快照
	CommissionAmount Money      `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"`           // 平台佣金
	VendorEarning    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"vendor_earning"`              // 商家所得
	Status           string     `gorm:"type:varchar(20);not null;index" json:"status"`                            // 状态
	CreditedAt       *time.Time `gorm:"index" json:"credited_at,omitempty"`                                       // 入账时间
	RefundedAt       *time.Time `json:"refunded_at,omitempty"`                                                    // 退款时间
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                                  // 创建时间
	UpdatedAt        time.Time  `json:"updated_at"`                                                               // 更新时间
}

// TableName 指定表名
func (OrderCommission) TableName() string {
	return "order_commissions"
}
