package models

import "time"

// VendorWallet 商家钱包
//
// 三桶余额只允许通过 WalletService 的固定转移操作修改，
// 任何直接写字段的路径都是缺陷。
type VendorWallet struct {
	ID                  uint      `gorm:"primarykey" json:"id"`                                               // 主键
	VendorID            uint      `gorm:"not null;uniqueIndex" json:"vendor_id"`                              // 商家ID
	AvailableBalance    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"available_balance"`     // 可用余额
	PendingBalance      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"pending_balance"`       // 冻结期余额
	ReservedBalance     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"reserved_balance"`      // 提现预留余额
	TotalEarned         Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_earned"`          // 累计所得
	TotalCommissionPaid Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_commission_paid"` // 累计平台佣金
	TotalWithdrawn      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_withdrawn"`       // 累计提现
	TotalRefunded       Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_refunded"`        // 累计退款
	CreatedAt           time.Time `json:"created_at"`                                                         // 创建时间
	UpdatedAt           time.Time `json:"updated_at"`                                                         // 更新时间
}

// TableName 指定表名
func (VendorWallet) TableName() string {
	return "vendor_wallets"
}
