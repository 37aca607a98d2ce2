package models

import "time"

// VendorPayoutProfile 商家提现设置
type VendorPayoutProfile struct {
	ID                    uint      `gorm:"primarykey" json:"id"`                                                 // 主键
	VendorID              uint      `gorm:"not null;uniqueIndex" json:"vendor_id"`                                // 商家ID
	AutoWithdrawEnabled   bool      `gorm:"not null;default:false" json:"auto_withdraw_enabled"`                  // 自动提现开关
	AutoWithdrawThreshold Money     `gorm:"type:decimal(20,2);not null;default:0" json:"auto_withdraw_threshold"` // 起提金额（0 取全局默认）
	DefaultMethodType     string    `gorm:"type:varchar(20)" json:"default_method_type"`                          // 默认提现渠道
	MethodVerified        bool      `gorm:"not null;default:false" json:"method_verified"`                        // 收款方式是否已验证
	MethodDetail          JSON      `gorm:"type:json" json:"method_detail"`                                       // 收款账户信息
	OpenDisputes          int       `gorm:"not null;default:0" json:"open_disputes"`                              // 未决争议数量
	CreatedAt             time.Time `json:"created_at"`                                                           // 创建时间
	UpdatedAt             time.Time `json:"updated_at"`                                                           // 更新时间
}

// TableName 指定表名
func (VendorPayoutProfile) TableName() string {
	return "vendor_payout_profiles"
}
