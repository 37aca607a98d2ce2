package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// PayoutStatusChange 提现状态流转记录
type PayoutStatusChange struct {
	From  string    `json:"from"`  // 原状态
	To    string    `json:"to"`    // 新状态
	Actor string    `json:"actor"` // 操作方（vendor/admin/system）
	Note  string    `json:"note"`  // 说明
	At    time.Time `json:"at"`    // 时间
}

// PayoutStatusHistory 状态流转审计轨迹（只追加）
type PayoutStatusHistory []PayoutStatusChange

// Value 实现 driver.Valuer 接口
func (h PayoutStatusHistory) Value() (driver.Value, error) {
	if h == nil {
		return nil, nil
	}
	return json.Marshal(h)
}

// Scan 实现 sql.Scanner 接口
func (h *PayoutStatusHistory) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	default:
		return nil
	}
}

// PayoutRequest 提现申请
//
// 创建时即完成余额预留与手续费计算，费率之后不再重算；
// 进入终态（completed/rejected/cancelled）后除外部流水号外不可变。
type PayoutRequest struct {
	ID             uint                `gorm:"primarykey" json:"id"`                                        // 主键
	PayoutNo       string              `gorm:"type:varchar(64);not null;uniqueIndex" json:"payout_no"`      // 提现单号
	VendorID       uint                `gorm:"not null;index" json:"vendor_id"`                             // 商家ID
	Amount         Money               `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`         // 申请金额
	PlatformFee    Money               `gorm:"type:decimal(20,2);not null;default:0" json:"platform_fee"`   // 平台手续费
	ProcessingFee  Money               `gorm:"type:decimal(20,2);not null;default:0" json:"processing_fee"` // 渠道手续费
	NetAmount      Money               `gorm:"type:decimal(20,2);not null;default:0" json:"net_amount"`     // 到账净额
	MethodType     string              `gorm:"type:varchar(20);not null" json:"method_type"`                // 提现渠道
	MethodSnapshot JSON                `gorm:"type:json" json:"method_snapshot"`                            // 收款方式快照
	Status         string              `gorm:"type:varchar(20);not null;index" json:"status"`               // 当前状态
	StatusHistory  PayoutStatusHistory `gorm:"type:json" json:"status_history"`                             // 状态审计轨迹
	ChecksDisputes bool                `gorm:"not null;default:false" json:"checks_disputes"`               // 安全检查：无未决争议
	ChecksBalance  bool                `gorm:"not null;default:false" json:"checks_balance"`                // 安全检查：余额已核验
	ChecksMethod   bool                `gorm:"not null;default:false" json:"checks_method"`                 // 安全检查：收款方式已验证
	ExternalTxnRef string              `gorm:"type:varchar(128)" json:"external_txn_ref"`                   // 外部渠道流水号
	RejectReason   string              `gorm:"type:varchar(255)" json:"reject_reason"`                      // 拒绝原因
	ProcessedBy    *uint               `json:"processed_by,omitempty"`                                      // 处理人
	ProcessedAt    *time.Time          `json:"processed_at,omitempty"`                                      // 处理时间
	CreatedAt      time.Time           `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt      time.Time           `json:"updated_at"`                                                  // 更新时间
}

// TableName 指定表名
func (PayoutRequest) TableName() string {
	return "payout_requests"
}

// Terminal 判断是否处于终态
func (p PayoutRequest) Terminal() bool {
	switch p.Status {
	case "completed", "rejected", "cancelled":
		return true
	default:
		return false
	}
}
