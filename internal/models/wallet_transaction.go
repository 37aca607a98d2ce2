package models

import "time"

// WalletTransaction 钱包流水（只追加）
//
// 余额快照在变更后立即记录，最近一条流水的快照必须与钱包当前余额一致，
// 对账任务以此为校验依据。冲正不修改原始行，只追加补偿行。
type WalletTransaction struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                           // 主键
	VendorID         uint       `gorm:"not null;index" json:"vendor_id"`                                // 商家ID
	TxnType          string     `gorm:"type:varchar(20);not null;index" json:"txn_type"`                // 交易类型
	Category         string     `gorm:"type:varchar(20);not null;index" json:"category"`                // 业务分类
	Amount           Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`            // 交易金额
	BalanceAvailable Money      `gorm:"type:decimal(20,2);not null;default:0" json:"balance_available"` // 变更后可用余额
	BalancePending   Money      `gorm:"type:decimal(20,2);not null;default:0" json:"balance_pending"`   // 变更后冻结余额
	BalanceReserved  Money      `gorm:"type:decimal(20,2);not null;default:0" json:"balance_reserved"`  // 变更后预留余额
	Reference        string     `gorm:"type:varchar(128);not null;uniqueIndex" json:"reference"`        // 幂等参考号
	OrderID          *uint      `gorm:"index" json:"order_id,omitempty"`                                // 关联订单
	PayoutRequestID  *uint      `gorm:"index" json:"payout_request_id,omitempty"`                       // 关联提现申请
	ReleaseDate      *time.Time `gorm:"index" json:"release_date,omitempty"`                            // hold 行的解冻时间
	ReleasedAt       *time.Time `gorm:"index" json:"released_at,omitempty"`                             // hold 行的实际释放时间
	Remark           string     `gorm:"type:varchar(255)" json:"remark"`                                // 备注
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                        // 创建时间
	UpdatedAt        time.Time  `json:"updated_at"`                                                     // 更新时间
}

// TableName 指定表名
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
