package models

import "time"

// FinancialSummary 财务汇总（读优化的反范式快照）
//
// 以 (scope, scope_ref, period, period_start) 为唯一键 upsert，
// 聚合任务重跑只覆盖不追加。
type FinancialSummary struct {
	ID                  uint      `gorm:"primarykey" json:"id"`                                                              // 主键
	Scope               string    `gorm:"type:varchar(20);not null;index:idx_financial_summary_unique,unique" json:"scope"`  // 汇总作用域
	ScopeRef            uint      `gorm:"not null;default:0;index:idx_financial_summary_unique,unique" json:"scope_ref"`     // 作用对象ID（platform 为 0）
	Period              string    `gorm:"type:varchar(20);not null;index:idx_financial_summary_unique,unique" json:"period"` // 周期类型
	PeriodStart         time.Time `gorm:"not null;index;index:idx_financial_summary_unique,unique" json:"period_start"`      // 周期起点
	PeriodEnd           time.Time `gorm:"not null" json:"period_end"`                                                        // 周期终点（不含）
	GrossSales          Money     `gorm:"type:decimal(20,2);not null;default:0" json:"gross_sales"`                          // GMV
	CommissionTotal     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"commission_total"`                     // 平台佣金合计
	VendorEarningsTotal Money     `gorm:"type:decimal(20,2);not null;default:0" json:"vendor_earnings_total"`                // 商家所得合计
	PayoutTotal         Money     `gorm:"type:decimal(20,2);not null;default:0" json:"payout_total"`                         // 提现合计
	RefundTotal         Money     `gorm:"type:decimal(20,2);not null;default:0" json:"refund_total"`                         // 退款合计
	NetRevenue          Money     `gorm:"type:decimal(20,2);not null;default:0" json:"net_revenue"`                          // 净收入
	OrderCount          int64     `gorm:"not null;default:0" json:"order_count"`                                             // 订单行数量
	CreatedAt           time.Time `json:"created_at"`                                                                        // 创建时间
	UpdatedAt           time.Time `json:"updated_at"`                                                                        // 更新时间
}

// TableName 指定表名
func (FinancialSummary) TableName() string {
	return "financial_summaries"
}
