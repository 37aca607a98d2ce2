package constants

// 佣金规则作用域常量
const (
	CommissionScopeProduct  = "product"
	CommissionScopeCategory = "category"
	CommissionScopeVendor   = "vendor"
	CommissionScopePlatform = "platform"
)

// 佣金规则类型常量
const (
	CommissionRuleTypeFixed      = "fixed"
	CommissionRuleTypePercentage = "percentage"
	CommissionRuleTypeTiered     = "tiered"
)

// 订单佣金状态常量
const (
	OrderCommissionStatusPending   = "pending"
	OrderCommissionStatusCredited  = "credited"
	OrderCommissionStatusRefunded  = "refunded"
	OrderCommissionStatusDisputed  = "disputed"
	OrderCommissionStatusCancelled = "cancelled"
)

// 钱包交易类型常量
const (
	WalletTxnTypeCredit     = "credit"
	WalletTxnTypeDebit      = "debit"
	WalletTxnTypeHold       = "hold"
	WalletTxnTypeRelease    = "release"
	WalletTxnTypeRefund     = "refund"
	WalletTxnTypeAdjustment = "adjustment"
)

// 钱包交易分类常量
const (
	WalletTxnCategorySale       = "sale"
	WalletTxnCategoryCommission = "commission"
	WalletTxnCategoryPayout     = "payout"
	WalletTxnCategoryRefund     = "refund"
	WalletTxnCategoryDispute    = "dispute"
	WalletTxnCategoryAdjustment = "adjustment"
	WalletTxnCategoryFee        = "fee"
	WalletTxnCategoryBonus      = "bonus"
)

// 提现申请状态常量
const (
	PayoutStatusRequested   = "requested"
	PayoutStatusUnderReview = "under_review"
	PayoutStatusApproved    = "approved"
	PayoutStatusProcessing  = "processing"
	PayoutStatusCompleted   = "completed"
	PayoutStatusRejected    = "rejected"
	PayoutStatusCancelled   = "cancelled"
)

// 提现渠道类型常量
const (
	PayoutMethodBankTransfer = "bank_transfer"
	PayoutMethodMobileWallet = "mobile_wallet"
	PayoutMethodCard         = "card"
)

// IsValidPayoutMethod 判断提现渠道是否合法
func IsValidPayoutMethod(method string) bool {
	switch method {
	case PayoutMethodBankTransfer, PayoutMethodMobileWallet, PayoutMethodCard:
		return true
	}
	return false
}

// 财务汇总作用域常量
const (
	SummaryScopePlatform = "platform"
	SummaryScopeVendor   = "vendor"
	SummaryScopeCategory = "category"
)

// 财务汇总周期常量
const (
	SummaryPeriodDaily   = "daily"
	SummaryPeriodWeekly  = "weekly"
	SummaryPeriodMonthly = "monthly"
	SummaryPeriodYearly  = "yearly"
)

// 队列与任务名称常量
const (
	QueueDefault         = "default"
	QueueCritical        = "critical"
	TaskHoldRelease      = "settlement:hold_release"
	TaskAutoWithdraw     = "settlement:auto_withdraw"
	TaskSummaryAggregate = "settlement:summary_aggregate"
)
