package repository

import "time"

// CommissionRuleListFilter 查询佣金规则列表的过滤条件
type CommissionRuleListFilter struct {
	Page       int
	PageSize   int
	Scope      string
	ScopeRef   uint
	RuleType   string
	OnlyActive bool
}

// OrderCommissionListFilter 查询订单佣金记录的过滤条件
type OrderCommissionListFilter struct {
	Page        int
	PageSize    int
	VendorID    uint
	OrderID     uint
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// WalletTransactionListFilter 查询钱包流水的过滤条件
type WalletTransactionListFilter struct {
	Page        int
	PageSize    int
	VendorID    uint
	TxnType     string
	Category    string
	OrderID     uint
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// PayoutListFilter 查询提现申请的过滤条件
type PayoutListFilter struct {
	Page        int
	PageSize    int
	VendorID    uint
	Status      string
	MethodType  string
	PayoutNo    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// SummaryListFilter 查询财务汇总的过滤条件
type SummaryListFilter struct {
	Page      int
	PageSize  int
	Scope     string
	ScopeRef  uint
	Period    string
	StartFrom *time.Time
	StartTo   *time.Time
}
