package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/duomai-next/internal/models"
)

// 佣金规则相关错误
var (
	ErrCommissionRuleNotFound     = errors.New("佣金规则不存在")
	ErrCommissionRuleInvalid      = errors.New("佣金规则参数不合法")
	ErrCommissionRuleScopeInvalid = errors.New("佣金规则作用域不合法")
	ErrCommissionTiersInvalid     = errors.New("阶梯档位配置不合法")
)

// 订单佣金相关错误
var (
	ErrOrderCommissionNotFound      = errors.New("订单佣金记录不存在")
	ErrOrderCommissionStatusInvalid = errors.New("订单佣金状态不允许该操作")
	ErrOrderItemInvalid             = errors.New("订单行参数不合法")
)

// 钱包相关错误
var (
	ErrWalletNotFound                = errors.New("商家钱包不存在")
	ErrWalletInvalidAmount           = errors.New("金额必须为正数")
	ErrWalletInsufficientAvailable   = errors.New("可用余额不足")
	ErrWalletInsufficientPending     = errors.New("冻结余额不足")
	ErrWalletInsufficientReserved    = errors.New("预留余额不足")
	ErrWalletUpdateFailed            = errors.New("钱包更新失败")
	ErrWalletTransactionCreateFailed = errors.New("钱包流水写入失败")
	ErrWalletReferenceRequired       = errors.New("幂等参考号不能为空")
)

// 提现相关错误
var (
	ErrPayoutNotFound         = errors.New("提现申请不存在")
	ErrPayoutStatusInvalid    = errors.New("提现申请当前状态不允许该操作")
	ErrPayoutMethodInvalid    = errors.New("提现渠道不合法")
	ErrPayoutMethodUnverified = errors.New("收款方式未验证")
	ErrPayoutBelowMinimum     = errors.New("提现金额低于最低限额")
	ErrPayoutHasOpenDisputes  = errors.New("存在未决争议，提现被拒绝")
	ErrPayoutProfileNotFound  = errors.New("商家提现设置不存在")
	ErrPayoutDuplicateActive  = errors.New("存在未完成的提现申请")
)

// RateLimitError 提现频控错误，携带下次可申请时间
type RateLimitError struct {
	VendorID       uint
	NextEligibleAt time.Time
}

// Error 实现 error 接口
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("提现申请过于频繁，%s 后可再次申请", e.NextEligibleAt.Format(time.RFC3339))
}

// NewRateLimitError 创建频控错误
func NewRateLimitError(vendorID uint, nextEligibleAt time.Time) *RateLimitError {
	return &RateLimitError{VendorID: vendorID, NextEligibleAt: nextEligibleAt}
}

// ConsistencyError 余额一致性错误
//
// 对账回放发现流水快照与钱包余额不一致时返回，携带两侧数值供排障。
type ConsistencyError struct {
	VendorID uint
	Field    string
	Expected models.Money
	Actual   models.Money
}

// Error 实现 error 接口
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("商家 %d 钱包 %s 不一致: 流水回放 %s, 当前余额 %s",
		e.VendorID, e.Field, e.Expected.String(), e.Actual.String())
}
