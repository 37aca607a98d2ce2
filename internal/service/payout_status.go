package service

import (
	"strings"

	"github.com/duomai-next/internal/constants"
)

// payoutStatusNexts 提现状态机允许的流转
//
// requested 直达 approved 仅发生在创建时的自动审批路径，人工审批须先进入
// under_review。approved/processing 之后的撤销只开放给管理员操作。
var payoutStatusNexts = map[string]map[string]bool{
	constants.PayoutStatusRequested: {
		constants.PayoutStatusUnderReview: true,
		constants.PayoutStatusRejected:    true,
		constants.PayoutStatusCancelled:   true,
	},
	constants.PayoutStatusUnderReview: {
		constants.PayoutStatusApproved:  true,
		constants.PayoutStatusRejected:  true,
		constants.PayoutStatusCancelled: true,
	},
	constants.PayoutStatusApproved: {
		constants.PayoutStatusProcessing: true,
		constants.PayoutStatusCancelled:  true,
	},
	constants.PayoutStatusProcessing: {
		constants.PayoutStatusCompleted: true,
		constants.PayoutStatusCancelled: true,
	},
}

// canTransitPayout 判断提现状态流转是否合法
func canTransitPayout(from, to string) bool {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	nexts, ok := payoutStatusNexts[from]
	if !ok {
		return false
	}
	return nexts[to]
}
