package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/duomai-next/internal/cache"
	"github.com/duomai-next/internal/constants"
	"github.com/duomai-next/internal/logger"
	"github.com/duomai-next/internal/models"
	"github.com/duomai-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletService 商家钱包服务
//
// 三桶余额（available/pending/reserved）只通过本服务的固定转移操作变化，
// 每次变化在同一事务内恰好追加一条流水，流水携带变更后的三桶快照。
type WalletService struct {
	walletRepo repository.WalletRepository
}

// WalletCreditInput 销售入账输入
type WalletCreditInput struct {
	VendorID         uint
	VendorEarning    models.Money
	CommissionAmount models.Money
	OrderID          *uint
	Reference        string
	ReleaseDate      time.Time
	Remark           string
}

// WalletRefundInput 退款扣减输入
type WalletRefundInput struct {
	VendorID  uint
	Amount    models.Money
	OrderID   *uint
	Reference string
	Remark    string
}

// WalletAdjustInput 管理员余额调整输入
type WalletAdjustInput struct {
	VendorID  uint
	Delta     models.Money
	Reference string
	Remark    string
}

// bucketDelta 一次转移操作对三桶的变动量（带符号）
type bucketDelta struct {
	available decimal.Decimal
	pending   decimal.Decimal
	reserved  decimal.Decimal
}

// NewWalletService 创建钱包服务
func NewWalletService(walletRepo repository.WalletRepository) *WalletService {
	return &WalletService{walletRepo: walletRepo}
}

// GetWallet 获取商家钱包（不存在时自动创建零余额钱包）
func (s *WalletService) GetWallet(vendorID uint) (*models.VendorWallet, error) {
	if vendorID == 0 {
		return nil, ErrWalletNotFound
	}
	wallet, err := s.walletRepo.GetByVendorID(vendorID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}
	now := time.Now()
	wallet = &models.VendorWallet{VendorID: vendorID, CreatedAt: now, UpdatedAt: now}
	if err := s.walletRepo.Create(wallet); err != nil {
		created, queryErr := s.walletRepo.GetByVendorID(vendorID)
		if queryErr == nil && created != nil {
			return created, nil
		}
		return nil, ErrWalletUpdateFailed
	}
	return wallet, nil
}

// ListTransactions 分页查询钱包流水
func (s *WalletService) ListTransactions(filter repository.WalletTransactionListFilter) ([]models.WalletTransaction, int64, error) {
	return s.walletRepo.ListTransactions(filter)
}

// CreditEarning 销售入账：商家所得计入冻结余额并记录到期时间
func (s *WalletService) CreditEarning(input WalletCreditInput) (*models.WalletTransaction, error) {
	var result *models.WalletTransaction
	err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		txn, err := s.CreditEarningInTx(tx, input)
		if err != nil {
			return err
		}
		result = txn
		return nil
	})
	return result, err
}

// CreditEarningInTx 在调用方事务内执行销售入账
func (s *WalletService) CreditEarningInTx(tx *gorm.DB, input WalletCreditInput) (*models.WalletTransaction, error) {
	amount := input.VendorEarning.Decimal.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrWalletInvalidAmount
	}
	releaseDate := input.ReleaseDate
	return s.apply(tx, applyInput{
		vendorID:  input.VendorID,
		txnType:   constants.WalletTxnTypeHold,
		category:  constants.WalletTxnCategorySale,
		amount:    amount,
		delta:     bucketDelta{pending: amount},
		reference: input.Reference,
		remark:    cleanRemark(input.Remark, "销售所得入账（冻结）"),
		orderID:   input.OrderID,
		mutate: func(wallet *models.VendorWallet) {
			wallet.TotalEarned = addMoney(wallet.TotalEarned, amount)
			wallet.TotalCommissionPaid = addMoney(wallet.TotalCommissionPaid, input.CommissionAmount.Decimal.Round(2))
		},
		decorate: func(txn *models.WalletTransaction) {
			txn.ReleaseDate = &releaseDate
		},
	})
}

// ReleaseHold 将一条到期 hold 流水对应的金额从冻结转入可用
//
// 以 released_at 的空值更新作为抢占条件，重复调用是无操作。
func (s *WalletService) ReleaseHold(holdTxnID uint) (*models.WalletTransaction, error) {
	var result *models.WalletTransaction
	err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		txn, err := s.ReleaseHoldInTx(tx, holdTxnID)
		if err != nil {
			return err
		}
		result = txn
		return nil
	})
	return result, err
}

// ReleaseHoldInTx 在调用方事务内释放一条 hold 流水
func (s *WalletService) ReleaseHoldInTx(tx *gorm.DB, holdTxnID uint) (*models.WalletTransaction, error) {
	repo := s.walletRepo.WithTx(tx)
	hold, err := repo.GetTransactionByIDForUpdate(holdTxnID)
	if err != nil {
		return nil, err
	}
	if hold == nil || hold.TxnType != constants.WalletTxnTypeHold || hold.ReleaseDate == nil {
		return nil, ErrWalletTransactionCreateFailed
	}
	if hold.ReleasedAt != nil {
		return nil, nil
	}
	now := time.Now()
	affected, err := repo.MarkHoldReleased(hold.ID, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	amount := hold.Amount.Decimal.Round(2)
	return s.apply(tx, applyInput{
		vendorID:  hold.VendorID,
		txnType:   constants.WalletTxnTypeRelease,
		category:  hold.Category,
		amount:    amount,
		delta:     bucketDelta{pending: amount.Neg(), available: amount},
		reference: fmt.Sprintf("hold:%d:release", hold.ID),
		remark:    "冻结期满释放",
		orderID:   hold.OrderID,
	})
}

// ReserveForPayoutInTx 在调用方事务内将可用余额转入提现预留
func (s *WalletService) ReserveForPayoutInTx(tx *gorm.DB, vendorID uint, amount models.Money, payoutRequestID *uint, reference string) (*models.WalletTransaction, error) {
	value := amount.Decimal.Round(2)
	if value.LessThanOrEqual(decimal.Zero) {
		return nil, ErrWalletInvalidAmount
	}
	return s.apply(tx, applyInput{
		vendorID:        vendorID,
		txnType:         constants.WalletTxnTypeHold,
		category:        constants.WalletTxnCategoryPayout,
		amount:          value,
		delta:           bucketDelta{available: value.Neg(), reserved: value},
		reference:       reference,
		remark:          "提现申请预留",
		payoutRequestID: payoutRequestID,
	})
}

// CompletePayoutInTx 在调用方事务内扣减预留余额完成提现
func (s *WalletService) CompletePayoutInTx(tx *gorm.DB, vendorID uint, amount models.Money, payoutRequestID *uint, reference string) (*models.WalletTransaction, error) {
	value := amount.Decimal.Round(2)
	if value.LessThanOrEqual(decimal.Zero) {
		return nil, ErrWalletInvalidAmount
	}
	return s.apply(tx, applyInput{
		vendorID:        vendorID,
		txnType:         constants.WalletTxnTypeDebit,
		category:        constants.WalletTxnCategoryPayout,
		amount:          value,
		delta:           bucketDelta{reserved: value.Neg()},
		reference:       reference,
		remark:          "提现完成出账",
		payoutRequestID: payoutRequestID,
		mutate: func(wallet *models.VendorWallet) {
			wallet.TotalWithdrawn = addMoney(wallet.TotalWithdrawn, value)
		},
	})
}

// CancelPayoutReserveInTx 在调用方事务内将预留余额退回可用（取消或拒绝提现）
func (s *WalletService) CancelPayoutReserveInTx(tx *gorm.DB, vendorID uint, amount models.Money, payoutRequestID *uint, reference string, remark string) (*models.WalletTransaction, error) {
	value := amount.Decimal.Round(2)
	if value.LessThanOrEqual(decimal.Zero) {
		return nil, ErrWalletInvalidAmount
	}
	return s.apply(tx, applyInput{
		vendorID:        vendorID,
		txnType:         constants.WalletTxnTypeRelease,
		category:        constants.WalletTxnCategoryPayout,
		amount:          value,
		delta:           bucketDelta{reserved: value.Neg(), available: value},
		reference:       reference,
		remark:          cleanRemark(remark, "提现预留退回"),
		payoutRequestID: payoutRequestID,
	})
}

// RefundInTx 在调用方事务内执行退款扣减
//
// 先扣 available，不足部分再扣 pending；两桶合计不足以覆盖退款时报一致性错误。
func (s *WalletService) RefundInTx(tx *gorm.DB, input WalletRefundInput) (*models.WalletTransaction, error) {
	value := input.Amount.Decimal.Round(2)
	if value.LessThanOrEqual(decimal.Zero) {
		return nil, ErrWalletInvalidAmount
	}
	return s.apply(tx, applyInput{
		vendorID:  input.VendorID,
		txnType:   constants.WalletTxnTypeRefund,
		category:  constants.WalletTxnCategoryRefund,
		amount:    value,
		reference: input.Reference,
		remark:    cleanRemark(input.Remark, "订单退款扣减"),
		orderID:   input.OrderID,
		strict:    true,
		resolveDelta: func(wallet *models.VendorWallet) (bucketDelta, error) {
			available := wallet.AvailableBalance.Decimal.Round(2)
			pending := wallet.PendingBalance.Decimal.Round(2)
			if available.Add(pending).LessThan(value) {
				return bucketDelta{}, &ConsistencyError{
					VendorID: input.VendorID,
					Field:    "refundable_balance",
					Expected: models.NewMoneyFromDecimal(value),
					Actual:   models.NewMoneyFromDecimal(available.Add(pending)),
				}
			}
			fromAvailable := decimal.Min(available, value)
			return bucketDelta{
				available: fromAvailable.Neg(),
				pending:   value.Sub(fromAvailable).Neg(),
			}, nil
		},
		mutate: func(wallet *models.VendorWallet) {
			wallet.TotalRefunded = addMoney(wallet.TotalRefunded, value)
		},
	})
}

// AdminAdjust 管理员调整可用余额
func (s *WalletService) AdminAdjust(input WalletAdjustInput) (*models.WalletTransaction, error) {
	delta := input.Delta.Decimal.Round(2)
	if delta.IsZero() {
		return nil, ErrWalletInvalidAmount
	}
	var result *models.WalletTransaction
	err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		txn, err := s.apply(tx, applyInput{
			vendorID:  input.VendorID,
			txnType:   constants.WalletTxnTypeAdjustment,
			category:  constants.WalletTxnCategoryAdjustment,
			amount:    delta.Abs(),
			delta:     bucketDelta{available: delta},
			reference: input.Reference,
			remark:    cleanRemark(input.Remark, "管理员余额调整"),
		})
		if err != nil {
			return err
		}
		result = txn
		return nil
	})
	return result, err
}

// VerifyLedger 回放商家全部流水校验钱包一致性
//
// 逐行校验快照变化幅度与交易金额一致，末行快照须等于钱包当前余额。
func (s *WalletService) VerifyLedger(vendorID uint) error {
	wallet, err := s.walletRepo.GetByVendorID(vendorID)
	if err != nil {
		return err
	}
	if wallet == nil {
		return ErrWalletNotFound
	}
	txns, err := s.walletRepo.ListTransactionsByVendorAsc(vendorID)
	if err != nil {
		return err
	}

	available := decimal.Zero
	pending := decimal.Zero
	reserved := decimal.Zero
	for i := range txns {
		txn := &txns[i]
		deltaAvailable := txn.BalanceAvailable.Decimal.Sub(available)
		deltaPending := txn.BalancePending.Decimal.Sub(pending)
		deltaReserved := txn.BalanceReserved.Decimal.Sub(reserved)
		moved := deltaAvailable.Abs().Add(deltaPending.Abs()).Add(deltaReserved.Abs())
		amount := txn.Amount.Decimal.Round(2)

		// 单桶变动 = amount，桶间转移 = 2*amount
		if !moved.Equal(amount) && !moved.Equal(amount.Mul(decimal.NewFromInt(2))) {
			return &ConsistencyError{
				VendorID: vendorID,
				Field:    fmt.Sprintf("txn:%d", txn.ID),
				Expected: models.NewMoneyFromDecimal(amount),
				Actual:   models.NewMoneyFromDecimal(moved),
			}
		}
		available = txn.BalanceAvailable.Decimal
		pending = txn.BalancePending.Decimal
		reserved = txn.BalanceReserved.Decimal
	}

	if !available.Equal(wallet.AvailableBalance.Decimal.Round(2)) {
		return &ConsistencyError{
			VendorID: vendorID,
			Field:    "available_balance",
			Expected: models.NewMoneyFromDecimal(available),
			Actual:   wallet.AvailableBalance,
		}
	}
	if !pending.Equal(wallet.PendingBalance.Decimal.Round(2)) {
		return &ConsistencyError{
			VendorID: vendorID,
			Field:    "pending_balance",
			Expected: models.NewMoneyFromDecimal(pending),
			Actual:   wallet.PendingBalance,
		}
	}
	if !reserved.Equal(wallet.ReservedBalance.Decimal.Round(2)) {
		return &ConsistencyError{
			VendorID: vendorID,
			Field:    "reserved_balance",
			Expected: models.NewMoneyFromDecimal(reserved),
			Actual:   wallet.ReservedBalance,
		}
	}
	return nil
}

// applyInput 单次转移操作的内部描述
type applyInput struct {
	vendorID        uint
	txnType         string
	category        string
	amount          decimal.Decimal
	delta           bucketDelta
	reference       string
	remark          string
	orderID         *uint
	payoutRequestID *uint
	strict          bool
	// resolveDelta 非空时在持锁后按当前余额计算桶变动，覆盖 delta
	resolveDelta func(wallet *models.VendorWallet) (bucketDelta, error)
	mutate       func(wallet *models.VendorWallet)
	decorate     func(txn *models.WalletTransaction)
}

// apply 执行一次三桶转移：锁钱包、幂等检查、改余额、追加带快照的流水
func (s *WalletService) apply(tx *gorm.DB, input applyInput) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, ErrWalletUpdateFailed
	}
	if input.vendorID == 0 {
		return nil, ErrWalletNotFound
	}
	reference := strings.TrimSpace(input.reference)
	if reference == "" {
		return nil, ErrWalletReferenceRequired
	}
	repo := s.walletRepo.WithTx(tx)

	exists, err := repo.GetTransactionByReference(reference)
	if err != nil {
		return nil, err
	}
	if exists != nil {
		return exists, nil
	}

	now := time.Now()
	wallet, err := s.ensureWalletForUpdate(repo, input.vendorID, now)
	if err != nil {
		return nil, err
	}

	delta := input.delta
	if input.resolveDelta != nil {
		delta, err = input.resolveDelta(wallet)
		if err != nil {
			return nil, err
		}
	}

	available := wallet.AvailableBalance.Decimal.Round(2).Add(delta.available)
	pending := wallet.PendingBalance.Decimal.Round(2).Add(delta.pending)
	reserved := wallet.ReservedBalance.Decimal.Round(2).Add(delta.reserved)

	if available.IsNegative() || pending.IsNegative() || reserved.IsNegative() {
		if input.strict {
			return nil, s.negativeBucketError(input.vendorID, wallet, available, pending, reserved)
		}
		switch {
		case available.IsNegative():
			return nil, ErrWalletInsufficientAvailable
		case pending.IsNegative():
			return nil, ErrWalletInsufficientPending
		default:
			return nil, ErrWalletInsufficientReserved
		}
	}

	wallet.AvailableBalance = models.NewMoneyFromDecimal(available)
	wallet.PendingBalance = models.NewMoneyFromDecimal(pending)
	wallet.ReservedBalance = models.NewMoneyFromDecimal(reserved)
	if input.mutate != nil {
		input.mutate(wallet)
	}
	wallet.UpdatedAt = now
	if err := repo.Update(wallet); err != nil {
		return nil, ErrWalletUpdateFailed
	}

	txn := &models.WalletTransaction{
		VendorID:         input.vendorID,
		TxnType:          input.txnType,
		Category:         input.category,
		Amount:           models.NewMoneyFromDecimal(input.amount),
		BalanceAvailable: models.NewMoneyFromDecimal(available),
		BalancePending:   models.NewMoneyFromDecimal(pending),
		BalanceReserved:  models.NewMoneyFromDecimal(reserved),
		Reference:        reference,
		OrderID:          input.orderID,
		PayoutRequestID:  input.payoutRequestID,
		Remark:           input.remark,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if input.decorate != nil {
		input.decorate(txn)
	}
	if err := repo.CreateTransaction(txn); err != nil {
		return nil, ErrWalletTransactionCreateFailed
	}
	if err := cache.DelWalletSnapshot(context.Background(), input.vendorID); err != nil {
		logger.Warnw("wallet_snapshot_invalidate_failed", "vendor_id", input.vendorID, "error", err)
	}
	return txn, nil
}

func (s *WalletService) ensureWalletForUpdate(repo *repository.GormWalletRepository, vendorID uint, now time.Time) (*models.VendorWallet, error) {
	wallet, err := repo.GetByVendorIDForUpdate(vendorID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}
	wallet = &models.VendorWallet{VendorID: vendorID, CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(wallet); err != nil {
		created, queryErr := repo.GetByVendorIDForUpdate(vendorID)
		if queryErr == nil && created != nil {
			return created, nil
		}
		return nil, ErrWalletUpdateFailed
	}
	return wallet, nil
}

func (s *WalletService) negativeBucketError(vendorID uint, wallet *models.VendorWallet, available, pending, reserved decimal.Decimal) error {
	field := "available_balance"
	expected := available
	actual := wallet.AvailableBalance
	switch {
	case pending.IsNegative():
		field = "pending_balance"
		expected = pending
		actual = wallet.PendingBalance
	case reserved.IsNegative():
		field = "reserved_balance"
		expected = reserved
		actual = wallet.ReservedBalance
	}
	return &ConsistencyError{
		VendorID: vendorID,
		Field:    field,
		Expected: models.NewMoneyFromDecimal(expected),
		Actual:   actual,
	}
}

func addMoney(value models.Money, delta decimal.Decimal) models.Money {
	return models.NewMoneyFromDecimal(value.Decimal.Round(2).Add(delta).Round(2))
}

func cleanRemark(raw string, fallback string) string {
	remark := strings.TrimSpace(raw)
	if remark == "" {
		return fallback
	}
	return remark
}
