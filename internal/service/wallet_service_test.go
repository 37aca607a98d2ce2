package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/duomai-next/internal/constants"
	"github.com/duomai-next/internal/models"
	"github.com/duomai-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupWalletServiceTest(t *testing.T) (*WalletService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:wallet_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.VendorWallet{},
		&models.WalletTransaction{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	return NewWalletService(repository.NewWalletRepository(db)), db
}

func money(value int64) models.Money {
	return models.NewMoneyFromDecimal(decimal.NewFromInt(value))
}

func TestWalletCreditReleaseReserveComplete(t *testing.T) {
	svc, db := setupWalletServiceTest(t)
	releaseDate := time.Now().Add(7 * 24 * time.Hour)

	hold, err := svc.CreditEarning(WalletCreditInput{
		VendorID:         1,
		VendorEarning:    money(100),
		CommissionAmount: money(10),
		Reference:        "commission:1:credit",
		ReleaseDate:      releaseDate,
	})
	if err != nil {
		t.Fatalf("credit earning failed: %v", err)
	}
	if hold.TxnType != constants.WalletTxnTypeHold {
		t.Fatalf("credit txn type want hold got %s", hold.TxnType)
	}
	if hold.ReleaseDate == nil {
		t.Fatalf("credit txn should carry release date")
	}
	if !hold.BalancePending.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("pending snapshot want 100 got %s", hold.BalancePending)
	}

	wallet, err := svc.GetWallet(1)
	if err != nil {
		t.Fatalf("get wallet failed: %v", err)
	}
	if !wallet.PendingBalance.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("pending balance want 100 got %s", wallet.PendingBalance)
	}
	if !wallet.TotalEarned.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total earned want 100 got %s", wallet.TotalEarned)
	}
	if !wallet.TotalCommissionPaid.Decimal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("total commission want 10 got %s", wallet.TotalCommissionPaid)
	}

	if _, err := svc.ReleaseHold(hold.ID); err != nil {
		t.Fatalf("release hold failed: %v", err)
	}
	wallet, _ = svc.GetWallet(1)
	if !wallet.AvailableBalance.Decimal.Equal(decimal.NewFromInt(100)) || !wallet.PendingBalance.Decimal.IsZero() {
		t.Fatalf("after release want available=100 pending=0 got %s/%s", wallet.AvailableBalance, wallet.PendingBalance)
	}

	payoutID := uint(9)
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.ReserveForPayoutInTx(tx, 1, money(40), &payoutID, "payout:PO1:reserve")
		return err
	})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	wallet, _ = svc.GetWallet(1)
	if !wallet.AvailableBalance.Decimal.Equal(decimal.NewFromInt(60)) || !wallet.ReservedBalance.Decimal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("after reserve want available=60 reserved=40 got %s/%s", wallet.AvailableBalance, wallet.ReservedBalance)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.CompletePayoutInTx(tx, 1, money(40), &payoutID, "payout:PO1:complete")
		return err
	})
	if err != nil {
		t.Fatalf("complete payout failed: %v", err)
	}
	wallet, _ = svc.GetWallet(1)
	if !wallet.ReservedBalance.Decimal.IsZero() {
		t.Fatalf("reserved should be drained, got %s", wallet.ReservedBalance)
	}
	if !wallet.TotalWithdrawn.Decimal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("total withdrawn want 40 got %s", wallet.TotalWithdrawn)
	}

	if err := svc.VerifyLedger(1); err != nil {
		t.Fatalf("ledger should be consistent: %v", err)
	}
}

func TestWalletCreditIdempotentByReference(t *testing.T) {
	svc, _ := setupWalletServiceTest(t)
	input := WalletCreditInput{
		VendorID:      2,
		VendorEarning: money(50),
		Reference:     "commission:7:credit",
		ReleaseDate:   time.Now().Add(24 * time.Hour),
	}
	first, err := svc.CreditEarning(input)
	if err != nil {
		t.Fatalf("first credit failed: %v", err)
	}
	second, err := svc.CreditEarning(input)
	if err != nil {
		t.Fatalf("replayed credit failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay should return existing txn, got %d vs %d", first.ID, second.ID)
	}
	wallet, _ := svc.GetWallet(2)
	if !wallet.PendingBalance.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("pending should stay 50 after replay, got %s", wallet.PendingBalance)
	}
}

func TestWalletReleaseHoldTwiceIsNoop(t *testing.T) {
	svc, _ := setupWalletServiceTest(t)
	hold, err := svc.CreditEarning(WalletCreditInput{
		VendorID:      3,
		VendorEarning: money(30),
		Reference:     "commission:3:credit",
		ReleaseDate:   time.Now(),
	})
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if _, err := svc.ReleaseHold(hold.ID); err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	txn, err := svc.ReleaseHold(hold.ID)
	if err != nil {
		t.Fatalf("second release should be noop, got error: %v", err)
	}
	if txn != nil {
		t.Fatalf("second release should not produce a txn")
	}
	wallet, _ := svc.GetWallet(3)
	if !wallet.AvailableBalance.Decimal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("available should stay 30, got %s", wallet.AvailableBalance)
	}
}

func TestWalletRefundStrictConsistency(t *testing.T) {
	svc, db := setupWalletServiceTest(t)
	if _, err := svc.CreditEarning(WalletCreditInput{
		VendorID:      4,
		VendorEarning: money(20),
		Reference:     "commission:4:credit",
		ReleaseDate:   time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	// 超额退款：两桶合计只有 20，退 25 必须报一致性错误
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.RefundInTx(tx, WalletRefundInput{
			VendorID:  4,
			Amount:    money(25),
			Reference: "commission:4:refund",
		})
		return err
	})
	var consistencyErr *ConsistencyError
	if !errors.As(err, &consistencyErr) {
		t.Fatalf("over-refund should raise ConsistencyError, got %v", err)
	}
	if consistencyErr.Field != "refundable_balance" {
		t.Fatalf("field want refundable_balance got %s", consistencyErr.Field)
	}
	if !consistencyErr.Actual.Decimal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("actual refundable want 20 got %s", consistencyErr.Actual)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.RefundInTx(tx, WalletRefundInput{
			VendorID:  4,
			Amount:    money(20),
			Reference: "commission:4:refund",
		})
		return err
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	wallet, _ := svc.GetWallet(4)
	if !wallet.PendingBalance.Decimal.IsZero() {
		t.Fatalf("pending should be drained, got %s", wallet.PendingBalance)
	}
	if !wallet.TotalRefunded.Decimal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("total refunded want 20 got %s", wallet.TotalRefunded)
	}
	if err := svc.VerifyLedger(4); err != nil {
		t.Fatalf("ledger should be consistent: %v", err)
	}
}

func TestWalletRefundAvailableFirstThenPending(t *testing.T) {
	svc, db := setupWalletServiceTest(t)
	hold, err := svc.CreditEarning(WalletCreditInput{
		VendorID:      6,
		VendorEarning: money(80),
		Reference:     "commission:61:credit",
		ReleaseDate:   time.Now(),
	})
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if _, err := svc.ReleaseHold(hold.ID); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := svc.CreditEarning(WalletCreditInput{
		VendorID:      6,
		VendorEarning: money(40),
		Reference:     "commission:62:credit",
		ReleaseDate:   time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("second credit failed: %v", err)
	}

	// 可用 80 + 冻结 40，退 100：先扣完可用，剩余 20 从冻结扣
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.RefundInTx(tx, WalletRefundInput{
			VendorID:  6,
			Amount:    money(100),
			Reference: "commission:61:refund",
		})
		return err
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	wallet, _ := svc.GetWallet(6)
	if !wallet.AvailableBalance.Decimal.IsZero() {
		t.Fatalf("available should be drained, got %s", wallet.AvailableBalance)
	}
	if !wallet.PendingBalance.Decimal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("pending want 20 got %s", wallet.PendingBalance)
	}
	if !wallet.TotalRefunded.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total refunded want 100 got %s", wallet.TotalRefunded)
	}
	if err := svc.VerifyLedger(6); err != nil {
		t.Fatalf("ledger should be consistent: %v", err)
	}
}

func TestWalletAdminAdjust(t *testing.T) {
	svc, _ := setupWalletServiceTest(t)
	if _, err := svc.AdminAdjust(WalletAdjustInput{
		VendorID:  5,
		Delta:     money(15),
		Reference: "adjust:5:1",
		Remark:    "人工补差",
	}); err != nil {
		t.Fatalf("positive adjust failed: %v", err)
	}
	if _, err := svc.AdminAdjust(WalletAdjustInput{
		VendorID:  5,
		Delta:     models.NewMoneyFromDecimal(decimal.NewFromInt(-20)),
		Reference: "adjust:5:2",
	}); !errors.Is(err, ErrWalletInsufficientAvailable) {
		t.Fatalf("over-deduct should fail with insufficient available, got %v", err)
	}
	wallet, _ := svc.GetWallet(5)
	if !wallet.AvailableBalance.Decimal.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("available want 15 got %s", wallet.AvailableBalance)
	}
	if err := svc.VerifyLedger(5); err != nil {
		t.Fatalf("ledger should be consistent: %v", err)
	}
}

func TestWalletVerifyLedgerDetectsTampering(t *testing.T) {
	svc, db := setupWalletServiceTest(t)
	hold, err := svc.CreditEarning(WalletCreditInput{
		VendorID:      6,
		VendorEarning: money(80),
		Reference:     "commission:6:credit",
		ReleaseDate:   time.Now(),
	})
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if err := db.Model(&models.WalletTransaction{}).
		Where("id = ?", hold.ID).
		Update("balance_pending", decimal.NewFromInt(75)).Error; err != nil {
		t.Fatalf("tamper snapshot failed: %v", err)
	}

	err = svc.VerifyLedger(6)
	var consistencyErr *ConsistencyError
	if !errors.As(err, &consistencyErr) {
		t.Fatalf("tampered ledger should fail verification, got %v", err)
	}
}

func TestWalletReferenceRequired(t *testing.T) {
	svc, _ := setupWalletServiceTest(t)
	_, err := svc.CreditEarning(WalletCreditInput{
		VendorID:      7,
		VendorEarning: money(10),
		ReleaseDate:   time.Now(),
	})
	if !errors.Is(err, ErrWalletReferenceRequired) {
		t.Fatalf("missing reference should fail, got %v", err)
	}
}
