package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/duomai-next/internal/config"
	"github.com/duomai-next/internal/constants"
	"github.com/duomai-next/internal/models"
	"github.com/duomai-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupCommissionServiceTest(t *testing.T) (*CommissionService, *WalletService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:commission_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Category{},
		&models.CommissionRule{},
		&models.OrderCommission{},
		&models.VendorWallet{},
		&models.WalletTransaction{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	cfg := &config.SettlementConfig{DefaultCommissionPercent: 10, HoldingDays: 7}
	commissionRepo := repository.NewCommissionRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	ruleSvc := NewCommissionRuleService(
		repository.NewCommissionRuleRepository(db),
		repository.NewCategoryRepository(db),
		commissionRepo,
		cfg,
	)
	walletSvc := NewWalletService(walletRepo)
	return NewCommissionService(commissionRepo, walletRepo, ruleSvc, walletSvc, cfg), walletSvc, db
}

func saleItem(orderID, itemID, vendorID uint, price int64, quantity int) OrderItemInput {
	return OrderItemInput{
		OrderID:     orderID,
		OrderItemID: itemID,
		VendorID:    vendorID,
		ProductID:   100 + itemID,
		Quantity:    quantity,
		UnitPrice:   money(price),
	}
}

func TestRecordSaleSnapshotsRule(t *testing.T) {
	svc, _, _ := setupCommissionServiceTest(t)

	records, err := svc.RecordSale([]OrderItemInput{saleItem(1, 1, 10, 5000, 2)})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("want 1 record got %d", len(records))
	}
	record := records[0]
	if !record.SaleAmount.Decimal.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("sale amount want 10000 got %s", record.SaleAmount)
	}
	if !record.CommissionAmount.Decimal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("commission want 1000 got %s", record.CommissionAmount)
	}
	if !record.VendorEarning.Decimal.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("vendor earning want 9000 got %s", record.VendorEarning)
	}
	if record.Status != constants.OrderCommissionStatusPending {
		t.Fatalf("status want pending got %s", record.Status)
	}

	// 分账拆分不丢分
	total := record.CommissionAmount.Decimal.Add(record.VendorEarning.Decimal)
	if !total.Equal(record.SaleAmount.Decimal) {
		t.Fatalf("commission + earning must equal sale amount, got %s", total)
	}
}

func TestRecordSaleIdempotent(t *testing.T) {
	svc, _, _ := setupCommissionServiceTest(t)

	first, err := svc.RecordSale([]OrderItemInput{saleItem(2, 21, 10, 100, 1)})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	second, err := svc.RecordSale([]OrderItemInput{saleItem(2, 21, 10, 100, 1)})
	if err != nil {
		t.Fatalf("replayed record sale failed: %v", err)
	}
	if first[0].ID != second[0].ID {
		t.Fatalf("replay should return existing record, got %d vs %d", first[0].ID, second[0].ID)
	}
}

func TestRecordSaleRejectsInvalidItems(t *testing.T) {
	svc, _, _ := setupCommissionServiceTest(t)

	if _, err := svc.RecordSale([]OrderItemInput{saleItem(0, 1, 10, 100, 1)}); !errors.Is(err, ErrOrderItemInvalid) {
		t.Fatalf("zero order id should fail, got %v", err)
	}
	if _, err := svc.RecordSale([]OrderItemInput{saleItem(3, 31, 10, 0, 1)}); !errors.Is(err, ErrOrderItemInvalid) {
		t.Fatalf("zero price should fail, got %v", err)
	}
}

func TestCreditOnFulfillment(t *testing.T) {
	svc, walletSvc, _ := setupCommissionServiceTest(t)

	if _, err := svc.RecordSale([]OrderItemInput{
		saleItem(4, 41, 10, 1000, 1),
		saleItem(4, 42, 20, 500, 1),
	}); err != nil {
		t.Fatalf("record sale failed: %v", err)
	}

	credited, err := svc.CreditOnFulfillment(4)
	if err != nil {
		t.Fatalf("credit on fulfillment failed: %v", err)
	}
	if len(credited) != 2 {
		t.Fatalf("want 2 credited got %d", len(credited))
	}
	for _, record := range credited {
		if record.Status != constants.OrderCommissionStatusCredited || record.CreditedAt == nil {
			t.Fatalf("record %d should be credited", record.ID)
		}
	}

	wallet, err := walletSvc.GetWallet(10)
	if err != nil {
		t.Fatalf("get wallet failed: %v", err)
	}
	if !wallet.PendingBalance.Decimal.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("vendor 10 pending want 900 got %s", wallet.PendingBalance)
	}

	// 重复触发入账是无操作
	if _, err := svc.CreditOnFulfillment(4); err != nil {
		t.Fatalf("replayed credit failed: %v", err)
	}
	wallet, _ = walletSvc.GetWallet(10)
	if !wallet.PendingBalance.Decimal.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("pending should stay 900 after replay, got %s", wallet.PendingBalance)
	}
	if err := walletSvc.VerifyLedger(10); err != nil {
		t.Fatalf("ledger should be consistent: %v", err)
	}
}

func TestHandleRefundFromPending(t *testing.T) {
	svc, walletSvc, db := setupCommissionServiceTest(t)

	if _, err := svc.RecordSale([]OrderItemInput{saleItem(5, 51, 30, 1000, 1)}); err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	if _, err := svc.CreditOnFulfillment(5); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	refunded, err := svc.HandleRefund(5, nil, "买家退货")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded[0].Status != constants.OrderCommissionStatusRefunded {
		t.Fatalf("status want refunded got %s", refunded[0].Status)
	}

	wallet, _ := walletSvc.GetWallet(30)
	if !wallet.PendingBalance.Decimal.IsZero() || !wallet.AvailableBalance.Decimal.IsZero() {
		t.Fatalf("refund from pending should drain wallet, got %s/%s", wallet.AvailableBalance, wallet.PendingBalance)
	}

	// 对应 hold 已被标记释放，到期任务不会再处理
	var holds []models.WalletTransaction
	if err := db.Where("vendor_id = ? AND txn_type = ? AND released_at IS NULL AND release_date IS NOT NULL", 30, constants.WalletTxnTypeHold).
		Find(&holds).Error; err != nil {
		t.Fatalf("query holds failed: %v", err)
	}
	if len(holds) != 0 {
		t.Fatalf("refunded hold should be marked released, %d left", len(holds))
	}
	if err := walletSvc.VerifyLedger(30); err != nil {
		t.Fatalf("ledger should be consistent: %v", err)
	}
}

func TestHandleRefundFromAvailable(t *testing.T) {
	svc, walletSvc, _ := setupCommissionServiceTest(t)

	if _, err := svc.RecordSale([]OrderItemInput{saleItem(6, 61, 40, 1000, 1)}); err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	credited, err := svc.CreditOnFulfillment(6)
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	// 冻结期满释放后再退款，应从可用余额扣减
	var hold models.WalletTransaction
	if err := models.DB.Where("reference = ?", commissionCreditReference(credited[0].ID)).First(&hold).Error; err != nil {
		t.Fatalf("find hold failed: %v", err)
	}
	if _, err := walletSvc.ReleaseHold(hold.ID); err != nil {
		t.Fatalf("release hold failed: %v", err)
	}

	if _, err := svc.HandleRefund(6, nil, ""); err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	wallet, _ := walletSvc.GetWallet(40)
	if !wallet.AvailableBalance.Decimal.IsZero() {
		t.Fatalf("available should be drained, got %s", wallet.AvailableBalance)
	}
	if !wallet.TotalRefunded.Decimal.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("total refunded want 900 got %s", wallet.TotalRefunded)
	}
	if err := walletSvc.VerifyLedger(40); err != nil {
		t.Fatalf("ledger should be consistent: %v", err)
	}
}

func TestHandleRefundPendingOrderSkipsWallet(t *testing.T) {
	svc, walletSvc, _ := setupCommissionServiceTest(t)

	if _, err := svc.RecordSale([]OrderItemInput{saleItem(7, 71, 50, 300, 1)}); err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	refunded, err := svc.HandleRefund(7, nil, "")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded[0].Status != constants.OrderCommissionStatusRefunded {
		t.Fatalf("status want refunded got %s", refunded[0].Status)
	}
	// 未入账记录退款不触碰钱包
	wallet, err := walletSvc.GetWallet(50)
	if err != nil {
		t.Fatalf("get wallet failed: %v", err)
	}
	if !wallet.TotalRefunded.Decimal.IsZero() {
		t.Fatalf("uncredited refund should not touch wallet, got %s", wallet.TotalRefunded)
	}

	// 重复退款是无操作
	if _, err := svc.HandleRefund(7, nil, ""); err != nil {
		t.Fatalf("replayed refund failed: %v", err)
	}
}

func TestRecordSaleAbortsOnFailure(t *testing.T) {
	svc, _, db := setupCommissionServiceTest(t)

	// 直接落一条非法规则，让第二个订单行在计算阶段失败
	badRef := uint(102)
	if err := db.Create(&models.CommissionRule{
		Scope:    constants.CommissionScopeProduct,
		ScopeRef: &badRef,
		RuleType: "mystery",
		IsActive: true,
	}).Error; err != nil {
		t.Fatalf("seed rule failed: %v", err)
	}

	_, err := svc.RecordSale([]OrderItemInput{
		saleItem(8, 1, 70, 500, 1),
		saleItem(8, 2, 70, 800, 1),
	})
	if !errors.Is(err, ErrCommissionRuleInvalid) {
		t.Fatalf("want ErrCommissionRuleInvalid got %v", err)
	}

	// 整单回滚，不留部分记录
	var count int64
	if err := db.Model(&models.OrderCommission{}).Where("order_id = ?", 8).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("aborted sale should leave no records, got %d", count)
	}
}

func TestHandleRefundPartialAmount(t *testing.T) {
	svc, walletSvc, _ := setupCommissionServiceTest(t)

	if _, err := svc.RecordSale([]OrderItemInput{saleItem(9, 91, 80, 1000, 1)}); err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	if _, err := svc.CreditOnFulfillment(9); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	// 超出可回冲所得总额的退款额被拒绝，记录保持已入账
	over := money(2000)
	if _, err := svc.HandleRefund(9, &over, ""); !errors.Is(err, ErrWalletInvalidAmount) {
		t.Fatalf("want ErrWalletInvalidAmount got %v", err)
	}

	partial := money(300)
	refunded, err := svc.HandleRefund(9, &partial, "部分退货")
	if err != nil {
		t.Fatalf("partial refund failed: %v", err)
	}
	if refunded[0].Status != constants.OrderCommissionStatusRefunded {
		t.Fatalf("status want refunded got %s", refunded[0].Status)
	}

	// 入账 900 先释放到可用，再扣除退款额 300
	wallet, _ := walletSvc.GetWallet(80)
	if !wallet.AvailableBalance.Decimal.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("available want 600 got %s", wallet.AvailableBalance)
	}
	if !wallet.TotalRefunded.Decimal.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("total refunded want 300 got %s", wallet.TotalRefunded)
	}
	if err := walletSvc.VerifyLedger(80); err != nil {
		t.Fatalf("ledger should be consistent: %v", err)
	}
}
