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

func setupSettlementServiceTest(t *testing.T, cfg *config.SettlementConfig) (*SettlementService, *PayoutService, *WalletService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:settlement_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.VendorWallet{},
		&models.WalletTransaction{},
		&models.VendorPayoutProfile{},
		&models.PayoutRequest{},
		&models.OrderCommission{},
		&models.FinancialSummary{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	walletRepo := repository.NewWalletRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	vendorRepo := repository.NewVendorRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	walletSvc := NewWalletService(walletRepo)
	payoutSvc := NewPayoutService(payoutRepo, vendorRepo, walletRepo, walletSvc, cfg)
	svc := NewSettlementService(walletRepo, commissionRepo, payoutRepo, vendorRepo, summaryRepo, walletSvc, payoutSvc, cfg)
	return svc, payoutSvc, walletSvc, db
}

func settlementTestConfig() *config.SettlementConfig {
	cfg := payoutTestConfig()
	cfg.HoldingDays = 7
	cfg.AutoWithdraw = config.AutoWithdrawConfig{Enabled: true, DefaultThreshold: 100}
	return cfg
}

func creditHold(t *testing.T, walletSvc *WalletService, vendorID uint, amount int64, reference string, releaseDate time.Time) *models.WalletTransaction {
	t.Helper()
	hold, err := walletSvc.CreditEarning(WalletCreditInput{
		VendorID:      vendorID,
		VendorEarning: money(amount),
		Reference:     reference,
		ReleaseDate:   releaseDate,
	})
	if err != nil {
		t.Fatalf("credit earning failed: %v", err)
	}
	return hold
}

func TestReleaseDueHolds(t *testing.T) {
	svc, _, walletSvc, _ := setupSettlementServiceTest(t, settlementTestConfig())
	now := time.Now()

	creditHold(t, walletSvc, 1, 100, "commission:1:credit", now.Add(-time.Hour))
	creditHold(t, walletSvc, 2, 80, "commission:2:credit", now.Add(-2*time.Hour))
	creditHold(t, walletSvc, 1, 60, "commission:3:credit", now.Add(24*time.Hour))

	report, err := svc.ReleaseDueHolds(now)
	if err != nil {
		t.Fatalf("release due holds failed: %v", err)
	}
	if report.Scanned != 2 || report.Released != 2 || report.Failed != 0 {
		t.Fatalf("report unexpected: %+v", report)
	}

	wallet, _ := walletSvc.GetWallet(1)
	if !wallet.AvailableBalance.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("vendor 1 available want 100 got %s", wallet.AvailableBalance)
	}
	if !wallet.PendingBalance.Decimal.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("vendor 1 pending want 60 got %s", wallet.PendingBalance)
	}
	wallet, _ = walletSvc.GetWallet(2)
	if !wallet.AvailableBalance.Decimal.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("vendor 2 available want 80 got %s", wallet.AvailableBalance)
	}

	// 重跑无新释放
	report, err = svc.ReleaseDueHolds(now)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if report.Scanned != 0 || report.Released != 0 {
		t.Fatalf("second run should be a no-op: %+v", report)
	}

	if err := walletSvc.VerifyLedger(1); err != nil {
		t.Fatalf("ledger inconsistent: %v", err)
	}
}

func TestRunAutoWithdraw(t *testing.T) {
	svc, payoutSvc, walletSvc, _ := setupSettlementServiceTest(t, settlementTestConfig())
	now := time.Now()

	// 商家1：达标，应创建提现
	if _, err := payoutSvc.UpsertProfile(PayoutProfileInput{
		VendorID:              1,
		AutoWithdrawEnabled:   true,
		AutoWithdrawThreshold: money(150),
		DefaultMethodType:     constants.PayoutMethodBankTransfer,
		MethodVerified:        true,
	}); err != nil {
		t.Fatalf("upsert profile failed: %v", err)
	}
	hold := creditHold(t, walletSvc, 1, 200, "commission:1:credit", now.Add(-time.Hour))
	if _, err := walletSvc.ReleaseHold(hold.ID); err != nil {
		t.Fatalf("release hold failed: %v", err)
	}

	// 商家2：未达标，应跳过
	if _, err := payoutSvc.UpsertProfile(PayoutProfileInput{
		VendorID:              2,
		AutoWithdrawEnabled:   true,
		AutoWithdrawThreshold: money(500),
		DefaultMethodType:     constants.PayoutMethodBankTransfer,
		MethodVerified:        true,
	}); err != nil {
		t.Fatalf("upsert profile failed: %v", err)
	}
	hold = creditHold(t, walletSvc, 2, 120, "commission:2:credit", now.Add(-time.Hour))
	if _, err := walletSvc.ReleaseHold(hold.ID); err != nil {
		t.Fatalf("release hold failed: %v", err)
	}

	// 商家3：余额达标但收款方式未验证，应按跳过计数而非失败
	if _, err := payoutSvc.UpsertProfile(PayoutProfileInput{
		VendorID:              3,
		AutoWithdrawEnabled:   true,
		AutoWithdrawThreshold: money(100),
		DefaultMethodType:     constants.PayoutMethodBankTransfer,
		MethodVerified:        false,
	}); err != nil {
		t.Fatalf("upsert profile failed: %v", err)
	}
	hold = creditHold(t, walletSvc, 3, 300, "commission:30:credit", now.Add(-time.Hour))
	if _, err := walletSvc.ReleaseHold(hold.ID); err != nil {
		t.Fatalf("release hold failed: %v", err)
	}

	report, err := svc.RunAutoWithdraw(now)
	if err != nil {
		t.Fatalf("auto withdraw failed: %v", err)
	}
	if report.Scanned != 3 || report.Created != 1 || report.Skipped != 2 || report.Failed != 0 {
		t.Fatalf("report unexpected: %+v", report)
	}

	wallet, _ := walletSvc.GetWallet(1)
	if !wallet.AvailableBalance.Decimal.IsZero() {
		t.Fatalf("vendor 1 available should be fully reserved, got %s", wallet.AvailableBalance)
	}
	if !wallet.ReservedBalance.Decimal.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("vendor 1 reserved want 200 got %s", wallet.ReservedBalance)
	}

	requests, total, err := payoutSvc.List(repository.PayoutListFilter{VendorID: 1, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list payouts failed: %v", err)
	}
	if total != 1 || len(requests) != 1 {
		t.Fatalf("vendor 1 should have one payout, got %d", total)
	}
	if !requests[0].Amount.Decimal.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("payout amount want 200 got %s", requests[0].Amount)
	}

	// 再次补足余额后重跑，撞上提现频控
	hold = creditHold(t, walletSvc, 1, 180, "commission:3:credit", now.Add(-time.Hour))
	if _, err := walletSvc.ReleaseHold(hold.ID); err != nil {
		t.Fatalf("release hold failed: %v", err)
	}
	report, err = svc.RunAutoWithdraw(now)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if report.Created != 0 || report.RateLimit != 1 {
		t.Fatalf("second run should hit rate limit: %+v", report)
	}
}

func TestRunAutoWithdrawDisabled(t *testing.T) {
	cfg := settlementTestConfig()
	cfg.AutoWithdraw.Enabled = false
	svc, payoutSvc, walletSvc, _ := setupSettlementServiceTest(t, cfg)

	if _, err := payoutSvc.UpsertProfile(PayoutProfileInput{
		VendorID:              1,
		AutoWithdrawEnabled:   true,
		AutoWithdrawThreshold: money(50),
		DefaultMethodType:     constants.PayoutMethodBankTransfer,
		MethodVerified:        true,
	}); err != nil {
		t.Fatalf("upsert profile failed: %v", err)
	}
	hold := creditHold(t, walletSvc, 1, 200, "commission:1:credit", time.Now().Add(-time.Hour))
	if _, err := walletSvc.ReleaseHold(hold.ID); err != nil {
		t.Fatalf("release hold failed: %v", err)
	}

	report, err := svc.RunAutoWithdraw(time.Now())
	if err != nil {
		t.Fatalf("auto withdraw failed: %v", err)
	}
	if report.Scanned != 0 || report.Created != 0 {
		t.Fatalf("disabled run should do nothing: %+v", report)
	}
}

func seedSettlementCommission(t *testing.T, db *gorm.DB, record models.OrderCommission) {
	t.Helper()
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed order commission failed: %v", err)
	}
}

func TestAggregateDaily(t *testing.T) {
	svc, _, _, db := setupSettlementServiceTest(t, settlementTestConfig())
	day := time.Now()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	inDay := start.Add(10 * time.Hour)

	seedSettlementCommission(t, db, models.OrderCommission{
		OrderID: 1, OrderItemID: 1, VendorID: 1, ProductID: 1, CategoryID: 10,
		Quantity: 1, UnitPrice: money(100), SaleAmount: money(100),
		RuleType: "percentage", CommissionAmount: money(10), VendorEarning: money(90),
		Status: constants.OrderCommissionStatusCredited, CreatedAt: inDay,
	})
	seedSettlementCommission(t, db, models.OrderCommission{
		OrderID: 2, OrderItemID: 2, VendorID: 2, ProductID: 2, CategoryID: 20,
		Quantity: 1, UnitPrice: money(50), SaleAmount: money(50),
		RuleType: "percentage", CommissionAmount: money(5), VendorEarning: money(45),
		Status: constants.OrderCommissionStatusRefunded, CreatedAt: inDay,
	})
	// 前一天的记录不应计入
	seedSettlementCommission(t, db, models.OrderCommission{
		OrderID: 3, OrderItemID: 3, VendorID: 1, ProductID: 3, CategoryID: 10,
		Quantity: 1, UnitPrice: money(999), SaleAmount: money(999),
		RuleType: "percentage", CommissionAmount: money(99), VendorEarning: money(900),
		Status: constants.OrderCommissionStatusCredited, CreatedAt: start.Add(-2 * time.Hour),
	})

	// 当日完成的提现计入 payout_total
	processedAt := inDay
	if err := db.Create(&models.PayoutRequest{
		PayoutNo: "PO20260101000001", VendorID: 1,
		Amount: money(30), NetAmount: money(28),
		MethodType:  constants.PayoutMethodBankTransfer,
		Status:      constants.PayoutStatusCompleted,
		ProcessedAt: &processedAt,
		CreatedAt:   inDay, UpdatedAt: inDay,
	}).Error; err != nil {
		t.Fatalf("seed payout failed: %v", err)
	}

	report, err := svc.AggregateDaily(day)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if report.Upserted != 5 {
		t.Fatalf("upserted want 5 (platform + 2 vendors + 2 categories) got %d", report.Upserted)
	}

	summaryRepo := repository.NewSummaryRepository(db)
	platform, err := summaryRepo.Get(constants.SummaryScopePlatform, 0, constants.SummaryPeriodDaily, start)
	if err != nil || platform == nil {
		t.Fatalf("get platform summary failed: %v", err)
	}
	if !platform.GrossSales.Decimal.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("gross sales want 150 got %s", platform.GrossSales)
	}
	if !platform.CommissionTotal.Decimal.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("commission want 15 got %s", platform.CommissionTotal)
	}
	if !platform.RefundTotal.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("refund want 50 got %s", platform.RefundTotal)
	}
	if !platform.NetRevenue.Decimal.Equal(decimal.NewFromInt(-35)) {
		t.Fatalf("net revenue want -35 got %s", platform.NetRevenue)
	}
	if !platform.PayoutTotal.Decimal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("payout total want 30 got %s", platform.PayoutTotal)
	}
	if platform.OrderCount != 2 {
		t.Fatalf("order count want 2 got %d", platform.OrderCount)
	}

	vendor1, err := summaryRepo.Get(constants.SummaryScopeVendor, 1, constants.SummaryPeriodDaily, start)
	if err != nil || vendor1 == nil {
		t.Fatalf("get vendor summary failed: %v", err)
	}
	if !vendor1.VendorEarningsTotal.Decimal.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("vendor 1 earnings want 90 got %s", vendor1.VendorEarningsTotal)
	}
	if !vendor1.PayoutTotal.Decimal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("vendor 1 payout want 30 got %s", vendor1.PayoutTotal)
	}

	category10, err := summaryRepo.Get(constants.SummaryScopeCategory, 10, constants.SummaryPeriodDaily, start)
	if err != nil || category10 == nil {
		t.Fatalf("get category summary failed: %v", err)
	}
	if !category10.GrossSales.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("category 10 gross want 100 got %s", category10.GrossSales)
	}

	// 重跑覆盖写入，行数不增加
	if _, err := svc.AggregateDaily(day); err != nil {
		t.Fatalf("second aggregate failed: %v", err)
	}
	var count int64
	if err := db.Model(&models.FinancialSummary{}).Count(&count).Error; err != nil {
		t.Fatalf("count summaries failed: %v", err)
	}
	if count != 5 {
		t.Fatalf("summary rows want 5 after rerun got %d", count)
	}
}

func TestAggregateMonthlyAndPeriodBounds(t *testing.T) {
	svc, _, _, db := setupSettlementServiceTest(t, settlementTestConfig())
	anchor := time.Date(2026, 8, 15, 12, 0, 0, 0, time.Local)
	monthStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local)

	seedSettlementCommission(t, db, models.OrderCommission{
		OrderID: 1, OrderItemID: 1, VendorID: 1, ProductID: 1,
		Quantity: 1, UnitPrice: money(100), SaleAmount: money(100),
		RuleType: "percentage", CommissionAmount: money(10), VendorEarning: money(90),
		Status: constants.OrderCommissionStatusCredited, CreatedAt: anchor.AddDate(0, 0, -10),
	})
	// 上个月的记录不应计入
	seedSettlementCommission(t, db, models.OrderCommission{
		OrderID: 2, OrderItemID: 2, VendorID: 1, ProductID: 2,
		Quantity: 1, UnitPrice: money(70), SaleAmount: money(70),
		RuleType: "percentage", CommissionAmount: money(7), VendorEarning: money(63),
		Status: constants.OrderCommissionStatusCredited, CreatedAt: monthStart.Add(-time.Hour),
	})

	if _, err := svc.Aggregate(constants.SummaryPeriodMonthly, anchor); err != nil {
		t.Fatalf("monthly aggregate failed: %v", err)
	}
	summaryRepo := repository.NewSummaryRepository(db)
	platform, err := summaryRepo.Get(constants.SummaryScopePlatform, 0, constants.SummaryPeriodMonthly, monthStart)
	if err != nil || platform == nil {
		t.Fatalf("get monthly summary failed: %v", err)
	}
	if !platform.GrossSales.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("monthly gross want 100 got %s", platform.GrossSales)
	}

	if _, err := svc.Aggregate("quarterly", anchor); !errors.Is(err, ErrSummaryPeriodInvalid) {
		t.Fatalf("unknown period want ErrSummaryPeriodInvalid got %v", err)
	}

	// 周起点落在周一
	wedStart, wedEnd, err := summaryPeriodBounds(constants.SummaryPeriodWeekly, time.Date(2026, 8, 26, 9, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatalf("weekly bounds failed: %v", err)
	}
	if wedStart.Weekday() != time.Monday || !wedEnd.Equal(wedStart.AddDate(0, 0, 7)) {
		t.Fatalf("weekly bounds unexpected: %v - %v", wedStart, wedEnd)
	}
}
