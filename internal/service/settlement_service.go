package service

import (
	"context"
	"errors"
	"time"

	"github.com/duomai-next/internal/cache"
	"github.com/duomai-next/internal/config"
	"github.com/duomai-next/internal/constants"
	"github.com/duomai-next/internal/logger"
	"github.com/duomai-next/internal/models"
	"github.com/duomai-next/internal/repository"

	"github.com/shopspring/decimal"
)

// 单轮释放任务处理的 hold 数量上限
const holdReleaseBatchSize = 500

// SettlementService 结算后台任务服务
//
// 所有任务设计为可重复执行：释放以 released_at 抢占，
// 自动提现复用提现频控，汇总按唯一键覆盖写入。
type SettlementService struct {
	walletRepo     repository.WalletRepository
	commissionRepo repository.CommissionRepository
	payoutRepo     repository.PayoutRepository
	vendorRepo     repository.VendorRepository
	summaryRepo    repository.SummaryRepository
	walletSvc      *WalletService
	payoutSvc      *PayoutService
	cfg            *config.SettlementConfig
}

// HoldReleaseReport 冻结释放任务执行报告
type HoldReleaseReport struct {
	Scanned  int `json:"scanned"`
	Released int `json:"released"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// AutoWithdrawReport 自动提现任务执行报告
type AutoWithdrawReport struct {
	Scanned   int `json:"scanned"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	RateLimit int `json:"rate_limited"`
	Failed    int `json:"failed"`
}

// AggregateReport 汇总聚合任务执行报告
type AggregateReport struct {
	Upserted int `json:"upserted"`
}

// NewSettlementService 创建结算任务服务
func NewSettlementService(
	walletRepo repository.WalletRepository,
	commissionRepo repository.CommissionRepository,
	payoutRepo repository.PayoutRepository,
	vendorRepo repository.VendorRepository,
	summaryRepo repository.SummaryRepository,
	walletSvc *WalletService,
	payoutSvc *PayoutService,
	cfg *config.SettlementConfig,
) *SettlementService {
	return &SettlementService{
		walletRepo:     walletRepo,
		commissionRepo: commissionRepo,
		payoutRepo:     payoutRepo,
		vendorRepo:     vendorRepo,
		summaryRepo:    summaryRepo,
		walletSvc:      walletSvc,
		payoutSvc:      payoutSvc,
		cfg:            cfg,
	}
}

// ReleaseDueHolds 释放全部到期的冻结入账
//
// 单条失败只记录不中断，失败条目等下一轮重试。
func (s *SettlementService) ReleaseDueHolds(now time.Time) (*HoldReleaseReport, error) {
	report := &HoldReleaseReport{}
	holds, err := s.walletRepo.ListDueHolds(now, holdReleaseBatchSize)
	if err != nil {
		return nil, err
	}
	report.Scanned = len(holds)
	for _, hold := range holds {
		txn, err := s.walletSvc.ReleaseHold(hold.ID)
		if err != nil {
			report.Failed++
			logger.Errorw("冻结释放失败",
				"hold_txn_id", hold.ID,
				"vendor_id", hold.VendorID,
				"error", err)
			continue
		}
		if txn == nil {
			report.Skipped++
			continue
		}
		report.Released++
	}
	if report.Released > 0 || report.Failed > 0 {
		logger.Infow("冻结释放任务完成",
			"scanned", report.Scanned,
			"released", report.Released,
			"skipped", report.Skipped,
			"failed", report.Failed)
	}
	return report, nil
}

// RunAutoWithdraw 为开启自动提现且可用余额达标的商家创建提现申请
func (s *SettlementService) RunAutoWithdraw(now time.Time) (*AutoWithdrawReport, error) {
	report := &AutoWithdrawReport{}
	if s.cfg == nil || !s.cfg.AutoWithdraw.Enabled {
		return report, nil
	}
	profiles, err := s.vendorRepo.ListAutoWithdrawEnabled()
	if err != nil {
		return nil, err
	}
	report.Scanned = len(profiles)

	vendorIDs := make([]uint, 0, len(profiles))
	for _, profile := range profiles {
		vendorIDs = append(vendorIDs, profile.VendorID)
	}
	wallets, err := s.walletRepo.GetByVendorIDs(vendorIDs)
	if err != nil {
		return nil, err
	}
	walletByVendor := make(map[uint]*models.VendorWallet, len(wallets))
	for i := range wallets {
		walletByVendor[wallets[i].VendorID] = &wallets[i]
	}

	defaultThreshold := decimal.NewFromFloat(s.cfg.AutoWithdraw.DefaultThreshold)
	for _, profile := range profiles {
		// 不满足发起条件的商家按跳过计数，不算任务失败
		if !profile.MethodVerified || profile.OpenDisputes > 0 {
			report.Skipped++
			continue
		}
		threshold := profile.AutoWithdrawThreshold.Decimal.Round(2)
		if threshold.LessThanOrEqual(decimal.Zero) {
			threshold = defaultThreshold
		}
		wallet, ok := walletByVendor[profile.VendorID]
		if !ok {
			report.Skipped++
			continue
		}
		available := wallet.AvailableBalance.Decimal.Round(2)
		if available.LessThan(threshold) || available.LessThanOrEqual(decimal.Zero) {
			report.Skipped++
			continue
		}
		_, err = s.payoutSvc.CreateRequest(PayoutCreateInput{
			VendorID:   profile.VendorID,
			Amount:     models.NewMoneyFromDecimal(available),
			MethodType: profile.DefaultMethodType,
			Remark:     "自动提现",
		})
		switch {
		case err == nil:
			report.Created++
		case isRateLimitError(err):
			report.RateLimit++
		case errors.Is(err, ErrPayoutDuplicateActive), errors.Is(err, ErrPayoutMethodUnverified), errors.Is(err, ErrPayoutHasOpenDisputes):
			report.Skipped++
		default:
			report.Failed++
			logger.Warnw("自动提现创建失败",
				"vendor_id", profile.VendorID,
				"amount", available.String(),
				"error", err)
		}
	}
	logger.Infow("自动提现任务完成",
		"scanned", report.Scanned,
		"created", report.Created,
		"skipped", report.Skipped,
		"rate_limited", report.RateLimit,
		"failed", report.Failed)
	return report, nil
}

// ErrSummaryPeriodInvalid 汇总周期不合法
var ErrSummaryPeriodInvalid = errors.New("汇总周期不合法")

// AggregateDaily 聚合指定日期所在自然日的汇总
func (s *SettlementService) AggregateDaily(day time.Time) (*AggregateReport, error) {
	return s.Aggregate(constants.SummaryPeriodDaily, day)
}

// Aggregate 重算 anchor 所在周期的平台/商家/类目汇总
//
// 以 (scope, scope_ref, period, period_start) 唯一键覆盖写入，重跑幂等。
func (s *SettlementService) Aggregate(period string, anchor time.Time) (*AggregateReport, error) {
	report := &AggregateReport{}
	start, end, err := summaryPeriodBounds(period, anchor)
	if err != nil {
		return nil, err
	}

	records, _, err := s.commissionRepo.List(repository.OrderCommissionListFilter{
		Page:        1,
		PageSize:    -1,
		CreatedFrom: &start,
		CreatedTo:   &end,
	})
	if err != nil {
		return nil, err
	}

	platform := newSummaryAccumulator()
	vendors := map[uint]*summaryAccumulator{}
	categories := map[uint]*summaryAccumulator{}
	for i := range records {
		record := &records[i]
		if record.CreatedAt.Equal(end) || record.CreatedAt.After(end) {
			continue
		}
		platform.add(record)
		acc, ok := vendors[record.VendorID]
		if !ok {
			acc = newSummaryAccumulator()
			vendors[record.VendorID] = acc
		}
		acc.add(record)
		if record.CategoryID != 0 {
			catAcc, ok := categories[record.CategoryID]
			if !ok {
				catAcc = newSummaryAccumulator()
				categories[record.CategoryID] = catAcc
			}
			catAcc.add(record)
		}
	}

	platformPayout, err := s.payoutRepo.SumCompletedAmount(0, start, end)
	if err != nil {
		return nil, err
	}

	if err := s.upsertSummary(constants.SummaryScopePlatform, 0, period, start, end, platform, platformPayout); err != nil {
		return nil, err
	}
	report.Upserted++

	for vendorID, acc := range vendors {
		vendorPayout, err := s.payoutRepo.SumCompletedAmount(vendorID, start, end)
		if err != nil {
			return nil, err
		}
		if err := s.upsertSummary(constants.SummaryScopeVendor, vendorID, period, start, end, acc, vendorPayout); err != nil {
			return nil, err
		}
		report.Upserted++
	}

	// 提现按商家归属，类目维度不摊提现额
	for categoryID, acc := range categories {
		if err := s.upsertSummary(constants.SummaryScopeCategory, categoryID, period, start, end, acc, models.Money{}); err != nil {
			return nil, err
		}
		report.Upserted++
	}

	logger.Infow("汇总聚合完成",
		"period", period,
		"period_start", start.Format("2006-01-02"),
		"upserted", report.Upserted)
	return report, nil
}

// summaryPeriodBounds 计算周期的起止时间（左闭右开）
func summaryPeriodBounds(period string, anchor time.Time) (time.Time, time.Time, error) {
	day := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, anchor.Location())
	switch period {
	case constants.SummaryPeriodDaily:
		return day, day.AddDate(0, 0, 1), nil
	case constants.SummaryPeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7 // 周一为周期起点
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), nil
	case constants.SummaryPeriodMonthly:
		start := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
		return start, start.AddDate(0, 1, 0), nil
	case constants.SummaryPeriodYearly:
		start := time.Date(anchor.Year(), 1, 1, 0, 0, 0, 0, anchor.Location())
		return start, start.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, time.Time{}, ErrSummaryPeriodInvalid
	}
}

// summaryAccumulator 汇总聚合的中间量
type summaryAccumulator struct {
	grossSales     decimal.Decimal
	commission     decimal.Decimal
	vendorEarnings decimal.Decimal
	refund         decimal.Decimal
	orderCount     int64
}

func newSummaryAccumulator() *summaryAccumulator {
	return &summaryAccumulator{
		grossSales:     decimal.Zero,
		commission:     decimal.Zero,
		vendorEarnings: decimal.Zero,
		refund:         decimal.Zero,
	}
}

func (a *summaryAccumulator) add(record *models.OrderCommission) {
	a.orderCount++
	a.grossSales = a.grossSales.Add(record.SaleAmount.Decimal)
	a.commission = a.commission.Add(record.CommissionAmount.Decimal)
	a.vendorEarnings = a.vendorEarnings.Add(record.VendorEarning.Decimal)
	if record.Status == constants.OrderCommissionStatusRefunded {
		a.refund = a.refund.Add(record.SaleAmount.Decimal)
	}
}

func (s *SettlementService) upsertSummary(scope string, scopeRef uint, period string, start, end time.Time, acc *summaryAccumulator, payout models.Money) error {
	now := time.Now()
	net := acc.commission.Sub(acc.refund)
	err := s.summaryRepo.Upsert(&models.FinancialSummary{
		Scope:               scope,
		ScopeRef:            scopeRef,
		Period:              period,
		PeriodStart:         start,
		PeriodEnd:           end,
		GrossSales:          models.NewMoneyFromDecimal(acc.grossSales.Round(2)),
		CommissionTotal:     models.NewMoneyFromDecimal(acc.commission.Round(2)),
		VendorEarningsTotal: models.NewMoneyFromDecimal(acc.vendorEarnings.Round(2)),
		PayoutTotal:         models.NewMoneyFromDecimal(payout.Decimal.Round(2)),
		RefundTotal:         models.NewMoneyFromDecimal(acc.refund.Round(2)),
		NetRevenue:          models.NewMoneyFromDecimal(net.Round(2)),
		OrderCount:          acc.orderCount,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		return err
	}
	// 重算后旧缓存立即失效
	return cache.DelFinancialSummary(context.Background(), scope, scopeRef, period, start)
}

func isRateLimitError(err error) bool {
	var rateErr *RateLimitError
	return errors.As(err, &rateErr)
}
