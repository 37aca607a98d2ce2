package service

import (
	"fmt"
	"time"

	"github.com/duomai-next/internal/config"
	"github.com/duomai-next/internal/constants"
	"github.com/duomai-next/internal/models"
	"github.com/duomai-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionService 订单佣金分账服务
//
// 销售发生时按当时命中的规则计算并快照，之后规则变更不追溯；
// 发货确认后商家所得进入钱包冻结余额，退款沿原路冲正。
type CommissionService struct {
	commissionRepo repository.CommissionRepository
	walletRepo     repository.WalletRepository
	ruleSvc        *CommissionRuleService
	walletSvc      *WalletService
	cfg            *config.SettlementConfig
}

// OrderItemInput 订单行输入
type OrderItemInput struct {
	OrderID     uint
	OrderItemID uint
	VendorID    uint
	ProductID   uint
	CategoryID  uint
	Quantity    int
	UnitPrice   models.Money
}

// NewCommissionService 创建订单佣金服务
func NewCommissionService(
	commissionRepo repository.CommissionRepository,
	walletRepo repository.WalletRepository,
	ruleSvc *CommissionRuleService,
	walletSvc *WalletService,
	cfg *config.SettlementConfig,
) *CommissionService {
	return &CommissionService{
		commissionRepo: commissionRepo,
		walletRepo:     walletRepo,
		ruleSvc:        ruleSvc,
		walletSvc:      walletSvc,
		cfg:            cfg,
	}
}

// RecordSale 为订单行创建佣金分账记录
//
// 以 (order_item_id, vendor_id) 唯一键幂等，重复提交返回既有记录。
// 全部订单行在同一事务内落库，任一行失败整单回滚，不留部分记录。
func (s *CommissionService) RecordSale(items []OrderItemInput) ([]models.OrderCommission, error) {
	now := time.Now()
	amounts := make([]decimal.Decimal, len(items))
	for i, item := range items {
		if item.OrderID == 0 || item.OrderItemID == 0 || item.VendorID == 0 {
			return nil, ErrOrderItemInvalid
		}
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		saleAmount := item.UnitPrice.Decimal.Round(2).Mul(decimal.NewFromInt(int64(quantity))).Round(2)
		if saleAmount.LessThanOrEqual(decimal.Zero) {
			return nil, ErrOrderItemInvalid
		}
		amounts[i] = saleAmount
	}

	var results []models.OrderCommission
	err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		commissionRepo := s.commissionRepo.WithTx(tx)
		results = make([]models.OrderCommission, 0, len(items))
		for i, item := range items {
			existing, err := commissionRepo.GetByOrderItem(item.OrderItemID, item.VendorID)
			if err != nil {
				return err
			}
			if existing != nil {
				results = append(results, *existing)
				continue
			}

			resolved, err := s.ruleSvc.Resolve(item.ProductID, item.CategoryID, item.VendorID, now)
			if err != nil {
				return err
			}
			quote, err := s.ruleSvc.Quote(resolved, item.VendorID, models.NewMoneyFromDecimal(amounts[i]), now)
			if err != nil {
				return err
			}

			quantity := item.Quantity
			if quantity <= 0 {
				quantity = 1
			}
			record := &models.OrderCommission{
				OrderID:          item.OrderID,
				OrderItemID:      item.OrderItemID,
				VendorID:         item.VendorID,
				ProductID:        item.ProductID,
				CategoryID:       item.CategoryID,
				Quantity:         quantity,
				UnitPrice:        models.NewMoneyFromDecimal(item.UnitPrice.Decimal.Round(2)),
				SaleAmount:       models.NewMoneyFromDecimal(amounts[i]),
				RuleType:         quote.RuleType,
				RatePercent:      quote.RatePercent,
				TierLabel:        quote.TierLabel,
				CommissionAmount: quote.CommissionAmount,
				VendorEarning:    quote.VendorEarning,
				Status:           constants.OrderCommissionStatusPending,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := commissionRepo.Create(record); err != nil {
				// 并发重复提交时回查唯一键
				created, queryErr := commissionRepo.GetByOrderItem(item.OrderItemID, item.VendorID)
				if queryErr == nil && created != nil {
					results = append(results, *created)
					continue
				}
				return err
			}
			results = append(results, *record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CreditOnFulfillment 发货确认后将订单全部待入账佣金计入商家钱包冻结余额
func (s *CommissionService) CreditOnFulfillment(orderID uint) ([]models.OrderCommission, error) {
	if orderID == 0 {
		return nil, ErrOrderCommissionNotFound
	}
	holdingDays := s.holdingDays()
	var credited []models.OrderCommission
	err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.commissionRepo.WithTx(tx)
		records, err := repo.GetByOrderIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return ErrOrderCommissionNotFound
		}
		now := time.Now()
		releaseDate := now.AddDate(0, 0, holdingDays)
		for i := range records {
			record := &records[i]
			if record.Status == constants.OrderCommissionStatusCredited {
				credited = append(credited, *record)
				continue
			}
			if record.Status != constants.OrderCommissionStatusPending {
				return ErrOrderCommissionStatusInvalid
			}
			recordOrderID := record.OrderID
			if _, err := s.walletSvc.CreditEarningInTx(tx, WalletCreditInput{
				VendorID:         record.VendorID,
				VendorEarning:    record.VendorEarning,
				CommissionAmount: record.CommissionAmount,
				OrderID:          &recordOrderID,
				Reference:        commissionCreditReference(record.ID),
				ReleaseDate:      releaseDate,
				Remark:           fmt.Sprintf("订单 %d 销售所得入账", record.OrderID),
			}); err != nil {
				return err
			}
			record.Status = constants.OrderCommissionStatusCredited
			record.CreditedAt = &now
			record.UpdatedAt = now
			if err := repo.Update(record); err != nil {
				return err
			}
			credited = append(credited, *record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return credited, nil
}

// HandleRefund 订单退款冲正
//
// refundAmount 为空时全额回冲各已入账记录的商家所得；给定时按所得占比
// 分摊扣减额，且不得超过可回冲所得之和。冻结中的入账先提前释放，再按
// 可用优先的规则扣减。尚未入账的记录仅改状态，不触碰钱包。
func (s *CommissionService) HandleRefund(orderID uint, refundAmount *models.Money, remark string) ([]models.OrderCommission, error) {
	if orderID == 0 {
		return nil, ErrOrderCommissionNotFound
	}
	var refunded []models.OrderCommission
	err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		commissionRepo := s.commissionRepo.WithTx(tx)
		walletRepo := s.walletRepo.WithTx(tx)
		records, err := commissionRepo.GetByOrderIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return ErrOrderCommissionNotFound
		}

		creditedIdx := make([]int, 0, len(records))
		totalEarning := decimal.Zero
		for i := range records {
			switch records[i].Status {
			case constants.OrderCommissionStatusCredited:
				creditedIdx = append(creditedIdx, i)
				totalEarning = totalEarning.Add(records[i].VendorEarning.Decimal.Round(2))
			case constants.OrderCommissionStatusRefunded, constants.OrderCommissionStatusPending:
			default:
				return ErrOrderCommissionStatusInvalid
			}
		}

		// 扣减额：缺省全额回冲各记录所得；给定退款额时按所得占比分摊，尾差归最后一条
		clawbacks := make(map[int]decimal.Decimal, len(creditedIdx))
		if refundAmount == nil {
			for _, i := range creditedIdx {
				clawbacks[i] = records[i].VendorEarning.Decimal.Round(2)
			}
		} else {
			value := refundAmount.Decimal.Round(2)
			if value.LessThanOrEqual(decimal.Zero) || value.GreaterThan(totalEarning) {
				return ErrWalletInvalidAmount
			}
			allocated := decimal.Zero
			for n, i := range creditedIdx {
				share := value.Sub(allocated)
				if n < len(creditedIdx)-1 {
					share = value.Mul(records[i].VendorEarning.Decimal.Round(2)).Div(totalEarning).Round(2)
				}
				clawbacks[i] = share
				allocated = allocated.Add(share)
			}
		}

		now := time.Now()
		for i := range records {
			record := &records[i]
			switch record.Status {
			case constants.OrderCommissionStatusRefunded:
				refunded = append(refunded, *record)
				continue
			case constants.OrderCommissionStatusPending:
				// 未入账，直接作废
			case constants.OrderCommissionStatusCredited:
				hold, err := walletRepo.GetTransactionByReference(commissionCreditReference(record.ID))
				if err != nil {
					return err
				}
				if hold == nil {
					return ErrWalletTransactionCreateFailed
				}
				if hold.ReleasedAt == nil {
					// 冻结中的入账先提前释放，再按可用优先的规则扣减
					if _, err := s.walletSvc.ReleaseHoldInTx(tx, hold.ID); err != nil {
						return err
					}
				}
				if claw := clawbacks[i]; claw.IsPositive() {
					recordOrderID := record.OrderID
					if _, err := s.walletSvc.RefundInTx(tx, WalletRefundInput{
						VendorID:  record.VendorID,
						Amount:    models.NewMoneyFromDecimal(claw),
						OrderID:   &recordOrderID,
						Reference: commissionRefundReference(record.ID),
						Remark:    cleanRemark(remark, fmt.Sprintf("订单 %d 退款冲正", record.OrderID)),
					}); err != nil {
						return err
					}
				}
			}
			record.Status = constants.OrderCommissionStatusRefunded
			record.RefundedAt = &now
			record.UpdatedAt = now
			if err := commissionRepo.Update(record); err != nil {
				return err
			}
			refunded = append(refunded, *record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

// GetByOrderItem 查询订单行佣金记录
func (s *CommissionService) GetByOrderItem(orderItemID, vendorID uint) (*models.OrderCommission, error) {
	record, err := s.commissionRepo.GetByOrderItem(orderItemID, vendorID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrOrderCommissionNotFound
	}
	return record, nil
}

// List 分页查询佣金记录
func (s *CommissionService) List(filter repository.OrderCommissionListFilter) ([]models.OrderCommission, int64, error) {
	return s.commissionRepo.List(filter)
}

func (s *CommissionService) holdingDays() int {
	if s.cfg != nil && s.cfg.HoldingDays > 0 {
		return s.cfg.HoldingDays
	}
	return 7
}

func commissionCreditReference(commissionID uint) string {
	return fmt.Sprintf("commission:%d:credit", commissionID)
}

func commissionRefundReference(commissionID uint) string {
	return fmt.Sprintf("commission:%d:refund", commissionID)
}
