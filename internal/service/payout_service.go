package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/duomai-next/internal/config"
	"github.com/duomai-next/internal/constants"
	"github.com/duomai-next/internal/models"
	"github.com/duomai-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 提现最低限额
var minPayoutAmount = decimal.NewFromInt(1)

// PayoutService 提现申请服务
//
// 手续费在创建时按当时费率一次性计算并快照，之后费率调整不追溯；
// 申请创建与余额预留在同一事务内完成。
type PayoutService struct {
	payoutRepo repository.PayoutRepository
	vendorRepo repository.VendorRepository
	walletRepo repository.WalletRepository
	walletSvc  *WalletService
	cfg        *config.SettlementConfig
}

// PayoutCreateInput 创建提现申请输入
type PayoutCreateInput struct {
	VendorID   uint
	Amount     models.Money
	MethodType string
	Remark     string
}

// PayoutFeeQuote 手续费试算结果
type PayoutFeeQuote struct {
	Amount        models.Money `json:"amount"`
	PlatformFee   models.Money `json:"platform_fee"`
	ProcessingFee models.Money `json:"processing_fee"`
	NetAmount     models.Money `json:"net_amount"`
}

// NewPayoutService 创建提现服务
func NewPayoutService(
	payoutRepo repository.PayoutRepository,
	vendorRepo repository.VendorRepository,
	walletRepo repository.WalletRepository,
	walletSvc *WalletService,
	cfg *config.SettlementConfig,
) *PayoutService {
	return &PayoutService{
		payoutRepo: payoutRepo,
		vendorRepo: vendorRepo,
		walletRepo: walletRepo,
		walletSvc:  walletSvc,
		cfg:        cfg,
	}
}

// QuoteFees 按渠道费率试算手续费
func (s *PayoutService) QuoteFees(amount models.Money, methodType string) (*PayoutFeeQuote, error) {
	value := amount.Decimal.Round(2)
	if value.LessThanOrEqual(decimal.Zero) {
		return nil, ErrWalletInvalidAmount
	}
	platformFee, processingFee, err := s.computeFees(value, methodType)
	if err != nil {
		return nil, err
	}
	net := value.Sub(platformFee).Sub(processingFee)
	return &PayoutFeeQuote{
		Amount:        models.NewMoneyFromDecimal(value),
		PlatformFee:   models.NewMoneyFromDecimal(platformFee),
		ProcessingFee: models.NewMoneyFromDecimal(processingFee),
		NetAmount:     models.NewMoneyFromDecimal(net),
	}, nil
}

// CreateRequest 创建提现申请
//
// 顺序：频控校验 -> 安全检查 -> 手续费快照 -> 事务内预留余额并落单。
func (s *PayoutService) CreateRequest(input PayoutCreateInput) (*models.PayoutRequest, error) {
	if input.VendorID == 0 {
		return nil, ErrPayoutNotFound
	}
	amount := input.Amount.Decimal.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrWalletInvalidAmount
	}
	if amount.LessThan(minPayoutAmount) {
		return nil, ErrPayoutBelowMinimum
	}

	profile, err := s.vendorRepo.GetProfile(input.VendorID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrPayoutProfileNotFound
	}

	methodType := strings.TrimSpace(strings.ToLower(input.MethodType))
	if methodType == "" {
		methodType = profile.DefaultMethodType
	}
	if !validPayoutMethod(methodType) {
		return nil, ErrPayoutMethodInvalid
	}

	if err := s.checkRateLimit(input.VendorID, time.Now()); err != nil {
		return nil, err
	}
	active, err := s.payoutRepo.CountActiveByVendor(input.VendorID)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, ErrPayoutDuplicateActive
	}

	checksMethod := profile.MethodVerified
	checksDisputes := profile.OpenDisputes == 0
	if !checksMethod {
		return nil, ErrPayoutMethodUnverified
	}
	if !checksDisputes {
		return nil, ErrPayoutHasOpenDisputes
	}

	platformFee, processingFee, err := s.computeFees(amount, methodType)
	if err != nil {
		return nil, err
	}
	net := amount.Sub(platformFee).Sub(processingFee)
	if net.LessThanOrEqual(decimal.Zero) {
		return nil, ErrPayoutBelowMinimum
	}

	now := time.Now()
	payoutNo := generatePayoutNo()
	request := &models.PayoutRequest{
		PayoutNo:       payoutNo,
		VendorID:       input.VendorID,
		Amount:         models.NewMoneyFromDecimal(amount),
		PlatformFee:    models.NewMoneyFromDecimal(platformFee),
		ProcessingFee:  models.NewMoneyFromDecimal(processingFee),
		NetAmount:      models.NewMoneyFromDecimal(net),
		MethodType:     methodType,
		MethodSnapshot: profile.MethodDetail,
		Status:         constants.PayoutStatusRequested,
		StatusHistory: models.PayoutStatusHistory{{
			To:    constants.PayoutStatusRequested,
			Actor: "vendor",
			Note:  strings.TrimSpace(input.Remark),
			At:    now,
		}},
		ChecksDisputes: checksDisputes,
		ChecksMethod:   checksMethod,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		if err := s.payoutRepo.WithTx(tx).Create(request); err != nil {
			return err
		}
		requestID := request.ID
		if _, err := s.walletSvc.ReserveForPayoutInTx(tx, input.VendorID,
			models.NewMoneyFromDecimal(amount), &requestID,
			fmt.Sprintf("payout:%s:reserve", payoutNo)); err != nil {
			return err
		}
		request.ChecksBalance = true

		if s.cfg != nil && s.cfg.AutoApprove {
			appendPayoutHistory(request, constants.PayoutStatusApproved, "system", "安全检查通过自动审批", now)
			request.Status = constants.PayoutStatusApproved
		}
		return s.payoutRepo.WithTx(tx).Update(request)
	}); err != nil {
		return nil, err
	}
	return request, nil
}

// Review 管理员开始审核
func (s *PayoutService) Review(id uint, adminID uint) (*models.PayoutRequest, error) {
	return s.transit(id, constants.PayoutStatusUnderReview, "admin", "", &adminID, nil)
}

// Approve 管理员批准提现
func (s *PayoutService) Approve(id uint, adminID uint, note string) (*models.PayoutRequest, error) {
	return s.transit(id, constants.PayoutStatusApproved, "admin", note, &adminID, nil)
}

// MarkProcessing 管理员发起打款
func (s *PayoutService) MarkProcessing(id uint, adminID uint) (*models.PayoutRequest, error) {
	return s.transit(id, constants.PayoutStatusProcessing, "admin", "", &adminID, nil)
}

// Complete 打款完成出账
func (s *PayoutService) Complete(id uint, adminID uint, externalTxnRef string) (*models.PayoutRequest, error) {
	return s.transit(id, constants.PayoutStatusCompleted, "admin", "", &adminID,
		func(tx *gorm.DB, request *models.PayoutRequest, now time.Time) error {
			requestID := request.ID
			if _, err := s.walletSvc.CompletePayoutInTx(tx, request.VendorID, request.Amount,
				&requestID, fmt.Sprintf("payout:%s:complete", request.PayoutNo)); err != nil {
				return err
			}
			request.ExternalTxnRef = strings.TrimSpace(externalTxnRef)
			request.ProcessedAt = &now
			return nil
		})
}

// Reject 管理员拒绝提现，预留余额退回可用
func (s *PayoutService) Reject(id uint, adminID uint, reason string) (*models.PayoutRequest, error) {
	return s.transit(id, constants.PayoutStatusRejected, "admin", reason, &adminID,
		func(tx *gorm.DB, request *models.PayoutRequest, now time.Time) error {
			request.RejectReason = strings.TrimSpace(reason)
			return s.releaseReserve(tx, request, "提现被拒绝，预留退回")
		})
}

// Cancel 商家撤销提现，预留余额退回可用
//
// 商家只能撤销尚未批准的申请，批准/打款中的撤销走管理员通道。
func (s *PayoutService) Cancel(id uint, vendorID uint) (*models.PayoutRequest, error) {
	request, err := s.payoutRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if request == nil || request.VendorID != vendorID {
		return nil, ErrPayoutNotFound
	}
	return s.transit(id, constants.PayoutStatusCancelled, "vendor", "", nil,
		func(tx *gorm.DB, request *models.PayoutRequest, now time.Time) error {
			switch request.Status {
			case constants.PayoutStatusRequested, constants.PayoutStatusUnderReview:
			default:
				return ErrPayoutStatusInvalid
			}
			return s.releaseReserve(tx, request, "商家撤销提现，预留退回")
		})
}

// AdminCancel 管理员撤销提现，预留余额在同一事务内退回可用
func (s *PayoutService) AdminCancel(id uint, adminID uint, reason string) (*models.PayoutRequest, error) {
	return s.transit(id, constants.PayoutStatusCancelled, "admin", reason, &adminID,
		func(tx *gorm.DB, request *models.PayoutRequest, now time.Time) error {
			return s.releaseReserve(tx, request, "管理员撤销提现，预留退回")
		})
}

// GetByID 查询提现申请
func (s *PayoutService) GetByID(id uint) (*models.PayoutRequest, error) {
	request, err := s.payoutRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrPayoutNotFound
	}
	return request, nil
}

// GetByPayoutNo 按提现单号查询提现申请
func (s *PayoutService) GetByPayoutNo(payoutNo string) (*models.PayoutRequest, error) {
	payoutNo = strings.TrimSpace(payoutNo)
	if payoutNo == "" {
		return nil, ErrPayoutNotFound
	}
	request, err := s.payoutRepo.GetByPayoutNo(payoutNo)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrPayoutNotFound
	}
	return request, nil
}

// List 分页查询提现申请
func (s *PayoutService) List(filter repository.PayoutListFilter) ([]models.PayoutRequest, int64, error) {
	return s.payoutRepo.List(filter)
}

// GetProfile 查询商家提现设置
func (s *PayoutService) GetProfile(vendorID uint) (*models.VendorPayoutProfile, error) {
	profile, err := s.vendorRepo.GetProfile(vendorID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrPayoutProfileNotFound
	}
	return profile, nil
}

// PayoutProfileInput 提现设置更新输入
type PayoutProfileInput struct {
	VendorID              uint
	AutoWithdrawEnabled   bool
	AutoWithdrawThreshold models.Money
	DefaultMethodType     string
	MethodVerified        bool
	MethodDetail          models.JSON
}

// UpsertProfile 创建或更新商家提现设置
func (s *PayoutService) UpsertProfile(input PayoutProfileInput) (*models.VendorPayoutProfile, error) {
	if input.VendorID == 0 {
		return nil, ErrPayoutProfileNotFound
	}
	if input.DefaultMethodType != "" && !constants.IsValidPayoutMethod(input.DefaultMethodType) {
		return nil, ErrPayoutMethodInvalid
	}
	if input.AutoWithdrawThreshold.Decimal.IsNegative() {
		return nil, ErrWalletInvalidAmount
	}
	now := time.Now()
	profile, err := s.vendorRepo.GetProfile(input.VendorID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &models.VendorPayoutProfile{VendorID: input.VendorID, CreatedAt: now}
	}
	profile.AutoWithdrawEnabled = input.AutoWithdrawEnabled
	profile.AutoWithdrawThreshold = input.AutoWithdrawThreshold
	profile.DefaultMethodType = input.DefaultMethodType
	profile.MethodVerified = input.MethodVerified
	if input.MethodDetail != nil {
		profile.MethodDetail = input.MethodDetail
	}
	profile.UpdatedAt = now
	if profile.ID == 0 {
		if err := s.vendorRepo.CreateProfile(profile); err != nil {
			return nil, err
		}
		return profile, nil
	}
	if err := s.vendorRepo.UpdateProfile(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// NextEligibleAt 返回商家下次可申请提现的时间，已可申请返回零值
func (s *PayoutService) NextEligibleAt(vendorID uint, now time.Time) (time.Time, error) {
	latest, err := s.payoutRepo.GetLatestByVendor(vendorID)
	if err != nil {
		return time.Time{}, err
	}
	if latest == nil {
		return time.Time{}, nil
	}
	next := latest.CreatedAt.Add(s.rateLimitWindow())
	if now.Before(next) {
		return next, nil
	}
	return time.Time{}, nil
}

// transit 在事务内加锁执行一次状态流转
func (s *PayoutService) transit(
	id uint,
	to string,
	actor string,
	note string,
	adminID *uint,
	hook func(tx *gorm.DB, request *models.PayoutRequest, now time.Time) error,
) (*models.PayoutRequest, error) {
	var result *models.PayoutRequest
	err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.payoutRepo.WithTx(tx)
		request, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if request == nil {
			return ErrPayoutNotFound
		}
		if !canTransitPayout(request.Status, to) {
			return ErrPayoutStatusInvalid
		}
		now := time.Now()
		if hook != nil {
			if err := hook(tx, request, now); err != nil {
				return err
			}
		}
		appendPayoutHistory(request, to, actor, note, now)
		request.Status = to
		if adminID != nil && *adminID != 0 {
			request.ProcessedBy = adminID
		}
		request.UpdatedAt = now
		if err := repo.Update(request); err != nil {
			return err
		}
		result = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PayoutService) releaseReserve(tx *gorm.DB, request *models.PayoutRequest, remark string) error {
	requestID := request.ID
	_, err := s.walletSvc.CancelPayoutReserveInTx(tx, request.VendorID, request.Amount,
		&requestID, fmt.Sprintf("payout:%s:cancel", request.PayoutNo), remark)
	return err
}

// checkRateLimit 同一商家在频控窗口内只允许一笔申请
func (s *PayoutService) checkRateLimit(vendorID uint, now time.Time) error {
	latest, err := s.payoutRepo.GetLatestByVendor(vendorID)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}
	next := latest.CreatedAt.Add(s.rateLimitWindow())
	if now.Before(next) {
		return NewRateLimitError(vendorID, next)
	}
	return nil
}

// computeFees 按渠道计算平台抽佣与渠道手续费
func (s *PayoutService) computeFees(amount decimal.Decimal, methodType string) (decimal.Decimal, decimal.Decimal, error) {
	fees := config.PayoutFeeConfig{}
	if s.cfg != nil {
		fees = s.cfg.Fees
	}
	hundred := decimal.NewFromInt(100)
	platformFee := amount.Mul(decimal.NewFromFloat(fees.PlatformPercent)).Div(hundred).Round(2)

	var processingFee decimal.Decimal
	switch methodType {
	case constants.PayoutMethodBankTransfer:
		processingFee = decimal.NewFromFloat(fees.BankTransferFlat).Round(2)
	case constants.PayoutMethodMobileWallet:
		processingFee = amount.Mul(decimal.NewFromFloat(fees.MobileWalletPercent)).Div(hundred).Round(2)
		feeCap := decimal.NewFromFloat(fees.MobileWalletCap)
		if feeCap.IsPositive() && processingFee.GreaterThan(feeCap) {
			processingFee = feeCap.Round(2)
		}
	case constants.PayoutMethodCard:
		processingFee = amount.Mul(decimal.NewFromFloat(fees.CardPercent)).Div(hundred).
			Add(decimal.NewFromFloat(fees.CardFlat)).Round(2)
	default:
		return decimal.Zero, decimal.Zero, ErrPayoutMethodInvalid
	}
	return platformFee, processingFee, nil
}

func (s *PayoutService) rateLimitWindow() time.Duration {
	hours := 24
	if s.cfg != nil && s.cfg.PayoutRateLimitHours > 0 {
		hours = s.cfg.PayoutRateLimitHours
	}
	return time.Duration(hours) * time.Hour
}

func validPayoutMethod(methodType string) bool {
	switch methodType {
	case constants.PayoutMethodBankTransfer, constants.PayoutMethodMobileWallet, constants.PayoutMethodCard:
		return true
	default:
		return false
	}
}

func appendPayoutHistory(request *models.PayoutRequest, to, actor, note string, at time.Time) {
	request.StatusHistory = append(request.StatusHistory, models.PayoutStatusChange{
		From:  request.Status,
		To:    to,
		Actor: actor,
		Note:  strings.TrimSpace(note),
		At:    at,
	})
}

func generatePayoutNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("PO%s%s", now, randPayoutNumeric(6))
}

func randPayoutNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}
