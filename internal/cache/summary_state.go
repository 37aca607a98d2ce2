package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/duomai-next/internal/models"
)

const walletSnapshotCacheTTL = 5 * time.Minute

// WalletSnapshot 钱包余额快照
// 仅用于读路径降载，写路径每次变更后必须删除对应缓存
type WalletSnapshot struct {
	VendorID         uint         `json:"vendor_id"`
	AvailableBalance models.Money `json:"available_balance"`
	PendingBalance   models.Money `json:"pending_balance"`
	ReservedBalance  models.Money `json:"reserved_balance"`
	TotalEarned      models.Money `json:"total_earned"`
	TotalWithdrawn   models.Money `json:"total_withdrawn"`
	UpdatedAt        int64        `json:"updated_at"`
}

func walletSnapshotKey(vendorID uint) string {
	return fmt.Sprintf("wallet:vendor:%d", vendorID)
}

func summaryKey(scope string, scopeRef uint, period string, periodStart time.Time) string {
	return fmt.Sprintf("summary:%s:%d:%s:%s", scope, scopeRef, period, periodStart.Format("2006-01-02"))
}

// BuildWalletSnapshot 从钱包模型构建快照
func BuildWalletSnapshot(wallet *models.VendorWallet) *WalletSnapshot {
	if wallet == nil {
		return nil
	}
	return &WalletSnapshot{
		VendorID:         wallet.VendorID,
		AvailableBalance: wallet.AvailableBalance,
		PendingBalance:   wallet.PendingBalance,
		ReservedBalance:  wallet.ReservedBalance,
		TotalEarned:      wallet.TotalEarned,
		TotalWithdrawn:   wallet.TotalWithdrawn,
		UpdatedAt:        time.Now().Unix(),
	}
}

// GetWalletSnapshot 获取钱包快照
func GetWalletSnapshot(ctx context.Context, vendorID uint) (*WalletSnapshot, bool, error) {
	if vendorID == 0 {
		return nil, false, nil
	}
	var snapshot WalletSnapshot
	hit, err := GetJSON(ctx, walletSnapshotKey(vendorID), &snapshot)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &snapshot, true, nil
}

// SetWalletSnapshot 写入钱包快照
func SetWalletSnapshot(ctx context.Context, snapshot *WalletSnapshot) error {
	if snapshot == nil || snapshot.VendorID == 0 {
		return nil
	}
	return SetJSON(ctx, walletSnapshotKey(snapshot.VendorID), snapshot, walletSnapshotCacheTTL)
}

// DelWalletSnapshot 删除钱包快照（余额变更后调用）
func DelWalletSnapshot(ctx context.Context, vendorID uint) error {
	if vendorID == 0 {
		return nil
	}
	return Del(ctx, walletSnapshotKey(vendorID))
}

// GetFinancialSummary 获取财务汇总缓存
func GetFinancialSummary(ctx context.Context, scope string, scopeRef uint, period string, periodStart time.Time, dest *models.FinancialSummary) (bool, error) {
	return GetJSON(ctx, summaryKey(scope, scopeRef, period, periodStart), dest)
}

// SetFinancialSummary 写入财务汇总缓存
func SetFinancialSummary(ctx context.Context, summary *models.FinancialSummary, ttl time.Duration) error {
	if summary == nil {
		return nil
	}
	return SetJSON(ctx, summaryKey(summary.Scope, summary.ScopeRef, summary.Period, summary.PeriodStart), summary, ttl)
}

// DelFinancialSummary 删除财务汇总缓存（聚合任务重算后调用）
func DelFinancialSummary(ctx context.Context, scope string, scopeRef uint, period string, periodStart time.Time) error {
	return Del(ctx, summaryKey(scope, scopeRef, period, periodStart))
}
