package service

import (
	"context"
	"errors"
	"time"

	"github.com/duomai-next/internal/cache"
	"github.com/duomai-next/internal/config"
	"github.com/duomai-next/internal/models"
	"github.com/duomai-next/internal/repository"

	"github.com/duomai-next/internal/logger"
)

// ErrSummaryNotFound 财务汇总不存在
var ErrSummaryNotFound = errors.New("财务汇总不存在")

// SummaryService 财务汇总查询服务
//
// 读路径走 cache-aside，聚合任务重算后由结算服务删除对应缓存。
type SummaryService struct {
	summaryRepo repository.SummaryRepository
	cfg         *config.SettlementConfig
}

// NewSummaryService 创建财务汇总服务
func NewSummaryService(summaryRepo repository.SummaryRepository, cfg *config.SettlementConfig) *SummaryService {
	return &SummaryService{summaryRepo: summaryRepo, cfg: cfg}
}

// Get 查询单个周期的汇总（优先缓存）
func (s *SummaryService) Get(ctx context.Context, scope string, scopeRef uint, period string, periodStart time.Time) (*models.FinancialSummary, error) {
	var cached models.FinancialSummary
	hit, err := cache.GetFinancialSummary(ctx, scope, scopeRef, period, periodStart, &cached)
	if err != nil {
		logger.Warnw("汇总缓存读取失败", "scope", scope, "scope_ref", scopeRef, "error", err)
	}
	if hit {
		return &cached, nil
	}

	summary, err := s.summaryRepo.Get(scope, scopeRef, period, periodStart)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, ErrSummaryNotFound
	}
	if err := cache.SetFinancialSummary(ctx, summary, s.cacheTTL()); err != nil {
		logger.Warnw("汇总缓存写入失败", "scope", scope, "scope_ref", scopeRef, "error", err)
	}
	return summary, nil
}

// List 分页查询汇总
func (s *SummaryService) List(filter repository.SummaryListFilter) ([]models.FinancialSummary, int64, error) {
	return s.summaryRepo.List(filter)
}

func (s *SummaryService) cacheTTL() time.Duration {
	if s.cfg != nil && s.cfg.SummaryCacheTTLSeconds > 0 {
		return time.Duration(s.cfg.SummaryCacheTTLSeconds) * time.Second
	}
	return 5 * time.Minute
}
