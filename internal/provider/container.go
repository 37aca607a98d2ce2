package provider

import (
	"github.com/duomai-next/internal/cache"
	"github.com/duomai-next/internal/config"
	"github.com/duomai-next/internal/logger"
	"github.com/duomai-next/internal/models"
	"github.com/duomai-next/internal/queue"
	"github.com/duomai-next/internal/repository"
	"github.com/duomai-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	RuleRepo       repository.CommissionRuleRepository
	CommissionRepo repository.CommissionRepository
	WalletRepo     repository.WalletRepository
	PayoutRepo     repository.PayoutRepository
	VendorRepo     repository.VendorRepository
	CategoryRepo   repository.CategoryRepository
	SummaryRepo    repository.SummaryRepository

	// Services
	RuleService       *service.CommissionRuleService
	CommissionService *service.CommissionService
	WalletService     *service.WalletService
	PayoutService     *service.PayoutService
	SettlementService *service.SettlementService
	SummaryService    *service.SummaryService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.RuleRepo = repository.NewCommissionRuleRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.WalletRepo = repository.NewWalletRepository(db)
	c.PayoutRepo = repository.NewPayoutRepository(db)
	c.VendorRepo = repository.NewVendorRepository(db)
	c.CategoryRepo = repository.NewCategoryRepository(db)
	c.SummaryRepo = repository.NewSummaryRepository(db)
}

func (c *Container) initServices() {
	settlementCfg := &c.Config.Settlement

	c.WalletService = service.NewWalletService(c.WalletRepo)
	c.RuleService = service.NewCommissionRuleService(c.RuleRepo, c.CategoryRepo, c.CommissionRepo, settlementCfg)
	c.CommissionService = service.NewCommissionService(c.CommissionRepo, c.WalletRepo, c.RuleService, c.WalletService, settlementCfg)
	c.PayoutService = service.NewPayoutService(c.PayoutRepo, c.VendorRepo, c.WalletRepo, c.WalletService, settlementCfg)
	c.SummaryService = service.NewSummaryService(c.SummaryRepo, settlementCfg)
	c.SettlementService = service.NewSettlementService(
		c.WalletRepo,
		c.CommissionRepo,
		c.PayoutRepo,
		c.VendorRepo,
		c.SummaryRepo,
		c.WalletService,
		c.PayoutService,
		settlementCfg,
	)
}
