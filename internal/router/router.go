package router

import (
	"fmt"
	"strings"

	"github.com/duomai-next/internal/cache"
	"github.com/duomai-next/internal/config"
	adminhandlers "github.com/duomai-next/internal/http/handlers/admin"
	hookhandlers "github.com/duomai-next/internal/http/handlers/hooks"
	vendorhandlers "github.com/duomai-next/internal/http/handlers/vendor"
	"github.com/duomai-next/internal/logger"
	"github.com/duomai-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按管理端/商家端/回调分组）
	adminHandler := adminhandlers.New(c)
	vendorHandler := vendorhandlers.New(c)
	hookHandler := hookhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "dm"
	}
	redisClient := cache.Client()
	payoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:payout", redisPrefix),
		WindowSeconds: cfg.Security.APIRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.APIRateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 订单事件回调（内部接口）
		events := apiV1.Group("/events")
		events.Use(InternalTokenMiddleware(cfg.Security.InternalToken))
		{
			events.POST("/orders/paid", hookHandler.OrderPaid)
			events.POST("/orders/fulfilled", hookHandler.OrderFulfilled)
			events.POST("/orders/refunded", hookHandler.OrderRefunded)
		}

		// 商家端接口
		vendor := apiV1.Group("/vendors/:vendor_id")
		{
			vendor.GET("/wallet", vendorHandler.GetWallet)
			vendor.GET("/wallet/transactions", vendorHandler.ListTransactions)
			vendor.GET("/commissions", vendorHandler.ListCommissions)
			vendor.GET("/commissions/:order_item_id", vendorHandler.GetCommissionByOrderItem)
			vendor.GET("/payouts", vendorHandler.ListPayouts)
			vendor.POST("/payouts", RateLimitMiddleware(redisClient, payoutRule, KeyByPathParam("vendor_id")), vendorHandler.CreatePayout)
			vendor.POST("/payouts/:id/cancel", vendorHandler.CancelPayout)
			vendor.GET("/payouts/schedule", vendorHandler.GetPayoutSchedule)
			vendor.GET("/payout-profile", vendorHandler.GetPayoutProfile)
			vendor.PUT("/payout-profile", vendorHandler.UpdatePayoutProfile)
		}
		apiV1.POST("/payouts/quote", vendorHandler.QuotePayoutFees)

		// 管理端接口
		admin := apiV1.Group("/admin")
		{
			// 佣金规则
			admin.GET("/commission-rules", adminHandler.ListCommissionRules)
			admin.GET("/commission-rules/:id", adminHandler.GetCommissionRule)
			admin.POST("/commission-rules", adminHandler.CreateCommissionRule)
			admin.PUT("/commission-rules/:id", adminHandler.UpdateCommissionRule)
			admin.DELETE("/commission-rules/:id", adminHandler.DeleteCommissionRule)
			admin.POST("/commission-rules/resolve", adminHandler.ResolveCommissionRule)

			// 分佣记录
			admin.GET("/commissions", adminHandler.ListOrderCommissions)

			// 钱包
			admin.GET("/vendors/:vendor_id/wallet", adminHandler.GetVendorWallet)
			admin.GET("/wallet-transactions", adminHandler.ListWalletTransactions)
			admin.POST("/vendors/:vendor_id/wallet/adjust", adminHandler.AdjustVendorWallet)
			admin.POST("/vendors/:vendor_id/wallet/verify", adminHandler.VerifyVendorLedger)

			// 提现
			admin.GET("/payouts", adminHandler.ListPayouts)
			admin.GET("/payouts/:id", adminHandler.GetPayout)
			admin.GET("/payouts/by-no/:payout_no", adminHandler.GetPayoutByNo)
			admin.POST("/payouts/:id/review", adminHandler.ReviewPayout)
			admin.POST("/payouts/:id/approve", adminHandler.ApprovePayout)
			admin.POST("/payouts/:id/reject", adminHandler.RejectPayout)
			admin.POST("/payouts/:id/cancel", adminHandler.CancelPayout)
			admin.POST("/payouts/:id/processing", adminHandler.MarkPayoutProcessing)
			admin.POST("/payouts/:id/complete", adminHandler.CompletePayout)

			// 财务汇总
			admin.GET("/summaries", adminHandler.ListFinancialSummaries)
			admin.GET("/summaries/detail", adminHandler.GetFinancialSummary)
			admin.POST("/summaries/aggregate", adminHandler.TriggerSummaryAggregate)

			// 结算任务
			admin.POST("/jobs/release-holds", adminHandler.TriggerHoldRelease)
			admin.POST("/jobs/auto-withdraw", adminHandler.TriggerAutoWithdraw)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
