package main

import (
	"github.com/duomai-next/internal/config"
	"github.com/duomai-next/internal/constants"
	"github.com/duomai-next/internal/logger"
	"github.com/duomai-next/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加类目（父子两级，覆盖祖先链解析）
	rootCategories := []models.Category{
		{Name: "电子产品"},
		{Name: "生活用品"},
	}
	categoryIDs := map[string]uint{}
	for i := range rootCategories {
		cat := &rootCategories[i]
		var existing models.Category
		if err := models.DB.Where("name = ? AND parent_id IS NULL", cat.Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(cat).Error; err != nil {
				stdLog.Printf("Failed to create category %s: %v", cat.Name, err)
				continue
			}
			stdLog.Printf("Created category: %s", cat.Name)
			categoryIDs[cat.Name] = cat.ID
		} else {
			stdLog.Printf("Category already exists: %s", existing.Name)
			categoryIDs[existing.Name] = existing.ID
		}
	}
	if parentID, ok := categoryIDs["电子产品"]; ok {
		child := models.Category{Name: "数码配件", ParentID: &parentID}
		var existing models.Category
		if err := models.DB.Where("name = ? AND parent_id = ?", child.Name, parentID).First(&existing).Error; err != nil {
			if err := models.DB.Create(&child).Error; err != nil {
				stdLog.Printf("Failed to create category %s: %v", child.Name, err)
			} else {
				stdLog.Printf("Created category: %s", child.Name)
				categoryIDs[child.Name] = child.ID
			}
		} else {
			categoryIDs[existing.Name] = existing.ID
		}
	}

	// 平台兜底佣金规则：10%
	var platformRule models.CommissionRule
	if err := models.DB.Where("scope = ? AND scope_ref IS NULL", constants.CommissionScopePlatform).First(&platformRule).Error; err != nil {
		rule := models.CommissionRule{
			Scope:    constants.CommissionScopePlatform,
			RuleType: constants.CommissionRuleTypePercentage,
			Value:    models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
			IsActive: true,
			Remark:   "平台默认佣金",
		}
		if err := models.DB.Create(&rule).Error; err != nil {
			stdLog.Printf("Failed to create platform rule: %v", err)
		} else {
			stdLog.Printf("Created platform default rule: 10%%")
		}
	} else {
		stdLog.Printf("Platform default rule already exists")
	}

	// 电子产品类目规则：8%，覆盖子类目
	if categoryID, ok := categoryIDs["电子产品"]; ok {
		var categoryRule models.CommissionRule
		if err := models.DB.Where("scope = ? AND scope_ref = ?", constants.CommissionScopeCategory, categoryID).First(&categoryRule).Error; err != nil {
			scopeRef := categoryID
			rule := models.CommissionRule{
				Scope:                constants.CommissionScopeCategory,
				ScopeRef:             &scopeRef,
				RuleType:             constants.CommissionRuleTypePercentage,
				Value:                models.NewMoneyFromDecimal(decimal.NewFromInt(8)),
				IncludeSubcategories: true,
				IsActive:             true,
				Remark:               "电子产品类目佣金",
			}
			if err := models.DB.Create(&rule).Error; err != nil {
				stdLog.Printf("Failed to create category rule: %v", err)
			} else {
				stdLog.Printf("Created category rule: 8%%")
			}
		}
	}

	// 示例商家：提现设置 + 钱包
	const demoVendorID uint = 1
	var profile models.VendorPayoutProfile
	if err := models.DB.Where("vendor_id = ?", demoVendorID).First(&profile).Error; err != nil {
		profile = models.VendorPayoutProfile{
			VendorID:              demoVendorID,
			AutoWithdrawEnabled:   false,
			AutoWithdrawThreshold: models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
			DefaultMethodType:     constants.PayoutMethodBankTransfer,
			MethodVerified:        true,
			MethodDetail: models.JSON(map[string]interface{}{
				"bank_name":      "示例银行",
				"account_number": "6222000000000000",
				"account_name":   "示例商家",
			}),
		}
		if err := models.DB.Create(&profile).Error; err != nil {
			stdLog.Printf("Failed to create vendor payout profile: %v", err)
		} else {
			stdLog.Printf("Created payout profile for vendor %d", demoVendorID)
		}
	} else {
		stdLog.Printf("Payout profile already exists for vendor %d", demoVendorID)
	}

	var wallet models.VendorWallet
	if err := models.DB.Where("vendor_id = ?", demoVendorID).First(&wallet).Error; err != nil {
		wallet = models.VendorWallet{VendorID: demoVendorID}
		if err := models.DB.Create(&wallet).Error; err != nil {
			stdLog.Printf("Failed to create vendor wallet: %v", err)
		} else {
			stdLog.Printf("Created wallet for vendor %d", demoVendorID)
		}
	} else {
		stdLog.Printf("Wallet already exists for vendor %d", demoVendorID)
	}

	stdLog.Printf("Seed finished")
}
