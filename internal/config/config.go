package config

import (
	"fmt"
	"strings"

	"github.com/duomai-next/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Security   SecurityConfig   `mapstructure:"security"`
	Settlement SettlementConfig `mapstructure:"settlement"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	APIRateLimit  APIRateLimitConfig `mapstructure:"api_rate_limit"`
	InternalToken string             `mapstructure:"internal_token"` // 订单回调鉴权令牌，空则不校验
}

// APIRateLimitConfig 接口限流配置
type APIRateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// SettlementConfig 结算引擎配置
//
// 分账/钱包/提现的所有业务常量都从这里注入，禁止在引擎内部读取环境变量，
// 保证测试可以注入确定性的参数。
type SettlementConfig struct {
	// HoldingDays 佣金入账后的冻结天数，到期后由释放任务转入可用余额
	HoldingDays int `mapstructure:"holding_days"`
	// DefaultCommissionPercent 无任何规则命中时的平台默认佣金比例
	DefaultCommissionPercent float64 `mapstructure:"default_commission_percent"`
	// PayoutRateLimitHours 同一商家两次提现申请的最小间隔（小时）
	PayoutRateLimitHours int `mapstructure:"payout_rate_limit_hours"`
	// AutoApprove 安全检查全部通过时是否允许自动审批提现
	AutoApprove bool `mapstructure:"auto_approve"`
	// SummaryCacheTTLSeconds 汇总查询缓存的有效期（秒）
	SummaryCacheTTLSeconds int `mapstructure:"summary_cache_ttl_seconds"`
	// Fees 各提现渠道费率
	Fees PayoutFeeConfig `mapstructure:"fees"`
	// AutoWithdraw 自动提现默认参数
	AutoWithdraw AutoWithdrawConfig `mapstructure:"auto_withdraw"`
}

// PayoutFeeConfig 提现渠道费率配置
type PayoutFeeConfig struct {
	// BankTransferFlat 银行转账固定手续费
	BankTransferFlat float64 `mapstructure:"bank_transfer_flat"`
	// MobileWalletPercent 移动钱包按比例手续费（百分比）
	MobileWalletPercent float64 `mapstructure:"mobile_wallet_percent"`
	// MobileWalletCap 移动钱包手续费上限（0 表示不封顶）
	MobileWalletCap float64 `mapstructure:"mobile_wallet_cap"`
	// CardPercent 卡通道按比例手续费（百分比）
	CardPercent float64 `mapstructure:"card_percent"`
	// CardFlat 卡通道固定手续费
	CardFlat float64 `mapstructure:"card_flat"`
	// PlatformPercent 平台统一抽佣（百分比，叠加在渠道手续费之上）
	PlatformPercent float64 `mapstructure:"platform_percent"`
}

// AutoWithdrawConfig 自动提现配置
type AutoWithdrawConfig struct {
	// Enabled 全局开关，关闭时每日自动提现任务直接跳过
	Enabled bool `mapstructure:"enabled"`
	// DefaultThreshold 商家未单独设置时的默认起提金额
	DefaultThreshold float64 `mapstructure:"default_threshold"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")     // 从当前目录查找
	viper.AddConfigPath("./")    // 备用路径
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	// 设置默认值
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "settlement.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/duomai.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "dm")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-CSRF-Token",
		"X-Admin-ID",
		"X-Internal-Token",
	})
	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 600)
	viper.SetDefault("security.api_rate_limit.window_seconds", 60)
	viper.SetDefault("security.api_rate_limit.max_requests", 120)
	viper.SetDefault("security.internal_token", "")
	viper.SetDefault("settlement.holding_days", 7)
	viper.SetDefault("settlement.default_commission_percent", 10)
	viper.SetDefault("settlement.payout_rate_limit_hours", 24)
	viper.SetDefault("settlement.auto_approve", false)
	viper.SetDefault("settlement.summary_cache_ttl_seconds", 60)
	viper.SetDefault("settlement.fees.bank_transfer_flat", 2)
	viper.SetDefault("settlement.fees.mobile_wallet_percent", 2)
	viper.SetDefault("settlement.fees.mobile_wallet_cap", 0)
	viper.SetDefault("settlement.fees.card_percent", 1.5)
	viper.SetDefault("settlement.fees.card_flat", 1)
	viper.SetDefault("settlement.fees.platform_percent", 0)
	viper.SetDefault("settlement.auto_withdraw.enabled", true)
	viper.SetDefault("settlement.auto_withdraw.default_threshold", 100)

	// 环境变量支持
	viper.AutomaticEnv()                                   // 自动读取环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 将 . 替换为 _ (例如 server.port -> SERVER_PORT)

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}
