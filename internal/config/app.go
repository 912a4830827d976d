package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Leganyst/tour-marketplace/internal/policy"
)

// AppConfig — всё, кроме БД: адреса, комиссии, шлюз, фоновые задачи.
type AppConfig struct {
	Environment string
	LogLevel    string

	GRPCAddr string
	HTTPAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NotifyChannel string
	NotifyBuffer  int

	GatewayKind    string // sandbox | http
	GatewayURL     string
	GatewayAPIKey  string
	GatewayTimeout time.Duration
	// WebhookSecret сверяется с заголовком X-Webhook-Secret; пустой отключает проверку.
	WebhookSecret string

	PaymentWindow time.Duration
	SweepInterval time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string

	Settings policy.Settings
}

func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		GRPCAddr: getEnv("GRPC_ADDR", ":50051"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		NotifyChannel: getEnv("NOTIFY_CHANNEL", "booking-events"),
		NotifyBuffer:  getEnvInt("NOTIFY_BUFFER", 256),

		GatewayKind:    strings.ToLower(getEnv("GATEWAY_KIND", "sandbox")),
		GatewayURL:     getEnv("GATEWAY_URL", ""),
		GatewayAPIKey:  getEnv("GATEWAY_API_KEY", ""),
		GatewayTimeout: getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		WebhookSecret:  getEnv("WEBHOOK_SECRET", ""),

		PaymentWindow: getEnvDuration("PAYMENT_WINDOW", 30*time.Minute),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Minute),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		Settings: policy.Settings{
			PlatformFee: policy.FeeConfig{
				Enabled:     getEnvBool("PLATFORM_FEE_ENABLED", true),
				Type:        policy.FeeType(strings.ToUpper(getEnv("PLATFORM_FEE_TYPE", string(policy.FeePercentage)))),
				Percentage:  getEnvFloat("PLATFORM_FEE_PERCENT", 10),
				FixedAmount: getEnvInt64("PLATFORM_FEE_FIXED", 0),
			},
			ServiceFee: policy.FeeConfig{
				Enabled:    getEnvBool("SERVICE_FEE_ENABLED", true),
				Type:       policy.FeePercentage,
				Percentage: getEnvFloat("SERVICE_FEE_PERCENT", 10),
			},
			MinimumPayout:   getEnvInt64("PAYOUT_MINIMUM", 5000),
			DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
		},
	}

	if cfg.GatewayKind != "sandbox" && cfg.GatewayKind != "http" {
		return nil, fmt.Errorf("invalid app config: unknown GATEWAY_KIND %q", cfg.GatewayKind)
	}
	if cfg.GatewayKind == "http" && cfg.GatewayURL == "" {
		return nil, fmt.Errorf("invalid app config: GATEWAY_URL is required for http gateway")
	}
	t := cfg.Settings.PlatformFee.Type
	if t != policy.FeePercentage && t != policy.FeeFixed {
		return nil, fmt.Errorf("invalid app config: unknown PLATFORM_FEE_TYPE %q", t)
	}
	if cfg.GatewayTimeout <= 0 {
		return nil, fmt.Errorf("invalid app config: GATEWAY_TIMEOUT must be positive")
	}

	return cfg, nil
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}
