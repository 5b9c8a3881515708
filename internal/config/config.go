/**
 * @description
 * This package handles the configuration management for the ledger-service. It uses
 * the Viper library to read configuration from environment variables and an optional
 * .env file, providing a centralized and straightforward way to manage settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 * - github.com/robfig/cron/v3: Validates the reconciliation schedule.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	defaultServerPort             = "8080"
	defaultDBMaxConns             = 100
	defaultDBMinConns             = 20
	defaultRateLimitPrefix        = "ledger:transfer_quota"
	defaultTransferRateLimit      = 30
	defaultTransferWindowSeconds  = 60
	defaultEventsExchange         = "ledger.events"
	defaultPINMaxAttempts         = 5
	defaultPINLockoutSeconds      = 600
	defaultIdentifierMaxAttempts  = 20
	defaultReconcileSchedule      = "*/15 * * * *"
	defaultCORSAllowedOrigins     = "*"
	maxIdentifierAttemptsAllowed  = 100
	minPINLockoutSecondsPermitted = 30
)

// Config holds all the configuration variables for the ledger-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                   string `mapstructure:"SERVER_PORT"`
	DatabaseURL                  string `mapstructure:"DATABASE_URL"`
	DBMaxConns                   int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns                   int32  `mapstructure:"DB_MIN_CONNS"`
	RunMigrations                bool   `mapstructure:"RUN_MIGRATIONS"`
	RedisURL                     string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix         string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	TransferRateLimitPerMinute   int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
	TransferRateWindowSeconds    int    `mapstructure:"TRANSFER_RATE_WINDOW_SECONDS"`
	RabbitMQURL                  string `mapstructure:"RABBITMQ_URL"`
	LedgerEventsExchange         string `mapstructure:"LEDGER_EVENTS_EXCHANGE"`
	JWKSURL                      string `mapstructure:"JWKS_URL"`
	JWTAudience                  string `mapstructure:"JWT_AUDIENCE"`
	JWTIssuer                    string `mapstructure:"JWT_ISSUER"`
	InternalAPIKey               string `mapstructure:"INTERNAL_API_KEY"`
	TransactionPINMaxAttempts    int    `mapstructure:"TRANSACTION_PIN_MAX_ATTEMPTS"`
	TransactionPINLockoutSeconds int    `mapstructure:"TRANSACTION_PIN_LOCKOUT_SECONDS"`
	IdentifierMaxAttempts        int    `mapstructure:"IDENTIFIER_MAX_ATTEMPTS"`
	ReconcileSchedule            string `mapstructure:"RECONCILE_SCHEDULE"`
	CORSAllowedOrigins           string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("DB_MAX_CONNS", defaultDBMaxConns)
	viper.SetDefault("DB_MIN_CONNS", defaultDBMinConns)
	viper.SetDefault("RUN_MIGRATIONS", true)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", defaultRateLimitPrefix)
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", defaultTransferRateLimit)
	viper.SetDefault("TRANSFER_RATE_WINDOW_SECONDS", defaultTransferWindowSeconds)
	viper.SetDefault("LEDGER_EVENTS_EXCHANGE", defaultEventsExchange)
	viper.SetDefault("TRANSACTION_PIN_MAX_ATTEMPTS", defaultPINMaxAttempts)
	viper.SetDefault("TRANSACTION_PIN_LOCKOUT_SECONDS", defaultPINLockoutSeconds)
	viper.SetDefault("IDENTIFIER_MAX_ATTEMPTS", defaultIdentifierMaxAttempts)
	viper.SetDefault("RECONCILE_SCHEDULE", defaultReconcileSchedule)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", defaultCORSAllowedOrigins)

	// Bind environment variables explicitly so they appear in Unmarshal.
	for _, key := range []string{
		"SERVER_PORT", "PORT", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "RUN_MIGRATIONS",
		"REDIS_URL", "REDIS_RATE_LIMIT_PREFIX", "TRANSFER_RATE_LIMIT_PER_MINUTE", "TRANSFER_RATE_WINDOW_SECONDS",
		"RABBITMQ_URL", "LEDGER_EVENTS_EXCHANGE",
		"JWKS_URL", "JWT_AUDIENCE", "JWT_ISSUER", "INTERNAL_API_KEY",
		"TRANSACTION_PIN_MAX_ATTEMPTS", "TRANSACTION_PIN_LOCKOUT_SECONDS",
		"IDENTIFIER_MAX_ATTEMPTS", "RECONCILE_SCHEDULE", "CORS_ALLOWED_ORIGINS",
	} {
		_ = viper.BindEnv(key)
	}
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "LEDGER_SERVICE_INTERNAL_API_KEY")

	// The .env file is optional.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = defaultRateLimitPrefix
	}
	config.LedgerEventsExchange = strings.TrimSpace(config.LedgerEventsExchange)
	if config.LedgerEventsExchange == "" {
		config.LedgerEventsExchange = defaultEventsExchange
	}

	if config.DBMaxConns <= 0 {
		log.Printf("level=warn component=config msg=\"invalid DB_MAX_CONNS; using default\" value=%d", config.DBMaxConns)
		config.DBMaxConns = defaultDBMaxConns
	}
	if config.DBMinConns < 0 || config.DBMinConns > config.DBMaxConns {
		log.Printf("level=warn component=config msg=\"invalid DB_MIN_CONNS; clamping\" value=%d max=%d", config.DBMinConns, config.DBMaxConns)
		config.DBMinConns = min(int32(defaultDBMinConns), config.DBMaxConns)
	}
	if config.TransferRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative transfer rate limit; disabling\" value=%d", config.TransferRateLimitPerMinute)
		config.TransferRateLimitPerMinute = 0
	}
	if config.TransferRateWindowSeconds <= 0 {
		config.TransferRateWindowSeconds = defaultTransferWindowSeconds
	}
	if config.TransactionPINMaxAttempts <= 0 {
		config.TransactionPINMaxAttempts = defaultPINMaxAttempts
	}
	if config.TransactionPINLockoutSeconds < minPINLockoutSecondsPermitted {
		log.Printf("level=warn component=config msg=\"transaction pin lockout too short; using default\" value=%d", config.TransactionPINLockoutSeconds)
		config.TransactionPINLockoutSeconds = defaultPINLockoutSeconds
	}
	if config.IdentifierMaxAttempts <= 0 || config.IdentifierMaxAttempts > maxIdentifierAttemptsAllowed {
		log.Printf("level=warn component=config msg=\"invalid IDENTIFIER_MAX_ATTEMPTS; using default\" value=%d", config.IdentifierMaxAttempts)
		config.IdentifierMaxAttempts = defaultIdentifierMaxAttempts
	}

	config.ReconcileSchedule = strings.TrimSpace(config.ReconcileSchedule)
	if _, parseErr := cron.ParseStandard(config.ReconcileSchedule); parseErr != nil {
		log.Printf("level=warn component=config msg=\"invalid RECONCILE_SCHEDULE; using default\" value=%q err=%v", config.ReconcileSchedule, parseErr)
		config.ReconcileSchedule = defaultReconcileSchedule
	}
	if strings.TrimSpace(config.CORSAllowedOrigins) == "" {
		config.CORSAllowedOrigins = defaultCORSAllowedOrigins
	}

	return
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{defaultCORSAllowedOrigins}
	}
	return origins
}
