package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Audit modes
const (
	AuditModeTransactional = "transactional"
	AuditModeDeferred      = "deferred"
)

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Audit    AuditConfig
	Cron     CronConfig
	Seed     SeedConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	RefreshSecret    string
	AccessTokenMins  int
	RefreshTokenDays int
}

// RedisConfig holds Redis configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// RabbitMQConfig holds broker configuration. An empty URL disables publishing.
type RabbitMQConfig struct {
	URL string
}

// AuditConfig controls how audit entries are written
type AuditConfig struct {
	Mode        string
	MaxAttempts int
}

// CronConfig holds background job schedules
type CronConfig struct {
	AuditRetrySpec string
	ReconcileSpec  string
}

// SeedConfig holds the first admin account
type SeedConfig struct {
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	config := &Config{
		AppMode:  appMode,
		Port:     getEnv("PORT", "3000"),
		Database: loadDatabaseConfig(appMode),
		JWT:      loadJWTConfig(appMode),
		Redis:    loadRedisConfig(),
		RabbitMQ: RabbitMQConfig{URL: getEnv("RABBITMQ_URL", "")},
		Audit:    loadAuditConfig(),
		Cron: CronConfig{
			AuditRetrySpec: getEnv("AUDIT_RETRY_SPEC", "@every 1m"),
			ReconcileSpec:  getEnv("RECONCILE_SPEC", "0 2 * * *"),
		},
		Seed: SeedConfig{
			AdminName:     getEnv("SEED_ADMIN_NAME", "Administrator"),
			AdminEmail:    getEnv("SEED_ADMIN_EMAIL", ""),
			AdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Set global config
	AppConfig = config

	log.Printf("✅ Configuration loaded successfully [MODE: %s, DB: %s, AUDIT: %s]",
		appMode, config.Database.Driver, config.Audit.Mode)
	return config, nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("invalid DB_DRIVER: '%s' (must be 'mysql' or 'postgres')", c.Database.Driver)
	}
	switch c.Audit.Mode {
	case AuditModeTransactional, AuditModeDeferred:
	default:
		return fmt.Errorf("invalid AUDIT_MODE: '%s' (must be '%s' or '%s')",
			c.Audit.Mode, AuditModeTransactional, AuditModeDeferred)
	}
	if c.Audit.MaxAttempts < 1 {
		return fmt.Errorf("AUDIT_MAX_ATTEMPTS must be at least 1")
	}
	if c.IsProd() && (c.JWT.Secret == "default_secret" || c.JWT.RefreshSecret == "default_refresh_secret") {
		return fmt.Errorf("JWT secrets must be set in prod mode")
	}
	return nil
}

// prefix returns the env prefix for mode-specific settings
func prefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	p := prefix(mode)
	driver := strings.ToLower(getEnv("DB_DRIVER", "mysql"))

	defaultPort := "3306"
	if driver == "postgres" {
		defaultPort = "5432"
	}

	return DatabaseConfig{
		Driver:   driver,
		Host:     getEnv(p+"DB_HOST", "localhost"),
		Port:     getEnv(p+"DB_PORT", defaultPort),
		User:     getEnv(p+"DB_USER", "root"),
		Password: getEnv(p+"DB_PASS", ""),
		DBName:   getEnv(p+"DB_NAME", "loanbook"),
		SSLMode:  getEnv(p+"DB_SSLMODE", "disable"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	p := prefix(mode)

	accessMins, _ := strconv.Atoi(getEnv("ACCESS_TOKEN_MINUTES", "15"))
	refreshDays, _ := strconv.Atoi(getEnv("REFRESH_TOKEN_DAYS", "7"))

	return JWTConfig{
		Secret:           getEnv(p+"JWT_SECRET", "default_secret"),
		RefreshSecret:    getEnv(p+"JWT_REFRESH_SECRET", "default_refresh_secret"),
		AccessTokenMins:  accessMins,
		RefreshTokenDays: refreshDays,
	}
}

// loadRedisConfig accepts REDIS_HOST + REDIS_PORT or the REDIS_ADDR shorthand
func loadRedisConfig() RedisConfig {
	addr := getEnv("REDIS_ADDR", "")
	host, port := getEnv("REDIS_HOST", ""), getEnv("REDIS_PORT", "")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tlsEnv := getEnv("REDIS_TLS", "")

	return RedisConfig{
		Addr:     addr,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
		TLS:      strings.EqualFold(tlsEnv, "true") || tlsEnv == "1",
	}
}

func loadAuditConfig() AuditConfig {
	attempts, err := strconv.Atoi(getEnv("AUDIT_MAX_ATTEMPTS", "5"))
	if err != nil {
		attempts = 5
	}
	return AuditConfig{
		Mode:        strings.ToLower(getEnv("AUDIT_MODE", AuditModeTransactional)),
		MaxAttempts: attempts,
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "http://localhost:5173"
	}
	return origins
}
