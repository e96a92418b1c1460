package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Redis cache configuration
	Redis RedisConfig

	// Reservation engine configuration
	Reservation ReservationConfig

	// Loyalty ledger configuration
	Loyalty LoyaltyConfig

	// Background job configuration
	Scheduler SchedulerConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	AutoMigrate        bool // run embedded migrations on boot
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// RedisConfig holds the template cache settings. An empty URL disables caching.
type RedisConfig struct {
	URL         string
	PoolSize    int
	TemplateTTL time.Duration
}

// ReservationConfig holds hold horizons and booking settings
type ReservationConfig struct {
	Timezone        string        // calendar used for search dates and template times
	CheckoutHold    time.Duration // online checkout session hold
	TerminalHold    time.Duration // pay-at-terminal grace period
	SweepInterval   time.Duration
	SweepBatchSize  int
	ReferencePrefix string
	Currency        string
}

// LoyaltyConfig holds points economics
type LoyaltyConfig struct {
	RedemptionRate float64 // currency per redeemed point
	EarnRate       float64 // points per currency unit paid
	Tiers          string  // "bronze:0,silver:1000,gold:5000,platinum:10000"
}

// SchedulerConfig holds the materialization cron settings
type SchedulerConfig struct {
	Enabled              bool
	MaterializeCron      string // with seconds field
	MaterializeDaysAhead int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			AutoMigrate:        getEnvAsBool("DATABASE_AUTO_MIGRATE", false),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			Issuer:            getEnv("JWT_ISSUER", "kjkhandala-reservations"),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Redis: RedisConfig{
			URL:         getEnv("REDIS_URL", ""),
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 10),
			TemplateTTL: getEnvAsDuration("REDIS_TEMPLATE_TTL", 5*time.Minute),
		},
		Reservation: ReservationConfig{
			Timezone:        getEnv("RESERVATION_TIMEZONE", "Africa/Gaborone"),
			CheckoutHold:    getEnvAsDuration("RESERVATION_CHECKOUT_HOLD", 15*time.Minute),
			TerminalHold:    getEnvAsDuration("RESERVATION_TERMINAL_HOLD", 24*time.Hour),
			SweepInterval:   getEnvAsDuration("RESERVATION_SWEEP_INTERVAL", time.Minute),
			SweepBatchSize:  getEnvAsInt("RESERVATION_SWEEP_BATCH_SIZE", 200),
			ReferencePrefix: getEnv("BOOKING_REFERENCE_PREFIX", "KJ"),
			Currency:        getEnv("FARE_CURRENCY", "BWP"),
		},
		Loyalty: LoyaltyConfig{
			RedemptionRate: getEnvAsFloat("LOYALTY_REDEMPTION_RATE", 0.05),
			EarnRate:       getEnvAsFloat("LOYALTY_EARN_RATE", 0.1),
			Tiers:          getEnv("LOYALTY_TIERS", "bronze:0,silver:1000,gold:5000,platinum:10000"),
		},
		Scheduler: SchedulerConfig{
			Enabled:              getEnvAsBool("SCHEDULER_ENABLED", true),
			MaterializeCron:      getEnv("MATERIALIZE_CRON", "0 30 1 * * *"),
			MaterializeDaysAhead: getEnvAsInt("MATERIALIZE_DAYS_AHEAD", 7),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if _, err := time.LoadLocation(c.Reservation.Timezone); err != nil {
		return fmt.Errorf("invalid RESERVATION_TIMEZONE %q: %w", c.Reservation.Timezone, err)
	}

	if c.Reservation.CheckoutHold <= 0 || c.Reservation.TerminalHold <= 0 {
		return fmt.Errorf("reservation hold horizons must be positive")
	}

	if c.Reservation.SweepInterval <= 0 || c.Reservation.SweepBatchSize <= 0 {
		return fmt.Errorf("RESERVATION_SWEEP_INTERVAL and RESERVATION_SWEEP_BATCH_SIZE must be positive")
	}

	if c.Loyalty.RedemptionRate <= 0 {
		return fmt.Errorf("LOYALTY_REDEMPTION_RATE must be positive")
	}

	if c.Loyalty.EarnRate < 0 {
		return fmt.Errorf("LOYALTY_EARN_RATE cannot be negative")
	}

	if c.Loyalty.Tiers == "" {
		return fmt.Errorf("LOYALTY_TIERS is required")
	}

	if c.Scheduler.Enabled && c.Scheduler.MaterializeDaysAhead < 0 {
		return fmt.Errorf("MATERIALIZE_DAYS_AHEAD cannot be negative")
	}

	return nil
}

// Location returns the reservation calendar; Validate guarantees it loads
func (c *ReservationConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("15m", "24h")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
