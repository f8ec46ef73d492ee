package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // For TTLs and time zones

	"github.com/joho/godotenv" // For loading .env files

	"merit_system/internal/domain" // Domain types for community defaults
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	JWTSecret  string // JWT secret key
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number
	IsProd     bool   // Is production environment

	DailyAllowance  int64             // Quota of communities without settings
	StartingBalance int64             // Starting wallet balance of communities without settings
	VotingMode      domain.VotingMode // Voting mode of communities without settings
	QuotaLocation   *time.Location    // Time zone whose midnight resets quotas
	CacheTTL        time.Duration     // Balance and rules cache TTL
	IdempotencyTTL  time.Duration     // How long an in-flight idempotency key is held
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:    os.Getenv("APP_PORT"),          // Application port
		DBUser:     os.Getenv("DB_USER"),           // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),       // Database password
		DBHost:     os.Getenv("DB_HOST"),           // Database host
		DBPort:     os.Getenv("DB_PORT"),           // Database port
		DBName:     os.Getenv("DB_NAME"),           // Database name
		JWTSecret:  os.Getenv("JWT_SECRET"),        // JWT secret key
		RedisAddr:  os.Getenv("REDIS_ADDR"),        // Redis server address
		RedisPass:  os.Getenv("REDIS_PASS"),        // Redis password
		RedisDB:    redisDB,                        // Redis database number
		IsProd:     os.Getenv("IS_PROD") == "true", // Is production environment

		DailyAllowance:  envInt("QUOTA_DAILY_ALLOWANCE", 10),                                 // Default daily quota
		StartingBalance: envInt("WALLET_STARTING_BALANCE", 0),                                // Default starting balance
		VotingMode:      envMode("DEFAULT_VOTING_MODE", domain.ModeQuotaAndWallet),           // Default voting mode
		QuotaLocation:   envLocation("QUOTA_TIMEZONE", time.UTC),                             // Quota reset time zone
		CacheTTL:        time.Duration(envInt("CACHE_TTL_SECONDS", 60)) * time.Second,        // Cache TTL
		IdempotencyTTL:  time.Duration(envInt("IDEMPOTENCY_TTL_SECONDS", 300)) * time.Second, // Idempotency claim TTL
	}
}

// DSN builds the MySQL Data Source Name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

// CommunityDefaults is the policy applied to communities that were never configured
func (c *Config) CommunityDefaults() domain.Community {
	return domain.Community{
		DailyAllowance:  c.DailyAllowance,
		StartingBalance: c.StartingBalance,
		VotingMode:      c.VotingMode,
	}
}

// envInt reads a non-negative integer, falling back on absence or garbage
func envInt(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// envMode reads a voting mode, falling back when unknown
func envMode(key string, fallback domain.VotingMode) domain.VotingMode {
	if m := domain.VotingMode(os.Getenv(key)); m.Valid() {
		return m
	}
	return fallback
}

// envLocation reads an IANA time zone name
func envLocation(key string, fallback *time.Location) *time.Location {
	name := os.Getenv(key)
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}
