package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // For durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppEnv    string // Environment name (development, production)
	IsProd    bool   // Is production environment
	LogLevel  string // logrus level name
	LogFormat string // text or json

	DBUser            string        // Database user
	DBPassword        string        // Database password
	DBHost            string        // Database host
	DBPort            string        // Database port
	DBName            string        // Database name
	DBMaxOpenConns    int           // Pool size
	DBMaxIdleConns    int           // Idle connections kept in the pool
	DBConnMaxLifetime time.Duration // Connection recycle interval

	RedisAddr string        // Redis server address, empty disables caching
	RedisPass string        // Redis password
	RedisDB   int           // Redis database number
	CacheTTL  time.Duration // TTL for cached reads

	SessionSecret string        // HMAC key for session tokens
	SessionTTL    time.Duration // Session token lifetime
	SessionFile   string        // Where bankctl keeps the current session token

	PINHashCost      int           // bcrypt cost for PIN hashes
	PINAttemptLimit  int           // Authentication attempts per window, 0 disables throttling
	PINAttemptWindow time.Duration // Throttle window

	AccountNumberAttempts int           // Account number generations before giving up
	LedgerTimeout         time.Duration // Upper bound on a single ledger operation
	LedgerMaxRetries      int           // Retries on transient storage contention

	BanksFile string // YAML bank seed used by migrate
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	appEnv := getEnv("APP_ENV", "development")
	return &Config{
		AppEnv:    appEnv,
		IsProd:    appEnv == "production" || os.Getenv("IS_PROD") == "true",
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DBUser:            getEnv("DB_USER", "root"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBHost:            getEnv("DB_HOST", "127.0.0.1"),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBName:            getEnv("DB_NAME", "bank_system"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisPass: os.Getenv("REDIS_PASS"),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		CacheTTL:  getEnvDuration("CACHE_TTL", 60*time.Second),

		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    getEnvDuration("SESSION_TTL", 15*time.Minute),
		SessionFile:   getEnv("SESSION_FILE", defaultSessionFile()),

		PINHashCost:      getEnvInt("PIN_HASH_COST", 10),
		PINAttemptLimit:  getEnvInt("PIN_ATTEMPT_LIMIT", 5),
		PINAttemptWindow: getEnvDuration("PIN_ATTEMPT_WINDOW", 15*time.Minute),

		AccountNumberAttempts: getEnvInt("ACCOUNT_NUMBER_ATTEMPTS", 5),
		LedgerTimeout:         getEnvDuration("LEDGER_TIMEOUT", 5*time.Second),
		LedgerMaxRetries:      getEnvInt("LEDGER_MAX_RETRIES", 3),

		BanksFile: os.Getenv("BANKS_FILE"),
	}
}

// DSN returns the MySQL data source name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bankctl_session"
	}
	return home + string(os.PathSeparator) + ".bankctl_session"
}
