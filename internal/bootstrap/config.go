package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/DauBapp/WebCoCaro-DACN/internal/infra/setup"
)

// Config 从环境变量或 .env 文件加载的配置
type Config struct {
	AppEnv     string
	ServerPort string
	LogLevel   string

	DB setup.DBConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	JWTSecret      string
	JWTExpiryHours int

	RateLimitMax    int
	RateLimitWindow time.Duration
	WSRateLimitMax  int

	HistoryKeep          int
	HistoryPageSize      int
	HistoryPruneSchedule string

	CORSAllowedOrigin string
}

// LoadConfig 从环境变量加载配置，.env 文件不存在时忽略
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:     envOr("APP_ENV", "development"),
		ServerPort: envOr("SERVER_PORT", "8080"),
		LogLevel:   envOr("LOG_LEVEL", "info"),
		DB: setup.DBConfig{
			Driver:   envOr("DB_DRIVER", setup.DriverMySQL),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Host:     envOr("DB_HOST", "127.0.0.1"),
			Port:     os.Getenv("DB_PORT"),
			Name:     envOr("DB_NAME", "caro"),
		},
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		KeyPrefix:     envOr("REDIS_KEY_PREFIX", "caro:"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiryHours: envInt("JWT_EXPIRY_HOURS", 24),

		RateLimitMax:    envInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 1)) * time.Second,
		WSRateLimitMax:  envInt("WS_RATE_LIMIT_MAX", 20),

		HistoryKeep:          envInt("HISTORY_KEEP", 25),
		HistoryPageSize:      envInt("HISTORY_PAGE_SIZE", 10),
		HistoryPruneSchedule: envOr("HISTORY_PRUNE_SCHEDULE", "@every 10m"),

		CORSAllowedOrigin: envOr("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
	}

	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	switch cfg.DB.Driver {
	case setup.DriverMySQL, setup.DriverPostgres, setup.DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER '%s'", cfg.DB.Driver)
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt 读取正整数，缺失或非法时返回默认值
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logrus.Warnf("Invalid %s '%s', using default %d", key, v, def)
		return def
	}
	return n
}
