package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Port                  string
	DatabaseDSN           string
	JWTSecret             string
	Env                   string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
	RedisURL              string
	CORSOrigins           []string
	WSSendBuffer          int
	RateLimitRPS          int
	RateLimitBurst        int
	WorkerConcurrency     int
}

var defaults = map[string]interface{}{
	"APP_PORT":                 "8080",
	"DATABASE_DSN":             "host=localhost user=postgres password=postgres dbname=moringa port=5432 sslmode=disable TimeZone=UTC",
	"JWT_SECRET":               defaultJWTSecret,
	"APP_ENV":                  "dev",
	"ACCESS_TOKEN_TTL_MINUTES": 15,
	"REFRESH_TOKEN_TTL_DAYS":   7,
	"REDIS_URL":                "",
	"CORS_ORIGINS":             "",
	"WS_SEND_BUFFER":           256,
	"RATE_LIMIT_RPS":           20,
	"RATE_LIMIT_BURST":         40,
	"WORKER_CONCURRENCY":       10,
}

// Load 从环境变量（以及可选的 .env 文件）读取配置，非法数值回退到默认值。
func Load() Config {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // .env 可选
	v.AutomaticEnv()

	return Config{
		Port:                  v.GetString("APP_PORT"),
		DatabaseDSN:           v.GetString("DATABASE_DSN"),
		JWTSecret:             v.GetString("JWT_SECRET"),
		Env:                   v.GetString("APP_ENV"),
		AccessTokenTTLMinutes: positive(v.GetInt("ACCESS_TOKEN_TTL_MINUTES"), 15),
		RefreshTokenTTLDays:   positive(v.GetInt("REFRESH_TOKEN_TTL_DAYS"), 7),
		RedisURL:              v.GetString("REDIS_URL"),
		CORSOrigins:           splitCSV(v.GetString("CORS_ORIGINS")),
		WSSendBuffer:          positive(v.GetInt("WS_SEND_BUFFER"), 256),
		RateLimitRPS:          positive(v.GetInt("RATE_LIMIT_RPS"), 20),
		RateLimitBurst:        positive(v.GetInt("RATE_LIMIT_BURST"), 40),
		WorkerConcurrency:     positive(v.GetInt("WORKER_CONCURRENCY"), 10),
	}
}

// Validate 在启动前检查关键配置，非 dev 环境禁止使用默认 JWT 密钥。
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("config: APP_PORT is empty")
	}
	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return errors.New("config: DATABASE_DSN is empty")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == defaultJWTSecret {
		return errors.New("config: JWT_SECRET must be set outside dev")
	}
	return nil
}

func positive(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
