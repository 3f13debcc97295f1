// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvProduction は本番環境を表すAPP_ENVの値。
const EnvProduction = "production"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string
	AppEnv     string

	// Database（空の場合はメモリストアを使う）
	DatabaseURL string

	// Logging
	LogLevel string

	// Rate Limit
	SubmissionRateLimitMax    int
	SubmissionRateLimitWindow time.Duration
	RateLimitGeneral          int

	// Request
	MaxBodyBytes int64
	TrustProxy   bool

	// CSRF / Cookie
	CSRFEnabled  bool
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 未設定または解釈できない値はデフォルト値になる。
// 制限値が正でない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:                getEnvString("SERVER_PORT", "8080"),
		AppEnv:                    strings.ToLower(getEnvString("APP_ENV", "development")),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		LogLevel:                  strings.ToLower(getEnvString("LOG_LEVEL", "info")),
		SubmissionRateLimitMax:    getEnvInt("SUBMISSION_RATE_LIMIT_MAX", 5),
		SubmissionRateLimitWindow: getEnvDuration("SUBMISSION_RATE_LIMIT_WINDOW", 60*time.Second),
		RateLimitGeneral:          getEnvInt("RATE_LIMIT_GENERAL", 120),
		MaxBodyBytes:              getEnvInt64("MAX_BODY_BYTES", 65536),
		TrustProxy:                getEnvBool("TRUST_PROXY", false),
		CSRFEnabled:               getEnvBool("CSRF_ENABLED", false),
		CookieDomain:              getEnvString("COOKIE_DOMAIN", ""),
		CORSAllowedOrigin:         getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173"),
	}
	cfg.CookieSecure = cfg.IsProduction()

	var invalid []string
	if cfg.SubmissionRateLimitMax <= 0 {
		invalid = append(invalid, "SUBMISSION_RATE_LIMIT_MAX")
	}
	if cfg.SubmissionRateLimitWindow <= 0 {
		invalid = append(invalid, "SUBMISSION_RATE_LIMIT_WINDOW")
	}
	if cfg.RateLimitGeneral <= 0 {
		invalid = append(invalid, "RATE_LIMIT_GENERAL")
	}
	if cfg.MaxBodyBytes <= 0 {
		invalid = append(invalid, "MAX_BODY_BYTES")
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("environment variables must be positive: %v", invalid)
	}

	return cfg, nil
}

// IsProduction は本番環境で動作しているかどうかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// UsesDatabase はPostgreSQLを使う構成かどうかを返す。
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
