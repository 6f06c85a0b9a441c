package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"lucremais-task/services"
	"lucremais-task/utils"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL    string
	Port           string
	AllowedOrigins []string
	TrustedProxies []string
	AdminToken     string

	BotToken    string
	BotUsername string
	WebAppURL   string
	VIPGroupID  int64

	RedisAddr     string
	RedisPassword string

	Timezone        string
	RequireInitData bool
	RateLimitRPM    int

	Rules services.Rules
	R2    utils.R2Config
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return FromEnv()
}

// FromEnv builds the config from the environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		Port:            getEnv("PORT", "3000"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "*")),
		TrustedProxies:  splitList(getEnv("TRUSTED_PROXIES", "")),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),
		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		BotUsername:     strings.TrimPrefix(getEnv("BOT_USERNAME", ""), "@"),
		WebAppURL:       getEnv("WEBAPP_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		Timezone:        getEnv("APP_TIMEZONE", "America/Sao_Paulo"),
		RequireInitData: getEnv("REQUIRE_INIT_DATA", "false") == "true",
		R2: utils.R2Config{
			AccountID:       getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			AccessKeySecret: getEnv("R2_ACCESS_KEY_SECRET", ""),
			Bucket:          getEnv("R2_BUCKET_NAME", ""),
			Endpoint:        getEnv("R2_ENDPOINT", ""),
			PublicBaseURL:   getEnv("CDN_BASE_URL", ""),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	var err error
	if cfg.VIPGroupID, err = getInt64("VIP_GROUP_ID", 0); err != nil {
		return nil, err
	}
	rpm, err := getInt64("RATE_LIMIT_RPM", 120)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitRPM = int(rpm)

	rules := services.DefaultRules
	if rules.SignupBonus, err = getInt64("SIGNUP_BONUS", rules.SignupBonus); err != nil {
		return nil, err
	}
	if rules.IndicatorBonus, err = getInt64("INDICATOR_BONUS", rules.IndicatorBonus); err != nil {
		return nil, err
	}
	ceiling, err := getInt64("REFERRAL_IP_CEILING", int64(rules.ThrottleCeiling))
	if err != nil {
		return nil, err
	}
	rules.ThrottleCeiling = int(ceiling)
	if rules.VIPThreshold, err = getInt64("VIP_THRESHOLD", rules.VIPThreshold); err != nil {
		return nil, err
	}
	if rules.StandardThreshold, err = getInt64("STANDARD_THRESHOLD", rules.StandardThreshold); err != nil {
		return nil, err
	}
	if v := getEnv("POINT_VALUE", ""); v != "" {
		if rules.PointValue, err = decimal.NewFromString(v); err != nil {
			return nil, fmt.Errorf("POINT_VALUE: %w", err)
		}
	}
	cfg.Rules = rules

	return cfg, nil
}

// Location resolves APP_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
