package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type SMTPConfig struct {
	Host          string
	Port          string
	User          string
	Pass          string
	TLSMode       string // "", "tls", "starttls"
	SkipVerifyTLS bool
	From          string
	FromName      string
}

type ProviderConfig struct {
	BaseURL   string
	ClientID  string
	ClientKey string
}

type PollConfig struct {
	GraceDelay  time.Duration // wait before first verify, payer needs time to authorize
	Interval    time.Duration
	MaxAttempts int
}

type Config struct {
	HTTPAddr string
	DBDSN    string

	SMTP     SMTPConfig
	Provider ProviderConfig
	Poll     PollConfig

	// How long one dues payment keeps a membership active, counted
	// from the completion date.
	MembershipValidity time.Duration
}

func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		DBDSN:    os.Getenv("DB_DSN"),
		SMTP: SMTPConfig{
			Host:          envOr("SMTP_HOST", "localhost"),
			Port:          envOr("SMTP_PORT", "1025"),
			User:          os.Getenv("SMTP_USER"),
			Pass:          os.Getenv("SMTP_PASS"),
			TLSMode:       os.Getenv("SMTP_TLS_MODE"),
			SkipVerifyTLS: os.Getenv("SMTP_SKIP_VERIFY_TLS") == "1",
			From:          envOr("SMTP_FROM", "no-reply@local.test"),
			FromName:      envOr("SMTP_FROM_NAME", "GPWDEBA"),
		},
		Provider: ProviderConfig{
			BaseURL:   os.Getenv("MOMO_BASE_URL"),
			ClientID:  os.Getenv("MOMO_CLIENT_ID"),
			ClientKey: os.Getenv("MOMO_CLIENT_KEY"),
		},
		Poll: PollConfig{
			GraceDelay:  envDuration("POLL_GRACE_DELAY", 15*time.Second),
			Interval:    envDuration("POLL_INTERVAL", 10*time.Second),
			MaxAttempts: envInt("POLL_MAX_ATTEMPTS", 12),
		},
		MembershipValidity: envDuration("MEMBERSHIP_VALIDITY", 365*24*time.Hour),
	}

	if cfg.DBDSN == "" {
		return Config{}, fmt.Errorf("config: DB_DSN is required")
	}
	if cfg.Poll.MaxAttempts < 1 {
		return Config{}, fmt.Errorf("config: POLL_MAX_ATTEMPTS must be >= 1")
	}
	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
