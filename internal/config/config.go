package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	// Base URL of the external chat collaborator notified about invites.
	// Empty disables invite notifications.
	ChatBaseURL string

	// First side to reach this score wins. The threshold is enforced by
	// clients; the recorder trusts the final flag it receives.
	WinScore int

	// TTL applied to session and player records in Redis. Durable match
	// history lives in Postgres.
	SessionTTL time.Duration

	// Sessions left PAUSED longer than this are ended by the reaper.
	PausedTimeout  time.Duration
	ReaperInterval time.Duration

	AllowedOrigins []string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:     ":8080",
		WinScore:       11,
		SessionTTL:     24 * time.Hour,
		PausedTimeout:  30 * time.Minute,
		ReaperInterval: time.Minute,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ChatBaseURL = strings.TrimSpace(os.Getenv("CHAT_BASE_URL"))

	if v := strings.TrimSpace(os.Getenv("WIN_SCORE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WinScore = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("PAUSED_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PausedTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("REAPER_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ReaperInterval = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	return cfg, nil
}
