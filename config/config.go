// Package config loads application configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all worker configuration loaded from environment variables.
type Config struct {
	// Market data
	FeedURL     string // websocket tick source
	Instruments string // comma-separated instrument ids
	FrameSec    int    // bar frame length in seconds
	HistoryCap  int    // bars kept per instrument

	// Evaluation cadence
	EvalIntervalSec int

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string

	// Notifications (optional; empty disables the channel)
	TelegramToken  string
	TelegramChatID int64
	WebhookURL     string

	LogLevel string
}

// Load reads configuration with sensible defaults. A .env file in the
// working directory is merged in first when present; real environment
// variables win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	return &Config{
		FeedURL:     getEnv("FEED_URL", "ws://localhost:8081/ws"),
		Instruments: getEnv("INSTRUMENTS", "SBER,GAZP"),
		FrameSec:    getEnvInt("FRAME_SEC", 60),
		HistoryCap:  getEnvInt("HISTORY_CAP", 200),

		EvalIntervalSec: getEnvInt("EVAL_INTERVAL_SEC", 60),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID: getEnvInt64("TELEGRAM_CHAT_ID", 0),
		WebhookURL:     getEnv("WEBHOOK_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ParseInstruments splits the instrument list, dropping empty entries.
func (c *Config) ParseInstruments() []string {
	parts := strings.Split(c.Instruments, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
