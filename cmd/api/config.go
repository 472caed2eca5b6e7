package main

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

type Config struct {
	HttpPort         int    `json:"http_port"`
	DatabaseURL      string `json:"database_url"`
	RedisAddr        string `json:"redis_addr"`
	WebhookSecret    string `json:"webhook_secret"`
	StatsCacheTTLStr string `json:"stats_cache_ttl"`

	StatsCacheTTL time.Duration `json:"-"`
}

// ReadConfigJson reads json formatted configuration from the given file.
// A missing file is not an error; environment variables and defaults can
// carry the whole configuration.
func ReadConfigJson(configFile string) (*Config, error) {
	cfg := new(Config)

	content, err := os.ReadFile(configFile)
	if err == nil {
		if err = json.Unmarshal(content, cfg); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	// environment wins over the file
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.WebhookSecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}

	if cfg.HttpPort == 0 {
		cfg.HttpPort = 8080
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "data/app.db"
	}
	if cfg.StatsCacheTTLStr == "" {
		cfg.StatsCacheTTLStr = "10s"
	}
	cfg.StatsCacheTTL, err = time.ParseDuration(cfg.StatsCacheTTLStr)
	if err != nil {
		return nil, err
	}

	// refusing to start without a secret beats accepting unsigned traffic
	if cfg.WebhookSecret == "" {
		return nil, errors.New("webhook secret is required (webhook_secret or WEBHOOK_SECRET)")
	}

	return cfg, nil
}
