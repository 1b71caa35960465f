package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	BaseURL       string           `json:"base_url"`
	JWTSecret     string           `json:"jwt_secret"`
	JWTTTLHours   int              `json:"jwt_ttl_hours"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	FileStore     FileStoreConfig  `json:"file_store"`
	RichText      RichTextConfig   `json:"richtext"`
	EntryCache    EntryCacheConfig `json:"entry_cache"`
	Jobs          JobsConfig       `json:"jobs"`
	CORSAllowlist []string         `json:"cors_allowlist"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type RichTextConfig struct {
	Tag           string `json:"tag"`
	IDAttr        string `json:"id_attr"`
	SiteHandle    string `json:"site_handle"`
	DefaultLocale string `json:"default_locale"`
	EntryURLBase  string `json:"entry_url_base"`
}

type EntryCacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

type JobsConfig struct {
	ReferenceSyncCron    string `json:"reference_sync_cron"`
	PublishCron          string `json:"publish_cron"`
	PublishConcurrency   int    `json:"publish_concurrency"`
	PublishWindowSeconds int    `json:"publish_window_seconds"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.Database.DSN == "" && c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.JWTTTLHours == 0 {
		c.JWTTTLHours = 72
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	if c.RichText.SiteHandle == "" {
		c.RichText.SiteHandle = "default"
	}
	if c.RichText.DefaultLocale == "" {
		c.RichText.DefaultLocale = "en-US"
	}
	if c.RichText.EntryURLBase == "" {
		c.RichText.EntryURLBase = "/entries"
	}
	if c.EntryCache.Size < 0 || c.EntryCache.TTLSeconds < 0 {
		return fmt.Errorf("entry_cache size and ttl_seconds must not be negative")
	}
	if c.Jobs.PublishConcurrency <= 0 {
		c.Jobs.PublishConcurrency = 4
	}
	if c.Jobs.PublishWindowSeconds < 0 {
		return fmt.Errorf("jobs.publish_window_seconds must not be negative")
	}
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://127.0.0.1:%d", c.Port)
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for name, spec := range map[string]string{
		"jobs.reference_sync_cron": c.Jobs.ReferenceSyncCron,
		"jobs.publish_cron":        c.Jobs.PublishCron,
	} {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s is invalid: %w", name, err)
		}
	}
	return nil
}
