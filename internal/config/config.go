package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // optional; Postgres job store when set
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // optional; Redis job store when set
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // retention of terminal job records
}

type AIConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	DefaultModel    string `yaml:"default_model"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
}

type PipelineConfig struct {
	Path            string        `yaml:"path"` // pipeline descriptor; built-in default when empty
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	StageTimeout    time.Duration `yaml:"stage_timeout"`
	JobTimeout      time.Duration `yaml:"job_timeout"` // 0 disables the aggregate deadline
	ArxivURL        string        `yaml:"arxiv_url"`
	ArxivMaxResults int           `yaml:"arxiv_max_results"`
}

type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type AdminConfig struct {
	APIKey     string        `yaml:"api_key"`     // exchanged for a session token
	JWTSecret  string        `yaml:"jwt_secret"`  // HMAC secret for session tokens
	SessionTTL time.Duration `yaml:"session_ttl"` // default 30m
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Notify   NotifyConfig   `yaml:"notify"`
	Admin    AdminConfig    `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.MaxPromptTokens <= 0 {
		cfg.AI.MaxPromptTokens = 12000
	}
	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = 8
	}
	if cfg.Pipeline.QueueSize <= 0 {
		cfg.Pipeline.QueueSize = 64
	}
	if cfg.Pipeline.StageTimeout <= 0 {
		cfg.Pipeline.StageTimeout = 5 * time.Minute
	}
	if cfg.Pipeline.ArxivMaxResults <= 0 {
		cfg.Pipeline.ArxivMaxResults = 5
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 72 * time.Hour
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}

	// Minimal validation
	if cfg.AI.OpenAIKey == "" && cfg.AI.GeminiKey == "" && !dev {
		return nil, errors.New("ai: set ai.openai_key or ai.gemini_key (or run with -dev)")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
