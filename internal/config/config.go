// Package config loads PageGuard configuration from a YAML file, with
// sane defaults so the service runs with no config file at all. Secrets
// are never stored in the file; each backend names the environment
// variable its API key is read from.
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Service identity reported on the root and health endpoints.
const (
	AppName = "PageGuard API"
	Version = "1.0.0"
)

// Config holds PageGuard configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Quota   QuotaConfig   `yaml:"quota"`
	Cache   CacheConfig   `yaml:"cache"`
	Breach  BreachConfig  `yaml:"breach"`
	History HistoryConfig `yaml:"history"`
	Audit   AuditConfig   `yaml:"audit"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // HTTP listen address, e.g. ":8000"

	// Burst protection for the whole process, independent of the
	// per-day quotas.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"` // "gemini" or "groq"
	Gemini   BackendConfig `yaml:"gemini"`
	Groq     BackendConfig `yaml:"groq"`
}

// BackendConfig describes one reasoning-model backend.
type BackendConfig struct {
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"` // env var holding the key, e.g. "GEMINI_API_KEY"
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// APIKey resolves the backend credential from the environment.
func (b BackendConfig) APIKey() string {
	if b.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(b.APIKeyEnv))
}

// Timeout returns the backend call timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

type QuotaConfig struct {
	ScansPerDay        int `yaml:"scans_per_day"`
	BreachChecksPerDay int `yaml:"breach_checks_per_day"`
}

type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`

	// SweepIntervalSeconds enables an optional background sweep of
	// expired entries. Zero disables it; expiry on read always applies.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

// TTL returns the cache time-to-live.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// SweepInterval returns the background sweep interval (zero = disabled).
func (c CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

type BreachConfig struct {
	DirectoryURL            string `yaml:"directory_url"`
	RangeURL                string `yaml:"range_url"`
	UserAgent               string `yaml:"user_agent"`
	APIKeyEnv               string `yaml:"api_key_env"`
	DirectoryTimeoutSeconds int    `yaml:"directory_timeout_seconds"`
	RangeTimeoutSeconds     int    `yaml:"range_timeout_seconds"`
}

// APIKey resolves the optional breach-directory credential.
func (b BreachConfig) APIKey() string {
	if b.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(b.APIKeyEnv))
}

func (b BreachConfig) DirectoryTimeout() time.Duration {
	return time.Duration(b.DirectoryTimeoutSeconds) * time.Second
}

func (b BreachConfig) RangeTimeout() time.Duration {
	return time.Duration(b.RangeTimeoutSeconds) * time.Second
}

type HistoryConfig struct {
	// Dir is where the scan-history database lives. Empty disables
	// history entirely.
	Dir string `yaml:"dir"`
}

type AuditConfig struct {
	Sink string `yaml:"sink"` // "stdout", "file" or "none"
	Path string `yaml:"path"` // JSONL path when sink is "file"
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns the default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.RequestsPerSecond <= 0 {
		cfg.Server.RequestsPerSecond = 25
	}
	if cfg.Server.Burst <= 0 {
		cfg.Server.Burst = 50
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if cfg.LLM.Gemini.Model == "" {
		cfg.LLM.Gemini.Model = "gemini-2.0-flash"
	}
	if cfg.LLM.Gemini.BaseURL == "" {
		cfg.LLM.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.LLM.Gemini.APIKeyEnv == "" {
		cfg.LLM.Gemini.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.LLM.Gemini.TimeoutSeconds <= 0 {
		cfg.LLM.Gemini.TimeoutSeconds = 30
	}
	if cfg.LLM.Groq.Model == "" {
		cfg.LLM.Groq.Model = "llama-3.3-70b-versatile"
	}
	if cfg.LLM.Groq.BaseURL == "" {
		cfg.LLM.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.Groq.APIKeyEnv == "" {
		cfg.LLM.Groq.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.LLM.Groq.TimeoutSeconds <= 0 {
		cfg.LLM.Groq.TimeoutSeconds = 30
	}

	if cfg.Quota.ScansPerDay <= 0 {
		cfg.Quota.ScansPerDay = 50
	}
	if cfg.Quota.BreachChecksPerDay <= 0 {
		cfg.Quota.BreachChecksPerDay = 5
	}

	if cfg.Cache.TTLSeconds <= 0 {
		cfg.Cache.TTLSeconds = 300
	}

	if cfg.Breach.DirectoryURL == "" {
		cfg.Breach.DirectoryURL = "https://haveibeenpwned.com/api/v3/breachedaccount/"
	}
	if cfg.Breach.RangeURL == "" {
		cfg.Breach.RangeURL = "https://api.pwnedpasswords.com/range/"
	}
	if cfg.Breach.UserAgent == "" {
		cfg.Breach.UserAgent = "PageGuard-Security-Extension"
	}
	if cfg.Breach.APIKeyEnv == "" {
		cfg.Breach.APIKeyEnv = "HIBP_API_KEY"
	}
	if cfg.Breach.DirectoryTimeoutSeconds <= 0 {
		cfg.Breach.DirectoryTimeoutSeconds = 15
	}
	if cfg.Breach.RangeTimeoutSeconds <= 0 {
		cfg.Breach.RangeTimeoutSeconds = 10
	}

	if cfg.Audit.Sink == "" {
		cfg.Audit.Sink = "stdout"
	}
}
