package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "500ms" parse. Plain
// integers are taken as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
}

type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

type ProviderConfig struct {
	BaseURL         string   `yaml:"base_url"`
	Models          []string `yaml:"models"`
	Credentials     []string `yaml:"credentials"`
	MaxRetries      int      `yaml:"max_retries"`
	BaseBackoff     Duration `yaml:"base_backoff"`
	MaxBackoff      Duration `yaml:"max_backoff"`
	RetryDelay      Duration `yaml:"retry_delay"`
	Timeout         Duration `yaml:"timeout"`
	Temperature     float64  `yaml:"temperature"`
	TopP            float64  `yaml:"top_p"`
	TopK            int      `yaml:"top_k"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
}

type RateLimitConfig struct {
	Enabled        bool     `yaml:"enabled"`
	MaxPerHour     int      `yaml:"max_per_hour"`
	MaxPerDay      int      `yaml:"max_per_day"`
	WhitelistIPs   []string `yaml:"whitelist_ips"`
	LoopbackBypass bool     `yaml:"loopback_bypass"`
}

type CacheConfig struct {
	Size int      `yaml:"size"`
	TTL  Duration `yaml:"ttl"`
}

type AnalyticsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Buffer  int    `yaml:"buffer"`
}

type KnowledgeConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  Duration(15 * time.Second),
			WriteTimeout: Duration(2 * time.Minute),
		},
		Provider: ProviderConfig{
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Models:          []string{"gemini-2.0-flash", "gemini-2.5-flash"},
			MaxRetries:      2,
			BaseBackoff:     Duration(time.Second),
			MaxBackoff:      Duration(8 * time.Second),
			RetryDelay:      Duration(time.Second),
			Timeout:         Duration(90 * time.Second),
			Temperature:     0.7,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 1024,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			MaxPerHour:     10,
			MaxPerDay:      30,
			LoopbackBypass: true,
		},
		Cache: CacheConfig{
			Size: 256,
			TTL:  Duration(time.Hour),
		},
		Analytics: AnalyticsConfig{
			Enabled: true,
			Path:    "relay-analytics.db",
			Buffer:  128,
		},
		Knowledge: KnowledgeConfig{
			Path:  "knowledge.md",
			Watch: true,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path if present, then environment overrides. A missing file is not an
// error so the binary can run from env alone.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnv(cfg)

	return cfg, nil
}

// Environment variables recognized by applyEnv. Credentials normally arrive
// this way rather than through the YAML file.
const (
	EnvAPIKeys       = "RELAY_API_KEYS"
	EnvModels        = "RELAY_MODELS"
	EnvAddr          = "RELAY_ADDR"
	EnvKnowledgePath = "RELAY_KNOWLEDGE_PATH"
	EnvAnalyticsPath = "RELAY_ANALYTICS_PATH"
	EnvMaxPerHour    = "RELAY_MAX_PER_HOUR"
	EnvMaxPerDay     = "RELAY_MAX_PER_DAY"
)

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIKeys); v != "" {
		cfg.Provider.Credentials = splitList(v)
	}
	if v := os.Getenv(EnvModels); v != "" {
		cfg.Provider.Models = splitList(v)
	}
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvKnowledgePath); v != "" {
		cfg.Knowledge.Path = v
	}
	if v := os.Getenv(EnvAnalyticsPath); v != "" {
		cfg.Analytics.Path = v
	}
	if v := os.Getenv(EnvMaxPerHour); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.MaxPerHour = n
		}
	}
	if v := os.Getenv(EnvMaxPerDay); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.MaxPerDay = n
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if len(c.Provider.Models) == 0 {
		return fmt.Errorf("config: at least one model is required")
	}
	if len(c.Provider.Credentials) == 0 {
		return fmt.Errorf("config: at least one credential is required (set %s)", EnvAPIKeys)
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("config: provider base_url is required")
	}
	if c.Provider.MaxRetries < 1 {
		return fmt.Errorf("config: max_retries must be at least 1")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxPerHour <= 0 || c.RateLimit.MaxPerDay <= 0 {
			return fmt.Errorf("config: rate limit maxes must be positive when enabled")
		}
	}
	return nil
}
