package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
	Gateway GatewayConfig `yaml:"gateway"`
	Source  SourceConfig  `yaml:"source"`
	Cache   CacheConfig   `yaml:"cache"`
	Ticket  TicketConfig  `yaml:"ticket"`
	Agents  AgentsConfig  `yaml:"agents"`
	Batch   BatchConfig   `yaml:"batch"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// GatewayConfig holds WebSocket gateway settings.
type GatewayConfig struct {
	Enabled bool       `yaml:"enabled"`
	Addr    string     `yaml:"addr"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	Type   string        `yaml:"type"` // "static" or ""
	Tokens []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig holds a single gateway auth token.
type TokenConfig struct {
	Token string `yaml:"token"`
	Name  string `yaml:"name"`
}

// SourceConfig selects and configures the extraction transport.
type SourceConfig struct {
	// Mode is "direct" (HTTP fetches against endpoint mirrors) or
	// "navigate" (live page agents with checkpoint/resume).
	Mode     string         `yaml:"mode"`
	Direct   DirectConfig   `yaml:"direct"`
	Navigate NavigateConfig `yaml:"navigate"`
}

// DirectConfig holds direct-mode settings. Endpoint entries are URL
// templates with two %s verbs: warehouse id, then batch or item id.
type DirectConfig struct {
	IdentifierEndpoints []string      `yaml:"identifier_endpoints"`
	WeightEndpoints     []string      `yaml:"weight_endpoints"`
	RequestsPerSecond   float64       `yaml:"requests_per_second"`
	Burst               int           `yaml:"burst"`
	Breaker             BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds per-endpoint circuit breaker settings.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

// NavigateConfig holds navigate-mode settings. Target entries are URL
// templates with two %s verbs: warehouse id, then batch or item id.
type NavigateConfig struct {
	IdentifierTarget string        `yaml:"identifier_target"`
	WeightTarget     string        `yaml:"weight_target"`
	ContentTimeout   time.Duration `yaml:"content_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval"`
}

// CacheConfig holds weight cache settings.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// TicketConfig holds extraction ticket store settings.
type TicketConfig struct {
	DSN           string        `yaml:"dsn"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// AgentsConfig holds page agent settings for navigate mode.
type AgentsConfig struct {
	Browser BrowserConfig `yaml:"browser"`
	// Locations maps an agent role to the location pattern (anchored
	// regular expression) the role is expected to announce from.
	Locations map[string]string `yaml:"locations"`
}

// BrowserConfig holds chromedp browser settings.
type BrowserConfig struct {
	RemoteURL string        `yaml:"remote_url"`
	Headless  bool          `yaml:"headless"`
	Timeout   time.Duration `yaml:"timeout"`
}

// BatchConfig tunes the weight fan-out.
type BatchConfig struct {
	// Concurrency bounds in-flight weight fetches per batch.
	// Zero selects the mode default.
	Concurrency int           `yaml:"concurrency"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	RetryBudget time.Duration `yaml:"retry_budget"`
}

// FanOut resolves the effective weight fetch concurrency. Direct mode
// spreads load across mirrors; navigate mode is serialized because one
// agent drives one page at a time.
func (c *Config) FanOut() int {
	if c.Batch.Concurrency > 0 {
		return c.Batch.Concurrency
	}
	if c.Source.Mode == "navigate" {
		return 1
	}
	return 5
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Addr:    ":8090",
		},
		Source: SourceConfig{
			Mode: "direct",
			Direct: DirectConfig{
				RequestsPerSecond: 2,
				Burst:             1,
				Breaker: BreakerConfig{
					MaxFailures: 3,
					Interval:    30 * time.Second,
					Timeout:     60 * time.Second,
				},
			},
			Navigate: NavigateConfig{
				ContentTimeout: 5 * time.Second,
				PollInterval:   250 * time.Millisecond,
			},
		},
		Cache: CacheConfig{
			TTL: 30 * time.Minute,
		},
		Ticket: TicketConfig{
			DSN:           ":memory:",
			SweepInterval: 10 * time.Second,
		},
		Agents: AgentsConfig{
			Browser: BrowserConfig{
				Headless: true,
				Timeout:  30 * time.Second,
			},
		},
		Batch: BatchConfig{
			RetryDelay:  500 * time.Millisecond,
			RetryBudget: 30 * time.Second,
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error; the defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps WEIGHBRIDGE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WEIGHBRIDGE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("WEIGHBRIDGE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("WEIGHBRIDGE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("WEIGHBRIDGE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("WEIGHBRIDGE_GATEWAY_ENABLED"); v == "true" {
		cfg.Gateway.Enabled = true
	}
	if v := os.Getenv("WEIGHBRIDGE_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("WEIGHBRIDGE_SOURCE_MODE"); v != "" {
		cfg.Source.Mode = v
	}
	if v := os.Getenv("WEIGHBRIDGE_BROWSER_REMOTE_URL"); v != "" {
		cfg.Agents.Browser.RemoteURL = v
	}
	if v := os.Getenv("WEIGHBRIDGE_BROWSER_HEADLESS"); v == "false" {
		cfg.Agents.Browser.Headless = false
	}
	if v := os.Getenv("WEIGHBRIDGE_TICKET_DSN"); v != "" {
		cfg.Ticket.DSN = v
	}
	if v := os.Getenv("WEIGHBRIDGE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("WEIGHBRIDGE_BATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Batch.Concurrency = n
		}
	}
}
