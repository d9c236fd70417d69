package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the dispatch engine
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Channels ChannelsConfig `yaml:"channels"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	return c.Host
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// Store drivers
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`

	// SeedFile is a YAML document loaded into the memory store at startup.
	SeedFile string `yaml:"seed_file"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the pool connection lifetime.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the optional Redis used for the poll lock.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// DispatchConfig controls the queue processor and dispatch pacing
type DispatchConfig struct {
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	SendDelayMillis     int    `yaml:"send_delay_millis"`
	LeaseMinutes        int    `yaml:"lease_minutes"`
	MaxItemsPerTick     int    `yaml:"max_items_per_tick"`
	AutoProcessQueue    bool   `yaml:"auto_process_queue"` // initial value of the settings flag
	WorkerID            string `yaml:"worker_id"`
}

// PollInterval returns the queue poll interval.
func (c DispatchConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// SendDelay returns the pause between consecutive sends in one batch.
func (c DispatchConfig) SendDelay() time.Duration {
	return time.Duration(c.SendDelayMillis) * time.Millisecond
}

// Lease returns how long a claimed queue item stays owned without renewal.
func (c DispatchConfig) Lease() time.Duration {
	return time.Duration(c.LeaseMinutes) * time.Minute
}

// ChannelsConfig holds delivery channel settings
type ChannelsConfig struct {
	APITimeoutSeconds  int    `yaml:"api_timeout_seconds"`
	SMTPTimeoutSeconds int    `yaml:"smtp_timeout_seconds"`
	SMTPHelo           string `yaml:"smtp_helo"`
}

// APITimeout returns the per-request timeout for the provider HTTP API.
func (c ChannelsConfig) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

// SMTPTimeout returns the per-message SMTP session timeout.
func (c ChannelsConfig) SMTPTimeout() time.Duration {
	return time.Duration(c.SMTPTimeoutSeconds) * time.Second
}

// Notify modes
const (
	NotifyNone = "none"
	NotifyHTTP = "http"
	NotifySQS  = "sqs"
)

// NotifyConfig selects the external sync target.
type NotifyConfig struct {
	Mode           string `yaml:"mode"`
	URL            string `yaml:"url"`
	SQSQueueURL    string `yaml:"sqs_queue_url"`
	SQSRegion      string `yaml:"sqs_region"`
	AWSProfile     string `yaml:"aws_profile"`
	AWSAccessKey   string `yaml:"aws_access_key"`
	AWSSecretKey   string `yaml:"aws_secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"` // http mode only; 0 sends once
}

// Timeout returns the deadline for one notification attempt.
func (c NotifyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // json or console
	RedactPII bool   `yaml:"redact_pii"`
}

// Defaults returns the configuration used for every field left empty.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Port: 8080, Host: "localhost"},
		Store:  StoreConfig{Driver: StorePostgres},
		Database: DatabaseConfig{
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 30,
		},
		Dispatch: DispatchConfig{
			PollIntervalSeconds: 60,
			SendDelayMillis:     500,
			LeaseMinutes:        60,
			MaxItemsPerTick:     50,
		},
		Channels: ChannelsConfig{
			APITimeoutSeconds:  30,
			SMTPTimeoutSeconds: 30,
			SMTPHelo:           "localhost",
		},
		Notify: NotifyConfig{
			Mode:           NotifyNone,
			SQSRegion:      "us-west-2",
			TimeoutSeconds: 5,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads a YAML config file and fills unset fields from Defaults.
// An empty path yields the defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := mergo.Merge(&cfg, Defaults()); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv loads config from file, then overrides with environment variables
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("STORE_SEED_FILE"); v != "" {
		cfg.Store.SeedFile = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("NOTIFY_URL"); v != "" {
		cfg.Notify.URL = v
		if cfg.Notify.Mode == NotifyNone {
			cfg.Notify.Mode = NotifyHTTP
		}
	}
	if v := os.Getenv("NOTIFY_SQS_QUEUE_URL"); v != "" {
		cfg.Notify.SQSQueueURL = v
		if cfg.Notify.Mode == NotifyNone {
			cfg.Notify.Mode = NotifySQS
		}
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AUTO_PROCESS_QUEUE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Dispatch.AutoProcessQueue = b
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks the combinations Load cannot default.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for store driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Notify.Mode {
	case NotifyNone:
	case NotifyHTTP:
		if c.Notify.URL == "" {
			return fmt.Errorf("notify.url is required for http mode")
		}
	case NotifySQS:
		if c.Notify.SQSQueueURL == "" {
			return fmt.Errorf("notify.sqs_queue_url is required for sqs mode")
		}
	default:
		return fmt.Errorf("unknown notify mode %q", c.Notify.Mode)
	}

	if c.Dispatch.SendDelayMillis < 0 {
		return fmt.Errorf("dispatch.send_delay_millis must not be negative")
	}
	return nil
}
