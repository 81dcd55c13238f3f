package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Number of rank roles (Ninja through God) and of plus roles per medal.
const (
	RankRoleCount = 7
	PlusRoleCount = 6
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	Discord       DiscordConfig       `yaml:"discord"`
	HTTP          HTTPConfig          `yaml:"http"`
	JWT           JWTConfig           `yaml:"jwt"`
	Queue         QueueConfig         `yaml:"queue"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_URL"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL      string        `yaml:"url" env:"NATS_URL"`
	NKeySeed string        `yaml:"nkey_seed" env:"NATS_NKEY_SEED"`
	AckWait  time.Duration `yaml:"ack_wait" env:"NATS_ACK_WAIT"`
}

// DiscordConfig holds the bot token, guild and the role tables the
// reconciler manages.
type DiscordConfig struct {
	Token             string        `yaml:"token" env:"DISCORD_TOKEN"`
	GuildID           string        `yaml:"guild_id" env:"DISCORD_GUILD_ID"`
	NewsfeedChannelID string        `yaml:"newsfeed_channel_id" env:"DISCORD_NEWSFEED_CHANNEL_ID"`
	RankRoleIDs       []string      `yaml:"rank_role_ids" env:"DISCORD_RANK_ROLE_IDS" envSeparator:","`
	GoldPlusRoleIDs   []string      `yaml:"gold_plus_role_ids" env:"DISCORD_GOLD_PLUS_ROLE_IDS" envSeparator:","`
	SilverPlusRoleIDs []string      `yaml:"silver_plus_role_ids" env:"DISCORD_SILVER_PLUS_ROLE_IDS" envSeparator:","`
	BronzePlusRoleIDs []string      `yaml:"bronze_plus_role_ids" env:"DISCORD_BRONZE_PLUS_ROLE_IDS" envSeparator:","`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"DISCORD_REQUESTS_PER_SECOND"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"DISCORD_REQUEST_TIMEOUT"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Address         string  `yaml:"address" env:"HTTP_ADDRESS"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" env:"HTTP_RATE_LIMIT_PER_SEC"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" env:"HTTP_RATE_LIMIT_BURST"`
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret     string        `yaml:"secret" env:"JWT_SECRET"`
	DefaultTTL time.Duration `yaml:"default_ttl" env:"JWT_DEFAULT_TTL"`
}

// QueueConfig holds River settings for the reconcile queue.
type QueueConfig struct {
	MaxWorkers    int           `yaml:"max_workers" env:"QUEUE_MAX_WORKERS"`
	MaxAttempts   int           `yaml:"max_attempts" env:"QUEUE_MAX_ATTEMPTS"`
	JobTimeout    time.Duration `yaml:"job_timeout" env:"QUEUE_JOB_TIMEOUT"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"QUEUE_SWEEP_INTERVAL"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
	Environment  string `yaml:"environment" env:"ENV"`
	Version      string `yaml:"version" env:"VERSION"`
	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
}

// LoadConfig reads the YAML file when it exists, overlays any environment
// variables that are set, fills defaults and validates the result.
func LoadConfig(filename string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// environment only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env overrides: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.NATS.AckWait == 0 {
		c.NATS.AckWait = 30 * time.Second
	}
	if c.Discord.RequestsPerSecond == 0 {
		c.Discord.RequestsPerSecond = 5
	}
	if c.Discord.RequestTimeout == 0 {
		c.Discord.RequestTimeout = 10 * time.Second
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.RateLimitPerSec == 0 {
		c.HTTP.RateLimitPerSec = 5
	}
	if c.HTTP.RateLimitBurst == 0 {
		c.HTTP.RateLimitBurst = 10
	}
	if c.JWT.DefaultTTL == 0 {
		c.JWT.DefaultTTL = time.Hour
	}
	if c.Queue.MaxWorkers == 0 {
		c.Queue.MaxWorkers = 10
	}
	if c.Queue.MaxAttempts == 0 {
		c.Queue.MaxAttempts = 3
	}
	if c.Queue.JobTimeout == 0 {
		c.Queue.JobTimeout = 30 * time.Second
	}
	if c.Queue.SweepInterval == 0 {
		c.Queue.SweepInterval = time.Minute
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "parkour-bot"
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
}

// Validate checks required settings and the role table sizes.
func (c *Config) Validate() error {
	var errs []error
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn (DATABASE_URL) is required"))
	}
	if c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url (NATS_URL) is required"))
	}
	if c.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token (DISCORD_TOKEN) is required"))
	}
	if c.Discord.GuildID == "" {
		errs = append(errs, errors.New("discord.guild_id (DISCORD_GUILD_ID) is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret (JWT_SECRET) is required"))
	}
	if n := len(c.Discord.RankRoleIDs); n != RankRoleCount {
		errs = append(errs, fmt.Errorf("discord.rank_role_ids must list %d roles, got %d", RankRoleCount, n))
	}
	for name, ids := range map[string][]string{
		"gold_plus_role_ids":   c.Discord.GoldPlusRoleIDs,
		"silver_plus_role_ids": c.Discord.SilverPlusRoleIDs,
		"bronze_plus_role_ids": c.Discord.BronzePlusRoleIDs,
	} {
		if len(ids) != PlusRoleCount {
			errs = append(errs, fmt.Errorf("discord.%s must list %d roles, got %d", name, PlusRoleCount, len(ids)))
		}
	}
	if c.Queue.MaxAttempts < 1 {
		errs = append(errs, errors.New("queue.max_attempts must be at least 1"))
	}
	return errors.Join(errs...)
}
