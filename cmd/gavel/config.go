package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration, loaded from YAML with env
// fallbacks for secrets.
type Config struct {
	Server struct {
		Addr           string        `yaml:"addr"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		IdleTimeout    time.Duration `yaml:"idle_timeout"`
	} `yaml:"server"`

	Auth struct {
		Secret   string `yaml:"secret"`
		Issuer   string `yaml:"issuer"`
		Audience string `yaml:"audience"`
	} `yaml:"auth"`

	NATS struct {
		URL           string `yaml:"url"`
		Stream        string `yaml:"stream"`
		SubjectPrefix string `yaml:"subject_prefix"`
		Consumer      string `yaml:"consumer"`
	} `yaml:"nats"`

	Outbox struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		BatchSize    int32         `yaml:"batch_size"`
		MaxRetries   int           `yaml:"max_retries"`
		RetryDelay   time.Duration `yaml:"retry_delay"`
	} `yaml:"outbox"`

	Gateway struct {
		DebounceWindow time.Duration `yaml:"debounce_window"`
	} `yaml:"gateway"`

	Cache struct {
		Disabled bool `yaml:"disabled"`
	} `yaml:"cache"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Server.ReadTimeout = 10 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second
	cfg.Server.IdleTimeout = 120 * time.Second
	cfg.Auth.Issuer = "gavel"
	cfg.Auth.Audience = "gavel-clients"
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.Stream = "AUCTION_EVENTS"
	cfg.NATS.SubjectPrefix = "auction.events"
	cfg.NATS.Consumer = "auction-gateway"
	cfg.Outbox.PollInterval = 2 * time.Second
	cfg.Outbox.BatchSize = 100
	cfg.Outbox.MaxRetries = 3
	cfg.Outbox.RetryDelay = time.Second
	cfg.Gateway.DebounceWindow = 100 * time.Millisecond
	return cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if secret := os.Getenv("AUTH_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}
	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth secret is required (auth.secret or AUTH_SECRET)")
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}

	return cfg, nil
}
