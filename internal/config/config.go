// Package config loads hotqueue CLI settings from a YAML file and
// HOTQUEUE_* environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Redis         Redis         `yaml:"redis"`
	Prefix        string        `yaml:"prefix"`
	LogLevel      string        `yaml:"logLevel"`
	MetricsAddr   string        `yaml:"metricsAddr"`
	BlockInterval time.Duration `yaml:"blockInterval"`
}

// Redis holds connection parameters passed through to go-redis.
// URL, when set, takes precedence over the individual fields.
type Redis struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Redis:         Redis{Addr: "localhost:6379"},
		Prefix:        "hotqueue",
		LogLevel:      "info",
		BlockInterval: time.Second,
	}
}

// Load reads a YAML file over the defaults. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// FromEnv overlays HOTQUEUE_* environment variables onto cfg.
func FromEnv(cfg *Config) error {
	if v := os.Getenv("HOTQUEUE_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("HOTQUEUE_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("HOTQUEUE_USERNAME"); v != "" {
		cfg.Redis.Username = v
	}
	if v := os.Getenv("HOTQUEUE_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("HOTQUEUE_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "HOTQUEUE_DB")
		}
		cfg.Redis.DB = n
	}
	if v := os.Getenv("HOTQUEUE_PREFIX"); v != "" {
		cfg.Prefix = v
	}
	if v := os.Getenv("HOTQUEUE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("HOTQUEUE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("HOTQUEUE_BLOCK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "HOTQUEUE_BLOCK_INTERVAL")
		}
		cfg.BlockInterval = d
	}
	return nil
}

// RedisOptions converts the connection settings into go-redis options.
func (c Config) RedisOptions() (*redis.Options, error) {
	if c.Redis.URL != "" {
		opt, err := redis.ParseURL(c.Redis.URL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		return opt, nil
	}
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Username: c.Redis.Username,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}, nil
}
