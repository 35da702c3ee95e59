package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"candlescope/internal/chart"
)

// Config holds all application configuration. Environment variables are read
// first; a YAML file named by CONFIG_FILE then overlays whatever it sets.
type Config struct {
	// Infrastructure
	HTTPAddr      string        `envconfig:"HTTP_ADDR" default:":8080" yaml:"http_addr"`
	MetricsAddr   string        `envconfig:"METRICS_ADDR" default:":9090" yaml:"metrics_addr"`
	SQLitePath    string        `envconfig:"SQLITE_PATH" default:"data/ticks.db" yaml:"sqlite_path"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"" yaml:"redis_addr"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:"" yaml:"redis_password"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0" yaml:"redis_db"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"10m" yaml:"cache_ttl"`

	// Analysis
	DefaultInterval int    `envconfig:"DEFAULT_INTERVAL" default:"5" yaml:"default_interval"`
	Intervals       string `envconfig:"INTERVALS" default:"1,5,10,15,30,60" yaml:"intervals"`
	PatternWindow   int    `envconfig:"PATTERN_WINDOW" default:"20" yaml:"pattern_window"`

	// Chart
	ChartWidth  int         `envconfig:"CHART_WIDTH" default:"800" yaml:"chart_width"`
	ChartHeight int         `envconfig:"CHART_HEIGHT" default:"400" yaml:"chart_height"`
	Theme       chart.Theme `ignored:"true" yaml:"theme"`

	LogLevel   string `envconfig:"LOG_LEVEL" default:"info" yaml:"log_level"`
	ConfigFile string `envconfig:"CONFIG_FILE" default:"" yaml:"-"`
}

// Load reads the environment and the optional YAML overlay, then validates.
func Load() (*Config, error) {
	cfg := &Config{Theme: chart.DefaultTheme()}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	if cfg.ConfigFile != "" {
		if err := cfg.overlay(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the analysis and chart layers cannot honour.
func (c *Config) Validate() error {
	if c.DefaultInterval <= 0 {
		return fmt.Errorf("default_interval must be positive, got %d", c.DefaultInterval)
	}
	if c.PatternWindow < 0 {
		return fmt.Errorf("pattern_window must be >= 0, got %d", c.PatternWindow)
	}
	if c.ChartWidth <= 0 || c.ChartHeight <= 0 {
		return fmt.Errorf("chart size must be positive, got %dx%d", c.ChartWidth, c.ChartHeight)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must be >= 0, got %s", c.CacheTTL)
	}
	if len(c.ParseIntervals()) == 0 {
		return fmt.Errorf("intervals: no valid value in %q", c.Intervals)
	}
	return c.Theme.Validate()
}

// ParseIntervals parses the Intervals string into interval lengths in minutes.
func (c *Config) ParseIntervals() []int {
	parts := strings.Split(c.Intervals, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			log.Printf("[config] skipping invalid interval value: %q", p)
			continue
		}
		out = append(out, n)
	}
	return out
}
