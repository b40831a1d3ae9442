package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulsestack/pulse-engine/internal/engine"
)

// Config captures everything needed to boot the pulse engine.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Collector  CollectorConfig   `yaml:"collector"`
	Observer   ObserverConfig    `yaml:"observer"`
	Clusters   []ClusterConfig   `yaml:"clusters"`
	Thresholds engine.Thresholds `yaml:"thresholds"`
	Logging    LoggingConfig     `yaml:"logging"`
	Cache      CacheConfig       `yaml:"cache"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// CollectorConfig configures access to the signal collector endpoints.
type CollectorConfig struct {
	BaseURL            string        `yaml:"baseURL"`
	ClusterSignalsPath string        `yaml:"clusterSignalsPath"`
	WorkerSignalsPath  string        `yaml:"workerSignalsPath"`
	Timeout            time.Duration `yaml:"timeout"`
}

// ObserverConfig controls the evaluation cadence and history depth.
type ObserverConfig struct {
	Interval   time.Duration `yaml:"interval"`
	WindowSize int           `yaml:"windowSize"`
}

// ClusterConfig names a monitored cluster and carries the fleet facts the
// worker readiness rules cannot derive from signals.
type ClusterConfig struct {
	Name                    string `yaml:"name"`
	HasLongRunningWorkflows bool   `yaml:"hasLongRunningWorkflows"`
	WorkerCount             int    `yaml:"workerCount"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed sharing of the latest assessments.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addr          string        `yaml:"addr"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	MaxRetries    int           `yaml:"maxRetries"`
	TLS           bool          `yaml:"tls"`
	AssessmentTTL time.Duration `yaml:"assessmentTTL"`
}

// Load initialises Config from a YAML file plus environment overrides, then
// validates it. An inconsistent threshold set is a fatal startup condition.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PULSE_ENGINE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that must never reach the evaluator.
func (c *Config) Validate() error {
	if c.Observer.Interval <= 0 {
		return fmt.Errorf("observer.interval must be positive, got %s", c.Observer.Interval)
	}
	if c.Observer.WindowSize < 1 {
		return fmt.Errorf("observer.windowSize must be at least 1, got %d", c.Observer.WindowSize)
	}

	seen := make(map[string]struct{}, len(c.Clusters))
	for _, cluster := range c.Clusters {
		if cluster.Name == "" {
			return errors.New("clusters entries require a name")
		}
		if _, dup := seen[cluster.Name]; dup {
			return fmt.Errorf("duplicate cluster name %q", cluster.Name)
		}
		seen[cluster.Name] = struct{}{}
	}

	return c.Thresholds.Validate()
}

// Cluster returns the configuration block for the named cluster.
func (c *Config) Cluster(name string) (ClusterConfig, bool) {
	for _, cluster := range c.Clusters {
		if cluster.Name == name {
			return cluster, true
		}
	}
	return ClusterConfig{}, false
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Collector: CollectorConfig{
			ClusterSignalsPath: "/api/v1/signals/cluster",
			WorkerSignalsPath:  "/api/v1/signals/workers",
			Timeout:            5 * time.Second,
		},
		Observer: ObserverConfig{
			Interval:   30 * time.Second,
			WindowSize: 10,
		},
		Thresholds: engine.DefaultThresholds(),
		Logging:    LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:       false,
			DialTimeout:   2 * time.Second,
			ReadTimeout:   500 * time.Millisecond,
			WriteTimeout:  500 * time.Millisecond,
			MaxRetries:    2,
			AssessmentTTL: 5 * time.Minute,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PULSE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("PULSE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("PULSE_COLLECTOR_BASE_URL"); v != "" {
		cfg.Collector.BaseURL = v
	}
	if v := os.Getenv("PULSE_COLLECTOR_CLUSTER_PATH"); v != "" {
		cfg.Collector.ClusterSignalsPath = v
	}
	if v := os.Getenv("PULSE_COLLECTOR_WORKER_PATH"); v != "" {
		cfg.Collector.WorkerSignalsPath = v
	}
	if v := os.Getenv("PULSE_COLLECTOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Collector.Timeout = d
		}
	}
	if v := os.Getenv("PULSE_OBSERVER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Observer.Interval = d
		}
	}
	if v := os.Getenv("PULSE_WINDOW_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Observer.WindowSize = size
		}
	}
	if v := os.Getenv("PULSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PULSE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("PULSE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("PULSE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("PULSE_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("PULSE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("PULSE_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("PULSE_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("PULSE_CACHE_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DialTimeout = d
		}
	}
	if v := os.Getenv("PULSE_CACHE_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ReadTimeout = d
		}
	}
	if v := os.Getenv("PULSE_CACHE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.WriteTimeout = d
		}
	}
	if v := os.Getenv("PULSE_CACHE_MAX_RETRIES"); v != "" {
		if retry, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxRetries = retry
		}
	}
	if v := os.Getenv("PULSE_CACHE_ASSESSMENT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.AssessmentTTL = d
		}
	}
}
