package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Causal  CausalConfig  `yaml:"causal" envconfig:"CAUSAL"`
	Market  MarketConfig  `yaml:"market" envconfig:"MARKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/tremor.log"`
}

// PathsConfig contains file system paths for the graph, baselines and store
type PathsConfig struct {
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	NetworkFile   string `yaml:"network_file" envconfig:"NETWORK_FILE" default:"data/causal_network.graphml"`
	GrangerFile   string `yaml:"granger_file" envconfig:"GRANGER_FILE" default:"data/granger_results.csv"`
	BaselinesFile string `yaml:"baselines_file" envconfig:"BASELINES_FILE" default:"data/irf_baselines.json"`
	StoreFile     string `yaml:"store_file" envconfig:"STORE_FILE" default:"data/tremor_store.json"`
}

// CausalConfig contains thresholds for shock detection, propagation
// monitoring and event studies. The statistical cutoffs mirror the calibrated
// defaults and are overridable rather than re-derived.
type CausalConfig struct {
	ShockThresholdSD       float64 `yaml:"shock_threshold_sd" envconfig:"SHOCK_THRESHOLD_SD" default:"2.0"`
	AbsoluteShockThreshold float64 `yaml:"absolute_shock_threshold" envconfig:"ABSOLUTE_SHOCK_THRESHOLD" default:"1.0"`
	PropagationBufferWeeks int     `yaml:"propagation_buffer_weeks" envconfig:"PROPAGATION_BUFFER_WEEKS" default:"2"`
	MinEventsForStudy      int     `yaml:"min_events_for_study" envconfig:"MIN_EVENTS_FOR_STUDY" default:"5"`
	CheckConcurrency       int     `yaml:"check_concurrency" envconfig:"CHECK_CONCURRENCY" default:"4"`
}

// MarketConfig contains market-data client configuration
type MarketConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://query1.finance.yahoo.com"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"20s"`
	RatePerSecond  float64       `yaml:"rate_per_second" envconfig:"RATE_PER_SECOND" default:"2"`
	RateBurst      int           `yaml:"rate_burst" envconfig:"RATE_BURST" default:"4"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables take precedence over file values.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("TREMOR", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := configFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = merge(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func configFilePath() string {
	if path := os.Getenv("TREMOR_CONFIG_FILE"); path != "" {
		return path
	}
	return "tremor.yaml"
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge overlays file values on the env-derived config. A file value wins
// only when its env var was not set, so explicit env always has the last
// word while file entries still beat the struct-tag defaults.
func merge(fileCfg, envCfg Config) Config {
	if fileCfg.Server.Port != 0 && os.Getenv("TREMOR_SERVER_PORT") == "" {
		envCfg.Server.Port = fileCfg.Server.Port
	}
	if fileCfg.Logging.Level != "" && os.Getenv("TREMOR_LOGGING_LEVEL") == "" {
		envCfg.Logging.Level = fileCfg.Logging.Level
	}
	if fileCfg.Paths.DataDir != "" && os.Getenv("TREMOR_PATHS_DATA_DIR") == "" {
		envCfg.Paths.DataDir = fileCfg.Paths.DataDir
	}
	if fileCfg.Paths.NetworkFile != "" && os.Getenv("TREMOR_PATHS_NETWORK_FILE") == "" {
		envCfg.Paths.NetworkFile = fileCfg.Paths.NetworkFile
	}
	if fileCfg.Paths.GrangerFile != "" && os.Getenv("TREMOR_PATHS_GRANGER_FILE") == "" {
		envCfg.Paths.GrangerFile = fileCfg.Paths.GrangerFile
	}
	if fileCfg.Paths.BaselinesFile != "" && os.Getenv("TREMOR_PATHS_BASELINES_FILE") == "" {
		envCfg.Paths.BaselinesFile = fileCfg.Paths.BaselinesFile
	}
	if fileCfg.Paths.StoreFile != "" && os.Getenv("TREMOR_PATHS_STORE_FILE") == "" {
		envCfg.Paths.StoreFile = fileCfg.Paths.StoreFile
	}
	if fileCfg.Causal.ShockThresholdSD != 0 && os.Getenv("TREMOR_CAUSAL_SHOCK_THRESHOLD_SD") == "" {
		envCfg.Causal.ShockThresholdSD = fileCfg.Causal.ShockThresholdSD
	}
	if fileCfg.Causal.MinEventsForStudy != 0 && os.Getenv("TREMOR_CAUSAL_MIN_EVENTS_FOR_STUDY") == "" {
		envCfg.Causal.MinEventsForStudy = fileCfg.Causal.MinEventsForStudy
	}
	if fileCfg.Market.BaseURL != "" && os.Getenv("TREMOR_MARKET_BASE_URL") == "" {
		envCfg.Market.BaseURL = fileCfg.Market.BaseURL
	}
	return envCfg
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Causal.ShockThresholdSD <= 0 {
		return fmt.Errorf("shock threshold must be positive, got %f", c.Causal.ShockThresholdSD)
	}
	if c.Causal.MinEventsForStudy < 2 {
		return fmt.Errorf("minimum events for study must be at least 2, got %d", c.Causal.MinEventsForStudy)
	}
	if c.Causal.PropagationBufferWeeks < 0 {
		return fmt.Errorf("propagation buffer weeks cannot be negative, got %d", c.Causal.PropagationBufferWeeks)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}
