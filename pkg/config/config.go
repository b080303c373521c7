package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"5000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
		// APIKey is only ever supplied through config or STOCKPULSE_API_KEY.
		APIKey    string `yaml:"api_key"`
		TrainRate struct {
			Capacity     float64 `yaml:"capacity" default:"5"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"0.5"`
		} `yaml:"train_rate"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logger struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logger"`
	Forecast  Forecast  `yaml:"forecast"`
	Anomaly   Anomaly   `yaml:"anomaly"`
	Inventory Inventory `yaml:"inventory"`
	Artifacts struct {
		Backend string `yaml:"backend" default:"file"`
		Dir     string `yaml:"dir" default:"models"`
	} `yaml:"artifacts"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"stockpulse"`
		LockTTL  time.Duration `yaml:"lock_ttl" default:"30s"`
	} `yaml:"redis"`
	Cache struct {
		Enabled bool          `yaml:"enabled" default:"true"`
		TTL     time.Duration `yaml:"ttl" default:"10m"`
		MaxSize int           `yaml:"max_size" default:"1000"`
	} `yaml:"cache"`
	History struct {
		Enabled      bool   `yaml:"enabled"`
		Table        string `yaml:"table" default:"sales_transactions"`
		LookbackDays int    `yaml:"lookback_days" default:"365"`
	} `yaml:"history"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"stockpulse"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"stockpulse.events"`
		TrainTopic   string   `yaml:"train_topic" default:"stockpulse.train"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID     string        `yaml:"group_id" default:"stockpulse-trainer"`
			StartOffset string        `yaml:"start_offset" default:"earliest"`
			Workers     int           `yaml:"workers" default:"2"`
			BufferSize  int           `yaml:"buffer_size" default:"16"`
			RetryMax    int           `yaml:"retry_max" default:"3"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic    string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	// Queue selects where TrainAsync sends work: kafka, redis or none.
	Queue struct {
		Backend    string        `yaml:"backend" default:"kafka"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
		KeyPrefix  string        `yaml:"key_prefix" default:"stockpulse:queue"`
	} `yaml:"queue"`
}

// Forecast holds the heuristics shared by the trained and the time-series forecasters.
type Forecast struct {
	DefaultHorizonDays int     `yaml:"default_horizon_days" default:"30"`
	MaxHorizonDays     int     `yaml:"max_horizon_days" default:"365"`
	ConfidenceLevel    int     `yaml:"confidence_level" default:"95"`
	ZValue             float64 `yaml:"z_value" default:"1.96"`
	Forest             struct {
		Trees           int   `yaml:"trees" default:"100"`
		Seed            int64 `yaml:"seed" default:"42"`
		MinSamplesSplit int   `yaml:"min_samples_split" default:"2"`
		MinSamplesLeaf  int   `yaml:"min_samples_leaf" default:"1"`
		MaxDepth        int   `yaml:"max_depth"`
	} `yaml:"forest"`
	ARIMA struct {
		P          int     `yaml:"p" default:"5"`
		D          int     `yaml:"d" default:"1"`
		LowerRatio float64 `yaml:"lower_ratio" default:"0.8"`
		UpperRatio float64 `yaml:"upper_ratio" default:"1.2"`
	} `yaml:"arima"`
	Ensemble struct {
		LowerRatio float64 `yaml:"lower_ratio" default:"0.85"`
		UpperRatio float64 `yaml:"upper_ratio" default:"1.15"`
	} `yaml:"ensemble"`
}

type Anomaly struct {
	Window           int     `yaml:"window" default:"7"`
	DefaultThreshold float64 `yaml:"default_threshold" default:"3"`
	MinRecords       int     `yaml:"min_records" default:"10"`
}

type Inventory struct {
	ReorderSoonDays   float64 `yaml:"reorder_soon_days" default:"7"`
	ReorderMultiplier float64 `yaml:"reorder_multiplier" default:"2"`
}

// Default returns a configuration populated only from struct defaults.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment lookup.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("STOCKPULSE_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("AI_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := getenv("AI_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := getenv("STOCKPULSE_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := getenv("ARTIFACT_BACKEND"); v != "" {
		c.Artifacts.Backend = v
	}
	if v := getenv("ARTIFACT_DIR"); v != "" {
		c.Artifacts.Dir = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("QUEUE_BACKEND"); v != "" {
		c.Queue.Backend = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	switch c.Artifacts.Backend {
	case "file":
		if c.Artifacts.Dir == "" {
			return fmt.Errorf("artifacts.dir is required for the file backend")
		}
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("artifacts.backend 'redis' requires redis.enabled")
		}
	default:
		return fmt.Errorf("artifacts.backend must be 'file' or 'redis', got '%s'", c.Artifacts.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	switch c.Queue.Backend {
	case "kafka", "none":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("queue.backend 'redis' requires redis.enabled")
		}
	default:
		return fmt.Errorf("queue.backend must be 'kafka', 'redis' or 'none', got '%s'", c.Queue.Backend)
	}

	f := c.Forecast
	if f.DefaultHorizonDays < 1 || f.DefaultHorizonDays > f.MaxHorizonDays {
		return fmt.Errorf("forecast.default_horizon_days must be in 1..%d", f.MaxHorizonDays)
	}
	if f.Forest.Trees < 1 {
		return fmt.Errorf("forecast.forest.trees must be positive")
	}
	if f.ARIMA.P < 1 || f.ARIMA.D < 0 {
		return fmt.Errorf("forecast.arima order must have p>=1 and d>=0")
	}
	if f.ARIMA.LowerRatio > 1 || f.ARIMA.UpperRatio < 1 {
		return fmt.Errorf("forecast.arima ratios must bracket 1")
	}
	if f.Ensemble.LowerRatio > 1 || f.Ensemble.UpperRatio < 1 {
		return fmt.Errorf("forecast.ensemble ratios must bracket 1")
	}
	if c.Anomaly.Window < 1 || c.Anomaly.MinRecords < 1 || c.Anomaly.DefaultThreshold <= 0 {
		return fmt.Errorf("anomaly window, min_records and default_threshold must be positive")
	}
	if c.Inventory.ReorderMultiplier < 0 || c.Inventory.ReorderSoonDays < 0 {
		return fmt.Errorf("inventory heuristics cannot be negative")
	}
	return nil
}
