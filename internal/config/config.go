package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "SOPO"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Data      DataConfig      `yaml:"data" envconfig:"DATA"`
	Analytics AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port             int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT"`
}

// SecurityConfig contains request-level protection settings
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	RootDir    string `yaml:"root_dir" envconfig:"ROOT_DIR"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// DataConfig describes the shipment CSV consumed by the loader
type DataConfig struct {
	CSVPath  string `yaml:"csv_path" envconfig:"CSV_PATH"`
	Encoding string `yaml:"encoding" envconfig:"ENCODING"`
}

// AnalyticsConfig holds the tunables of the anomaly, forecast and ranking pipeline
type AnalyticsConfig struct {
	ZScoreThreshold   float64 `yaml:"zscore_threshold" envconfig:"ZSCORE_THRESHOLD"`
	HolidayWindowDays int     `yaml:"holiday_window_days" envconfig:"HOLIDAY_WINDOW_DAYS"`
	PeriodDays        int     `yaml:"period_days" envconfig:"PERIOD_DAYS"`
	Workers           int     `yaml:"workers" envconfig:"WORKERS"`
	Seed              int64   `yaml:"seed" envconfig:"SEED"`
	WorstN            int     `yaml:"worst_n" envconfig:"WORST_N"`
	JobWorkers        int     `yaml:"job_workers" envconfig:"JOB_WORKERS"`
}

// TelemetryConfig selects the OpenTelemetry exporters
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is loaded into the environment first when present.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit YAML path; an empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// No default tags: unset variables leave the file/default value untouched.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// ResolvedPaths returns the directory layout derived from the Paths section
func (c *Config) ResolvedPaths() (*Paths, error) {
	return NewPaths(c.Paths)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive when enabled")
	}

	switch strings.ToLower(c.Data.Encoding) {
	case EncodingEUCKR, EncodingUTF8:
	default:
		return fmt.Errorf("unsupported data encoding: %q", c.Data.Encoding)
	}

	if c.Data.CSVPath == "" {
		return fmt.Errorf("data csv path is required")
	}

	if c.Analytics.ZScoreThreshold <= 0 {
		return fmt.Errorf("zscore threshold must be positive, got %v", c.Analytics.ZScoreThreshold)
	}

	if c.Analytics.HolidayWindowDays < 0 {
		return fmt.Errorf("holiday window must not be negative, got %d", c.Analytics.HolidayWindowDays)
	}

	if !IsAllowedPeriod(c.Analytics.PeriodDays) {
		return fmt.Errorf("period days must be one of %v, got %d", AllowedPeriodDays, c.Analytics.PeriodDays)
	}

	if c.Analytics.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Analytics.Workers)
	}

	if c.Analytics.JobWorkers < 1 {
		return fmt.Errorf("job workers must be at least 1, got %d", c.Analytics.JobWorkers)
	}

	if c.Analytics.WorstN < 1 {
		return fmt.Errorf("worst-n must be at least 1, got %d", c.Analytics.WorstN)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be within [0,1], got %v", c.Telemetry.SampleRatio)
	}

	// JSON is the only supported log format
	c.Logging.Format = "json"

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      60 * time.Second,
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: 30 * time.Minute,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			RootDir:    ".",
			DataDir:    DefaultDataDir,
			ReportsDir: DefaultReportsDir,
			LogsDir:    DefaultLogsDir,
		},
		Data: DataConfig{
			CSVPath:  DefaultCSVPath,
			Encoding: EncodingEUCKR,
		},
		Analytics: AnalyticsConfig{
			ZScoreThreshold:   DefaultZScoreThreshold,
			HolidayWindowDays: DefaultHolidayWindowDays,
			PeriodDays:        DefaultPeriodDays,
			Workers:           DefaultRankingWorkers,
			Seed:              DefaultSeed,
			WorstN:            DefaultWorstN,
			JobWorkers:        DefaultJobWorkers,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
