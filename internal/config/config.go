package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the full application configuration tree.
type Config struct {
	Server    ServerConfig    `envconfig:"SERVER" yaml:"server"`
	Security  SecurityConfig  `envconfig:"SECURITY" yaml:"security"`
	Logging   LoggingConfig   `envconfig:"LOGGING" yaml:"logging"`
	Limits    LimitsConfig    `envconfig:"LIMITS" yaml:"limits"`
	Paths     PathsConfig     `envconfig:"PATHS" yaml:"paths"`
	WebSocket WebSocketConfig `envconfig:"WEBSOCKET" yaml:"websocket"`
}

// ServerConfig holds the HTTP server knobs.
type ServerConfig struct {
	Port            int           `envconfig:"PORT" yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" yaml:"write_timeout" default:"15s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" yaml:"idle_timeout" default:"60s"`
	MaxHeaderBytes  int           `envconfig:"MAX_HEADER_BYTES" yaml:"max_header_bytes" default:"1048576"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" default:"30s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" yaml:"request_timeout" default:"60s"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	AllowedOrigins []string        `envconfig:"ALLOWED_ORIGINS" yaml:"allowed_origins" default:"http://localhost:8080"`
	EnableCORS     bool            `envconfig:"ENABLE_CORS" yaml:"enable_cors" default:"true"`
	RateLimit      RateLimitConfig `envconfig:"RATE_LIMIT" yaml:"rate_limit"`
}

// RateLimitConfig holds the token bucket parameters.
type RateLimitConfig struct {
	Enabled bool    `envconfig:"ENABLED" yaml:"enabled" default:"true"`
	RPS     float64 `envconfig:"RPS" yaml:"rps" default:"100"`
	Burst   int     `envconfig:"BURST" yaml:"burst" default:"50"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string `envconfig:"LEVEL" yaml:"level" default:"info"`
	Format      string `envconfig:"FORMAT" yaml:"format" default:"json"`
	Output      string `envconfig:"OUTPUT" yaml:"output" default:"both"`
	FilePath    string `envconfig:"FILE_PATH" yaml:"file_path" default:"logs/app.log"`
	Development bool   `envconfig:"DEVELOPMENT" yaml:"development" default:"true"`
}

// LimitsConfig caps the size of uploaded datasets.
type LimitsConfig struct {
	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" yaml:"max_upload_bytes" default:"10485760"`
}

// PathsConfig holds the filesystem layout.
type PathsConfig struct {
	ExecutableDir string `envconfig:"EXECUTABLE_DIR" yaml:"executable_dir"`
	SamplesDir    string `envconfig:"SAMPLES_DIR" yaml:"samples_dir" default:"samples"`
	LogsDir       string `envconfig:"LOGS_DIR" yaml:"logs_dir" default:"logs"`
}

// WebSocketConfig holds the live-update connection settings.
type WebSocketConfig struct {
	ReadBufferSize  int           `envconfig:"READ_BUFFER_SIZE" yaml:"read_buffer_size" default:"1024"`
	WriteBufferSize int           `envconfig:"WRITE_BUFFER_SIZE" yaml:"write_buffer_size" default:"1024"`
	PingPeriod      time.Duration `envconfig:"PING_PERIOD" yaml:"ping_period" default:"30s"`
	PongWait        time.Duration `envconfig:"PONG_WAIT" yaml:"pong_wait" default:"60s"`
}

// Load builds the configuration. Precedence, highest first:
// environment variables (WQV_*), a config.yaml if one is found, then
// struct tag defaults.
func Load() (*Config, error) {
	var conf Config

	// File first; envconfig.Process then layers the environment on top
	if path := findConfigFile(); path != "" {
		loaded, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		conf = *loaded
	}

	if err := envconfig.Process("WQV", &conf); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := conf.resolveExecutableDir(); err != nil {
		return nil, fmt.Errorf("resolve executable dir: %w", err)
	}

	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	if err := conf.ensurePaths(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	return &conf, nil
}

func loadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolveExecutableDir pins Paths.ExecutableDir to the real binary
// location so the relative directories resolve next to the executable.
func (cfg *Config) resolveExecutableDir() error {
	layout, err := GetPaths()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	cfg.Paths.ExecutableDir = layout.ExecutableDir
	return nil
}

// ensurePaths creates the data directories and logs where they ended
// up. It runs after validation so a rejected config has no side
// effects.
func (cfg *Config) ensurePaths() error {
	layout, err := GetPaths()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	if err := layout.EnsureDirectories(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	layout.LogPathResolution()
	return nil
}

// validate rejects unusable values and normalizes the logging section.
func (cfg *Config) validate() error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if len(cfg.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("no allowed origins configured")
	}
	if cfg.Limits.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	// Structured logs are always JSON
	cfg.Logging.Format = "json"

	switch cfg.Logging.Output {
	case "console", "file", "both":
	default:
		cfg.Logging.Output = "both"
	}

	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = DefaultLogFilePath
	}

	return nil
}

// findConfigFile probes the usual locations and returns the first hit,
// or "" when the app should run on env vars and defaults alone.
func findConfigFile() string {
	candidates := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Default returns the built-in configuration, matching the struct tag
// defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultServerPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
			ShutdownTimeout: DefaultShutdownTimeout,
			RequestTimeout:  DefaultRequestTimeout,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{DefaultAllowedOrigin},
			EnableCORS:     true,
			RateLimit:      RateLimitConfig{Enabled: true, RPS: DefaultRateLimit, Burst: DefaultBurstSize},
		},
		Logging: LoggingConfig{
			Level:       DefaultLogLevel,
			Format:      DefaultLogFormat,
			Output:      "both",
			FilePath:    DefaultLogFilePath,
			Development: true,
		},
		Limits: LimitsConfig{
			MaxUploadBytes: DefaultMaxUploadBytes,
		},
		Paths: PathsConfig{
			SamplesDir: DefaultSamplesDir,
			LogsDir:    DefaultLogsDir,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  WebSocketReadBufferSize,
			WriteBufferSize: WebSocketWriteBufferSize,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
		},
	}
}
