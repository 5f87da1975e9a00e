package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML string parsing ("30s", "2m").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Engine     EngineConfig     `yaml:"engine"`
	Processing ProcessingConfig `yaml:"processing"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
}

// DatabaseConfig configures the PostgreSQL connection
type DatabaseConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	User            string   `yaml:"user"`
	Password        string   `yaml:"password"`
	Database        string   `yaml:"database"`
	SSLMode         string   `yaml:"ssl_mode"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime Duration `yaml:"conn_max_idle_time"`
}

// EngineConfig configures the remote raster engine session
type EngineConfig struct {
	BaseURL string   `yaml:"base_url"`
	Project string   `yaml:"project"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"`
}

// ProcessingConfig holds calculation defaults and safety limits
type ProcessingConfig struct {
	DefaultScale     int     `yaml:"default_scale"`      // meters
	PixelSize        float64 `yaml:"pixel_size"`         // meters
	MaxAOIAreaKm2    float64 `yaml:"max_aoi_area_km2"`   // request ceiling
	StatsMaxPixels   int64   `yaml:"stats_max_pixels"`   // reduction budget
	ExportMaxPixels  int64   `yaml:"export_max_pixels"`  // export budget
	PracticeFallback float64 `yaml:"practice_fallback"`  // P value for unmapped classes
	ExportFolder     string  `yaml:"export_folder"`      // default Drive folder
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// (path in RUSLE_CONFIG), and RUSLE_* environment overrides, in that order.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("RUSLE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(5 * time.Minute),
			IdleTimeout:  Duration(60 * time.Second),
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "rusle",
			Password:        "rusle",
			Database:        "rusle",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration(30 * time.Minute),
			ConnMaxIdleTime: Duration(5 * time.Minute),
		},
		Engine: EngineConfig{
			Timeout: Duration(2 * time.Minute),
		},
		Processing: ProcessingConfig{
			DefaultScale:     90,
			PixelSize:        30,
			MaxAOIAreaKm2:    50000,
			StatsMaxPixels:   1e9,
			ExportMaxPixels:  1e13,
			PracticeFallback: 1.0,
			ExportFolder:     "RUSLE_exports",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Host, "RUSLE_SERVER_HOST")
	setInt(&cfg.Server.Port, "RUSLE_SERVER_PORT")

	setString(&cfg.Database.Host, "RUSLE_DB_HOST")
	setInt(&cfg.Database.Port, "RUSLE_DB_PORT")
	setString(&cfg.Database.User, "RUSLE_DB_USER")
	setString(&cfg.Database.Password, "RUSLE_DB_PASSWORD")
	setString(&cfg.Database.Database, "RUSLE_DB_NAME")
	setString(&cfg.Database.SSLMode, "RUSLE_DB_SSLMODE")

	setString(&cfg.Engine.BaseURL, "RUSLE_ENGINE_BASE_URL")
	setString(&cfg.Engine.Project, "RUSLE_ENGINE_PROJECT")
	setString(&cfg.Engine.Token, "RUSLE_ENGINE_TOKEN")

	setInt(&cfg.Processing.DefaultScale, "RUSLE_DEFAULT_SCALE")
	setFloat(&cfg.Processing.MaxAOIAreaKm2, "RUSLE_MAX_AOI_AREA_KM2")
	setString(&cfg.Processing.ExportFolder, "RUSLE_EXPORT_FOLDER")

	setString(&cfg.Logging.Level, "RUSLE_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

// Validate checks the configuration for values the process cannot run without
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Engine.BaseURL == "" {
		return fmt.Errorf("engine base URL is required (RUSLE_ENGINE_BASE_URL)")
	}
	if c.Engine.Project == "" {
		return fmt.Errorf("engine project is required (RUSLE_ENGINE_PROJECT)")
	}
	if c.Processing.DefaultScale < 10 || c.Processing.DefaultScale > 1000 {
		return fmt.Errorf("default scale must be between 10 and 1000 meters, got %d", c.Processing.DefaultScale)
	}
	if c.Processing.MaxAOIAreaKm2 <= 0 {
		return fmt.Errorf("max AOI area must be positive, got %f", c.Processing.MaxAOIAreaKm2)
	}
	if c.Processing.StatsMaxPixels <= 0 || c.Processing.ExportMaxPixels <= 0 {
		return fmt.Errorf("pixel budgets must be positive")
	}
	return nil
}
