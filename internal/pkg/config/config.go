package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Mapbox    MapboxConfig    `mapstructure:"mapbox"`
	CMS       CMSConfig       `mapstructure:"cms"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Session   SessionConfig   `mapstructure:"session"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	CORSOrigins  string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr      string `mapstructure:"addr"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	TempoAddr   string  `mapstructure:"tempo_addr"`
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// MapboxConfig configures the map style and the Directions API client.
type MapboxConfig struct {
	AccessToken      string        `mapstructure:"access_token"`
	StyleURL         string        `mapstructure:"style_url"`
	DirectionsURL    string        `mapstructure:"directions_url"`
	DrivingProfile   string        `mapstructure:"driving_profile"`
	ItineraryProfile string        `mapstructure:"itinerary_profile"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// CMSConfig points at the WordPress content API serving pins.
type CMSConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	PerPage int           `mapstructure:"per_page"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// SessionConfig tunes per-connection map sessions.
type SessionConfig struct {
	GeolocationTimeout time.Duration     `mapstructure:"geolocation_timeout"`
	RouteTimeout       time.Duration     `mapstructure:"route_timeout"`
	ReconcileStrategy  string            `mapstructure:"reconcile_strategy"`
	MaxSessions        int               `mapstructure:"max_sessions"`
	DefaultIcon        string            `mapstructure:"default_icon"`
	Icons              map[string]string `mapstructure:"icons"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: PINMAP_MAPBOX_ACCESS_TOKEN → mapbox.access_token
	v.SetEnvPrefix("PINMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pinmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "pinmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.key_prefix", "pinmap:")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("mapbox.access_token", "")
	v.SetDefault("mapbox.style_url", "mapbox://styles/mapbox/standard")
	v.SetDefault("mapbox.directions_url", "https://api.mapbox.com")
	v.SetDefault("mapbox.driving_profile", "driving-traffic")
	v.SetDefault("mapbox.itinerary_profile", "walking")
	v.SetDefault("mapbox.timeout", 10*time.Second)
	v.SetDefault("cms.base_url", "https://data.hyrosy.com/wp-json/wp/v2")
	v.SetDefault("cms.timeout", 15*time.Second)
	v.SetDefault("cms.per_page", 100)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "pinmap-experiences")
	v.SetDefault("session.geolocation_timeout", 10*time.Second)
	v.SetDefault("session.route_timeout", 10*time.Second)
	v.SetDefault("session.reconcile_strategy", "rebuild")
	v.SetDefault("session.max_sessions", 1000)
	v.SetDefault("session.default_icon", "pin-default")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.sample_ratio must be 0-1, got %g", c.Telemetry.SampleRatio))
	}
	if _, err := url.ParseRequestURI(c.Mapbox.DirectionsURL); err != nil {
		errs = append(errs, fmt.Sprintf("mapbox.directions_url is invalid: %q", c.Mapbox.DirectionsURL))
	}
	if c.Mapbox.DrivingProfile == "" || c.Mapbox.ItineraryProfile == "" {
		errs = append(errs, "mapbox.driving_profile and mapbox.itinerary_profile are required")
	}
	if c.Mapbox.Timeout <= 0 {
		errs = append(errs, "mapbox.timeout must be positive")
	}
	if _, err := url.ParseRequestURI(c.CMS.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("cms.base_url is invalid: %q", c.CMS.BaseURL))
	}
	if c.CMS.PerPage <= 0 || c.CMS.PerPage > 100 {
		errs = append(errs, fmt.Sprintf("cms.per_page must be 1-100, got %d", c.CMS.PerPage))
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}
	if c.Session.GeolocationTimeout <= 0 || c.Session.RouteTimeout <= 0 {
		errs = append(errs, "session timeouts must be positive")
	}
	switch c.Session.ReconcileStrategy {
	case "rebuild", "keyed":
	default:
		errs = append(errs, fmt.Sprintf("session.reconcile_strategy must be rebuild or keyed, got %q", c.Session.ReconcileStrategy))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
