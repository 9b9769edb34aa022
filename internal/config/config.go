package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Security  SecurityConfig  `mapstructure:"security"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path           string        `mapstructure:"path"`
	MaxConnections int           `mapstructure:"max_connections"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	TokenExpiry int    `mapstructure:"token_expiry"` // seconds
	Issuer      string `mapstructure:"issuer"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AnalysisConfig bounds statistical queries.
type AnalysisConfig struct {
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

type WebSocketConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	SendBuffer        int           `mapstructure:"send_buffer"`
}

// MQTTConfig configures the optional MQTT sample subscriber.
type MQTTConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BrokerURL string `mapstructure:"broker_url"`
	ClientID  string `mapstructure:"client_id"`
	Topic     string `mapstructure:"topic"`
	QoS       byte   `mapstructure:"qos"`
	KeepAlive uint16 `mapstructure:"keep_alive"`
}

type SimulatorConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

type DiscoveryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Instance string `mapstructure:"instance"`
	Service  string `mapstructure:"service"`
	Domain   string `mapstructure:"domain"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

type SecurityConfig struct {
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerSecond int  `mapstructure:"requests_per_second"`
	Burst             int  `mapstructure:"burst"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Read environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Override specific values from env
	viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("mqtt.enabled", "MQTT_ENABLED")
	viper.BindEnv("mqtt.broker_url", "MQTT_BROKER_URL")
	viper.BindEnv("simulator.enabled", "SIMULATOR_ENABLED")
	viper.BindEnv("discovery.enabled", "DISCOVERY_ENABLED")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration for completeness and correctness
func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errors = append(errors, "server.port must be between 1 and 65535")
	}
	if c.Server.Host == "" {
		errors = append(errors, "server.host is required")
	}

	if c.Database.Path == "" {
		errors = append(errors, "database.path is required")
	}
	if c.Database.MaxConnections <= 0 {
		errors = append(errors, "database.max_connections must be greater than 0")
	}

	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "your-secret-key-here" {
		errors = append(errors, "auth.jwt_secret must be set to a secure value")
	}
	if c.Auth.TokenExpiry <= 0 {
		errors = append(errors, "auth.token_expiry must be greater than 0")
	}

	if c.Analysis.QueryTimeout < 0 {
		errors = append(errors, "analysis.query_timeout must not be negative")
	}

	if c.MQTT.Enabled {
		if c.MQTT.BrokerURL == "" {
			errors = append(errors, "mqtt.broker_url is required when MQTT is enabled")
		} else if _, err := url.Parse(c.MQTT.BrokerURL); err != nil {
			errors = append(errors, fmt.Sprintf("mqtt.broker_url is invalid: %v", err))
		}
		if c.MQTT.Topic == "" {
			errors = append(errors, "mqtt.topic is required when MQTT is enabled")
		}
		if c.MQTT.QoS > 2 {
			errors = append(errors, "mqtt.qos must be 0, 1 or 2")
		}
	}

	if c.Simulator.Enabled && c.Simulator.Schedule == "" {
		errors = append(errors, "simulator.schedule is required when the simulator is enabled")
	}

	if c.Discovery.Enabled && c.Discovery.Service == "" {
		errors = append(errors, "discovery.service is required when discovery is enabled")
	}

	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RequestsPerSecond <= 0 {
		errors = append(errors, "security.rate_limit.requests_per_second must be greater than 0")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "development")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "45s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.path", "./data/telemetry.db")
	viper.SetDefault("database.max_connections", 16)
	viper.SetDefault("database.busy_timeout", "5s")
	viper.SetDefault("database.auto_migrate", true)

	// Auth defaults
	viper.SetDefault("auth.token_expiry", 86400)
	viper.SetDefault("auth.issuer", "telemetry-backend-go")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("analysis.query_timeout", "30s")

	viper.SetDefault("websocket.heartbeat_interval", "30s")
	viper.SetDefault("websocket.send_buffer", 256)

	// MQTT defaults
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker_url", "tcp://localhost:1883")
	viper.SetDefault("mqtt.client_id", "telemetry-backend")
	viper.SetDefault("mqtt.topic", "devices/+/samples")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.keep_alive", 30)

	viper.SetDefault("simulator.enabled", false)
	viper.SetDefault("simulator.schedule", "@every 10s")

	viper.SetDefault("discovery.enabled", false)
	viper.SetDefault("discovery.instance", "telemetry-backend")
	viper.SetDefault("discovery.service", "_telemetry._tcp")
	viper.SetDefault("discovery.domain", "local.")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prefix", "telemetry")

	// Security defaults
	viper.SetDefault("security.allowed_origins", []string{"*"})
	viper.SetDefault("security.rate_limit.enabled", true)
	viper.SetDefault("security.rate_limit.requests_per_second", 100)
	viper.SetDefault("security.rate_limit.burst", 200)
}
