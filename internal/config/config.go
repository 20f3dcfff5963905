package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Notifier NotifierConfig
	Jobs     JobsConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database backend configuration
type DatabaseConfig struct {
	Type     string // "postgres" or "mongodb"
	Postgres PostgresConfig
	MongoDB  MongoDBConfig
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// MongoDBConfig holds MongoDB configuration
type MongoDBConfig struct {
	URI          string
	Database     string
	MaxPoolSize  int
	MinPoolSize  int
	WriteConcern string
}

// NotifierConfig holds the WhatsApp gateway configuration
type NotifierConfig struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	QueueSize int
}

// JobsConfig holds the scheduled job cadences
type JobsConfig struct {
	ExpirySweepInterval        time.Duration
	ReactivationNoticeInterval time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string // "debug", "info", "warn", "error"
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/bypassguard")
	}

	// Read environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("BYPASSGUARD")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.idleTimeout", "120s")

	// Database defaults
	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "bypassguard")
	v.SetDefault("database.postgres.password", "bypassguard")
	v.SetDefault("database.postgres.database", "bypassguard")
	v.SetDefault("database.postgres.sslMode", "disable")
	v.SetDefault("database.postgres.maxOpenConns", 25)
	v.SetDefault("database.postgres.maxIdleConns", 5)
	v.SetDefault("database.postgres.connMaxLifetime", "5m")
	v.SetDefault("database.postgres.connMaxIdleTime", "10m")
	v.SetDefault("database.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongodb.database", "bypassguard")
	v.SetDefault("database.mongodb.maxPoolSize", 100)
	v.SetDefault("database.mongodb.minPoolSize", 10)
	v.SetDefault("database.mongodb.writeConcern", "majority")

	// Notifier defaults
	v.SetDefault("notifier.baseURL", "")
	v.SetDefault("notifier.token", "")
	v.SetDefault("notifier.timeout", "10s")
	v.SetDefault("notifier.queueSize", 256)

	// Job defaults
	v.SetDefault("jobs.expirySweepInterval", "5m")
	v.SetDefault("jobs.reactivationNoticeInterval", "15m")

	// Logging defaults
	v.SetDefault("logging.level", "info")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
}
