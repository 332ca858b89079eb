// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv string `mapstructure:"APP_ENV"`

	// Database Configuration
	DBDriver          string        `mapstructure:"DB_DRIVER"`
	DBPath            string        `mapstructure:"DB_PATH"`
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Catalog
	ProductsPerPage          int    `mapstructure:"PRODUCTS_PER_PAGE"`
	UsersPerPage             int    `mapstructure:"USERS_PER_PAGE"`
	ProductRetentionDays     int    `mapstructure:"PRODUCT_RETENTION_DAYS"`
	ProductExpiryJobSchedule string `mapstructure:"PRODUCT_EXPIRY_JOB_SCHEDULE"`

	// Images
	UploadDir         string `mapstructure:"UPLOAD_DIR"`
	DefaultImagePath  string `mapstructure:"DEFAULT_IMAGE_PATH"`
	ImageMaxDimension int    `mapstructure:"IMAGE_MAX_DIMENSION"`
	ImageMaxPixels    int    `mapstructure:"IMAGE_MAX_PIXELS"` // width*height accepted before decoding

	// Elasticsearch Configuration. An empty URL disables indexing.
	ElasticsearchURL string `mapstructure:"ELASTICSEARCH_URL"`

	// Kafka Configuration. No brokers means events are dropped.
	KafkaBrokers []string `mapstructure:"-"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`
}

// IsRelease reports whether the application runs with production settings.
func (c *Config) IsRelease() bool {
	return c.AppEnv == "release"
}

// RetentionWindow is how long a product stays listed before the sweep removes it.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.ProductRetentionDays) * 24 * time.Hour
}

// PostgresDSN builds the DSN understood by gorm's postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode, c.DBTimezone)
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "debug")

	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "database/deals.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "deals")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("PRODUCTS_PER_PAGE", 16)
	v.SetDefault("USERS_PER_PAGE", 10)
	v.SetDefault("PRODUCT_RETENTION_DAYS", 10)
	v.SetDefault("PRODUCT_EXPIRY_JOB_SCHEDULE", "@every 1h")

	v.SetDefault("UPLOAD_DIR", "static/uploads")
	v.SetDefault("DEFAULT_IMAGE_PATH", "/img/default.png")
	v.SetDefault("IMAGE_MAX_DIMENSION", 800)
	v.SetDefault("IMAGE_MAX_PIXELS", 40_000_000)

	v.SetDefault("ELASTICSEARCH_URL", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "product_events")
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (expected sqlite or postgres)", c.DBDriver)
	}
	if c.ProductsPerPage <= 0 || c.UsersPerPage <= 0 {
		return fmt.Errorf("PRODUCTS_PER_PAGE and USERS_PER_PAGE must be positive")
	}
	if c.ProductRetentionDays <= 0 {
		return fmt.Errorf("PRODUCT_RETENTION_DAYS must be positive, got %d", c.ProductRetentionDays)
	}
	if c.ImageMaxDimension <= 0 {
		return fmt.Errorf("IMAGE_MAX_DIMENSION must be positive, got %d", c.ImageMaxDimension)
	}
	if c.ImageMaxPixels <= 0 {
		return fmt.Errorf("IMAGE_MAX_PIXELS must be positive, got %d", c.ImageMaxPixels)
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("UPLOAD_DIR is not set")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
