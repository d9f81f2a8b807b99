package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

type ServerConfig struct {
	Port      int `mapstructure:"port"`
	BodyLimit int `mapstructure:"body_limit"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.IsSQLite() {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

type StorageConfig struct {
	Driver        string   `mapstructure:"driver"` // local, s3 or memory
	LocalPath     string   `mapstructure:"local_path"`
	PublicBaseURL string   `mapstructure:"public_base_url"`
	MaxFileSize   int64    `mapstructure:"max_file_size"`
	S3            S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
	Prefix    string `mapstructure:"prefix"`
}

type AuthConfig struct {
	Password         string        `mapstructure:"password"`
	PasswordHash     string        `mapstructure:"password_hash"`
	JWTSecret        string        `mapstructure:"jwt_secret"`
	AccessTTL        time.Duration `mapstructure:"access_ttl"`
	RefreshTTL       time.Duration `mapstructure:"refresh_ttl"`
	LoginMaxAttempts int           `mapstructure:"login_max_attempts"`
	LoginWindow      time.Duration `mapstructure:"login_window"`
}

// UploadRule is an expression evaluated against every uploaded file.
type UploadRule struct {
	Expression string `mapstructure:"expression"`
	Message    string `mapstructure:"message"`
}

type UploadConfig struct {
	Rules []UploadRule `mapstructure:"rules"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type AuditConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	RetentionDays   int  `mapstructure:"retention_days"`
	BufferSize      int  `mapstructure:"buffer_size"`
	FlushIntervalMs int  `mapstructure:"flush_interval_ms"`
}

// DefaultUploadRules are applied when upload.rules is not configured.
var DefaultUploadRules = []UploadRule{
	{Expression: `doc_type != "pdf" || content_type == "application/pdf"`, Message: "PDF documents must be PDF files"},
	{Expression: `doc_type != "album" || content_type startsWith "image/"`, Message: "Album entries must be images"},
	{Expression: `max_size <= 0 || size <= max_size`, Message: "File is too large"},
}

// unsetKeys have no default, so AutomaticEnv alone would never see them.
var unsetKeys = []string{
	"database.user",
	"database.password",
	"storage.s3.bucket",
	"storage.s3.endpoint",
	"storage.s3.path_style",
	"storage.s3.prefix",
	"auth.password",
	"auth.password_hash",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.body_limit", 64*1024*1024)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "qa_portal")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.path", "./data")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_path", "./uploads")
	v.SetDefault("storage.public_base_url", "/files")
	v.SetDefault("storage.max_file_size", 10485760)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("auth.jwt_secret", "changeme-secret")
	v.SetDefault("auth.access_ttl", 8*time.Hour)
	v.SetDefault("auth.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("auth.login_max_attempts", 5)
	v.SetDefault("auth.login_window", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.retention_days", 90)
	v.SetDefault("audit.buffer_size", 100)
	v.SetDefault("audit.flush_interval_ms", 500)
}

// Load reads app.yaml (optional), .env (optional) and QA_* environment variables.
// An explicit path overrides the config file search.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("app")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("../..")
	}

	v.SetEnvPrefix("QA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range unsetKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Upload.Rules) == 0 {
		cfg.Upload.Rules = DefaultUploadRules
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "local", "memory":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		return fmt.Errorf("auth.password or auth.password_hash must be set")
	}
	return nil
}
