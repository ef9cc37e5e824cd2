package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lines-of-codes/litestore/database"
	"github.com/lines-of-codes/litestore/filesystem"
	litestorehttp "github.com/lines-of-codes/litestore/http"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for litestore.
type Config struct {
	Env      string                   `mapstructure:"env" validate:"omitempty,oneof=dev development prod production"`
	Server   ServerConfig             `mapstructure:"server"`
	Service  ServiceConfig            `mapstructure:"service"`
	Database database.Config          `mapstructure:"database"`
	Storage  StorageConfig            `mapstructure:"storage"`
	Auth     AuthConfig               `mapstructure:"auth"`
	CORS     litestorehttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig                `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	// CleanupTimeout bounds background purges and compensating cleanups.
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout" validate:"min=0"`
}

// StorageConfig selects and configures the content store.
type StorageConfig struct {
	Backend           string           `mapstructure:"backend" validate:"required,oneof=s3 filesystem"`
	PresignTimeout    time.Duration    `mapstructure:"presign_timeout" validate:"min=0"`
	PresignExpiry     time.Duration    `mapstructure:"presign_expiry" validate:"min=0,max=168h"`
	DeleteConcurrency int              `mapstructure:"delete_concurrency" validate:"min=0,max=64"`
	S3                S3Config         `mapstructure:"s3"`
	Filesystem        FilesystemConfig `mapstructure:"filesystem"`
}

// S3Config holds the settings of the S3 backend.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// FilesystemConfig holds the settings of the local filesystem backend.
type FilesystemConfig struct {
	Path string `mapstructure:"path"`
	// BaseURL is the public URL of the server's content route.
	BaseURL string                `mapstructure:"base_url"`
	Keys    filesystem.KeysConfig `mapstructure:"keys"`
}

// AuthConfig holds token and password settings.
type AuthConfig struct {
	// JWTSecret signs session tokens. When empty the secret is read from, or
	// generated into, SecretFile.
	JWTSecret  string        `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	SecretFile string        `mapstructure:"secret_file"`
	TokenTTL   time.Duration `mapstructure:"token_ttl" validate:"min=0"`
	BcryptCost int           `mapstructure:"bcrypt_cost" validate:"min=0,max=31"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// IsProduction reports whether Env names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
	case "filesystem":
		if c.Storage.Filesystem.Path == "" {
			return errors.New("storage.filesystem.path is required for the filesystem backend")
		}
		u, err := url.Parse(c.Storage.Filesystem.BaseURL)
		if err != nil || !u.IsAbs() {
			return errors.New("storage.filesystem.base_url must be an absolute URL")
		}
		if strings.TrimSuffix(u.Path, "/") != litestorehttp.ContentPath {
			return fmt.Errorf("storage.filesystem.base_url must end in %s", litestorehttp.ContentPath)
		}
	}

	if c.Auth.JWTSecret == "" && c.Auth.SecretFile == "" {
		return errors.New("one of auth.jwt_secret or auth.secret_file is required")
	}

	return nil
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":         "database.type",
	"db-dsn":          "database.dsn",
	"storage-backend": "storage.backend",
	"storage-path":    "storage.filesystem.path",
	"port":            "server.port",
	"log-level":       "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// that may come from the environment needs a default so AutomaticEnv sees it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 5708)
	v.SetDefault("server.max_body_bytes", litestorehttp.DefaultMaxBodyBytes)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("service.cleanup_timeout", 30*time.Second)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "litestore.db")
	v.SetDefault("database.tables.users", "users")
	v.SetDefault("database.tables.files", "files")
	v.SetDefault("database.tables.file_links", "file_links")

	v.SetDefault("storage.backend", "filesystem")
	v.SetDefault("storage.presign_timeout", 10*time.Second)
	v.SetDefault("storage.presign_expiry", 15*time.Minute)
	v.SetDefault("storage.delete_concurrency", 4)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.filesystem.path", "./data")
	v.SetDefault("storage.filesystem.base_url", "http://localhost:5708/content")
	v.SetDefault("storage.filesystem.keys.file", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.secret_file", "litestore.secret")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 0)

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PATCH", "DELETE"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type"})

	v.SetDefault("log.level", "")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("LITESTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.Database.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
