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

	"github.com/ferrydl/ferry"
	"github.com/ferrydl/ferry/database"
	"github.com/ferrydl/ferry/delivery"
	ferryhttp "github.com/ferrydl/ferry/http"
	"github.com/ferrydl/ferry/identity"
	"github.com/ferrydl/ferry/s3store"
	"github.com/ferrydl/ferry/telemetry"
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

// Config is the root configuration struct for ferry.
type Config struct {
	Env       string               `mapstructure:"env" validate:"omitempty,oneof=dev development prod production"`
	Server    ServerConfig         `mapstructure:"server"`
	Delivery  DeliveryConfig       `mapstructure:"delivery"`
	Content   ContentConfig        `mapstructure:"content"`
	Database  database.Config      `mapstructure:"database"`
	Auth      identity.Config      `mapstructure:"auth"`
	S3        s3store.Config       `mapstructure:"s3"`
	Telemetry telemetry.Config     `mapstructure:"telemetry"`
	Events    EventsConfig         `mapstructure:"events"`
	CORS      ferryhttp.CORSConfig `mapstructure:"cors"`
	Log       LogConfig            `mapstructure:"log"`
}

// IsProd reports whether the production environment is selected.
func (c *Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	PublicURL       string        `mapstructure:"public_url" validate:"omitempty,url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// Host returns the host part of PublicURL, or an empty string.
func (s ServerConfig) Host() string {
	u, err := url.Parse(s.PublicURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// DeliveryConfig selects the delivery strategy and its fallback policy.
type DeliveryConfig struct {
	Method           string `mapstructure:"method" validate:"required,oneof=force xsendfile redirect"`
	RedirectFallback bool   `mapstructure:"redirect_fallback"`
	XSendfileRemote  bool   `mapstructure:"xsendfile_remote"`
	ServerSoftware   string `mapstructure:"server_software"`
	ChunkSize        int    `mapstructure:"chunk_size" validate:"min=0"`
}

// Dispatcher converts the section into the delivery package configuration.
func (d DeliveryConfig) Dispatcher() delivery.Config {
	return delivery.Config{
		Method:           delivery.Method(d.Method),
		RedirectFallback: d.RedirectFallback,
		AllowRemote:      d.XSendfileRemote,
		ServerSoftware:   d.ServerSoftware,
		ChunkSize:        d.ChunkSize,
	}
}

// ContentConfig describes where download bytes live and how public URLs map
// onto local directories.
type ContentConfig struct {
	UploadDir     string   `mapstructure:"upload_dir" validate:"required"`
	UploadURL     string   `mapstructure:"upload_url" validate:"omitempty,url"`
	SiteURLs      []string `mapstructure:"site_urls" validate:"dive,url"`
	SiteRoot      string   `mapstructure:"site_root"`
	ContentRoot   string   `mapstructure:"content_root"`
	ContentMarker string   `mapstructure:"content_marker"`
}

// Resolver converts the section into resolver configuration.
func (c ContentConfig) Resolver() ferry.ResolverConfig {
	return ferry.ResolverConfig{
		UploadDir:     c.UploadDir,
		UploadURL:     c.UploadURL,
		SiteURLs:      c.SiteURLs,
		SiteRoot:      c.SiteRoot,
		ContentRoot:   c.ContentRoot,
		ContentMarker: c.ContentMarker,
	}
}

// EventsConfig holds download event retention.
type EventsConfig struct {
	Retention time.Duration `mapstructure:"retention" validate:"min=0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":    "database.type",
	"db-dsn":     "database.dsn",
	"upload-dir": "content.upload_dir",
	"port":       "server.port",
	"method":     "delivery.method",
	"log-level":  "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey, ok := flagToViperKey[f.Name]
		if !ok {
			return
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("delivery.method", string(delivery.MethodForce))
	v.SetDefault("delivery.redirect_fallback", true)
	v.SetDefault("delivery.xsendfile_remote", false)
	v.SetDefault("delivery.server_software", "")
	v.SetDefault("delivery.chunk_size", 0) // 0 means the stream default

	v.SetDefault("content.upload_dir", "./downloads")
	v.SetDefault("content.upload_url", "")
	v.SetDefault("content.site_urls", []string{})
	v.SetDefault("content.site_root", "")
	v.SetDefault("content.content_root", "")
	v.SetDefault("content.content_marker", "")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "ferry.db")
	v.SetDefault("database.tables.downloads", "ferry_downloads")
	v.SetDefault("database.tables.events", "ferry_download_events")
	v.SetDefault("database.tables.options", "ferry_options")

	v.SetDefault("auth.tokens_file", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "")

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.prefix", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.force_path_style", false)
	v.SetDefault("s3.presign_ttl", s3store.DefaultPresignTTL.String())
	v.SetDefault("s3.concurrency", s3store.DefaultConcurrency)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.path", "/metrics")

	v.SetDefault("events.retention", "2160h") // 90 days

	v.SetDefault("cors.enabled", false)

	v.SetDefault("log.level", "info")
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
	v.SetEnvPrefix("FERRY")
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

	return &cfg, nil
}
