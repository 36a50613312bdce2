// Package config loads picdrop settings from flags, environment and an
// optional config file, and validates them before the server starts.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. PICDROP_STORAGE_DIR.
const EnvPrefix = "PICDROP"

type Config struct {
	Port        int             `mapstructure:"port"`
	TrustProxy  bool            `mapstructure:"trust_proxy"` // honour X-Forwarded-For / X-Real-IP
	Storage     StorageConfig   `mapstructure:"storage"`
	S3          S3Config        `mapstructure:"s3"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Upload      UploadConfig    `mapstructure:"upload"`
	CORS        CORSConfig      `mapstructure:"cors"`
	RateLimit   RateLimitConfig `mapstructure:"ratelimit"`
	DatabaseURL string          `mapstructure:"database_url"`
	Log         LogConfig       `mapstructure:"log"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type StorageConfig struct {
	Backend         string        `mapstructure:"backend"` // disk | s3
	Dir             string        `mapstructure:"dir"`
	Naming          string        `mapstructure:"naming"`           // timestamp | uuid
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"` // 0 disables the temp sweep
	TempMaxAge      time.Duration `mapstructure:"temp_max_age"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`

	BreakerFailures int           `mapstructure:"breaker_failures"` // 0 disables the circuit breaker
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type AuthConfig struct {
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	PasswordHash string        `mapstructure:"password_hash"` // bcrypt
	Realm        string        `mapstructure:"realm"`
	MaxFailures  int           `mapstructure:"max_failures"` // per client IP; 0 disables lockout
	Lockout      time.Duration `mapstructure:"lockout"`
}

type UploadConfig struct {
	MaxBytes   int64 `mapstructure:"max_bytes"` // 0 = no limit
	ImagesOnly bool  `mapstructure:"images_only"`
}

type CORSConfig struct {
	Origin string `mapstructure:"origin"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"` // 0 disables
	Window   time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 3000)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("storage.backend", "disk")
	v.SetDefault("storage.dir", "uploads")
	v.SetDefault("storage.naming", "timestamp")
	v.SetDefault("storage.cleanup_interval", time.Hour)
	v.SetDefault("storage.temp_max_age", 24*time.Hour)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "uploads/")
	v.SetDefault("s3.breaker_failures", 5)
	v.SetDefault("s3.breaker_timeout", 30*time.Second)
	v.SetDefault("auth.user", "admin")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.realm", "Admin Area")
	v.SetDefault("auth.max_failures", 5)
	v.SetDefault("auth.lockout", 15*time.Minute)
	v.SetDefault("upload.max_bytes", 0)
	v.SetDefault("upload.images_only", false)
	v.SetDefault("cors.origin", "*")
	v.SetDefault("ratelimit.requests", 60)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// NewViper returns a viper instance with defaults and environment bindings.
// PORT, DATABASE_URL and OTEL_EXPORTER_OTLP_ENDPOINT are honoured alongside
// their PICDROP_ forms.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")
	_ = v.BindEnv("database_url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("telemetry.otlp_endpoint", EnvPrefix+"_TELEMETRY_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	return v
}

// Load reads the optional config file into v and decodes the result.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Storage.Naming = strings.ToLower(strings.TrimSpace(cfg.Storage.Naming))
	return cfg, nil
}
