package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/op/go-logging"
	"golang.org/x/crypto/bcrypt"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ValidationErrors is every problem found in one pass.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n", len(errs)))
	for i, err := range errs {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Has reports whether field has an error.
func (errs ValidationErrors) Has(field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

type validator struct {
	errs ValidationErrors
}

func (v *validator) add(field, message string) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: message})
}

func (v *validator) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "required")
	}
}

func (v *validator) enum(field, value string, allowed ...string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.add(field, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// Validate checks cfg and returns ValidationErrors listing every problem.
func (c Config) Validate() error {
	v := &validator{}

	if c.Port < 1 || c.Port > 65535 {
		v.add("port", "must be between 1 and 65535")
	}

	v.enum("storage.backend", c.Storage.Backend, "disk", "s3")
	v.enum("storage.naming", c.Storage.Naming, "timestamp", "uuid")
	switch c.Storage.Backend {
	case "disk":
		v.required("storage.dir", c.Storage.Dir)
		if c.Storage.CleanupInterval < 0 {
			v.add("storage.cleanup_interval", "must not be negative")
		}
		if c.Storage.CleanupInterval > 0 && c.Storage.TempMaxAge <= 0 {
			v.add("storage.temp_max_age", "must be positive when cleanup is enabled")
		}
	case "s3":
		v.required("s3.endpoint", c.S3.Endpoint)
		v.required("s3.access_key", c.S3.AccessKey)
		v.required("s3.secret_key", c.S3.SecretKey)
		v.required("s3.bucket", c.S3.Bucket)
		if c.S3.BreakerFailures < 0 {
			v.add("s3.breaker_failures", "must not be negative")
		}
		if c.S3.BreakerFailures > 0 && c.S3.BreakerTimeout <= 0 {
			v.add("s3.breaker_timeout", "must be positive when the breaker is enabled")
		}
	}

	v.required("auth.user", c.Auth.User)
	if strings.ContainsRune(c.Auth.User, ':') {
		v.add("auth.user", "must not contain ':'")
	}
	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		v.add("auth.password", "one of auth.password or auth.password_hash is required")
	}
	if c.Auth.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Auth.PasswordHash)); err != nil {
			v.add("auth.password_hash", "must be a valid bcrypt hash")
		}
	}
	if strings.ContainsRune(c.Auth.Realm, '"') {
		v.add("auth.realm", "must not contain quotes")
	}
	if c.Auth.MaxFailures < 0 {
		v.add("auth.max_failures", "must not be negative")
	}
	if c.Auth.MaxFailures > 0 && c.Auth.Lockout <= 0 {
		v.add("auth.lockout", "must be positive when lockout is enabled")
	}

	if c.Upload.MaxBytes < 0 {
		v.add("upload.max_bytes", "must not be negative")
	}
	if c.RateLimit.Requests < 0 {
		v.add("ratelimit.requests", "must not be negative")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		v.add("ratelimit.window", "must be positive when rate limiting is enabled")
	}

	if c.DatabaseURL != "" {
		u, err := url.Parse(c.DatabaseURL)
		if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			v.add("database_url", "must be a valid PostgreSQL connection string")
		}
	}

	if _, err := logging.LogLevel(c.Log.Level); err != nil {
		v.add("log.level", "must be one of critical, error, warning, notice, info, debug")
	}

	if len(v.errs) > 0 {
		return v.errs
	}
	return nil
}
