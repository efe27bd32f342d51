// Package config centralizes runtime configuration for the warden
// service. Values come from config files and WARDEN_ environment
// variables, with sane defaults for development.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration tree.
type Config struct {
	Profile    string           `mapstructure:"profile"`
	Server     ServerConfig     `mapstructure:"server"`
	Authority  AuthorityConfig  `mapstructure:"authority"`
	Keys       KeysConfig       `mapstructure:"keys"`
	Cache      CacheConfig      `mapstructure:"cache"`
	MFA        MFAConfig        `mapstructure:"mfa"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnablePprof     bool          `mapstructure:"enable_pprof"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthorityConfig points at the upstream identity authority that owns
// credentials and token issuance.
type AuthorityConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	ClientID         string        `mapstructure:"client_id"`
	Timeout          time.Duration `mapstructure:"timeout"`
	SystemCredential string        `mapstructure:"system_credential"`

	// TokenHeaderPrefix is the scheme expected on inbound Authorization
	// headers, normally "Bearer".
	TokenHeaderPrefix string `mapstructure:"token_header_prefix"`
}

// KeysConfig controls the signing key lifecycle.
type KeysConfig struct {
	// Store selects the persistence backend: fs, gorm or redis.
	Store string `mapstructure:"store"`
	Dir   string `mapstructure:"dir"`

	// ActiveKeyID optionally pins the active key at startup. Ignored
	// when it names no persisted key.
	ActiveKeyID       string        `mapstructure:"active_key_id"`
	RotationInterval  time.Duration `mapstructure:"rotation_interval"`
	RetentionWindow   time.Duration `mapstructure:"retention_window"`
	PublicationWindow time.Duration `mapstructure:"publication_window"`
	AutoRotate        bool          `mapstructure:"auto_rotate"`
}

// CacheConfig bounds the token validation cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MFAConfig controls multi-factor enforcement. Global applies to every
// context; Contexts lists the policy domains that require MFA when the
// global switch is off.
type MFAConfig struct {
	Global   bool     `mapstructure:"global"`
	Contexts []string `mapstructure:"contexts"`
}

// RequiresFor reports whether a request in the given policy domain must
// present a verified second factor.
func (m MFAConfig) RequiresFor(domain string) bool {
	if m.Global {
		return true
	}
	for _, c := range m.Contexts {
		if c == domain {
			return true
		}
	}
	return false
}

// RedisConfig configures the optional redis key store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig configures the optional gorm key store.
type DatabaseConfig struct {
	// Driver is postgres or sqlite.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// KafkaConfig configures the optional hook event sink.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// MonitoringConfig controls the Prometheus endpoint.
type MonitoringConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Validate rejects configurations that cannot produce a working
// service. Called once at startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Authority.BaseURL == "" {
		return fmt.Errorf("authority.base_url is required")
	}
	if c.Cache.Enabled && c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive when cache is enabled")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when cache is enabled")
	}
	switch c.Keys.Store {
	case "fs", "gorm", "redis":
	default:
		return fmt.Errorf("keys.store %q unknown, want fs, gorm or redis", c.Keys.Store)
	}
	if c.Keys.Store == "fs" && c.Keys.Dir == "" {
		return fmt.Errorf("keys.dir is required for the fs store")
	}
	if c.Keys.Store == "gorm" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the gorm store")
	}
	if c.Keys.Store == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for the redis store")
	}
	if c.Keys.RotationInterval <= 0 {
		return fmt.Errorf("keys.rotation_interval must be positive")
	}
	if c.Keys.RetentionWindow < c.Keys.RotationInterval {
		return fmt.Errorf("keys.retention_window must cover at least one rotation interval")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	return nil
}
