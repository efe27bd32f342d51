package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/wardenauth/warden/pkg/constants"
)

// Load reads configuration from the given file (or the default search
// paths when path is empty), layers WARDEN_ environment variables on
// top and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/warden/")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Running on defaults plus env is fine; a broken file is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Watch re-reads the config file on change and hands the fresh tree to
// onChange. Reload failures keep the previous configuration.
func Watch(path string, onChange func(*Config)) error {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/warden/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			return
		}
		if err := cfg.Validate(); err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", constants.ProfileDevelopment)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.enable_pprof", false)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("authority.base_url", "http://localhost:9090")
	v.SetDefault("authority.client_id", "warden")
	// Empty defaults keep these keys visible to the env override layer.
	v.SetDefault("authority.system_credential", "")
	v.SetDefault("authority.timeout", constants.DefaultAuthorityTimeout)
	v.SetDefault("authority.token_header_prefix", constants.DefaultTokenHeaderPrefix)

	v.SetDefault("keys.store", "fs")
	v.SetDefault("keys.dir", "./keys")
	v.SetDefault("keys.active_key_id", "")
	v.SetDefault("keys.rotation_interval", constants.DefaultRotationInterval)
	v.SetDefault("keys.retention_window", constants.DefaultRetentionWindow)
	v.SetDefault("keys.publication_window", constants.DefaultPublicationWindow)
	v.SetDefault("keys.auto_rotate", true)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.capacity", constants.DefaultCacheCapacity)
	v.SetDefault("cache.ttl", constants.DefaultCacheTTL)

	v.SetDefault("mfa.global", false)
	v.SetDefault("mfa.contexts", []string{})

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "warden.identity.events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "warden")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.path", "/metrics")
}
