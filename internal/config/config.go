package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "SNIPPETS"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabaseDriver   = "sqlite"
	defaultDatabasePath     = "snippets.db"
	defaultLocalStorePath   = "snippets-local.json"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultStoreBackend     = "auto"
	defaultTokenTTLMinutes  = 24 * 60
	defaultHeartbeatSeconds = 25
)

var storeBackends = []string{"auto", "sqlite", "postgres", "filesystem", "localstore", "s3"}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	LogLevel           string
	LogFormat          string
	SigningSecret      string
	PasswordHash       string
	TokenTTL           time.Duration
	StoreBackend       string
	DatabaseDriver     string
	DatabasePath       string
	DatabaseDSN        string
	FilesDir           string
	LocalStorePath     string
	S3Bucket           string
	S3Prefix           string
	S3Region           string
	S3Endpoint         string
	S3AccessKeyID      string
	S3SecretAccessKey  string
	CORSAllowedOrigins []string
	SeedDefaults       bool
	CacheReads         bool
	HeartbeatInterval  time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("store.backend", defaultStoreBackend)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("localstore.path", defaultLocalStorePath)
	configViper.SetDefault("cors.allowed_origins", []string{})
	configViper.SetDefault("library.seed_defaults", true)
	configViper.SetDefault("library.cache_reads", true)
	configViper.SetDefault("events.heartbeat_seconds", defaultHeartbeatSeconds)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		LogLevel:           configViper.GetString("log.level"),
		LogFormat:          configViper.GetString("log.format"),
		SigningSecret:      configViper.GetString("auth.signing_secret"),
		PasswordHash:       configViper.GetString("auth.password_hash"),
		TokenTTL:           time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		StoreBackend:       strings.ToLower(strings.TrimSpace(configViper.GetString("store.backend"))),
		DatabaseDriver:     strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:       configViper.GetString("database.path"),
		DatabaseDSN:        configViper.GetString("database.dsn"),
		FilesDir:           configViper.GetString("files.dir"),
		LocalStorePath:     configViper.GetString("localstore.path"),
		S3Bucket:           configViper.GetString("s3.bucket"),
		S3Prefix:           configViper.GetString("s3.prefix"),
		S3Region:           configViper.GetString("s3.region"),
		S3Endpoint:         configViper.GetString("s3.endpoint"),
		S3AccessKeyID:      configViper.GetString("s3.access_key_id"),
		S3SecretAccessKey:  configViper.GetString("s3.secret_access_key"),
		CORSAllowedOrigins: splitOrigins(configViper.GetStringSlice("cors.allowed_origins")),
		SeedDefaults:       configViper.GetBool("library.seed_defaults"),
		CacheReads:         configViper.GetBool("library.cache_reads"),
		HeartbeatInterval:  time.Duration(configViper.GetInt("events.heartbeat_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// splitOrigins accepts both list values and a comma separated env string.
func splitOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		for _, origin := range strings.Split(value, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				origins = append(origins, origin)
			}
		}
	}
	return origins
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.PasswordHash) == "" {
		return fmt.Errorf("auth.password_hash is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("events.heartbeat_seconds must be positive")
	}
	if !contains(storeBackends, c.StoreBackend) {
		return fmt.Errorf("store.backend must be one of %s", strings.Join(storeBackends, ", "))
	}
	if c.StoreBackend == "postgres" || (c.StoreBackend == "auto" && c.DatabaseDriver == "postgres") {
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	}
	if c.StoreBackend == "sqlite" && strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.StoreBackend == "filesystem" && strings.TrimSpace(c.FilesDir) == "" {
		return fmt.Errorf("files.dir is required for the filesystem backend")
	}
	if c.StoreBackend == "s3" && strings.TrimSpace(c.S3Bucket) == "" {
		return fmt.Errorf("s3.bucket is required for the s3 backend")
	}
	return nil
}

func contains(values []string, candidate string) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}
