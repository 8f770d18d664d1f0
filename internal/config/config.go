package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "CRM"
	defaultHTTPAddress    = "0.0.0.0:5000"
	defaultDatabasePath   = "crm.db"
	defaultLogLevel       = "info"
	defaultAuditLimit     = 100
	defaultTokenTTLMinute = 30
)

// AppConfig captures runtime configuration for the CRM API server.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	LogLevel        string
	AuditQueryLimit int
	SigningSecret   string
	SessionAPIKey   string
	TokenTTLMinutes int
	SeedSampleData  bool
	JobsEnabled     bool
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
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("audit.query_limit", defaultAuditLimit)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinute)
	configViper.SetDefault("seed.sample_data", false)
	configViper.SetDefault("jobs.enabled", true)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		AuditQueryLimit: configViper.GetInt("audit.query_limit"),
		SigningSecret:   configViper.GetString("auth.signing_secret"),
		SessionAPIKey:   configViper.GetString("auth.api_key"),
		TokenTTLMinutes: configViper.GetInt("auth.token_ttl_minutes"),
		SeedSampleData:  configViper.GetBool("seed.sample_data"),
		JobsEnabled:     configViper.GetBool("jobs.enabled"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.AuditQueryLimit <= 0 {
		return fmt.Errorf("audit.query_limit must be positive")
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	// Session tokens are optional; when one auth knob is set the other must be too.
	if (c.SigningSecret == "") != (c.SessionAPIKey == "") {
		return fmt.Errorf("auth.signing_secret and auth.api_key must be set together")
	}
	return nil
}

// SessionsEnabled reports whether dashboard session tokens can be issued.
func (c AppConfig) SessionsEnabled() bool {
	return c.SigningSecret != "" && c.SessionAPIKey != ""
}
