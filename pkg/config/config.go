// Package config provides configuration management for the aspect weaver.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Weaving         WeavingConfig         `mapstructure:"weaving"`
	ExpressionCache ExpressionCacheConfig `mapstructure:"expression_cache"`
	Storage         StorageConfig         `mapstructure:"storage"`
	Log             LogConfig             `mapstructure:"log"`

	settings *Settings
}

// WeavingConfig holds weaving-pass configuration.
type WeavingConfig struct {
	// Metadata lists the class metadata documents to load.
	Metadata []string `mapstructure:"metadata"`
	// ExcludedNamespaces are added to the built-in infrastructure namespaces.
	ExcludedNamespaces []string `mapstructure:"excluded_namespaces"`
	Parallel           bool     `mapstructure:"parallel"`
	Workers            int      `mapstructure:"workers"`
	ReportPath         string   `mapstructure:"report_path"`
}

// ExpressionCacheConfig selects where compiled runtime expressions are kept.
type ExpressionCacheConfig struct {
	Type     string `mapstructure:"type"`   // memory, sqlite, postgres, mysql or bolt
	Driver   string `mapstructure:"driver"` // gorm or sql, for postgres and mysql
	Path     string `mapstructure:"path"`   // sqlite and bolt file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds report storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
	ReportKey string `mapstructure:"report_key"` // empty disables publishing
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
}

var expressionCacheTypes = map[string]bool{
	"memory":   true,
	"sqlite":   true,
	"postgres": true,
	"mysql":    true,
	"bolt":     true,
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("weaver")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/aop-weaver")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("WEAVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return build(v)
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.settings = &Settings{v: v, prefix: "settings"}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("weaving.parallel", false)
	v.SetDefault("weaving.workers", 4)
	v.SetDefault("weaving.report_path", "")

	v.SetDefault("expression_cache.type", "memory")
	v.SetDefault("expression_cache.driver", "gorm")
	v.SetDefault("expression_cache.path", "./expressions.db")
	v.SetDefault("expression_cache.max_conns", 10)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./reports")

	v.SetDefault("log.level", "info")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !expressionCacheTypes[c.ExpressionCache.Type] {
		return fmt.Errorf("unsupported expression cache type: %s", c.ExpressionCache.Type)
	}
	switch c.ExpressionCache.Type {
	case "sqlite", "bolt":
		if c.ExpressionCache.Path == "" {
			return fmt.Errorf("expression cache path is required for %s", c.ExpressionCache.Type)
		}
	case "postgres", "mysql":
		if c.ExpressionCache.Host == "" {
			return fmt.Errorf("expression cache host is required for %s", c.ExpressionCache.Type)
		}
		if d := c.ExpressionCache.Driver; d != "" && d != "gorm" && d != "sql" {
			return fmt.Errorf("unsupported expression cache driver: %s", d)
		}
	}

	if c.Weaving.Workers < 0 {
		return fmt.Errorf("weaving workers must not be negative")
	}

	// Storage config validation is delegated to storage package
	return nil
}

// Settings returns the provider backing the setting(...) pointcut designator.
func (c *Config) Settings() *Settings {
	if c.settings == nil {
		return NewSettings(nil)
	}
	return c.settings
}
