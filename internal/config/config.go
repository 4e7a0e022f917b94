// Package config loads settings from flags, LOSTFOUND_* environment variables
// and an optional config file.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	Addr = "addr"
	DB   = "db"

	LogLevel  = "log.level"
	LogFormat = "log.format"
	LogFile   = "log.file"

	RemoteAddr       = "remote.addr"
	RemotePassword   = "remote.password"
	RemoteDB         = "remote.db"
	RemoteCollection = "remote.collection"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "LOSTFOUND"

// Remote backend errors. Either one selects the local backend.
var (
	ErrRemoteNotConfigured = errors.New("remote backend not configured")
	ErrRemotePlaceholder   = errors.New("remote backend configuration contains placeholder values")
)

// Config holds all application configuration.
type Config struct {
	Addr    string
	DBPath  string
	Logging LoggingConfig
	Remote  RemoteConfig
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// RemoteConfig holds the connection parameters of the remote item collection.
type RemoteConfig struct {
	Addr       string
	Password   string
	DB         int
	Collection string
}

var placeholder = regexp.MustCompile(`YOUR_|YOUR-`)

// Usable reports why the remote parameters cannot be used, or nil if they
// look like a real configuration.
func (c RemoteConfig) Usable() error {
	if strings.TrimSpace(c.Addr) == "" {
		return ErrRemoteNotConfigured
	}
	for _, v := range []string{c.Addr, c.Password, c.Collection} {
		if placeholder.MatchString(v) {
			return ErrRemotePlaceholder
		}
	}
	return nil
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads the optional config file into v and builds a Config.
// An empty path looks for lostfound.yaml in the working directory and
// silently continues without it.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lostfound")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{
		Addr:   v.GetString(Addr),
		DBPath: v.GetString(DB),
		Logging: LoggingConfig{
			Level:  v.GetString(LogLevel),
			Format: v.GetString(LogFormat),
			File:   v.GetString(LogFile),
		},
		Remote: RemoteConfig{
			Addr:       v.GetString(RemoteAddr),
			Password:   v.GetString(RemotePassword),
			DB:         v.GetInt(RemoteDB),
			Collection: v.GetString(RemoteCollection),
		},
	}
	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(Addr, ":8080")
	v.SetDefault(DB, "lostfound.sqlite3")

	v.SetDefault(LogLevel, "info")
	v.SetDefault(LogFormat, "console")
	v.SetDefault(LogFile, "")

	v.SetDefault(RemoteAddr, "")
	v.SetDefault(RemotePassword, "")
	v.SetDefault(RemoteDB, 0)
	v.SetDefault(RemoteCollection, "items")
}

// Validate checks settings that have no sensible fallback. Remote settings
// are not validated here; bad ones select the local backend.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
