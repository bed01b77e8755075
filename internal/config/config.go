// Package config handles library configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents library configuration stored in .pubs/config.yml.
// Every key can be overridden by a PUBS_ environment variable, with dots
// replaced by underscores (PUBS_SERVER_ADDR, PUBS_LOG_LEVEL).
type Config struct {
	Style  string       `yaml:"style" mapstructure:"style"`   // Default citation style for list
	Legacy bool         `yaml:"legacy" mapstructure:"legacy"` // Single-entry duplicate reporting
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	Addr          string  `yaml:"addr" mapstructure:"addr"`
	AdminUser     string  `yaml:"admin_user" mapstructure:"admin_user"`
	AdminPassword string  `yaml:"admin_password_hash,omitempty" mapstructure:"admin_password_hash"` // bcrypt hash
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`                             // Imports per second
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	MaxUploadMB   int64   `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

const (
	LibraryDir       = ".pubs"
	ConfigFile       = "config.yml"
	EnvFile          = ".env"
	PublicationsFile = "publications.jsonl"
	TypesFile        = "types.yml"
	DBFile           = "publications.db"

	// EnvPrefix is prepended to environment overrides.
	EnvPrefix = "PUBS"
)

// ValidLogLevels and ValidLogFormats list the accepted logging values.
var (
	ValidLogLevels  = []string{"debug", "info", "warn", "error"}
	ValidLogFormats = []string{"text", "json"}
)

// Default returns the configuration written by pubs init.
func Default() *Config {
	return &Config{
		Style: "harvard",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8080",
			AdminUser:   "admin",
			RateLimit:   1,
			RateBurst:   5,
			MaxUploadMB: 10,
		},
	}
}

// LibraryPath returns the path to the .pubs directory from a root path.
func LibraryPath(root string) string {
	return filepath.Join(root, LibraryDir)
}

// ConfigPath returns the path to config.yml from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, LibraryDir, ConfigFile)
}

// EnvPath returns the path to the optional .env file next to .pubs.
func EnvPath(root string) string {
	return filepath.Join(root, EnvFile)
}

// PublicationsPath returns the default dump file from a root path.
func PublicationsPath(root string) string {
	return filepath.Join(root, LibraryDir, PublicationsFile)
}

// TypesPath returns the path to types.yml from a root path.
func TypesPath(root string) string {
	return filepath.Join(root, LibraryDir, TypesFile)
}

// DBPath returns the path to publications.db from a root path.
func DBPath(root string) string {
	return filepath.Join(root, LibraryDir, DBFile)
}

// IsLibrary checks if the given path contains a publications library.
func IsLibrary(root string) bool {
	info, err := os.Stat(LibraryPath(root))
	return err == nil && info.IsDir()
}

// ErrNoLibrary is returned when no .pubs directory is found.
var ErrNoLibrary = errors.New("not in a publications library (no .pubs directory found)")

// FindLibrary walks up from the given path to find a publications library.
// Returns the library root path or ErrNoLibrary.
func FindLibrary(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsLibrary(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNoLibrary
		}
		abs = parent
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("style", d.Style)
	v.SetDefault("legacy", d.Legacy)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.admin_user", d.Server.AdminUser)
	v.SetDefault("server.admin_password_hash", d.Server.AdminPassword)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.rate_burst", d.Server.RateBurst)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
}

// Load reads configuration from the library at the given root.
// A .env file beside .pubs is loaded first; variables already set in the
// process environment win over it.
func Load(root string) (*Config, error) {
	if _, err := os.Stat(EnvPath(root)); err == nil {
		if err := godotenv.Load(EnvPath(root)); err != nil {
			return nil, fmt.Errorf("reading %s: %w", EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(ConfigPath(root))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// Save writes configuration to the library at the given root.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks the logging and server settings.
func (c *Config) Validate() error {
	if err := ValidateLogLevel(c.Log.Level); err != nil {
		return err
	}
	if err := ValidateLogFormat(c.Log.Format); err != nil {
		return err
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("invalid server.rate_limit: %v (must be >= 0)", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("invalid server.rate_burst: %d (must be >= 1)", c.Server.RateBurst)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("invalid server.max_upload_mb: %d (must be >= 1)", c.Server.MaxUploadMB)
	}
	return nil
}

// ValidateLogLevel checks that the level value is valid.
func ValidateLogLevel(level string) error {
	if level == "" {
		return nil // Empty defaults to "info"
	}
	return oneOf("log.level", strings.ToLower(level), ValidLogLevels)
}

// ValidateLogFormat checks that the format value is valid.
func ValidateLogFormat(format string) error {
	if format == "" {
		return nil // Empty defaults to "text"
	}
	return oneOf("log.format", strings.ToLower(format), ValidLogFormats)
}

func oneOf(key, value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %s (valid: %v)", key, value, valid)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
