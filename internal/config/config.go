// Package config loads lanshare settings from an optional config file,
// LANSHARE_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is small on purpose. Every field has a usable default, so running
// with no config file at all is the common case.
type Config struct {
	// Host is the bind address. A wildcard is advertised as the LAN IP.
	Host string `mapstructure:"host" validate:"required"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`

	// Folder is shared at startup. It can be changed from the home page.
	Folder string `mapstructure:"folder"`

	// SessionSecret derives the cookie sealing key. When empty, a random
	// key is used and identities do not survive a restart.
	SessionSecret string `mapstructure:"session_secret"`

	Presence PresenceConfig `mapstructure:"presence"`
	Connect  ConnectConfig  `mapstructure:"connect"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Log      LogConfig      `mapstructure:"log"`

	// TerminalQR prints the share URL as a QR code when stdout is a TTY.
	TerminalQR bool `mapstructure:"terminal_qr"`
	// Metrics exposes Prometheus metrics on /metrics.
	Metrics bool `mapstructure:"metrics"`
	// WebDAV mounts a read-only view of the shared folder on /dav/.
	WebDAV bool `mapstructure:"webdav"`
}

type PresenceConfig struct {
	Staleness        time.Duration `mapstructure:"staleness" validate:"min=1s"`
	ActivityCapacity int           `mapstructure:"activity_capacity" validate:"min=1,max=10000"`
}

type ConnectConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" validate:"min=100ms,max=1m"`
	DefaultPort string        `mapstructure:"default_port" validate:"required,numeric"`
}

type UploadConfig struct {
	MaxMemoryMB int64 `mapstructure:"max_memory_mb" validate:"min=1,max=4096"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Host: "0.0.0.0",
		Port: 8080,
		Presence: PresenceConfig{
			Staleness:        5 * time.Minute,
			ActivityCapacity: 50,
		},
		Connect: ConnectConfig{
			Timeout:     5 * time.Second,
			DefaultPort: "8080",
		},
		Upload:     UploadConfig{MaxMemoryMB: 32},
		Log:        LogConfig{Level: "info", Format: "text"},
		TerminalQR: true,
		Metrics:    true,
		WebDAV:     true,
	}
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewViper prepares a viper instance with defaults, the config file and
// environment binding. Callers bind their flags on the returned instance
// and then call Load.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		v.SetConfigFile(found)
	}

	// LANSHARE_PORT, LANSHARE_PRESENCE_STALENESS, ...
	v.SetEnvPrefix("LANSHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("folder", d.Folder)
	v.SetDefault("session_secret", d.SessionSecret)
	v.SetDefault("presence.staleness", d.Presence.Staleness)
	v.SetDefault("presence.activity_capacity", d.Presence.ActivityCapacity)
	v.SetDefault("connect.timeout", d.Connect.Timeout)
	v.SetDefault("connect.default_port", d.Connect.DefaultPort)
	v.SetDefault("upload.max_memory_mb", d.Upload.MaxMemoryMB)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("terminal_qr", d.TerminalQR)
	v.SetDefault("metrics", d.Metrics)
	v.SetDefault("webdav", d.WebDAV)
}

var configExts = []string{".toml", ".yaml", ".yml", ".json"}

// findConfigFile looks for lanshare.<ext> in the working directory and in
// ~/.lanshare. The extension is required so the binary itself never matches.
func findConfigFile() string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".lanshare"))
	}
	return findConfigFileIn(dirs)
}

func findConfigFileIn(dirs []string) string {
	for _, dir := range dirs {
		for _, ext := range configExts {
			p := filepath.Join(dir, "lanshare"+ext)
			if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
				return p
			}
		}
	}
	return ""
}

// Load reads the config file (if any), applies overrides and validates.
func Load(v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags and returns readable messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "numeric":
		return fmt.Sprintf("%s must be numeric", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}

// NewLogger builds the process logger from the log section.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// fileConfig is the on-disk TOML shape. Durations are written as strings
// ("5m0s") so the file stays readable and viper parses it back.
type fileConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Folder        string `toml:"folder"`
	SessionSecret string `toml:"session_secret"`
	TerminalQR    bool   `toml:"terminal_qr"`
	Metrics       bool   `toml:"metrics"`
	WebDAV        bool   `toml:"webdav"`

	Presence struct {
		Staleness        string `toml:"staleness"`
		ActivityCapacity int    `toml:"activity_capacity"`
	} `toml:"presence"`
	Connect struct {
		Timeout     string `toml:"timeout"`
		DefaultPort string `toml:"default_port"`
	} `toml:"connect"`
	Upload struct {
		MaxMemoryMB int64 `toml:"max_memory_mb"`
	} `toml:"upload"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg *Config) error {
	var f fileConfig
	f.Host, f.Port, f.Folder, f.SessionSecret = cfg.Host, cfg.Port, cfg.Folder, cfg.SessionSecret
	f.TerminalQR, f.Metrics, f.WebDAV = cfg.TerminalQR, cfg.Metrics, cfg.WebDAV
	f.Presence.Staleness = cfg.Presence.Staleness.String()
	f.Presence.ActivityCapacity = cfg.Presence.ActivityCapacity
	f.Connect.Timeout = cfg.Connect.Timeout.String()
	f.Connect.DefaultPort = cfg.Connect.DefaultPort
	f.Upload.MaxMemoryMB = cfg.Upload.MaxMemoryMB
	f.Log.Level, f.Log.Format = cfg.Log.Level, cfg.Log.Format
	if err := toml.NewEncoder(w).Encode(f); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Init writes cfg to path and refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("config file %s already exists", path)
		}
		return fmt.Errorf("create config file: %w", err)
	}
	if err := Write(f, cfg); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
