package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/matheus3301/wachat/internal/directory"
)

// Defaults match a backend running locally.
const (
	DefaultAPIURL       = "http://localhost:5001"
	DefaultSocketURL    = "ws://localhost:5001/ws"
	DefaultPlatformWaID = "919999999999"
	DefaultLogLevel     = "info"
)

// Config represents the global ~/.wachat/config.toml.
type Config struct {
	DefaultSession string             `toml:"default_session"`
	APIURL         string             `toml:"api_url"         validate:"required,url"`
	SocketURL      string             `toml:"socket_url"      validate:"required,url"`
	PlatformWaID   string             `toml:"platform_wa_id"  validate:"required,numeric"`
	LogLevel       string             `toml:"log_level"       validate:"oneof=debug info warn error"`
	ResyncInterval string             `toml:"resync_interval" validate:"omitempty,duration"`
	MetricsAddr    string             `toml:"metrics_addr"    validate:"omitempty,hostname_port"`
	Contacts       map[string]Contact `toml:"contacts"        validate:"dive"`
}

// Contact is one [contacts."<wa_id>"] entry.
type Contact struct {
	Name     string `toml:"name"     validate:"required"`
	Category string `toml:"category"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		APIURL:       DefaultAPIURL,
		SocketURL:    DefaultSocketURL,
		PlatformWaID: DefaultPlatformWaID,
		LogLevel:     DefaultLogLevel,
	}
}

// Load reads config from the given path on top of the defaults. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Environment variables that override file values.
const (
	EnvAPIURL       = "WACHAT_API_URL"
	EnvSocketURL    = "WACHAT_SOCKET_URL"
	EnvPlatformWaID = "WACHAT_PLATFORM_WA_ID"
	EnvLogLevel     = "WACHAT_LOG_LEVEL"
)

// ApplyEnv loads envFile (if it exists) into the process environment and
// applies the WACHAT_* overrides. Variables already set win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	for env, dst := range map[string]*string{
		EnvAPIURL:       &c.APIURL,
		EnvSocketURL:    &c.SocketURL,
		EnvPlatformWaID: &c.PlatformWaID,
		EnvLogLevel:     &c.LogLevel,
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	return v
}

// Validate checks field formats.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Resync returns the resync interval; zero disables periodic resync.
func (c *Config) Resync() time.Duration {
	d, err := time.ParseDuration(c.ResyncInterval)
	if err != nil {
		return 0
	}
	return d
}

// Directory converts the contacts table into directory entries.
func (c *Config) Directory() map[string]directory.Entry {
	out := make(map[string]directory.Entry, len(c.Contacts))
	for key, ct := range c.Contacts {
		out[key] = directory.Entry{DisplayName: ct.Name, Category: ct.Category}
	}
	return out
}

// LoadContacts reads only the contacts table of the config at path. It is
// the reload function for the directory watcher.
func LoadContacts(path string) (map[string]directory.Entry, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.Directory(), nil
}
