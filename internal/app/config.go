package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nilsharvey/anthrogate/internal/credentials"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// CredentialStorageType represents the storage backend for the upstream API key.
type CredentialStorageType string

const (
	CredentialStorageTypeFile    CredentialStorageType = "file"
	CredentialStorageTypeEnv     CredentialStorageType = "env"
	CredentialStorageTypeKeyring CredentialStorageType = "keyring"
)

// Default configuration values.
const (
	DefaultConfigLogFormat         = LogFormatText
	DefaultConfigServerHost        = "127.0.0.1"
	DefaultConfigServerPort        = 4000
	DefaultConfigShutdownTimeout   = 5 * time.Second
	DefaultConfigCredentialStorage = CredentialStorageTypeFile
	DefaultConfigUpstreamBaseURL   = "https://api.openai.com/v1"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// UpstreamConfig holds upstream API configuration.
type UpstreamConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
	// Model is the upstream-configured model name substituted for the
	// incoming Anthropic model name on every outgoing request (the
	// Anthropic model is discarded at this boundary).
	Model string `json:"model" validate:"required"`
}

// CredentialConfig describes how to construct the credentials.Store that
// reads the upstream API key.
type CredentialConfig struct {
	// Storage selects where the key comes from.
	Storage CredentialStorageType `json:"storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type).
	File        string `json:"file,omitempty"`         // For file storage: path to key file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewStore builds the credentials.Store described by this configuration.
func (c *CredentialConfig) NewStore() (credentials.Store, error) {
	switch c.Storage {
	case CredentialStorageTypeFile:
		return credentials.NewFileStore(c.File)
	case CredentialStorageTypeEnv:
		return credentials.NewEnvStore(c.EnvKey)
	case CredentialStorageTypeKeyring:
		return credentials.NewKeyringStore("anthrogate", c.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel   slog.Level       `json:"log_level"`
	LogFormat  LogFormat        `json:"log_format" validate:"oneof=text json"`
	Server     ServerConfig     `json:"server"`
	Shutdown   ShutdownConfig   `json:"shutdown"`
	Upstream   UpstreamConfig   `json:"upstream"`
	Credential CredentialConfig `json:"credential"`
	DebugFile  string           `json:"debug_file,omitempty"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultConfigUpstreamBaseURL
	}
	if c.Credential.Storage == "" {
		c.Credential.Storage = DefaultConfigCredentialStorage
	}

	// Dynamic defaults based on storage type.
	switch c.Credential.Storage {
	case CredentialStorageTypeFile:
		if c.Credential.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("credential.file required (auto-detect failed: %w)", err)
			}
			c.Credential.File = filepath.Join(configDir, "anthrogate", "api-key")
		}
	case CredentialStorageTypeKeyring:
		if c.Credential.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("credential.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Credential.KeyringUser = currentUser.Username
		}
	case CredentialStorageTypeEnv:
		// env_key must be explicitly configured (no sensible default)
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Credential.Storage {
	case CredentialStorageTypeFile:
		if c.Credential.File == "" {
			return errors.New("file path required for file storage")
		}
	case CredentialStorageTypeEnv:
		if c.Credential.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case CredentialStorageTypeKeyring:
		if c.Credential.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}
