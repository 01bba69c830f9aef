// Package config loads and saves the agent configuration file.
package config

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/stevehiehn/deskagent/internal/logger"
	"github.com/stevehiehn/deskagent/internal/tools"
	"github.com/stevehiehn/deskagent/internal/vlm"
)

const (
	// AppDir is the directory under the user's home holding the config file.
	AppDir = ".deskagent"

	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "DESKAGENT"
)

type ServerConfig struct {
	Host         string `mapstructure:"host" yaml:"host" json:"host"`
	Port         int    `mapstructure:"port" yaml:"port" json:"port"`
	Password     string `mapstructure:"password" yaml:"password,omitempty" json:"password,omitempty"`
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash,omitempty" json:"password_hash,omitempty"`
}

type SecurityConfig struct {
	AllowedPaths      []string `mapstructure:"allowed_paths" yaml:"allowed_paths" json:"allowed_paths"`
	BlockedCommands   []string `mapstructure:"blocked_commands" yaml:"blocked_commands" json:"blocked_commands"`
	MaxCommandTimeout int      `mapstructure:"max_command_timeout" yaml:"max_command_timeout" json:"max_command_timeout"`
}

type FeaturesConfig struct {
	Screenshot       bool `mapstructure:"screenshot" yaml:"screenshot" json:"screenshot"`
	FileAccess       bool `mapstructure:"file_access" yaml:"file_access" json:"file_access"`
	CommandExecution bool `mapstructure:"command_execution" yaml:"command_execution" json:"command_execution"`
	MouseControl     bool `mapstructure:"mouse_control" yaml:"mouse_control" json:"mouse_control"`
	KeyboardControl  bool `mapstructure:"keyboard_control" yaml:"keyboard_control" json:"keyboard_control"`
}

type VLMConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Provider string `mapstructure:"provider" yaml:"provider" json:"provider"`
	Model    string `mapstructure:"model" yaml:"model" json:"model"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty" json:"file,omitempty"`
}

// Config is the agent configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Security SecurityConfig `mapstructure:"security" yaml:"security" json:"security"`
	Features FeaturesConfig `mapstructure:"features" yaml:"features" json:"features"`
	VLM      VLMConfig      `mapstructure:"vlm" yaml:"vlm" json:"vlm"`
	Log      LogConfig      `mapstructure:"log" yaml:"log" json:"log"`

	// File is the config file that was read, empty when none existed.
	File string `mapstructure:"-" yaml:"-" json:"-"`
}

// DefaultPath returns ~/.deskagent/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, AppDir, "config.yaml"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.password", "")
	v.SetDefault("server.password_hash", "")

	v.SetDefault("security.allowed_paths", []string{})
	v.SetDefault("security.blocked_commands", tools.DefaultBlockedCommands)
	v.SetDefault("security.max_command_timeout", 30)

	v.SetDefault("features.screenshot", true)
	v.SetDefault("features.file_access", true)
	v.SetDefault("features.command_execution", true)
	v.SetDefault("features.mouse_control", true)
	v.SetDefault("features.keyboard_control", true)

	v.SetDefault("vlm.enabled", false)
	v.SetDefault("vlm.provider", vlm.ProviderOllama)
	v.SetDefault("vlm.model", vlm.DefaultModel)
	v.SetDefault("vlm.endpoint", vlm.DefaultEndpoint)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, _ := decode(viper.New(), "")
	return cfg
}

// Load reads path, or the default location when path is empty. A missing
// file is not an error; defaults and DESKAGENT_* environment variables
// still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	file := path
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		file = ""
	}
	return decode(v, file)
}

func decode(v *viper.Viper, file string) (*Config, error) {
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.File = file
	return cfg, nil
}

// Save writes the configuration as YAML, readable only by the owner since
// it may carry a password.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SetPassword stores a bcrypt hash of password and clears any plaintext
// password.
func (c *Config) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	c.Server.PasswordHash = string(hash)
	c.Server.Password = ""
	return nil
}

// HasPassword reports whether HTTP clients can authenticate at all.
func (c *Config) HasPassword() bool {
	return c.Server.Password != "" || c.Server.PasswordHash != ""
}

// CheckPassword reports whether token matches the configured password.
func (c *Config) CheckPassword(token string) bool {
	if c.Server.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(c.Server.PasswordHash), []byte(token)) == nil
	}
	if c.Server.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Server.Password), []byte(token)) == 1
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ToolPolicy converts the security and feature sections for the tools.
func (c *Config) ToolPolicy() tools.Policy {
	return tools.Policy{
		AllowedPaths:      append([]string(nil), c.Security.AllowedPaths...),
		BlockedCommands:   append([]string(nil), c.Security.BlockedCommands...),
		MaxCommandTimeout: time.Duration(c.Security.MaxCommandTimeout) * time.Second,
		Features: tools.Features{
			Screenshot:       c.Features.Screenshot,
			FileAccess:       c.Features.FileAccess,
			CommandExecution: c.Features.CommandExecution,
			MouseControl:     c.Features.MouseControl,
			KeyboardControl:  c.Features.KeyboardControl,
		},
	}
}

// VisionSettings returns the vision model settings for the tools.
func (c *Config) VisionSettings() vlm.Settings {
	return vlm.Settings{
		Enabled:  c.VLM.Enabled,
		Provider: c.VLM.Provider,
		Model:    c.VLM.Model,
		Endpoint: c.VLM.Endpoint,
	}
}

// LoggerConfig returns the logger settings, forcing debug level when
// debug is set.
func (c *Config) LoggerConfig(debug bool) logger.Config {
	lc := logger.Config{Level: c.Log.Level, Format: c.Log.Format, File: c.Log.File, Stderr: true}
	if debug {
		lc.Level = "debug"
	}
	return lc
}
