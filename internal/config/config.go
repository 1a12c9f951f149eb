// Package config loads go-pokedex settings from an optional YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-pokedex/pkg/camera"
	"github.com/teslashibe/go-pokedex/pkg/credential"
	"github.com/teslashibe/go-pokedex/pkg/inference"
)

// Auth modes for Gemini.
const (
	AuthAPIKey = "apikey" // key from the credential store, prompted when missing
	AuthADC    = "adc"    // Application Default Credentials
)

// Credential store kinds.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Default web port.
const DefaultWebPort = "8181"

// Config is the top-level configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Camera     camera.Config    `yaml:"camera"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Credential CredentialConfig `yaml:"credential"`
	Web        WebConfig        `yaml:"web"`
}

// GeminiConfig selects the model and how to authenticate.
type GeminiConfig struct {
	Model   string        `yaml:"model"`
	Auth    string        `yaml:"auth"` // apikey | adc
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	// APIKey seeds an empty credential store. Only read from GEMINI_API_KEY.
	APIKey string `yaml:"-"`
}

// CredentialConfig selects where the API key is kept.
type CredentialConfig struct {
	Store string `yaml:"store"` // file | sqlite | memory
	Path  string `yaml:"path"`
}

// WebConfig controls the dashboard.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Camera:   camera.DefaultConfig(),
		Gemini: GeminiConfig{
			Model:   inference.DefaultModel,
			Auth:    AuthAPIKey,
			Timeout: 30 * time.Second,
		},
		Credential: CredentialConfig{Store: StoreFile},
		Web:        WebConfig{Enabled: true, Port: DefaultWebPort},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Gemini.Model, "GEMINI_MODEL")
	setString(&c.Gemini.Auth, "GEMINI_AUTH")
	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Camera.RearDevice, "CAMERA_DEVICE")
	setString(&c.Camera.FrontDevice, "CAMERA_FRONT_DEVICE")
	setString(&c.Credential.Store, "CREDENTIAL_STORE")
	setString(&c.Credential.Path, "CREDENTIAL_PATH")
	setString(&c.Web.Port, "WEB_PORT")

	if v := os.Getenv("CAPTURE_INTERVAL"); v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("CAPTURE_INTERVAL: %w", err)
		}
		c.Camera.IntervalMs = int(d / time.Millisecond)
	}
	return nil
}

// parseInterval accepts a Go duration ("5s") or plain milliseconds ("5000").
func parseInterval(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func (c *Config) applyDefaults() error {
	c.Gemini.Auth = strings.ToLower(c.Gemini.Auth)
	c.Credential.Store = strings.ToLower(c.Credential.Store)

	if c.Gemini.Model == "" {
		c.Gemini.Model = inference.DefaultModel
	}
	if c.Camera.Quality == 0 {
		c.Camera.Quality = camera.DefaultQuality
	}
	if c.Web.Port == "" {
		c.Web.Port = DefaultWebPort
	}

	if c.Credential.Path == "" && c.Credential.Store != StoreMemory {
		name := "credentials.json"
		if c.Credential.Store == StoreSQLite {
			name = "credentials.db"
		}
		path, err := credential.DefaultPath(name)
		if err != nil {
			return err
		}
		c.Credential.Path = path
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	for _, msg := range c.Camera.Validate() {
		errs = append(errs, fmt.Errorf("camera: %s", msg))
	}

	switch c.Gemini.Auth {
	case AuthAPIKey, AuthADC:
	default:
		errs = append(errs, fmt.Errorf("gemini.auth: unknown mode %q (want %s or %s)", c.Gemini.Auth, AuthAPIKey, AuthADC))
	}
	if c.Gemini.Timeout < 0 {
		errs = append(errs, fmt.Errorf("gemini.timeout: must not be negative"))
	}

	switch c.Credential.Store {
	case StoreFile, StoreSQLite, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("credential.store: unknown kind %q", c.Credential.Store))
	}

	if _, err := strconv.Atoi(c.Web.Port); err != nil {
		errs = append(errs, fmt.Errorf("web.port: %q is not a number", c.Web.Port))
	}

	return errors.Join(errs...)
}

// setString overrides *dst with the environment variable when it is set.
func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
