// Package config loads the blog client configuration.
//
// Sources, lowest precedence first: built-in defaults, the YAML config file
// (~/.blog/config.yaml or $BLOG_CONFIG), a .env file in the working
// directory, the process environment. Command-line flags are applied on top
// by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is the backend used when BLOG_API_URL is unset.
const DefaultAPIURL = "http://localhost:8000"

// Session storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Trace exporters.
const (
	TraceNone   = "none"
	TraceStdout = "stdout"
	TraceOTLP   = "otlp"
)

// ClientConfig holds configuration for the blog CLI.
type ClientConfig struct {
	APIURL         string        `yaml:"api_url" env:"BLOG_API_URL"`
	StateDir       string        `yaml:"state_dir" env:"BLOG_STATE_DIR"`             // default ~/.blog
	SessionBackend string        `yaml:"session_backend" env:"BLOG_SESSION_BACKEND"` // file, sqlite, memory
	HTTPTimeout    time.Duration `yaml:"http_timeout" env:"BLOG_HTTP_TIMEOUT"`       // 0 keeps transport defaults
	LogLevel       string        `yaml:"log_level" env:"BLOG_LOG_LEVEL"`
	LogFormat      string        `yaml:"log_format" env:"BLOG_LOG_FORMAT"`
	TraceExporter  string        `yaml:"trace_exporter" env:"BLOG_TRACE_EXPORTER"`
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		APIURL:         DefaultAPIURL,
		SessionBackend: BackendFile,
		LogLevel:       "warn",
		LogFormat:      "text",
		TraceExporter:  TraceNone,
	}
}

// Load builds a ClientConfig. path names the YAML config file; when empty,
// $BLOG_CONFIG and then ~/.blog/config.yaml are tried. A missing file is not
// an error.
func Load(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	// .env is optional, but a broken one is reported.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ClientConfig{}, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("BLOG_CONFIG")
	}
	if path == "" {
		if dir, err := DefaultStateDir(); err == nil {
			path = filepath.Join(dir, "config.yaml")
		}
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return ClientConfig{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Normalize(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *ClientConfig) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Normalize fills derived defaults and validates the configuration.
func (c *ClientConfig) Normalize() error {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API URL %q: want scheme://host[:port]", c.APIURL)
	}

	c.SessionBackend = strings.ToLower(strings.TrimSpace(c.SessionBackend))
	switch c.SessionBackend {
	case "":
		c.SessionBackend = BackendFile
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("invalid session backend %q (want file, sqlite or memory)", c.SessionBackend)
	}

	c.TraceExporter = strings.ToLower(strings.TrimSpace(c.TraceExporter))
	switch c.TraceExporter {
	case "":
		c.TraceExporter = TraceNone
	case TraceNone, TraceStdout, TraceOTLP:
	default:
		return fmt.Errorf("invalid trace exporter %q (want none, stdout or otlp)", c.TraceExporter)
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http timeout must not be negative, got %s", c.HTTPTimeout)
	}

	if c.StateDir == "" {
		dir, err := DefaultStateDir()
		if err != nil {
			return err
		}
		c.StateDir = dir
	}
	return nil
}

// DefaultStateDir returns ~/.blog.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".blog"), nil
}

// SessionPath returns the storage location for the configured backend: a
// directory for "file", a database path for "sqlite", empty for "memory".
func (c ClientConfig) SessionPath() string {
	switch c.SessionBackend {
	case BackendSQLite:
		return filepath.Join(c.StateDir, "blog.db")
	case BackendMemory:
		return ""
	default:
		return c.StateDir
	}
}
