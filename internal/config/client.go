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

	"gopkg.in/yaml.v3"
)

const (
	// ClientConfigDir is the user-level directory holding portalctl files.
	ClientConfigDir = ".config/portalctl"
	// ClientConfigFile is the name of the user-level config file.
	ClientConfigFile = "config.yaml"
	// SessionFileName holds the saved session cookies.
	SessionFileName = "session.yaml"

	// EnvAPIBase overrides the API base URL from the file.
	EnvAPIBase = "PORTAL_API_BASE"
)

// Client configures portalctl.
type Client struct {
	// APIBase is the root URL of the auth API, without a trailing slash.
	APIBase string `yaml:"api_base"`
	// SessionFile stores cookies between invocations; empty uses the default location.
	SessionFile string `yaml:"session_file"`
	// Timeout bounds each request to the API.
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// DefaultClient returns a Client pointing at a local API.
func DefaultClient() *Client {
	return &Client{
		APIBase:     "http://localhost:8080",
		SessionFile: defaultPath(SessionFileName),
		Timeout:     15 * time.Second,
		UserAgent:   "portalctl",
	}
}

// LoadClient layers defaults, the YAML file at path (the user config when empty) and
// the environment. A missing file is not an error.
func LoadClient(path string) (*Client, error) {
	cfg := DefaultClient()
	if path == "" {
		path = defaultPath(ClientConfigFile)
	}
	if path != "" {
		fileCfg, err := LoadClientFile(path)
		switch {
		case err == nil:
			cfg.Merge(fileCfg)
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}
	if base := strings.TrimSpace(os.Getenv(EnvAPIBase)); base != "" {
		cfg.APIBase = base
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClientFile parses a YAML client config.
func LoadClientFile(path string) (*Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Client
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Merge copies the non-zero fields of other over c.
func (c *Client) Merge(other *Client) {
	if other == nil {
		return
	}
	if other.APIBase != "" {
		c.APIBase = other.APIBase
	}
	if other.SessionFile != "" {
		c.SessionFile = other.SessionFile
	}
	if other.Timeout != 0 {
		c.Timeout = other.Timeout
	}
	if other.UserAgent != "" {
		c.UserAgent = other.UserAgent
	}
}

// Validate checks that the configuration is usable.
func (c *Client) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base %q must be an absolute http(s) URL", c.APIBase)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

// SaveToFile writes c as YAML, creating the parent directory.
func (c *Client) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func defaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ClientConfigDir, name)
}
