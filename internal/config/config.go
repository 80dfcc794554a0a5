package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// DefaultBackendURL is used when neither the file, the environment nor a flag sets one.
const DefaultBackendURL = "http://localhost:8000"

// Cookie is a session cookie captured at login.
type Cookie struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Config is the client configuration, stored as YAML. A loaded Config holds the
// effective values: file, then environment, then whatever the caller sets.
type Config struct {
	BackendURL string `yaml:"backend_url,omitempty" env:"SKILLCHAT_BACKEND_URL" env-default:"http://localhost:8000"`
	// APIKey is sent as X-API-Key; development backends accept it in place of a session.
	APIKey   string `yaml:"api_key,omitempty" env:"SKILLCHAT_API_KEY"`
	LogLevel string `yaml:"log_level,omitempty" env:"LOG_LEVEL"`
	LogFile  string `yaml:"log_file,omitempty" env:"SKILLCHAT_LOG_FILE"`

	Email            string   `yaml:"email,omitempty"`
	Cookies          []Cookie `yaml:"cookies,omitempty"`
	LastConversation string   `yaml:"last_conversation,omitempty"`

	path string
}

// DefaultPath returns ~/.config/skillchat/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "skillchat", "config.yaml"), nil
}

// Load reads the config at path, applying environment overrides. A missing file
// is not an error; the result then holds defaults and environment values only.
// An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := &Config{}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Validate checks that the backend URL is usable.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("missing backend_url")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid backend_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backend_url scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("invalid backend_url: missing host")
	}
	return nil
}

// Save records the session and last conversation in the file the config was
// loaded from. Every other setting is kept as the file has it, so environment
// and flag overrides never reach the disk.
func (c *Config) Save() error {
	if c.path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		c.path = p
	}

	stored, err := readFile(c.path)
	if err != nil {
		return err
	}
	stored.Email = c.Email
	stored.Cookies = c.Cookies
	stored.LastConversation = c.LastConversation
	return writeFile(c.path, stored)
}

// Save writes cfg to path atomically with owner-only permissions.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return writeFile(path, cfg)
}

// readFile returns the settings stored at path, without defaults or environment.
func readFile(path string) (*Config, error) {
	cfg := &Config{}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

func writeFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// HTTPCookies converts the stored session cookies for an HTTP cookie jar.
func (c *Config) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(c.Cookies))
	for _, ck := range c.Cookies {
		out = append(out, &http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	return out
}

// SetSession records a login. Passing no cookies clears the session.
func (c *Config) SetSession(email string, cookies []*http.Cookie) {
	c.Email = email
	c.Cookies = c.Cookies[:0]
	for _, ck := range cookies {
		c.Cookies = append(c.Cookies, Cookie{Name: ck.Name, Value: ck.Value})
	}
	if len(c.Cookies) == 0 {
		c.Cookies = nil
	}
}
