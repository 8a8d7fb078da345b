package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/modules"
)

const (
	DefaultAddr            = ":6666"
	DefaultRefreshInterval = 10 * time.Second
	DefaultRefreshMargin   = 60 * time.Second
	DefaultDataDir         = "data"

	StoreTypeFile   = "file"
	StoreTypeMemory = "memory"

	AuditTypeFile   = "file"
	AuditTypeMemory = "memory"
)

// Config describes the add-on: what it advertises to the host and how it runs.
type Config struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Key         string `yaml:"key"`

	// BaseURL is the public https url the host reaches the add-on at.
	BaseURL  string        `yaml:"base_url"`
	Homepage string        `yaml:"homepage"`
	Vendor   *VendorConfig `yaml:"vendor"`
	Avatar   *AvatarConfig `yaml:"avatar"`
	FromName string        `yaml:"from_name"`
	Scopes   []string      `yaml:"scopes"`

	Installable InstallableConfig `yaml:"installable"`

	// MOTD is sent to a room right after the add-on was installed into it.
	MOTD string `yaml:"motd"`

	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Refresh RefreshConfig `yaml:"refresh"`
	Audit   AuditConfig   `yaml:"audit"`

	Webhooks  []WebhookConfig `yaml:"webhooks"`
	Glances   []core.Glance   `yaml:"glances"`
	WebPanels []core.WebPanel `yaml:"web_panels"`
}

type VendorConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type AvatarConfig struct {
	URL   string `yaml:"url"`
	URL2x string `yaml:"url_2x"`
}

type InstallableConfig struct {
	AllowGlobal *bool `yaml:"allow_global"`
	AllowRoom   *bool `yaml:"allow_room"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCert != "" && s.TLSKey != ""
}

type StoreConfig struct {
	Type string `yaml:"type"` // e.g., "file", "memory"
	Path string `yaml:"path"`
}

type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
	// Margin is subtracted from the token lifetime before a credential is stored.
	Margin time.Duration `yaml:"margin"`
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

// WebhookConfig is a webhook module plus the handler answering its deliveries.
type WebhookConfig struct {
	core.Webhook `yaml:",inline"`

	// When is an optional expr-lang condition, see modules.WithCondition.
	When string `yaml:"when"`

	// Handler names a built-in handler (noop, echo, notify).
	Handler  string         `yaml:"handler"`
	Settings map[string]any `yaml:"settings"`
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Store.Type == "" {
		c.Store.Type = StoreTypeFile
	}
	if c.Store.Type == StoreTypeFile && c.Store.Path == "" {
		c.Store.Path = DefaultDataDir
	}
	if c.Refresh.Interval == 0 {
		c.Refresh.Interval = DefaultRefreshInterval
	}
	if c.Refresh.Margin == 0 {
		c.Refresh.Margin = DefaultRefreshMargin
	}
	if c.Audit.Enabled && c.Audit.Type == "" {
		c.Audit.Type = AuditTypeMemory
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"send_notification"}
	}
	for i := range c.Webhooks {
		if c.Webhooks[i].Authentication == "" {
			c.Webhooks[i].Authentication = core.AuthNone
		}
	}
}

func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Key == "" {
		return fmt.Errorf("key is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) url, got '%s'", c.BaseURL)
	}

	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server: tls_cert and tls_key must be set together")
	}

	switch c.Store.Type {
	case StoreTypeMemory:
	case StoreTypeFile:
		if c.Store.Path == "" {
			return fmt.Errorf("store: path is required for the file store")
		}
	default:
		return fmt.Errorf("store: unknown type '%s'", c.Store.Type)
	}

	if c.Refresh.Interval < 0 {
		return fmt.Errorf("refresh: interval must not be negative")
	}
	if c.Refresh.Margin < 0 {
		return fmt.Errorf("refresh: margin must not be negative")
	}

	if c.Audit.Enabled {
		switch c.Audit.Type {
		case AuditTypeMemory:
		case AuditTypeFile:
			if c.Audit.Path == "" {
				return fmt.Errorf("audit: path is required for the file auditor")
			}
		default:
			return fmt.Errorf("audit: unknown type '%s'", c.Audit.Type)
		}
	}

	// a scratch registry applies the same checks serve does
	registry := modules.NewRegistry(nil)
	for idx, w := range c.Webhooks {
		if w.Handler != "" && !slices.Contains(modules.HandlerKinds(), w.Handler) {
			return fmt.Errorf("webhook at index %d: unknown handler '%s'", idx, w.Handler)
		}
		if err := registry.RegisterWebhook(w.Webhook, modules.NoopHandler(), modules.WithCondition(w.When)); err != nil {
			return fmt.Errorf("webhook at index %d: %w", idx, err)
		}
	}
	for idx, g := range c.Glances {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("glance at index %d: %w", idx, err)
		}
	}
	for idx, p := range c.WebPanels {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("web panel at index %d: %w", idx, err)
		}
	}

	return nil
}

// Global reports whether global installs are allowed, true unless disabled.
func (i InstallableConfig) Global() bool {
	return i.AllowGlobal == nil || *i.AllowGlobal
}

// Room reports whether room installs are allowed, true unless disabled.
func (i InstallableConfig) Room() bool {
	return i.AllowRoom == nil || *i.AllowRoom
}
