// Package config provides YAML configuration loading with environment
// variable overrides for the SMTP-to-Telegram gateway.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// reDomain validates configured local domains.
var reDomain = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?(\.[a-z0-9]([-a-z0-9]*[a-z0-9])?)*$`)

// Config holds the complete application configuration.
type Config struct {
	SMTP     SMTPConfig     `yaml:"smtp"`
	Telegram TelegramConfig `yaml:"telegram"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	TLS      TLSConfig      `yaml:"tls"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Listen   string `yaml:"listen"`
	Hostname string `yaml:"hostname"`

	// MaxMessageSize is human-readable, e.g. "10m" or "512k".
	MaxMessageSize string `yaml:"max_message_size"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TelegramConfig holds Bot API configuration. An empty bot token selects the
// stdout dry-run provider.
type TelegramConfig struct {
	BotToken       string  `yaml:"bot_token"`
	APIPrefix      string  `yaml:"api_prefix"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// BridgeConfig holds recipient resolution and composition settings.
type BridgeConfig struct {
	// Default is the fallback chat id; required.
	Default int64 `yaml:"default"`

	// Recipients maps local parts (or full addresses) to chat ids.
	Recipients map[string]int64 `yaml:"recipients"`

	// Domains are the local domains; defaults to localhost plus the
	// machine hostname.
	Domains []string `yaml:"domains"`

	// Fields are the enabled header fields, a subset of subject/from/date.
	Fields []string `yaml:"fields"`

	// Unknown is the unknown-address policy: "relay" or "deny".
	Unknown string `yaml:"unknown"`
}

// TLSConfig holds TLS certificate file paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer, then
// overrides with environment variables. The file holds the bot token, so it
// must not be readable by other users.
func LoadFromFile(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		return nil, fmt.Errorf("config file %s is readable by other users (mode %o), refusing to start", path, mode)
	}

	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MaxMessageBytes parses the human-readable message size limit.
func (c *Config) MaxMessageBytes() (int64, error) {
	size, err := units.FromHumanSize(c.SMTP.MaxMessageSize)
	if err != nil {
		return 0, fmt.Errorf("invalid max_message_size %q: %w", c.SMTP.MaxMessageSize, err)
	}
	return size, nil
}

// DryRun returns true when no bot token is configured and deliveries should
// go to stdout.
func (c *Config) DryRun() bool {
	return c.Telegram.BotToken == ""
}

// Validate checks the configuration for startup-fatal problems. The default
// chat is mandatory: it is the fallback recipient and the diagnostic channel.
func (c *Config) Validate() error {
	if c.Bridge.Default == 0 {
		return fmt.Errorf("missing \"default\" recipient chat id")
	}

	for name := range c.Bridge.Recipients {
		if name == "" {
			return fmt.Errorf("recipient table contains an empty key")
		}
	}

	for i, domain := range c.Bridge.Domains {
		lower := strings.ToLower(domain)
		if !reDomain.MatchString(lower) {
			return fmt.Errorf("invalid domain %q in \"domains\"", domain)
		}
		c.Bridge.Domains[i] = lower
	}

	for _, field := range c.Bridge.Fields {
		switch field {
		case "subject", "from", "date":
		default:
			return fmt.Errorf("unknown field %q, must be one of subject, from, date", field)
		}
	}

	switch c.Bridge.Unknown {
	case "relay", "deny":
	default:
		return fmt.Errorf("\"unknown\" should be either \"relay\" or \"deny\", got %q", c.Bridge.Unknown)
	}

	if c.Telegram.TimeoutSeconds <= 0 {
		return fmt.Errorf("telegram timeout must be positive")
	}

	if _, err := c.MaxMessageBytes(); err != nil {
		return err
	}

	return nil
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.SMTP.Listen = "0.0.0.0:1025"
	c.SMTP.Hostname = "smtp.2.tg"
	c.SMTP.MaxMessageSize = "10m"

	c.Telegram.APIPrefix = "https://api.telegram.org/"
	c.Telegram.TimeoutSeconds = 30

	c.Bridge.Fields = []string{"date", "from", "subject"}
	c.Bridge.Unknown = "relay"
	c.Bridge.Domains = defaultDomains()

	c.Logging.Level = "info"
}

// defaultDomains returns localhost plus the machine hostname, lower-cased.
func defaultDomains() []string {
	domains := []string{"localhost"}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		hostname = strings.ToLower(hostname)
		if hostname != "localhost" {
			domains = append(domains, hostname)
		}
	}
	return domains
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("SMTP2TG_LISTEN"); v != "" {
		c.SMTP.Listen = v
	}
	if v := os.Getenv("SMTP2TG_HOSTNAME"); v != "" {
		c.SMTP.Hostname = v
	}
	if v := os.Getenv("SMTP2TG_MAX_MESSAGE_SIZE"); v != "" {
		c.SMTP.MaxMessageSize = v
	}
	if v := os.Getenv("SMTP2TG_SMTP_USERNAME"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP2TG_SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}

	if v := os.Getenv("SMTP2TG_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("SMTP2TG_API_PREFIX"); v != "" {
		c.Telegram.APIPrefix = v
	}

	if v := os.Getenv("SMTP2TG_DEFAULT_CHAT"); v != "" {
		if chat, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Bridge.Default = chat
		}
	}
	if v := os.Getenv("SMTP2TG_DOMAINS"); v != "" {
		c.Bridge.Domains = splitList(v)
	}
	if v := os.Getenv("SMTP2TG_FIELDS"); v != "" {
		c.Bridge.Fields = splitList(v)
	}
	if v := os.Getenv("SMTP2TG_UNKNOWN"); v != "" {
		c.Bridge.Unknown = v
	}

	if v := os.Getenv("SMTP2TG_TLS_CERT_FILE"); v != "" {
		c.TLS.CertFile = v
	}
	if v := os.Getenv("SMTP2TG_TLS_KEY_FILE"); v != "" {
		c.TLS.KeyFile = v
	}

	if v := os.Getenv("SMTP2TG_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// splitList splits a comma-separated environment value into trimmed items.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
