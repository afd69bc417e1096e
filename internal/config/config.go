// Package config provides YAML file configuration with environment
// variable overrides for the mail sender.
package config

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/shineum/mailsender/internal/email"
)

// TLS modes for the relay connection.
const (
	TLSModeImplicit = "tls"
	TLSModeStartTLS = "starttls"
	TLSModeNone     = "none"
)

// Config holds the complete application configuration.
type Config struct {
	SenderName       string `yaml:"sender_name"`
	SenderMail       string `yaml:"sender_mail" validate:"required,email"`
	SenderPassword   string `yaml:"sender_password"`
	Title            string `yaml:"title" validate:"required"`
	SMTPTransport    string `yaml:"smtp_transport" validate:"required_if=Provider smtp,omitempty,hostname_rfc1123"`
	SettingsPassword string `yaml:"settings_password"`

	// Provider selects the delivery backend: smtp, ses, graph or stdout.
	Provider string `yaml:"provider" validate:"oneof=smtp ses graph stdout"`

	SMTP        SMTPConfig       `yaml:"smtp"`
	Feedback    FeedbackConfig   `yaml:"feedback"`
	SES         SESConfig        `yaml:"ses"`
	Graph       GraphConfig      `yaml:"graph"`
	Credentials CredentialConfig `yaml:"credentials"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// SMTPConfig holds relay connection settings.
type SMTPConfig struct {
	Port               int    `yaml:"port" validate:"gte=0,lte=65535"`
	TLSMode            string `yaml:"tls_mode" validate:"oneof=tls starttls none"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// FeedbackConfig describes where user feedback is mailed.
type FeedbackConfig struct {
	Mail      string `yaml:"mail" validate:"omitempty,email"`
	Recipient string `yaml:"recipient" validate:"omitempty,email"`
	Subject   string `yaml:"subject"`
}

// SESConfig holds AWS SES settings.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// CredentialConfig controls where the sender secret comes from.
type CredentialConfig struct {
	// Keyring resolves an empty sender_password from the system keyring,
	// keyed by sender_mail.
	Keyring bool `yaml:"keyring"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables.
func LoadFromFile(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvVars()
	return cfg, nil
}

// ReadFile loads defaults and the YAML file only. Use it when the result
// is written back with Save so environment overrides stay out of the file.
func ReadFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks required fields and formats.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	switch {
	case c.Provider == "ses" && !c.SESConfigured():
		return fmt.Errorf("invalid configuration: ses provider requires ses.region")
	case c.Provider == "graph" && !c.GraphConfigured():
		return fmt.Errorf("invalid configuration: graph provider requires tenant_id, client_id and client_secret")
	}
	return nil
}

// SenderMailbox returns the configured sender as a mailbox.
func (c *Config) SenderMailbox() (*email.Address, error) {
	return email.ParseAddress(c.SenderName, c.SenderMail)
}

// FeedbackMailboxes returns the feedback sender and recipient.
func (c *Config) FeedbackMailboxes() (from, to *email.Address, err error) {
	sender := c.Feedback.Mail
	if sender == "" {
		sender = c.SenderMail
	}
	from, err = email.ParseAddress(c.SenderName, sender)
	if err != nil {
		return nil, nil, err
	}
	to, err = email.ParseAddress("", c.Feedback.Recipient)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// Login returns the relay login pair.
func (c *Config) Login() (username, password string) {
	return c.SenderMail, c.SenderPassword
}

// RelayPort returns the relay port, defaulting by TLS mode when unset.
func (c *Config) RelayPort() int {
	if c.SMTP.Port != 0 {
		return c.SMTP.Port
	}
	switch c.SMTP.TLSMode {
	case TLSModeStartTLS:
		return 587
	case TLSModeNone:
		return 25
	default:
		return 465
	}
}

// CheckSettingsPassword reports whether password unlocks the settings
// screen. An unset settings password never matches.
func (c *Config) CheckSettingsPassword(password string) bool {
	if c.SettingsPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.SettingsPassword), []byte(password)) == 1
}

// SESConfigured returns true if an SES region is set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != ""
}

// GraphConfigured returns true if all Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != ""
}

func (c *Config) applyDefaults() {
	c.Provider = "smtp"
	c.SMTP.TLSMode = TLSModeImplicit
	c.Feedback.Subject = "Feedback"
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("MAILSENDER_SENDER_NAME"); v != "" {
		c.SenderName = v
	}
	if v := os.Getenv("MAILSENDER_SENDER_MAIL"); v != "" {
		c.SenderMail = v
	}
	if v := os.Getenv("MAILSENDER_SENDER_PASSWORD"); v != "" {
		c.SenderPassword = v
	}
	if v := os.Getenv("MAILSENDER_TITLE"); v != "" {
		c.Title = v
	}
	if v := os.Getenv("MAILSENDER_PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.SMTPTransport = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		}
	}
	if v := os.Getenv("SMTP_TLS_MODE"); v != "" {
		c.SMTP.TLSMode = strings.ToLower(v)
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
