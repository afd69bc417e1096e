package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// setting maps one YAML key to its struct field.
type setting struct {
	field string
	set   func(c *Config, v string) error
}

func setString(dst func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func setBool(dst func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		*dst(c) = b
		return nil
	}
}

var settings = map[string]setting{
	"sender_name":       {"SenderName", setString(func(c *Config) *string { return &c.SenderName })},
	"sender_mail":       {"SenderMail", setString(func(c *Config) *string { return &c.SenderMail })},
	"sender_password":   {"SenderPassword", setString(func(c *Config) *string { return &c.SenderPassword })},
	"title":             {"Title", setString(func(c *Config) *string { return &c.Title })},
	"smtp_transport":    {"SMTPTransport", setString(func(c *Config) *string { return &c.SMTPTransport })},
	"settings_password": {"SettingsPassword", setString(func(c *Config) *string { return &c.SettingsPassword })},
	"provider": {"Provider", func(c *Config, v string) error {
		c.Provider = strings.ToLower(v)
		return nil
	}},
	"smtp.port": {"SMTP.Port", func(c *Config, v string) error {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid port %q", v)
		}
		c.SMTP.Port = port
		return nil
	}},
	"smtp.tls_mode":             {"SMTP.TLSMode", setString(func(c *Config) *string { return &c.SMTP.TLSMode })},
	"smtp.insecure_skip_verify": {"SMTP.InsecureSkipVerify", setBool(func(c *Config) *bool { return &c.SMTP.InsecureSkipVerify })},
	"feedback.mail":             {"Feedback.Mail", setString(func(c *Config) *string { return &c.Feedback.Mail })},
	"feedback.recipient":        {"Feedback.Recipient", setString(func(c *Config) *string { return &c.Feedback.Recipient })},
	"feedback.subject":          {"Feedback.Subject", setString(func(c *Config) *string { return &c.Feedback.Subject })},
	"credentials.keyring":       {"Credentials.Keyring", setBool(func(c *Config) *bool { return &c.Credentials.Keyring })},
	"logging.level":             {"Logging.Level", setString(func(c *Config) *string { return &c.Logging.Level })},
}

// Keys returns the keys accepted by Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Set assigns value to the field named by its YAML key, for example
// "title" or "feedback.recipient". Only the rules of that field are
// checked; on error c is unchanged.
func (c *Config) Set(key, value string) error {
	s, ok := settings[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}

	prev := *c
	if err := s.set(c, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := c.validateField(s.field); err != nil {
		*c = prev
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// validateField runs the struct rules and keeps only failures on field.
func (c *Config) validateField(field string) error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		if fe.StructNamespace() == "Config."+field {
			return fmt.Errorf("invalid value %q (%s)", fe.Value(), fe.Tag())
		}
	}
	return nil
}
