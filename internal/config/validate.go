package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateBugzilla(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	if err := c.validateTasks(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Hostname == "" {
		return errors.New("server.hostname must be set (or export EXPERIMENTER_HOSTNAME)")
	}
	if c.Server.AuthHeader == "" {
		return errors.New("server.auth_header must be set")
	}
	return nil
}

func (c *Config) validateBugzilla() error {
	parsed, err := url.Parse(c.Bugzilla.Host)
	if err != nil {
		return fmt.Errorf("bugzilla.host: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("bugzilla.host must be an absolute http(s) URL, got %q", c.Bugzilla.Host)
	}
	if parsed.Host == "" {
		return fmt.Errorf("bugzilla.host is missing a host name: %q", c.Bugzilla.Host)
	}
	return nil
}

func (c *Config) validateEmail() error {
	if c.Email.Port < 1 || c.Email.Port > 65535 {
		return fmt.Errorf("email.port must be between 1 and 65535, got %d", c.Email.Port)
	}
	return nil
}

func (c *Config) validateTasks() error {
	if c.Tasks.MaxAttempts < 1 {
		return errors.New("tasks.max_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
