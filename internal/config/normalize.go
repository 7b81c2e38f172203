package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeBugzilla()
	c.normalizeEmail()
	c.normalizeTasks()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.Hostname = strings.TrimSpace(c.Server.Hostname)
	if c.Server.Hostname == "" {
		if value, ok := os.LookupEnv("EXPERIMENTER_HOSTNAME"); ok {
			c.Server.Hostname = strings.TrimSpace(value)
		}
	}
	if c.Server.Hostname == "" {
		c.Server.Hostname = defaultHostname
	}
	c.Server.AuthHeader = strings.TrimSpace(c.Server.AuthHeader)
	if c.Server.AuthHeader == "" {
		c.Server.AuthHeader = defaultAuthHeader
	}
	if c.Server.JWTSecret == "" {
		if value, ok := os.LookupEnv("EXPERIMENTER_JWT_SECRET"); ok {
			c.Server.JWTSecret = strings.TrimSpace(value)
		}
	}
	routes := make([]string, 0, len(c.Server.AuthWhitelist))
	seen := make(map[string]struct{}, len(c.Server.AuthWhitelist))
	for _, route := range c.Server.AuthWhitelist {
		route = strings.TrimSpace(route)
		if route == "" {
			continue
		}
		if _, ok := seen[route]; ok {
			continue
		}
		seen[route] = struct{}{}
		routes = append(routes, route)
	}
	c.Server.AuthWhitelist = routes
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = defaultReadTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = defaultWriteTimeout
	}
}

func (c *Config) normalizeBugzilla() {
	c.Bugzilla.Host = strings.TrimRight(strings.TrimSpace(c.Bugzilla.Host), "/")
	if c.Bugzilla.Host == "" {
		c.Bugzilla.Host = defaultBugzillaHost
	}
	c.Bugzilla.APIKey = strings.TrimSpace(c.Bugzilla.APIKey)
	if c.Bugzilla.APIKey == "" {
		if value, ok := os.LookupEnv("BUGZILLA_API_KEY"); ok {
			c.Bugzilla.APIKey = strings.TrimSpace(value)
		}
	}
	c.Bugzilla.CCList = strings.TrimSpace(c.Bugzilla.CCList)
	if strings.TrimSpace(c.Bugzilla.Product) == "" {
		c.Bugzilla.Product = defaultBugzillaProduct
	}
	if strings.TrimSpace(c.Bugzilla.Component) == "" {
		c.Bugzilla.Component = defaultBugzillaComponent
	}
	if c.Bugzilla.RequestTimeout <= 0 {
		c.Bugzilla.RequestTimeout = defaultBugzillaTimeout
	}
}

func (c *Config) normalizeEmail() {
	c.Email.Host = strings.TrimSpace(c.Email.Host)
	c.Email.Username = strings.TrimSpace(c.Email.Username)
	if c.Email.Password == "" {
		if value, ok := os.LookupEnv("EMAIL_HOST_PASSWORD"); ok {
			c.Email.Password = value
		}
	}
	c.Email.Sender = strings.TrimSpace(c.Email.Sender)
	if c.Email.Sender == "" {
		c.Email.Sender = defaultEmailSender
	}
	c.Email.ReviewAddress = strings.TrimSpace(c.Email.ReviewAddress)
	c.Email.ShipAddress = strings.TrimSpace(c.Email.ShipAddress)
	if c.Email.Port == 0 {
		c.Email.Port = defaultEmailPort
	}
}

func (c *Config) normalizeTasks() {
	if c.Tasks.PollInterval <= 0 {
		c.Tasks.PollInterval = defaultTaskPollInterval
	}
	if c.Tasks.MaxAttempts <= 0 {
		c.Tasks.MaxAttempts = defaultTaskMaxAttempts
	}
	if c.Tasks.RetryBackoff < 0 {
		c.Tasks.RetryBackoff = defaultTaskRetryBackoff
	}
	if c.Tasks.HeartbeatTimeout <= 0 {
		c.Tasks.HeartbeatTimeout = defaultTaskHeartbeatLimit
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
