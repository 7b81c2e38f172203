package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Server contains HTTP listener and authentication configuration.
type Server struct {
	Bind          string   `toml:"bind"`
	Hostname      string   `toml:"hostname"`
	AuthHeader    string   `toml:"auth_header"`
	AuthWhitelist []string `toml:"auth_whitelist"`
	JWTSecret     string   `toml:"jwt_secret"`
	ReadTimeout   int      `toml:"read_timeout"`
	WriteTimeout  int      `toml:"write_timeout"`
}

// Bugzilla contains configuration for the bug tracker integration.
type Bugzilla struct {
	Host           string `toml:"host"`
	APIKey         string `toml:"api_key"`
	CCList         string `toml:"cc_list"`
	Product        string `toml:"product"`
	Component      string `toml:"component"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Email contains SMTP configuration and review/ship destinations.
type Email struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	Sender        string `toml:"sender"`
	ReviewAddress string `toml:"review_address"`
	ShipAddress   string `toml:"ship_address"`
	UseTLS        bool   `toml:"use_tls"`
}

// Tasks contains configuration for the background task worker.
type Tasks struct {
	PollInterval     int `toml:"poll_interval"`
	MaxAttempts      int `toml:"max_attempts"`
	RetryBackoff     int `toml:"retry_backoff"`
	HeartbeatTimeout int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Experimenter.
//
// Configuration sections by subsystem:
//   - Paths: database and log directories
//   - Server: bind address, public hostname, identity header
//   - Bugzilla: bug tracker host and credentials
//   - Email: SMTP relay and review/ship recipients
//   - Tasks: background worker polling and retry policy
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Server   Server   `toml:"server"`
	Bugzilla Bugzilla `toml:"bugzilla"`
	Email    Email    `toml:"email"`
	Tasks    Tasks    `toml:"tasks"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/experimenter/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("experimenter.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for server operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "experimenter.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "experimenter.lock")
}

// BugzillaCreateURL returns the REST endpoint used to file new bugs.
func (c *Config) BugzillaCreateURL() string {
	return c.bugzillaURL("/rest/bug", true)
}

// BugzillaCommentURL returns the REST endpoint used to comment on bug id.
func (c *Config) BugzillaCommentURL(id string) string {
	return c.bugzillaURL("/rest/bug/"+url.PathEscape(id)+"/comment", true)
}

// BugzillaDetailURL returns the human-facing page for bug id.
func (c *Config) BugzillaDetailURL(id string) string {
	return strings.TrimRight(c.Bugzilla.Host, "/") + "/show_bug.cgi?id=" + url.QueryEscape(id)
}

func (c *Config) bugzillaURL(path string, withKey bool) string {
	target := strings.TrimRight(c.Bugzilla.Host, "/") + path
	if withKey {
		target += "?api_key=" + url.QueryEscape(c.Bugzilla.APIKey)
	}
	return target
}

// BugzillaTimeout returns the per-request timeout for Bugzilla calls.
func (c *Config) BugzillaTimeout() time.Duration {
	return time.Duration(c.Bugzilla.RequestTimeout) * time.Second
}

// TaskPollInterval returns how long the worker sleeps when the queue is empty.
func (c *Config) TaskPollInterval() time.Duration {
	return time.Duration(c.Tasks.PollInterval) * time.Second
}

// TaskRetryBackoff returns the delay applied before a failed task is retried.
func (c *Config) TaskRetryBackoff() time.Duration {
	return time.Duration(c.Tasks.RetryBackoff) * time.Second
}

// TaskHeartbeatTimeout returns the age after which a running task is considered stale.
func (c *Config) TaskHeartbeatTimeout() time.Duration {
	return time.Duration(c.Tasks.HeartbeatTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
