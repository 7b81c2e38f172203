package testsupport

import (
	"path/filepath"
	"testing"

	"experimenter/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Server.Hostname = "experimenter.test"
	cfgVal.Bugzilla.Host = "https://bugzilla.test"
	cfgVal.Bugzilla.APIKey = "test"
	cfgVal.Email.ReviewAddress = "review@example.com"
	cfgVal.Email.ShipAddress = "ship@example.com"
	cfgVal.Email.Sender = "experimenter@example.com"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBugzillaHost points the Bugzilla integration at host, typically an
// httptest server URL.
func WithBugzillaHost(host string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bugzilla.Host = host
	}
}

// WithAuthWhitelist replaces the routes reachable without authentication.
func WithAuthWhitelist(routes ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.AuthWhitelist = routes
	}
}

// WithJWTSecret enables bearer-token authentication.
func WithJWTSecret(secret string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.JWTSecret = secret
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
