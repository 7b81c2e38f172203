package config

const (
	defaultDataDir            = "~/.local/share/experimenter"
	defaultLogDir             = "~/.local/share/experimenter/logs"
	defaultBind               = "127.0.0.1:7001"
	defaultHostname           = "localhost"
	defaultAuthHeader         = "X-Forwarded-Email"
	defaultReadTimeout        = 15
	defaultWriteTimeout       = 30
	defaultBugzillaHost       = "https://bugzilla.mozilla.org"
	defaultBugzillaProduct    = "Shield"
	defaultBugzillaComponent  = "Shield Study"
	defaultBugzillaTimeout    = 30
	defaultEmailPort          = 587
	defaultEmailSender        = "experimenter@localhost"
	defaultTaskPollInterval   = 2
	defaultTaskMaxAttempts    = 3
	defaultTaskRetryBackoff   = 30
	defaultTaskHeartbeatLimit = 120
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// apiListRoute names the public experiment listing that stays reachable without
// an identity header so downstream consumers can poll it.
const apiListRoute = "experiments-api-list"

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind:          defaultBind,
			AuthHeader:    defaultAuthHeader,
			AuthWhitelist: []string{apiListRoute},
			ReadTimeout:   defaultReadTimeout,
			WriteTimeout:  defaultWriteTimeout,
		},
		Bugzilla: Bugzilla{
			Host:           defaultBugzillaHost,
			Product:        defaultBugzillaProduct,
			Component:      defaultBugzillaComponent,
			RequestTimeout: defaultBugzillaTimeout,
		},
		Email: Email{
			Port:   defaultEmailPort,
			Sender: defaultEmailSender,
			UseTLS: true,
		},
		Tasks: Tasks{
			PollInterval:     defaultTaskPollInterval,
			MaxAttempts:      defaultTaskMaxAttempts,
			RetryBackoff:     defaultTaskRetryBackoff,
			HeartbeatTimeout: defaultTaskHeartbeatLimit,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
