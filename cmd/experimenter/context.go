package main

import (
	"errors"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"experimenter/internal/api"
	"experimenter/internal/config"
	"experimenter/internal/store"
	"experimenter/internal/tasks"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		if exists {
			c.configPath = resolved
		}
	})
	return c.config, c.configErr
}

// withStore opens the database for the duration of fn.
func (c *commandContext) withStore(fn func(cfg *config.Config, st *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st)
}

// withService opens the database and builds the experiment service so status
// changes made from the command line queue the same follow-up tasks as the
// web UI.
func (c *commandContext) withService(fn func(svc *api.ExperimentService, st *store.Store) error) error {
	return c.withStore(func(cfg *config.Config, st *store.Store) error {
		queue := tasks.NewQueue(st, cfg.Tasks.MaxAttempts)
		return fn(api.NewExperimentService(cfg, st, queue, nil, nil), st)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func requireActor(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.New("--as is required: the email recorded as the author of the change")
	}
	return email, nil
}
