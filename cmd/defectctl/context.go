package main

import (
	"DefectScope/internal/config"
	"DefectScope/pkg/log"
	"DefectScope/pkg/storage"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type commandContext struct {
	envFlag     *string
	workDirFlag *string

	cfg    *config.AppConfig
	logger *logrus.Logger
}

func newCommandContext(envFlag, workDirFlag *string) *commandContext {
	return &commandContext{envFlag: envFlag, workDirFlag: workDirFlag}
}

// ensureConfig loads the environment file, when present, and the
// configuration once per invocation.
func (c *commandContext) ensureConfig() (*config.AppConfig, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	if path := strings.TrimSpace(*c.envFlag); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg, err := config.LoadAppConfig(config.NewValidator())
	if err != nil {
		return nil, err
	}
	if dir := strings.TrimSpace(*c.workDirFlag); dir != "" {
		cfg.WorkDir = dir
	}

	c.cfg = &cfg
	c.logger = log.NewLogger()
	return c.cfg, nil
}

func (c *commandContext) openStore(policy storage.RetentionPolicy) (*storage.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if policy == nil {
		policy = storage.NewPolicy(cfg.RetentionMaxAge, cfg.RetentionMaxBytes)
	}
	return storage.Open(storage.Options{
		Root:      cfg.WorkDir,
		OutputExt: cfg.OutputExt,
		Policy:    policy,
		Log:       c.logger,
	})
}
