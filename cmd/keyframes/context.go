package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/infra/config"
	"github.com/MhdAstro/video-to-frame/internal/staging"
	"github.com/MhdAstro/video-to-frame/pkg/logger"
)

type commandContext struct {
	envFileFlag  *string
	logLevelFlag *string
	jsonFlag     *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger
	loggerErr  error
}

func newCommandContext(envFileFlag, logLevelFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		envFileFlag:  envFileFlag,
		logLevelFlag: logLevelFlag,
		jsonFlag:     jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := c.loadEnvFile(); err != nil {
			c.configErr = err
			return
		}
		cfg, err := config.Load()
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.LogLevel = strings.TrimSpace(*c.logLevelFlag)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// loadEnvFile reads --env-file when given, otherwise an optional .env in the
// working directory.
func (c *commandContext) loadEnvFile() error {
	var path string
	if c.envFileFlag != nil {
		path = strings.TrimSpace(*c.envFileFlag)
	}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (c *commandContext) ensureLogger() (*zap.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logger.New(cfg.LogLevel)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) stagingManager() (*staging.Manager, *zap.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	m, err := staging.NewManager(cfg.TempDir, cfg.CleanupDelay(), log)
	if err != nil {
		return nil, nil, err
	}
	return m, log, nil
}

func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}
