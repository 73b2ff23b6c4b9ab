package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

const prefix = "seabattle"

// Config holds settings that do not belong on the command line every time.
// Every field reads from SEABATTLE_<NAME>.
type Config struct {
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	Network     string        `envconfig:"NETWORK" default:"tcp4"`
	IOTimeout   time.Duration `envconfig:"IO_TIMEOUT" default:"0s"`
	MetricsAddr string        `envconfig:"METRICS_ADDR"`
}

func Load() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process(prefix, config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	switch c.Network {
	case "tcp", "tcp4", "tcp6":
	default:
		return fmt.Errorf("unsupported network %q", c.Network)
	}
	if c.IOTimeout < 0 {
		return fmt.Errorf("negative io timeout %v", c.IOTimeout)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level maps LogLevel onto phuslu levels.
func (c *Config) Level() (log.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "trace":
		return log.TraceLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "info", "":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}
