// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config reads the recordsyncd configuration file.
package config

import (
	"os"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/juju/recordsync/core/record"
)

// Defaults used for every setting missing from the file.
const (
	DefaultInterval         = 3 * time.Second
	DefaultSignificantTests = 100
	DefaultPreloadRate      = 10.0
	DefaultPreloadBurst     = 1
	DefaultRetryAttempts    = 3
	DefaultRetryDelay       = 250 * time.Millisecond
	DefaultLoggingConfig    = "<root>=INFO"
)

// Config is the daemon configuration.
type Config struct {
	// Database is the path of the SQLite database holding the records.
	Database string `yaml:"database"`

	// Interval is the polling interval of the watcher.
	Interval time.Duration `yaml:"interval"`

	// Scope restricts synchronisation to the given tests. Empty means
	// every test.
	Scope []record.TestID `yaml:"scope,omitempty"`

	// SignificantTests is the number of cached tests from which
	// consumers skip their own bulk load.
	SignificantTests int `yaml:"significant-tests"`

	// Preload throttles background loading of point groups.
	Preload Preload `yaml:"preload"`

	// Retry controls how cache misses retry failing store reads.
	Retry Retry `yaml:"retry"`

	// MetricsAddress is where the prometheus endpoint listens. Empty
	// disables it.
	MetricsAddress string `yaml:"metrics-address,omitempty"`

	// LoggingConfig is a loggo configuration string.
	LoggingConfig string `yaml:"logging-config"`
}

// Preload holds the preloader settings.
type Preload struct {
	// Disabled turns background preloading off.
	Disabled bool `yaml:"disabled,omitempty"`

	// Rate is the number of point groups loaded per second.
	Rate float64 `yaml:"rate"`

	// Burst is the number of point groups that may be loaded at once.
	Burst int `yaml:"burst"`
}

// Retry holds the store read retry settings.
type Retry struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Interval:         DefaultInterval,
		SignificantTests: DefaultSignificantTests,
		Preload: Preload{
			Rate:  DefaultPreloadRate,
			Burst: DefaultPreloadBurst,
		},
		Retry: Retry{
			Attempts: DefaultRetryAttempts,
			Delay:    DefaultRetryDelay,
		},
		LoggingConfig: DefaultLoggingConfig,
	}
}

// Read parses the file at path on top of the defaults.
func Read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, errors.NotFoundf("config file %q", path)
	} else if err != nil {
		return Config{}, errors.Annotatef(err, "reading config file %q", path)
	}
	cfg, err := Parse(data)
	return cfg, errors.Annotatef(err, "parsing config file %q", path)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Trace(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// Validate ensures every setting is usable.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.NotValidf("interval %v", c.Interval)
	}
	if c.SignificantTests < 0 {
		return errors.NotValidf("significant-tests %d", c.SignificantTests)
	}
	if !c.Preload.Disabled {
		if c.Preload.Rate <= 0 {
			return errors.NotValidf("preload rate %v", c.Preload.Rate)
		}
		if c.Preload.Burst < 1 {
			return errors.NotValidf("preload burst %d", c.Preload.Burst)
		}
	}
	if c.Retry.Attempts < 1 {
		return errors.NotValidf("retry attempts %d", c.Retry.Attempts)
	}
	if c.Retry.Delay < 0 {
		return errors.NotValidf("retry delay %v", c.Retry.Delay)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	return data, errors.Trace(err)
}
