// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Command recordsyncd keeps an in-memory cache and view of the test
// definitions in a SQLite database in sync, by polling the database for
// changes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"

	"github.com/juju/recordsync/internal/config"
)

var logger = loggo.GetLogger("recordsync")

type commandLineArgs struct {
	configPath    string
	database      string
	interval      time.Duration
	loggingConfig string
	metricsAddr   string
}

func parseArgs(args []string) (commandLineArgs, error) {
	flags := gnuflag.NewFlagSet("recordsyncd", gnuflag.ContinueOnError)
	var a commandLineArgs
	flags.StringVar(&a.configPath, "config", "",
		"path of the YAML configuration file")
	flags.StringVar(&a.database, "db", "",
		"path of the SQLite database, overriding the configuration")
	flags.DurationVar(&a.interval, "interval", 0,
		"polling interval, overriding the configuration")
	flags.StringVar(&a.loggingConfig, "logging-config", "",
		"loggo configuration, such as <root>=DEBUG")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "",
		"address of the prometheus endpoint, overriding the configuration")
	if err := flags.Parse(true, args); err != nil {
		return commandLineArgs{}, errors.Trace(err)
	}
	if extra := flags.Args(); len(extra) > 0 {
		return commandLineArgs{}, errors.Errorf("unrecognized arguments: %v", extra)
	}
	return a, nil
}

// loadConfig reads the configuration file, if any, and applies the
// command line overrides on top.
func loadConfig(a commandLineArgs) (config.Config, error) {
	cfg := config.Default()
	if a.configPath != "" {
		var err error
		if cfg, err = config.Read(a.configPath); err != nil {
			return config.Config{}, errors.Trace(err)
		}
	}
	if a.database != "" {
		cfg.Database = a.database
	}
	if a.interval != 0 {
		cfg.Interval = a.interval
	}
	if a.loggingConfig != "" {
		cfg.LoggingConfig = a.loggingConfig
	}
	if a.metricsAddr != "" {
		cfg.MetricsAddress = a.metricsAddr
	}
	return cfg, errors.Trace(cfg.Validate())
}

func setupLogging(loggingConfig string) error {
	writer := loggo.NewSimpleWriter(os.Stderr, logFormatter)
	if _, err := loggo.ReplaceDefaultWriter(writer); err != nil {
		return errors.Trace(err)
	}
	return loggo.ConfigureLoggers(loggingConfig)
}

func logFormatter(entry loggo.Entry) string {
	ts := entry.Timestamp.In(time.UTC).Format("2006-01-02 15:04:05")
	return fmt.Sprintf("%s %s %s %s", ts, entry.Level, entry.Module, entry.Message)
}

func run(args []string) error {
	a, err := parseArgs(args)
	if err != nil {
		return errors.Trace(err)
	}
	cfg, err := loadConfig(a)
	if err != nil {
		return errors.Trace(err)
	}
	if err := setupLogging(cfg.LoggingConfig); err != nil {
		return errors.Annotate(err, "setting up logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, cfg, clock.WallClock)
	if err != nil {
		return errors.Trace(err)
	}
	if cfg.MetricsAddress != "" {
		d.serveMetrics(cfg.MetricsAddress)
	}
	if err := d.start(); err != nil {
		_ = d.close()
		return errors.Trace(err)
	}

	<-ctx.Done()
	logger.Infof("shutting down")
	logger.Debugf("final state: %v", d.report())
	return errors.Trace(d.close())
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "recordsyncd: %v\n", err)
		os.Exit(1)
	}
}
