// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/pubsub/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/juju/recordsync/core/changes"
	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/cache"
	"github.com/juju/recordsync/internal/config"
	"github.com/juju/recordsync/internal/store/state"
	"github.com/juju/recordsync/internal/view"
	"github.com/juju/recordsync/internal/worker/preloader"
	"github.com/juju/recordsync/internal/worker/recordwatcher"
)

// daemon owns every long-lived component of the process. The watcher
// publishes change events on the hub; the cache and the view subscribe to
// them, and new steps are handed to the preloader.
type daemon struct {
	db        *sql.DB
	hub       *pubsub.SimpleHub
	watcher   *recordwatcher.Watcher
	cache     *cache.Cache
	loader    *cache.Loader
	preloader *preloader.Worker
	tree      *view.Tree
	registry  *prometheus.Registry
	server    *http.Server

	unsubscribe func()
}

func newDaemon(ctx context.Context, cfg config.Config, clk clock.Clock) (_ *daemon, err error) {
	if cfg.Database == "" {
		return nil, errors.NotValidf("missing database path")
	}
	d := &daemon{
		tree:     view.New(),
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	if d.db, err = sql.Open("sqlite3", cfg.Database); err != nil {
		return nil, errors.Annotatef(err, "opening database %q", cfg.Database)
	}
	if err := state.EnsureSchema(ctx, d.db); err != nil {
		return nil, errors.Trace(err)
	}
	st, err := state.NewState(d.db)
	if err != nil {
		return nil, errors.Trace(err)
	}

	d.hub = pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{
		Logger: loggo.GetLogger("recordsync.hub"),
	})

	if d.cache, err = cache.New(cache.Config{
		SignificantTests: cfg.SignificantTests,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	if d.loader, err = cache.NewLoader(cache.LoaderConfig{
		Cache:         d.cache,
		Reader:        st,
		Clock:         clk,
		Logger:        loggo.GetLogger("recordsync.cache.loader"),
		RetryAttempts: cfg.Retry.Attempts,
		RetryDelay:    cfg.Retry.Delay,
	}); err != nil {
		return nil, errors.Trace(err)
	}

	watcherMetrics := recordwatcher.NewMetricsCollector()
	if d.watcher, err = recordwatcher.New(recordwatcher.Config{
		Reader:   st,
		Hub:      d.hub,
		Clock:    clk,
		Logger:   loggo.GetLogger("recordsync.watcher"),
		Interval: cfg.Interval,
		Scope:    cfg.Scope,
		Metrics:  watcherMetrics,
	}); err != nil {
		return nil, errors.Trace(err)
	}

	if !cfg.Preload.Disabled {
		if d.preloader, err = preloader.NewWorker(preloader.Config{
			Loader:  d.loader,
			Cache:   d.cache,
			Limiter: rate.NewLimiter(rate.Limit(cfg.Preload.Rate), cfg.Preload.Burst),
			Logger:  loggo.GetLogger("recordsync.preloader"),
		}); err != nil {
			return nil, errors.Trace(err)
		}
	}

	for _, collector := range []prometheus.Collector{
		watcherMetrics,
		cache.NewMetricsCollector(d.cache),
	} {
		if err := d.registry.Register(collector); err != nil {
			return nil, errors.Annotate(err, "registering metrics")
		}
	}

	d.unsubscribe = d.watcher.Subscribe(d.onChange)
	return d, nil
}

// onChange runs on the hub's goroutine for every change event.
func (d *daemon) onChange(event changes.Event) {
	d.cache.Apply(event)
	d.tree.Apply(event)

	if d.preloader == nil {
		return
	}
	var seqs []record.StepSeq
	for _, step := range event.Steps.Records {
		seqs = append(seqs, step.Seq)
	}
	if n := d.preloader.Enqueue(seqs...); n > 0 {
		logger.Debugf("queued %d point groups for preloading", n)
	}
}

func (d *daemon) start() error {
	return errors.Trace(d.watcher.Start())
}

// serveMetrics exposes the registry on addr until close is called.
func (d *daemon) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	d.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("serving metrics on %s", addr)
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server stopped: %v", err)
		}
	}()
}

func (d *daemon) report() map[string]interface{} {
	report := map[string]interface{}{
		"watcher": d.watcher.Report(),
		"cache":   d.cache.Report(),
	}
	if d.preloader != nil {
		report["preloader"] = d.preloader.Report()
	}
	return report
}

// close stops every component, the watcher first so nothing new is
// published while the rest shut down.
func (d *daemon) close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.watcher != nil {
		d.watcher.Kill()
		keep(d.watcher.Wait())
	}
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
	if d.preloader != nil {
		d.preloader.Kill()
		keep(d.preloader.Wait())
	}
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		keep(d.server.Shutdown(ctx))
		cancel()
	}
	if d.db != nil {
		keep(d.db.Close())
	}
	return errors.Trace(firstErr)
}
