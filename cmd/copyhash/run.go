package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"github.com/anatolykoptev/go-copyhash"
	"github.com/anatolykoptev/go-copyhash/internal/hashcache"
	"github.com/anatolykoptev/go-copyhash/internal/metrics"
)

// run wires a Matcher to the metrics, hash cache and progress bar of one command.
type run struct {
	matcher     *copyhash.Matcher
	metrics     *metrics.BatchMetrics
	cache       *hashcache.Store
	bar         *progressbar.ProgressBar
	metricsFile string
}

func (a *app) newRun(cfg copyhash.Config, catalog *copyhash.Catalog, progress bool) (*run, error) {
	r := &run{
		metrics:     metrics.New(),
		metricsFile: a.settings.MetricsFile,
	}
	r.metrics.SetCatalogSize(catalog.Len())

	if progress {
		r.bar = progressbar.Default(-1, "Matching")
	}
	cfg.OnRecord = func(ev copyhash.RecordEvent) {
		r.metrics.ObserveRecord(ev)
		if r.bar != nil {
			_ = r.bar.Add(1)
		}
	}
	cfg.OnPanic = func(tag string, v any) {
		r.metrics.ObservePanic(tag, v)
		slog.Error("copyhash: recovered panic", "tag", tag, "panic", v)
	}

	if a.settings.Cache != "" {
		store, err := hashcache.Open(a.settings.Cache)
		if err != nil {
			return nil, err
		}
		r.cache = store
		cfg.HashCache = store
	}

	r.matcher = copyhash.NewMatcher(cfg, catalog)
	return r, nil
}

// close finishes the progress bar, writes the metrics file and closes the cache.
func (r *run) close() error {
	var err error
	if r.bar != nil {
		err = r.bar.Finish()
	}
	if r.metricsFile != "" {
		if werr := r.metrics.WriteTextfile(r.metricsFile); werr != nil {
			err = errors.Join(err, fmt.Errorf("write metrics: %w", werr))
		}
	}
	if r.cache != nil {
		err = errors.Join(err, r.cache.Close())
	}
	return err
}
