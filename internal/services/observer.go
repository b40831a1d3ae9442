package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulsestack/pulse-engine/internal/models"
)

// SignalSource supplies signal snapshots for evaluation cycles.
type SignalSource interface {
	FetchClusterSignals(ctx context.Context, cluster string) (models.Snapshot, error)
	FetchWorkerSignals(ctx context.Context, cluster string) (models.WorkerHealth, error)
}

// Observer drives scheduled evaluation cycles for every configured cluster.
type Observer struct {
	logger   *slog.Logger
	source   SignalSource
	monitor  *Monitor
	interval time.Duration
	clusters []string
}

// NewObserver constructs an Observer over the monitor's configured clusters.
func NewObserver(logger *slog.Logger, source SignalSource, monitor *Monitor, interval time.Duration, clusters []string) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Observer{
		logger:   logger,
		source:   source,
		monitor:  monitor,
		interval: interval,
		clusters: clusters,
	}
}

// Run evaluates all clusters once immediately, then on every tick until ctx
// is cancelled. A failing cluster never blocks the others.
func (o *Observer) Run(ctx context.Context) {
	o.logger.Info("observer started", slog.Duration("interval", o.interval), slog.Int("clusters", len(o.clusters)))

	o.sweep(ctx)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("observer stopped")
			return
		case <-ticker.C:
			o.sweep(ctx)
		}
	}
}

func (o *Observer) sweep(ctx context.Context) {
	for _, cluster := range o.clusters {
		if ctx.Err() != nil {
			return
		}
		o.evaluate(ctx, cluster)
	}
}

func (o *Observer) evaluate(ctx context.Context, cluster string) {
	snapshot, err := o.source.FetchClusterSignals(ctx, cluster)
	if err != nil {
		o.logger.Error("cluster signal fetch failed", slog.String("cluster", cluster), slog.Any("error", err))
		return
	}
	worker, err := o.source.FetchWorkerSignals(ctx, cluster)
	if err != nil {
		o.logger.Error("worker signal fetch failed", slog.String("cluster", cluster), slog.Any("error", err))
		return
	}

	if _, err := o.monitor.RunCycle(ctx, cluster, snapshot, worker, models.TriggerScheduled); err != nil {
		o.logger.Error("evaluation cycle failed", slog.String("cluster", cluster), slog.Any("error", err))
	}
}
