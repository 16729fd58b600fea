// Package ingest runs synchronizer passes: pull the ranked upstream index,
// mirror the top slice of stories into the store, prune beyond retention.
package ingest

import (
	"context"
	"fmt"
	"time"

	"frontpage/hackernews"
	"frontpage/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var (
	syncPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontpage_sync_passes_total",
		Help: "The total number of synchronizer passes started",
	})

	syncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontpage_sync_pass_failures_total",
		Help: "The total number of synchronizer passes that aborted",
	})

	itemsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontpage_sync_items_upserted_total",
		Help: "The total number of items written to the store",
	})

	itemsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontpage_sync_items_skipped_total",
		Help: "The total number of items skipped because their fetch failed",
	})

	itemsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontpage_sync_items_pruned_total",
		Help: "The total number of items removed by retention pruning",
	})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "frontpage_sync_pass_duration_seconds",
		Help:    "Duration of synchronizer passes",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // Start at 100ms, double each bucket, 10 buckets
	})
)

// Source yields the upstream index and per-item detail.
type Source interface {
	TopStories(ctx context.Context) ([]int64, error)
	Item(ctx context.Context, id int64) (*hackernews.Item, error)
}

// Store is the slice of the database writer a pass needs.
type Store interface {
	SaveItems(ctx context.Context, items []models.Item) error
	Prune(ctx context.Context, keep int) (int64, error)
}

// Options bounds a pass.
type Options struct {
	// FetchLimit caps how many ids from the top of the index are fetched.
	FetchLimit int
	// Retain is the retention cap applied after the batch commits.
	Retain int
}

// Stats summarizes one pass.
type Stats struct {
	PassID  string
	Fetched int
	Skipped int
	Pruned  int64
	Elapsed time.Duration
}

// Sync runs one pass. An index failure aborts before anything is written; a
// single item failing only skips that item. The batch commits in one
// transaction, then pruning runs in its own.
func Sync(ctx context.Context, source Source, store Store, opts Options) (Stats, error) {
	start := time.Now()
	stats := Stats{PassID: uuid.NewString()}

	logger := log.WithField("pass_id", stats.PassID)
	logger.Info("Starting sync pass")
	syncPasses.Inc()

	ids, err := source.TopStories(ctx)
	if err != nil {
		syncFailures.Inc()
		return stats, fmt.Errorf("fetch index error: %w", err)
	}

	// Keep the top of the ranking, in ranked order
	ids = lo.Slice(ids, 0, opts.FetchLimit)

	items := make([]models.Item, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			syncFailures.Inc()
			return stats, err
		}

		item, err := source.Item(ctx, id)
		if err != nil {
			logger.WithFields(log.Fields{
				"item":  id,
				"error": err,
			}).Warn("Skipping item")
			stats.Skipped++
			itemsSkipped.Inc()
			continue
		}

		items = append(items, models.Item{
			ID:    item.ID,
			By:    item.By,
			Time:  item.Time,
			Title: item.Title,
			URL:   item.URL,
		})
	}

	if err := store.SaveItems(ctx, items); err != nil {
		syncFailures.Inc()
		return stats, fmt.Errorf("save error: %w", err)
	}
	stats.Fetched = len(items)
	itemsUpserted.Add(float64(len(items)))

	pruned, err := store.Prune(ctx, opts.Retain)
	if err != nil {
		syncFailures.Inc()
		return stats, fmt.Errorf("prune error: %w", err)
	}
	stats.Pruned = pruned
	itemsPruned.Add(float64(pruned))

	stats.Elapsed = time.Since(start)
	passDuration.Observe(stats.Elapsed.Seconds())

	logger.WithFields(log.Fields{
		"fetched": stats.Fetched,
		"skipped": stats.Skipped,
		"pruned":  stats.Pruned,
		"elapsed": stats.Elapsed.Round(time.Millisecond).String(),
	}).Info("Finished sync pass")

	return stats, nil
}

// Run executes a pass immediately and then on every tick until the context
// is canceled. A failed pass is logged and the next tick simply tries again.
func Run(ctx context.Context, source Source, store Store, opts Options, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := Sync(ctx, source, store, opts); err != nil && ctx.Err() == nil {
			log.WithField("error", err).Error("Sync pass failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
