package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sentinnell/analytics_api/internal/service"
)

// KeywordSyncer ingests catalog results for a set of keywords.
type KeywordSyncer interface {
	SyncKeywords(ctx context.Context, keywords []string) (service.SyncStats, error)
}

// SyncWorker periodically ingests catalog search results for fixed keywords.
type SyncWorker struct {
	syncer   KeywordSyncer
	keywords []string
	interval time.Duration
}

// NewSyncWorker constructs a SyncWorker.
func NewSyncWorker(syncer KeywordSyncer, keywords []string, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		syncer:   syncer,
		keywords: keywords,
		interval: interval,
	}
}

// Start begins the periodic sync loop and returns when ctx is cancelled.
func (w *SyncWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Strs("keywords", w.keywords).Msg("Starting sync worker")

	// Run immediately on start
	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Sync worker stopped")
			return
		}
	}
}

func (w *SyncWorker) run(ctx context.Context) {
	log.Info().Msg("Syncing catalog keywords...")

	start := time.Now()
	stats, err := w.syncer.SyncKeywords(ctx, w.keywords)
	if err != nil {
		log.Error().Err(err).Str("stats", stats.String()).Msg("Catalog sync failed")
		return
	}

	log.Info().
		Dur("duration", time.Since(start)).
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("failed", stats.Failed).
		Msg("Catalog sync completed")
}
