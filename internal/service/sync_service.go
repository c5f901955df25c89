package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sentinnell/analytics_api/internal/utils"
)

// SyncStats summarizes one sync run.
type SyncStats struct {
	Keywords int
	Fetched  int
	Created  int
	Updated  int
	Failed   int
}

// SyncService ingests catalog search results into the store.
type SyncService struct {
	fetcher     CatalogFetcher
	products    ProductWriter
	limit       int
	concurrency int
}

// NewSyncService constructs a SyncService.
func NewSyncService(fetcher CatalogFetcher, products ProductWriter, limit, concurrency int) *SyncService {
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SyncService{fetcher: fetcher, products: products, limit: limit, concurrency: concurrency}
}

// SyncKeywords fetches each keyword and upserts every valid record. Keywords
// run concurrently up to the configured limit. A failing keyword is logged and
// counted; only read-only mode or context cancellation abort the run.
func (s *SyncService) SyncKeywords(ctx context.Context, keywords []string) (SyncStats, error) {
	if s.fetcher == nil {
		return SyncStats{}, utils.ErrUpstreamNotEnabled
	}

	var mu sync.Mutex
	stats := SyncStats{Keywords: len(keywords)}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, kw := range keywords {
		kw := kw
		g.Go(func() error {
			ks, err := s.syncKeyword(ctx, kw)
			mu.Lock()
			stats.Fetched += ks.Fetched
			stats.Created += ks.Created
			stats.Updated += ks.Updated
			stats.Failed += ks.Failed
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	return stats, err
}

func (s *SyncService) syncKeyword(ctx context.Context, keyword string) (SyncStats, error) {
	var stats SyncStats
	raws, err := s.fetcher.SearchProducts(ctx, keyword, SortTypeRecent, s.limit)
	if err != nil {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		log.Error().Err(err).Str("keyword", keyword).Msg("Sync fetch failed")
		stats.Failed++
		return stats, nil
	}
	stats.Fetched = len(raws)

	for _, p := range NormalizeProducts(raws) {
		if err := ValidateForPersist(&p); err != nil {
			stats.Failed++
			continue
		}
		res, err := s.products.Upsert(ctx, &p)
		switch {
		case err == nil && res.Created:
			stats.Created++
		case err == nil:
			stats.Updated++
		case errors.Is(err, utils.ErrReadOnly):
			return stats, err
		case ctx.Err() != nil:
			return stats, ctx.Err()
		default:
			log.Warn().Err(err).Str("item_id", p.ExternalID).Msg("Sync upsert failed")
			stats.Failed++
		}
	}
	log.Debug().Str("keyword", keyword).Int("fetched", stats.Fetched).Msg("Keyword synced")
	return stats, nil
}

// String renders stats for logs.
func (s SyncStats) String() string {
	return fmt.Sprintf("keywords=%d fetched=%d created=%d updated=%d failed=%d",
		s.Keywords, s.Fetched, s.Created, s.Updated, s.Failed)
}
