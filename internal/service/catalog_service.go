package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sentinnell/analytics_api/internal/cache"
	"github.com/sentinnell/analytics_api/internal/models"
	"github.com/sentinnell/analytics_api/internal/repository"
	"github.com/sentinnell/analytics_api/internal/utils"
)

const (
	defaultCatalogLimit = 20
	maxCatalogLimit     = 100
)

// CatalogFetcher is the upstream affiliate catalog.
type CatalogFetcher interface {
	SearchProducts(ctx context.Context, keyword string, sortType, limit int) ([]map[string]interface{}, error)
	SimilarProducts(ctx context.Context, itemID string) ([]map[string]interface{}, error)
	GenerateShortLink(ctx context.Context, originURL string, subIDs []string) (string, error)
}

// ProductWriter is the write surface of the product store.
type ProductWriter interface {
	ExistenceChecker
	Upsert(ctx context.Context, p *models.Product) (repository.UpsertResult, error)
	UpdateCategory(ctx context.Context, externalID string, categoryID int64) error
}

// CatalogService searches the upstream catalog and curates products into the store.
type CatalogService struct {
	fetcher    CatalogFetcher
	products   ProductWriter
	reconciler *Reconciler
	cache      *cache.SearchCache
	rank       RankOptions
	readOnly   bool
}

// NewCatalogService constructs a CatalogService. fetcher may be nil when the
// upstream is not configured; search and short links then fail with
// ErrUpstreamNotEnabled while stored data stays usable.
func NewCatalogService(fetcher CatalogFetcher, products ProductWriter, searchCache *cache.SearchCache, readOnly bool) *CatalogService {
	return &CatalogService{
		fetcher:    fetcher,
		products:   products,
		reconciler: NewReconciler(products),
		cache:      searchCache,
		rank:       DefaultRankOptions(),
		readOnly:   readOnly,
	}
}

// CatalogSearchRequest are the inputs of a catalog search.
type CatalogSearchRequest struct {
	Keyword                string   `json:"keyword"`
	SortType               int      `json:"sortType"`
	Limit                  int      `json:"limit"`
	MinPrice               *float64 `json:"minPrice"`
	MaxPrice               *float64 `json:"maxPrice"`
	MinCommission          *float64 `json:"minCommission"`
	IncludeRecommendations bool     `json:"includeRecommendations"`
}

// CatalogSearchResult is the outcome of a catalog search.
type CatalogSearchResult struct {
	Products        []models.Product       `json:"products"`
	Recommendations []models.Product       `json:"recommendations"`
	HotProducts     []models.ScoredProduct `json:"hotProducts"`
	Cached          bool                   `json:"cached"`
}

// Search fetches products for a keyword, filters them, marks the ones already
// stored and ranks them.
func (s *CatalogService) Search(ctx context.Context, req CatalogSearchRequest) (*CatalogSearchResult, error) {
	keyword := strings.TrimSpace(req.Keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", utils.ErrValidation)
	}
	if s.fetcher == nil {
		return nil, utils.ErrUpstreamNotEnabled
	}
	sortType := req.SortType
	if sortType <= 0 {
		sortType = SortTypeRecent
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	limit = min(limit, maxCatalogLimit)

	raws, cached, err := s.fetchSearch(ctx, keyword, sortType, limit)
	if err != nil {
		return nil, err
	}

	products := filterProducts(NormalizeProducts(raws), req)
	products, err = s.reconciler.MarkExistence(ctx, products)
	if err != nil {
		return nil, err
	}

	result := &CatalogSearchResult{
		Products:        products,
		Recommendations: []models.Product{},
		HotProducts:     Rank(products, s.rank),
		Cached:          cached,
	}

	if req.IncludeRecommendations && len(products) > 0 {
		similar, err := s.fetcher.SimilarProducts(ctx, products[0].ExternalID)
		if err != nil {
			// recommendations are optional
			log.Warn().Err(err).Str("item_id", products[0].ExternalID).Msg("Failed to fetch recommendations")
		} else {
			result.Recommendations = NormalizeProducts(similar)
		}
	}
	return result, nil
}

func (s *CatalogService) fetchSearch(ctx context.Context, keyword string, sortType, limit int) ([]map[string]interface{}, bool, error) {
	raws, ok, err := s.cache.Get(ctx, keyword, sortType, limit)
	if err != nil {
		log.Warn().Err(err).Str("keyword", keyword).Msg("Search cache read failed")
	}
	if ok {
		return raws, true, nil
	}

	raws, err = s.fetcher.SearchProducts(ctx, keyword, sortType, limit)
	if err != nil {
		return nil, false, fmt.Errorf("%w: search %q: %w", utils.ErrUpstream, keyword, err)
	}
	if err := s.cache.Set(ctx, keyword, sortType, limit, raws); err != nil {
		log.Warn().Err(err).Str("keyword", keyword).Msg("Search cache write failed")
	}
	return raws, false, nil
}

func filterProducts(products []models.Product, req CatalogSearchRequest) []models.Product {
	if req.MinPrice == nil && req.MaxPrice == nil && req.MinCommission == nil {
		return products
	}
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if req.MinPrice != nil && p.Price < *req.MinPrice {
			continue
		}
		if req.MaxPrice != nil && p.Price > *req.MaxPrice {
			continue
		}
		if req.MinCommission != nil && p.CommissionRate < *req.MinCommission {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SaveResult reports the stored product.
type SaveResult struct {
	Product *models.Product `json:"product"`
	Created bool            `json:"created"`
}

// Save normalizes a raw catalog record, attaches optional affiliate data and
// upserts it. When sub ids are given without a short link, a tracked short
// link is requested from the upstream first.
func (s *CatalogService) Save(ctx context.Context, raw map[string]interface{}, affiliate *models.AffiliateData) (*SaveResult, error) {
	if s.readOnly {
		return nil, fmt.Errorf("%w: save product", utils.ErrReadOnly)
	}
	p := NormalizeProduct(raw)
	if err := ValidateForPersist(&p); err != nil {
		return nil, err
	}
	ApplyAffiliate(&p, affiliate)

	if affiliate != nil && len(affiliate.SubIDs) > 0 && p.ShortLink == nil {
		link, err := s.shortLink(ctx, &p, affiliate.SubIDs)
		if err != nil {
			return nil, err
		}
		p.ShortLink = &link
	}

	res, err := s.products.Upsert(ctx, &p)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("item_id", p.ExternalID).
		Bool("created", res.Created).
		Msg("Product saved")
	return &SaveResult{Product: &p, Created: res.Created}, nil
}

func (s *CatalogService) shortLink(ctx context.Context, p *models.Product, subIDs []string) (string, error) {
	if s.fetcher == nil {
		return "", utils.ErrUpstreamNotEnabled
	}
	origin := p.ProductLink
	if origin == "" {
		origin = p.OfferLink
	}
	if origin == "" {
		return "", fmt.Errorf("%w: product %s has no link to shorten", utils.ErrValidation, p.ExternalID)
	}
	link, err := s.fetcher.GenerateShortLink(ctx, origin, subIDs)
	if err != nil {
		return "", fmt.Errorf("%w: short link for %s: %w", utils.ErrUpstream, p.ExternalID, err)
	}
	return link, nil
}

// CategoryUpdateResult counts the outcome of a category batch.
type CategoryUpdateResult struct {
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Missing []string `json:"missing,omitempty"`
}

// UpdateCategories reassigns stored products to categories. Unknown products
// count as failed; any other store error aborts the batch.
func (s *CatalogService) UpdateCategories(ctx context.Context, updates []models.CategoryUpdate) (*CategoryUpdateResult, error) {
	if s.readOnly {
		return nil, fmt.Errorf("%w: update categories", utils.ErrReadOnly)
	}
	res := &CategoryUpdateResult{}
	for _, u := range updates {
		id := strings.TrimSpace(u.ExternalID)
		if id == "" {
			res.Failed++
			continue
		}
		err := s.products.UpdateCategory(ctx, id, u.CategoryID)
		switch {
		case err == nil:
			res.Updated++
		case errors.Is(err, utils.ErrProductNotFound):
			res.Failed++
			res.Missing = append(res.Missing, id)
		default:
			return res, err
		}
	}
	log.Info().Int("updated", res.Updated).Int("failed", res.Failed).Msg("Categories updated")
	return res, nil
}
