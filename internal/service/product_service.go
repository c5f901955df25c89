package service

import (
	"context"
	"math"
	"strings"

	"github.com/sentinnell/analytics_api/internal/models"
	"github.com/sentinnell/analytics_api/internal/repository"
)

// Sort types accepted by the product search API.
const (
	SortTypePrice  = 1
	SortTypeRecent = 2
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
	maxListAll         = 1000
	// keeps (page-1)*limit inside int
	maxSearchPage = math.MaxInt / (maxSearchLimit + 1)
)

// ProductQuerier is the read surface of the product store.
type ProductQuerier interface {
	Query(ctx context.Context, filter repository.ProductFilter, sort repository.SortKey) ([]models.Product, error)
	Count(ctx context.Context) (int, error)
}

// ProductService serves stored products to API callers.
type ProductService struct {
	products ProductQuerier
}

// NewProductService constructs a ProductService.
func NewProductService(products ProductQuerier) *ProductService {
	return &ProductService{products: products}
}

// SearchParams are the caller-facing search inputs. Zero values take defaults.
type SearchParams struct {
	Keyword    string
	SortType   int
	Limit      int
	Page       int
	CategoryID int64
}

// SearchResult is one page of stored products.
type SearchResult struct {
	Products    []models.Product `json:"products"`
	Page        int              `json:"page"`
	Limit       int              `json:"limit"`
	HasNextPage bool             `json:"hasNextPage"`
}

// SortKeyFor maps an API sort type onto a store ordering. Anything other
// than SortTypePrice sorts newest first.
func SortKeyFor(sortType int) repository.SortKey {
	if sortType == SortTypePrice {
		return repository.SortPriceAsc
	}
	return repository.SortCreatedDesc
}

// Search returns a page of stored products matching the keyword.
func (s *ProductService) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)
	page := min(max(p.Page, 1), maxSearchPage)

	// one extra row tells whether another page exists
	products, err := s.products.Query(ctx, repository.ProductFilter{
		Name:       strings.TrimSpace(p.Keyword),
		CategoryID: p.CategoryID,
		Limit:      limit + 1,
		Offset:     (page - 1) * limit,
	}, SortKeyFor(p.SortType))
	if err != nil {
		return nil, err
	}

	hasNext := len(products) > limit
	if hasNext {
		products = products[:limit]
	}
	return &SearchResult{Products: products, Page: page, Limit: limit, HasNextPage: hasNext}, nil
}

// ListAll returns stored products newest first, capped at maxListAll.
func (s *ProductService) ListAll(ctx context.Context) ([]models.Product, error) {
	return s.products.Query(ctx, repository.ProductFilter{Limit: maxListAll}, repository.SortCreatedDesc)
}

// Count returns the number of stored products.
func (s *ProductService) Count(ctx context.Context) (int, error) {
	return s.products.Count(ctx)
}
