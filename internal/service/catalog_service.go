package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/yourorg/softstore/internal/domain"
	"github.com/yourorg/softstore/internal/featureflags"
	"github.com/yourorg/softstore/internal/observability/metrics"
	"github.com/yourorg/softstore/pkg/cache"
)

// countsCacheTTL keeps aggregate listings hot without an invalidation channel;
// entries expire quickly enough that admin edits show up within a minute.
const countsCacheTTL = 30 * time.Second

// CatalogService answers read-only questions about the product catalog
type CatalogService struct {
	products  domain.ProductRepository
	companies domain.CompanyRepository
	logger    *slog.Logger

	// The reference behavior lists unpublished and future-dated products in
	// public queries. The published_only flag opts into filtering without
	// silently changing that behavior.
	publishedOnly bool

	tagCounts *cache.Cache[[]domain.TagCount]
	osCounts  *cache.Cache[[]domain.OperatingSystemCount]
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	products domain.ProductRepository,
	companies domain.CompanyRepository,
	logger *slog.Logger,
) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}

	return &CatalogService{
		products:      products,
		companies:     companies,
		logger:        logger,
		publishedOnly: featureflags.Enabled("published_only"),
		tagCounts:     cache.New[[]domain.TagCount](),
		osCounts:      cache.New[[]domain.OperatingSystemCount](),
	}
}

// ListAllProducts returns the catalog ordered by publish date descending
// (null publish dates last), optionally filtered to one tag
func (s *CatalogService) ListAllProducts(ctx context.Context, tagID *int64) ([]*domain.Product, error) {
	metrics.ObserveCatalogQuery("list_all")

	products, err := s.products.List(ctx, tagID)
	if err != nil {
		return nil, err
	}
	return s.visible(products), nil
}

// GetProductBySlug returns the single product with the given slug
func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	metrics.ObserveCatalogQuery("by_slug")

	if strings.TrimSpace(slug) == "" {
		return nil, domain.Validation("slug is required")
	}
	return s.products.GetBySlug(ctx, slug)
}

// GetCompanyByID returns a publisher company
func (s *CatalogService) GetCompanyByID(ctx context.Context, id int64) (*domain.Company, error) {
	metrics.ObserveCatalogQuery("company_by_id")

	return s.companies.GetByID(ctx, id)
}

// ListProductsByCompany returns products published by the given company
func (s *CatalogService) ListProductsByCompany(ctx context.Context, companyID int64) ([]*domain.Product, error) {
	metrics.ObserveCatalogQuery("by_company")

	products, err := s.products.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return s.visible(products), nil
}

// ListProductsByTag returns products linked to the named tag, matched
// case-insensitively
func (s *CatalogService) ListProductsByTag(ctx context.Context, tagName string) ([]*domain.Product, error) {
	metrics.ObserveCatalogQuery("by_tag")

	if strings.TrimSpace(tagName) == "" {
		return nil, domain.Validation("tag name is required")
	}

	products, err := s.products.ListByTagName(ctx, tagName)
	if err != nil {
		return nil, err
	}
	return s.visible(products), nil
}

// SearchProducts splits the query on whitespace and matches products where any
// token is a case-insensitive substring of the title, description, or textual
// price. An empty query returns the whole catalog.
func (s *CatalogService) SearchProducts(ctx context.Context, query string) ([]*domain.Product, error) {
	metrics.ObserveCatalogQuery("search")

	tokens := strings.Fields(query)

	products, err := s.products.Search(ctx, tokens)
	if err != nil {
		return nil, err
	}
	return s.visible(products), nil
}

// ListTagsWithProductCounts returns every tag with its linked-product count,
// ascending by tag name. Zero-product tags are included.
func (s *CatalogService) ListTagsWithProductCounts(ctx context.Context) ([]domain.TagCount, error) {
	metrics.ObserveCatalogQuery("tag_counts")

	if counts, ok := s.tagCounts.Get("all"); ok {
		return counts, nil
	}

	counts, err := s.products.TagCounts(ctx)
	if err != nil {
		return nil, err
	}

	s.tagCounts.Set("all", counts, countsCacheTTL)
	return counts, nil
}

// ListOperatingSystemsWithProductCounts returns every operating system with
// its linked-product count. Zero-product systems are included.
func (s *CatalogService) ListOperatingSystemsWithProductCounts(ctx context.Context) ([]domain.OperatingSystemCount, error) {
	metrics.ObserveCatalogQuery("os_counts")

	if counts, ok := s.osCounts.Get("all"); ok {
		return counts, nil
	}

	counts, err := s.products.OperatingSystemCounts(ctx)
	if err != nil {
		return nil, err
	}

	s.osCounts.Set("all", counts, countsCacheTTL)
	return counts, nil
}

// visible applies the published_only flag to a listing
func (s *CatalogService) visible(products []*domain.Product) []*domain.Product {
	if !s.publishedOnly {
		return products
	}

	now := time.Now()
	out := make([]*domain.Product, 0, len(products))
	for _, p := range products {
		if !p.Published {
			continue
		}
		if p.PublishDate != nil && p.PublishDate.After(now) {
			continue
		}
		out = append(out, p)
	}
	return out
}
