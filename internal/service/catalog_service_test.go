package service

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/softstore/internal/domain"
)

type memProductRepo struct {
	products []*domain.Product
	tags     []domain.Tag
	oses     []domain.OperatingSystem
}

func (m *memProductRepo) ordered(products []*domain.Product) []*domain.Product {
	out := append([]*domain.Product{}, products...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PublishDate, out[j].PublishDate
		switch {
		case a == nil && b == nil:
			return out[i].ID > out[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		default:
			return out[i].ID > out[j].ID
		}
	})
	return out
}

func (m *memProductRepo) List(_ context.Context, tagID *int64) ([]*domain.Product, error) {
	if tagID == nil {
		return m.ordered(m.products), nil
	}
	var out []*domain.Product
	for _, p := range m.products {
		for _, t := range p.Tags {
			if t.ID == *tagID {
				out = append(out, p)
				break
			}
		}
	}
	return m.ordered(out), nil
}

func (m *memProductRepo) GetBySlug(_ context.Context, slug string) (*domain.Product, error) {
	for _, p := range m.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, domain.NotFound("product %q not found", slug)
}

func (m *memProductRepo) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.NotFound("product %d not found", id)
}

func (m *memProductRepo) ListByCompany(_ context.Context, companyID int64) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range m.products {
		if p.Company != nil && p.Company.ID == companyID {
			out = append(out, p)
		}
	}
	return m.ordered(out), nil
}

func (m *memProductRepo) ListByTagName(_ context.Context, tagName string) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range m.products {
		for _, t := range p.Tags {
			if strings.EqualFold(t.Name, tagName) {
				out = append(out, p)
				break
			}
		}
	}
	return m.ordered(out), nil
}

func (m *memProductRepo) Search(_ context.Context, tokens []string) ([]*domain.Product, error) {
	if len(tokens) == 0 {
		return m.ordered(m.products), nil
	}
	var out []*domain.Product
	for _, p := range m.products {
		haystack := strings.ToLower(p.Title + " " + p.Description + " " + p.Price)
		for _, tok := range tokens {
			if strings.Contains(haystack, strings.ToLower(tok)) {
				out = append(out, p)
				break
			}
		}
	}
	return m.ordered(out), nil
}

func (m *memProductRepo) TagCounts(_ context.Context) ([]domain.TagCount, error) {
	out := make([]domain.TagCount, 0, len(m.tags))
	for _, t := range m.tags {
		var n int64
		for _, p := range m.products {
			for _, pt := range p.Tags {
				if pt.ID == t.ID {
					n++
				}
			}
		}
		out = append(out, domain.TagCount{Name: t.Name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memProductRepo) OperatingSystemCounts(_ context.Context) ([]domain.OperatingSystemCount, error) {
	out := make([]domain.OperatingSystemCount, 0, len(m.oses))
	for _, os := range m.oses {
		var n int64
		for _, p := range m.products {
			for _, pos := range p.OperatingSystems {
				if pos.ID == os.ID {
					n++
				}
			}
		}
		out = append(out, domain.OperatingSystemCount{Name: os.Name, Count: n})
	}
	return out, nil
}

type memCompanyRepo struct {
	companies map[int64]*domain.Company
}

func (m *memCompanyRepo) GetByID(_ context.Context, id int64) (*domain.Company, error) {
	if c, ok := m.companies[id]; ok {
		return c, nil
	}
	return nil, domain.NotFound("company %d not found", id)
}

func (m *memCompanyRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.companies[id]; !ok {
		return domain.NotFound("company %d not found", id)
	}
	delete(m.companies, id)
	return nil
}

func datePtr(t time.Time) *time.Time { return &t }

func seedCatalog() *memProductRepo {
	acme := &domain.Company{ID: 1, Name: "Acme Software"}
	design := domain.Tag{ID: 1, Name: "Design"}
	office := domain.Tag{ID: 2, Name: "Office"}

	return &memProductRepo{
		products: []*domain.Product{
			{
				ID: 1, Title: "PhotoForge", Slug: "photoforge",
				Description: "Raster image editor", Price: "49.99",
				PublishDate: datePtr(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
				Published:   true, Company: acme,
				Tags:             []domain.Tag{design},
				OperatingSystems: []domain.OperatingSystem{{ID: 1, Name: "Linux"}},
			},
			{
				ID: 2, Title: "VectorPress", Slug: "vectorpress",
				Description: "Vector drawing suite", Price: "89.00",
				PublishDate: datePtr(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
				Published:   true, Company: acme,
				Tags:             []domain.Tag{design},
				OperatingSystems: []domain.OperatingSystem{{ID: 2, Name: "Windows"}},
			},
			{
				ID: 3, Title: "DraftPad", Slug: "draftpad",
				Description: "Plain text notes", Price: "9.99",
				Published: true,
			},
		},
		tags: []domain.Tag{design, office},
		oses: []domain.OperatingSystem{{ID: 1, Name: "Linux"}, {ID: 2, Name: "Windows"}},
	}
}

func TestListAllProductsOrdering(t *testing.T) {
	repo := seedCatalog()
	s := NewCatalogService(repo, &memCompanyRepo{}, nil)

	products, err := s.ListAllProducts(context.Background(), nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(products))
	}

	// Newest publish date first, the undated product last.
	want := []string{"vectorpress", "photoforge", "draftpad"}
	for i, slug := range want {
		if products[i].Slug != slug {
			t.Fatalf("position %d: expected %s, got %s", i, slug, products[i].Slug)
		}
	}
}

func TestListAllProductsByTag(t *testing.T) {
	repo := seedCatalog()
	s := NewCatalogService(repo, &memCompanyRepo{}, nil)

	tagID := int64(1)
	products, err := s.ListAllProducts(context.Background(), &tagID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 tagged products, got %d", len(products))
	}
}

func TestGetProductBySlug(t *testing.T) {
	repo := seedCatalog()
	s := NewCatalogService(repo, &memCompanyRepo{}, nil)

	p, err := s.GetProductBySlug(context.Background(), "photoforge")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if p.Title != "PhotoForge" {
		t.Fatalf("expected PhotoForge, got %s", p.Title)
	}

	// Unknown slug
	if _, err := s.GetProductBySlug(context.Background(), "nope"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}

	// Empty slug
	if _, err := s.GetProductBySlug(context.Background(), "  "); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearchProducts(t *testing.T) {
	repo := seedCatalog()
	s := NewCatalogService(repo, &memCompanyRepo{}, nil)

	// Empty query returns the whole catalog.
	all, err := s.SearchProducts(context.Background(), "   ")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected full catalog for empty query, got %d", len(all))
	}

	// Case-insensitive substring over title and description.
	hits, err := s.SearchProducts(context.Background(), "VECTOR")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Slug != "vectorpress" {
		t.Fatalf("expected vectorpress, got %v", hits)
	}

	// Any token matching is enough.
	hits, err = s.SearchProducts(context.Background(), "raster nosuchword")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Slug != "photoforge" {
		t.Fatalf("expected photoforge, got %v", hits)
	}

	// Price text matches too.
	hits, err = s.SearchProducts(context.Background(), "9.99")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 price matches, got %d", len(hits))
	}
}

func TestListProductsByTagName(t *testing.T) {
	repo := seedCatalog()
	s := NewCatalogService(repo, &memCompanyRepo{}, nil)

	products, err := s.ListProductsByTag(context.Background(), "design")
	if err != nil {
		t.Fatalf("list by tag failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 design products, got %d", len(products))
	}

	if _, err := s.ListProductsByTag(context.Background(), ""); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTagCountsIncludeZero(t *testing.T) {
	repo := seedCatalog()
	s := NewCatalogService(repo, &memCompanyRepo{}, nil)

	counts, err := s.ListTagsWithProductCounts(context.Background())
	if err != nil {
		t.Fatalf("tag counts failed: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(counts))
	}
	if counts[0].Name != "Design" || counts[0].Count != 2 {
		t.Fatalf("expected Design=2, got %s=%d", counts[0].Name, counts[0].Count)
	}
	if counts[1].Name != "Office" || counts[1].Count != 0 {
		t.Fatalf("expected Office=0, got %s=%d", counts[1].Name, counts[1].Count)
	}
}

func TestTagCountsCached(t *testing.T) {
	repo := seedCatalog()
	s := NewCatalogService(repo, &memCompanyRepo{}, nil)

	if _, err := s.ListTagsWithProductCounts(context.Background()); err != nil {
		t.Fatalf("tag counts failed: %v", err)
	}

	// A new tag in the repo must not show up while the cache entry is live.
	repo.tags = append(repo.tags, domain.Tag{ID: 3, Name: "Audio"})
	counts, err := s.ListTagsWithProductCounts(context.Background())
	if err != nil {
		t.Fatalf("tag counts failed: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected cached 2 tags, got %d", len(counts))
	}
}

func TestOperatingSystemCounts(t *testing.T) {
	repo := seedCatalog()
	s := NewCatalogService(repo, &memCompanyRepo{}, nil)

	counts, err := s.ListOperatingSystemsWithProductCounts(context.Background())
	if err != nil {
		t.Fatalf("os counts failed: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected 2 operating systems, got %d", len(counts))
	}
	for _, c := range counts {
		if c.Count != 1 {
			t.Fatalf("expected count 1 for %s, got %d", c.Name, c.Count)
		}
	}
}

func TestGetCompanyByID(t *testing.T) {
	companies := &memCompanyRepo{companies: map[int64]*domain.Company{
		1: {ID: 1, Name: "Acme Software"},
	}}
	s := NewCatalogService(seedCatalog(), companies, nil)

	c, err := s.GetCompanyByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("company lookup failed: %v", err)
	}
	if c.Name != "Acme Software" {
		t.Fatalf("expected Acme Software, got %s", c.Name)
	}

	if _, err := s.GetCompanyByID(context.Background(), 99); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}
