package test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourorg/softstore/internal/domain"
	"github.com/yourorg/softstore/internal/handler"
	"github.com/yourorg/softstore/internal/infrastructure/logger"
	"github.com/yourorg/softstore/internal/notification"
	"github.com/yourorg/softstore/internal/security/audit"
	"github.com/yourorg/softstore/internal/security/auth"
	"github.com/yourorg/softstore/internal/security/middleware"
	"github.com/yourorg/softstore/internal/security/ratelimit"
	"github.com/yourorg/softstore/internal/service"
)

// In-memory repositories so the full HTTP stack runs without Postgres.

type stubProductRepo struct {
	products []*domain.Product
	tags     []domain.Tag
	oses     []domain.OperatingSystem
}

func (s *stubProductRepo) ordered(products []*domain.Product) []*domain.Product {
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

func (s *stubProductRepo) List(_ context.Context, tagID *int64) ([]*domain.Product, error) {
	if tagID == nil {
		return s.ordered(s.products), nil
	}
	var out []*domain.Product
	for _, p := range s.products {
		for _, t := range p.Tags {
			if t.ID == *tagID {
				out = append(out, p)
				break
			}
		}
	}
	return s.ordered(out), nil
}

func (s *stubProductRepo) GetBySlug(_ context.Context, slug string) (*domain.Product, error) {
	for _, p := range s.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, domain.NotFound("product %q not found", slug)
}

func (s *stubProductRepo) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.NotFound("product %d not found", id)
}

func (s *stubProductRepo) ListByCompany(_ context.Context, companyID int64) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range s.products {
		if p.Company != nil && p.Company.ID == companyID {
			out = append(out, p)
		}
	}
	return s.ordered(out), nil
}

func (s *stubProductRepo) ListByTagName(_ context.Context, tagName string) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range s.products {
		for _, t := range p.Tags {
			if strings.EqualFold(t.Name, tagName) {
				out = append(out, p)
				break
			}
		}
	}
	return s.ordered(out), nil
}

func (s *stubProductRepo) Search(_ context.Context, tokens []string) ([]*domain.Product, error) {
	if len(tokens) == 0 {
		return s.ordered(s.products), nil
	}
	var out []*domain.Product
	for _, p := range s.products {
		haystack := strings.ToLower(p.Title + " " + p.Description + " " + p.Price)
		for _, tok := range tokens {
			if strings.Contains(haystack, strings.ToLower(tok)) {
				out = append(out, p)
				break
			}
		}
	}
	return s.ordered(out), nil
}

func (s *stubProductRepo) TagCounts(_ context.Context) ([]domain.TagCount, error) {
	out := make([]domain.TagCount, 0, len(s.tags))
	for _, t := range s.tags {
		var n int64
		for _, p := range s.products {
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

func (s *stubProductRepo) OperatingSystemCounts(_ context.Context) ([]domain.OperatingSystemCount, error) {
	out := make([]domain.OperatingSystemCount, 0, len(s.oses))
	for _, os := range s.oses {
		var n int64
		for _, p := range s.products {
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

type stubCompanyRepo struct {
	companies map[int64]*domain.Company
}

func (s *stubCompanyRepo) GetByID(_ context.Context, id int64) (*domain.Company, error) {
	if c, ok := s.companies[id]; ok {
		return c, nil
	}
	return nil, domain.NotFound("company %d not found", id)
}

func (s *stubCompanyRepo) Delete(_ context.Context, id int64) error {
	if _, ok := s.companies[id]; !ok {
		return domain.NotFound("company %d not found", id)
	}
	delete(s.companies, id)
	return nil
}

type stubKeyRepo struct {
	mu     sync.Mutex
	nextID int64
	keys   []*domain.ProductKey
}

func (s *stubKeyRepo) Provision(_ context.Context, productID int64, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, code := range codes {
		s.nextID++
		s.keys = append(s.keys, &domain.ProductKey{ID: s.nextID, ProductID: productID, Code: code})
	}
	return nil
}

func (s *stubKeyRepo) ConsumeOne(_ context.Context, productID int64) (*domain.ProductKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ProductID == productID && !k.Consumed {
			now := time.Now()
			k.Consumed = true
			k.ConsumedAt = &now
			return k, nil
		}
	}
	return nil, domain.OutOfStock("no unused keys for product %d", productID)
}

func (s *stubKeyRepo) CountUnused(_ context.Context) (map[int64]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[int64]int64{}
	for _, k := range s.keys {
		if !k.Consumed {
			out[k.ProductID]++
		}
	}
	return out, nil
}

type stubUserRepo struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*domain.User
	byEmail map[string]*domain.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byID: map[int64]*domain.User{}, byEmail: map[string]*domain.User{}}
}

func (s *stubUserRepo) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return domain.Validation("email %q already registered", u.Email)
	}
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u
	return nil
}

func (s *stubUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, domain.NotFound("user %d not found", id)
}

func (s *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byEmail[email]; ok && u.IsActive {
		return u, nil
	}
	return nil, domain.NotFound("user %q not found", email)
}

func (s *stubUserRepo) Update(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.UpdatedAt = time.Now()
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u
	return nil
}

type stubRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (s *stubRevocationStore) Revoke(_ context.Context, jti string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = true
	return nil
}

func (s *stubRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[jti], nil
}

type stubSender struct {
	mu   sync.Mutex
	sent []notification.Message
	fail error
}

func (s *stubSender) Send(_ context.Context, msg notification.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// TestServerHelper runs the full HTTP stack, real handlers and middleware
// over in-memory repositories
type TestServerHelper struct {
	Server *httptest.Server
	Logger *slog.Logger
	Keys   *stubKeyRepo
	Sender *stubSender
}

func NewTestServer(t *testing.T) *TestServerHelper {
	t.Helper()

	log := logger.NewLogger("error")

	acme := &domain.Company{ID: 1, Name: "Acme Software"}
	design := domain.Tag{ID: 1, Name: "Design"}
	office := domain.Tag{ID: 2, Name: "Office"}

	products := &stubProductRepo{
		products: []*domain.Product{
			{
				ID: 1, Title: "PhotoForge", Slug: "photoforge",
				Description: "Raster image editor", Price: "49.99",
				PublishDate: timePtr(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
				Published:   true, Company: acme,
				Tags:             []domain.Tag{design},
				OperatingSystems: []domain.OperatingSystem{{ID: 1, Name: "Linux"}},
			},
			{
				ID: 2, Title: "VectorPress", Slug: "vectorpress",
				Description: "Vector drawing suite", Price: "89.00",
				PublishDate: timePtr(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
				Published:   true, Company: acme,
				Tags:             []domain.Tag{design},
				OperatingSystems: []domain.OperatingSystem{{ID: 2, Name: "Windows"}},
			},
		},
		tags: []domain.Tag{design, office},
		oses: []domain.OperatingSystem{{ID: 1, Name: "Linux"}, {ID: 2, Name: "Windows"}},
	}
	companies := &stubCompanyRepo{companies: map[int64]*domain.Company{1: acme}}

	keys := &stubKeyRepo{}
	keys.Provision(context.Background(), 1, []string{"KEY-0001", "KEY-0002"})
	keys.Provision(context.Background(), 2, []string{"KEY-1001"})

	sender := &stubSender{}

	tokenManager := auth.NewTokenManager("integration-secret", "softstore-test", 15*time.Minute, 7*24*time.Hour)

	catalogService := service.NewCatalogService(products, companies, log)
	orderService := service.NewOrderService(products, keys, sender, log)
	authService := service.NewAuthService(newStubUserRepo(), tokenManager, &stubRevocationStore{revoked: map[string]bool{}}, log)

	catalogHandler := handler.NewCatalogHandler(catalogService, log)
	orderHandler := handler.NewOrderHandler(orderService, log)
	authHandler := handler.NewAuthHandler(authService, log)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", catalogHandler.ListProducts)
	mux.HandleFunc("GET /api/products/search", catalogHandler.SearchProducts)
	mux.HandleFunc("GET /api/products/{slug}", catalogHandler.GetProductBySlug)
	mux.HandleFunc("GET /api/companies/{id}", catalogHandler.GetCompany)
	mux.HandleFunc("GET /api/companies/{id}/products", catalogHandler.ListProductsByCompany)
	mux.HandleFunc("GET /api/tags/{name}/products", catalogHandler.ListProductsByTag)
	mux.HandleFunc("GET /api/tags/counts", catalogHandler.ListTagCounts)
	mux.HandleFunc("GET /api/operating-systems/counts", catalogHandler.ListOperatingSystemCounts)

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/token", authHandler.Token)
	mux.HandleFunc("POST /api/auth/verify", authHandler.Verify)
	mux.HandleFunc("POST /api/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/auth/revoke", authHandler.Revoke)
	mux.HandleFunc("GET /api/viewer", authHandler.Viewer)
	mux.HandleFunc("PUT /api/viewer", authHandler.UpdateViewer)

	mux.HandleFunc("POST /api/orders", orderHandler.Create)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	limiter := ratelimit.NewLimiter(1000, time.Minute)
	t.Cleanup(limiter.Stop)

	auditLogger := audit.NewLogger(log)

	var root http.Handler = mux
	root = middleware.ValidateJSONContentType(log)(root)
	root = middleware.AuditMiddleware(auditLogger)(root)
	root = middleware.RateLimitMiddleware(limiter, log)(root)
	root = middleware.JWTMiddleware(authService, auditLogger, log)(root)

	server := httptest.NewServer(root)

	return &TestServerHelper{
		Server: server,
		Logger: log,
		Keys:   keys,
		Sender: sender,
	}
}

func (h *TestServerHelper) Close() {
	h.Server.Close()
}

func (h *TestServerHelper) URL() string {
	return h.Server.URL
}

func timePtr(t time.Time) *time.Time { return &t }

// AssertStatusCode helper function
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}
