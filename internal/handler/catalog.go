package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yourorg/softstore/internal/domain"
	"github.com/yourorg/softstore/internal/service"
)

// CatalogHandler serves the read-only catalog endpoints
type CatalogHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &CatalogHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// ListProducts handles GET /api/products with an optional ?tag=ID filter
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var tagID *int64
	if raw := r.URL.Query().Get("tag"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, h.logger, domain.Validation("tag must be a numeric id"))
			return
		}
		tagID = &id
	}

	products, err := h.catalog.ListAllProducts(r.Context(), tagID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductList(products))
}

// SearchProducts handles GET /api/products/search?q=...
func (h *CatalogHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductList(products))
}

// GetProductBySlug handles GET /api/products/{slug}
func (h *CatalogHandler) GetProductBySlug(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProductBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// GetCompany handles GET /api/companies/{id}
func (h *CatalogHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, h.logger, domain.Validation("company id must be numeric"))
		return
	}

	company, err := h.catalog.GetCompanyByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, companyResponse{ID: company.ID, Name: company.Name})
}

// ListProductsByCompany handles GET /api/companies/{id}/products
func (h *CatalogHandler) ListProductsByCompany(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, h.logger, domain.Validation("company id must be numeric"))
		return
	}

	products, err := h.catalog.ListProductsByCompany(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductList(products))
}

// ListProductsByTag handles GET /api/tags/{name}/products
func (h *CatalogHandler) ListProductsByTag(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProductsByTag(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductList(products))
}

type tagCountResponse struct {
	Name  string `json:"name"`
	Count int64  `json:"countProducts"`
}

// ListTagCounts handles GET /api/tags/counts
func (h *CatalogHandler) ListTagCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.catalog.ListTagsWithProductCounts(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]tagCountResponse, 0, len(counts))
	for _, c := range counts {
		out = append(out, tagCountResponse{Name: c.Name, Count: c.Count})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListOperatingSystemCounts handles GET /api/operating-systems/counts
func (h *CatalogHandler) ListOperatingSystemCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.catalog.ListOperatingSystemsWithProductCounts(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]tagCountResponse, 0, len(counts))
	for _, c := range counts {
		out = append(out, tagCountResponse{Name: c.Name, Count: c.Count})
	}
	writeJSON(w, http.StatusOK, out)
}
