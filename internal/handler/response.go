package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/softstore/internal/domain"
)

// ErrorBody is the structured failure every endpoint returns
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindOutOfStock, domain.KindIntegrity:
		return http.StatusConflict
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindPermissionDenied:
		return http.StatusUnauthorized
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error onto a status code and structured body.
// Internal details never reach the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := domain.KindOf(err)
	message := err.Error()

	if kind == domain.KindInternal {
		if logger != nil {
			logger.Error("request failed", slog.String("error", err.Error()))
		}
		message = "internal error"
	}

	writeJSON(w, statusFor(kind), ErrorBody{Error: ErrorDetail{
		Kind:    string(kind),
		Message: message,
	}})
}

// productResponse is the wire shape of a product
type productResponse struct {
	ID               int64            `json:"id"`
	Title            string           `json:"title"`
	Slug             string           `json:"slug"`
	Description      string           `json:"description"`
	MetaDescription  string           `json:"metaDescription"`
	Price            string           `json:"price"`
	Photo            string           `json:"photo,omitempty"`
	PublishDate      *time.Time       `json:"publishDate"`
	Published        bool             `json:"published"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	Company          *companyResponse `json:"company,omitempty"`
	Tags             []string         `json:"tags"`
	OperatingSystems []string         `json:"operatingSystems"`
	Languages        []string         `json:"languages"`
}

type companyResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func toProductResponse(p *domain.Product) productResponse {
	resp := productResponse{
		ID:               p.ID,
		Title:            p.Title,
		Slug:             p.Slug,
		Description:      p.Description,
		MetaDescription:  p.MetaDescription,
		Price:            p.Price,
		Photo:            p.PhotoPath,
		PublishDate:      p.PublishDate,
		Published:        p.Published,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		Tags:             make([]string, 0, len(p.Tags)),
		OperatingSystems: make([]string, 0, len(p.OperatingSystems)),
		Languages:        make([]string, 0, len(p.Languages)),
	}
	if p.Company != nil {
		resp.Company = &companyResponse{ID: p.Company.ID, Name: p.Company.Name}
	}
	for _, t := range p.Tags {
		resp.Tags = append(resp.Tags, t.Name)
	}
	for _, os := range p.OperatingSystems {
		resp.OperatingSystems = append(resp.OperatingSystems, os.Name)
	}
	for _, l := range p.Languages {
		resp.Languages = append(resp.Languages, l.Name)
	}
	return resp
}

func toProductList(products []*domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

// userResponse is the wire shape of a user; the password hash never leaves the server
type userResponse struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	FullName       string    `json:"fullName"`
	BankcardNumber string    `json:"bankcardNumber,omitempty"`
	Avatar         string    `json:"avatar,omitempty"`
	IsActive       bool      `json:"isActive"`
	IsStaff        bool      `json:"isStaff"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		FullName:       u.FullName(),
		BankcardNumber: u.BankcardNumber,
		Avatar:         u.AvatarPath,
		IsActive:       u.IsActive,
		IsStaff:        u.IsStaff,
		CreatedAt:      u.CreatedAt,
	}
}
