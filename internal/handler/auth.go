package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/softstore/internal/domain"
	"github.com/yourorg/softstore/internal/security/middleware"
	"github.com/yourorg/softstore/internal/service"
)

// AuthHandler handles registration and the token lifecycle
type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// RegisterRequest represents registration input
type RegisterRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

// RegisterResponse pairs the created user with its first token pair
type RegisterResponse struct {
	User   userResponse      `json:"user"`
	Tokens service.TokenPair `json:"tokens"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.Validation("invalid request body"))
		return
	}

	result, err := h.authService.Register(r.Context(), req.Email, req.FirstName, req.LastName, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		User:   toUserResponse(result.User),
		Tokens: result.Tokens,
	})
}

// TokenRequest represents login credentials
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Token handles POST /api/auth/token
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.Validation("invalid request body"))
		return
	}

	tokens, err := h.authService.TokenAuth(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// tokenPayload carries a single token through verify/refresh/revoke
type tokenPayload struct {
	Token string `json:"token"`
}

// VerifyResponse reports token validity and its claims
type VerifyResponse struct {
	Valid  bool   `json:"valid"`
	UserID int64  `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Verify handles POST /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req tokenPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, h.logger, domain.Validation("token is required"))
		return
	}

	claims, err := h.authService.VerifyToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, VerifyResponse{
		Valid:  true,
		UserID: claims.UserID,
		Email:  claims.Email,
	})
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req tokenPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, h.logger, domain.Validation("token is required"))
		return
	}

	tokens, err := h.authService.RefreshToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// Revoke handles POST /api/auth/revoke
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req tokenPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, h.logger, domain.Validation("token is required"))
		return
	}

	if err := h.authService.RevokeToken(r.Context(), req.Token); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

// Viewer handles GET /api/viewer: the authenticated user behind the token
func (h *AuthHandler) Viewer(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, h.logger, domain.PermissionDenied("authentication required"))
		return
	}

	user, err := h.authService.Viewer(r.Context(), claims)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateViewerRequest represents a partial profile edit; absent fields are
// left untouched
type UpdateViewerRequest struct {
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	BankcardNumber *string `json:"bankcardNumber"`
	Avatar         *string `json:"avatar"`
}

// UpdateViewer handles PUT /api/viewer
func (h *AuthHandler) UpdateViewer(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, h.logger, domain.PermissionDenied("authentication required"))
		return
	}

	var req UpdateViewerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.Validation("invalid request body"))
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), claims, service.ProfileUpdate{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		BankcardNumber: req.BankcardNumber,
		AvatarPath:     req.Avatar,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
