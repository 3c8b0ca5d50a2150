package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/softstore/internal/domain"
	"github.com/yourorg/softstore/internal/security/middleware"
	"github.com/yourorg/softstore/internal/service"
)

// OrderRequest represents a paid order ready for key redemption
type OrderRequest struct {
	Email      string  `json:"email"`
	ProductIDs []int64 `json:"ids"`
}

// OrderResponse represents the redemption confirmation
type OrderResponse struct {
	Confirmation string `json:"confirmation"`
	Notified     bool   `json:"notified"`
}

// OrderHandler handles order redemption requests
type OrderHandler struct {
	orders *service.OrderService
	logger *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *service.OrderService, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// Create handles POST /api/orders. Authentication is enforced by the
// middleware chain; the handler only re-checks that claims were resolved.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	if middleware.GetClaimsFromContext(r.Context()) == nil {
		writeError(w, h.logger, domain.PermissionDenied("authentication required"))
		return
	}

	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.Validation("invalid request body"))
		return
	}

	result, err := h.orders.RedeemOrder(r.Context(), req.Email, req.ProductIDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, OrderResponse{
		Confirmation: result.Confirmation,
		Notified:     result.Notified,
	})
}
