package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yourorg/softstore/internal/domain"
	"github.com/yourorg/softstore/internal/notification"
	"github.com/yourorg/softstore/internal/observability/metrics"
)

// orderSubject is the fixed subject line of the redemption notification
const orderSubject = "Your software activation keys"

// OrderService fulfills completed orders: it allocates one unused activation
// key per ordered product and notifies the purchaser by email.
type OrderService struct {
	products domain.ProductRepository
	keys     domain.KeyRepository
	sender   notification.Sender
	logger   *slog.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	products domain.ProductRepository,
	keys domain.KeyRepository,
	sender notification.Sender,
	logger *slog.Logger,
) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}

	return &OrderService{
		products: products,
		keys:     keys,
		sender:   sender,
		logger:   logger,
	}
}

// Redemption is the outcome of a successful RedeemOrder call
type Redemption struct {
	Lines        []string // "{title} - {code}" per ordered product
	Notified     bool     // false when key allocation succeeded but email delivery failed
	Confirmation string
}

// RedeemOrder allocates one unused key per product id, in the order supplied,
// then sends a single notification with the accumulated lines.
//
// There is no compensating rollback: a NotFound or OutOfStock on the Nth item
// aborts the remaining items and leaves keys consumed by earlier items
// consumed. Callers must treat a failed order as needing manual
// reconciliation. Notification failure likewise never reverts consumption.
func (s *OrderService) RedeemOrder(ctx context.Context, buyerEmail string, productIDs []int64) (*Redemption, error) {
	start := time.Now()

	buyerEmail = strings.ToLower(strings.TrimSpace(buyerEmail))
	if buyerEmail == "" {
		return nil, domain.Validation("buyer email is required")
	}
	if len(productIDs) == 0 {
		return nil, domain.Validation("at least one product id is required")
	}

	var lines []string
	for _, id := range productIDs {
		product, err := s.products.GetByID(ctx, id)
		if err != nil {
			metrics.ObserveRedemption("failed", time.Since(start))
			return nil, err
		}

		key, err := s.keys.ConsumeOne(ctx, id)
		if err != nil {
			if domain.IsKind(err, domain.KindOutOfStock) {
				metrics.ObserveOutOfStock()
				s.logger.Warn("product out of keys",
					slog.Int64("product_id", id),
					slog.String("title", product.Title),
					slog.Int("already_redeemed", len(lines)),
				)
			}
			metrics.ObserveRedemption("failed", time.Since(start))
			return nil, err
		}

		lines = append(lines, fmt.Sprintf("%s - %s", product.Title, key.Code))
	}

	metrics.AddKeysConsumed(len(lines))

	result := &Redemption{Lines: lines, Notified: true}

	err := s.sender.Send(ctx, notification.Message{
		To:      buyerEmail,
		Subject: orderSubject,
		Body:    strings.Join(lines, "\n"),
	})
	if err != nil {
		// Keys stay consumed; the failure is reported, not rolled back.
		metrics.ObserveNotification("failed")
		result.Notified = false
		result.Confirmation = fmt.Sprintf(
			"%d key(s) reserved for %s, but the notification could not be delivered",
			len(lines), buyerEmail,
		)
		metrics.ObserveRedemption("success", time.Since(start))
		return result, nil
	}

	metrics.ObserveNotification("sent")
	metrics.ObserveRedemption("success", time.Since(start))

	result.Confirmation = fmt.Sprintf("%d key(s) sent to %s", len(lines), buyerEmail)

	s.logger.Info("order redeemed",
		slog.String("buyer", buyerEmail),
		slog.Int("products", len(productIDs)),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}
