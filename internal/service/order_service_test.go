package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/softstore/internal/domain"
	"github.com/yourorg/softstore/internal/notification"
)

type memKeyRepo struct {
	mu     sync.Mutex
	nextID int64
	keys   []*domain.ProductKey
}

func newMemKeyRepo() *memKeyRepo { return &memKeyRepo{} }

func (m *memKeyRepo) Provision(_ context.Context, productID int64, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, code := range codes {
		for _, k := range m.keys {
			if k.Code == code {
				return domain.Validation("activation code %q already exists", code)
			}
		}
		m.nextID++
		m.keys = append(m.keys, &domain.ProductKey{ID: m.nextID, ProductID: productID, Code: code})
	}
	return nil
}

func (m *memKeyRepo) ConsumeOne(_ context.Context, productID int64) (*domain.ProductKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.ProductID == productID && !k.Consumed {
			now := time.Now()
			k.Consumed = true
			k.ConsumedAt = &now
			return k, nil
		}
	}
	return nil, domain.OutOfStock("no unused keys for product %d", productID)
}

func (m *memKeyRepo) CountUnused(_ context.Context) (map[int64]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]int64{}
	for _, k := range m.keys {
		if !k.Consumed {
			out[k.ProductID]++
		}
	}
	return out, nil
}

func (m *memKeyRepo) consumedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, k := range m.keys {
		if k.Consumed {
			n++
		}
	}
	return n
}

type memSender struct {
	mu   sync.Mutex
	sent []notification.Message
	fail error
}

func (m *memSender) Send(_ context.Context, msg notification.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestRedeemOrderConsumesKeysInOrder(t *testing.T) {
	products := seedCatalog()
	keys := newMemKeyRepo()
	keys.Provision(context.Background(), 1, []string{"K1", "K2"})
	sender := &memSender{}
	s := NewOrderService(products, keys, sender, nil)

	first, err := s.RedeemOrder(context.Background(), "Buyer@Example.com", []int64{1})
	if err != nil {
		t.Fatalf("first redemption failed: %v", err)
	}
	if len(first.Lines) != 1 || first.Lines[0] != "PhotoForge - K1" {
		t.Fatalf("expected PhotoForge - K1, got %v", first.Lines)
	}
	if !first.Notified {
		t.Fatalf("expected notified result")
	}

	second, err := s.RedeemOrder(context.Background(), "buyer@example.com", []int64{1})
	if err != nil {
		t.Fatalf("second redemption failed: %v", err)
	}
	if second.Lines[0] != "PhotoForge - K2" {
		t.Fatalf("expected PhotoForge - K2, got %v", second.Lines)
	}

	// Inventory exhausted
	if _, err := s.RedeemOrder(context.Background(), "buyer@example.com", []int64{1}); !domain.IsKind(err, domain.KindOutOfStock) {
		t.Fatalf("expected out_of_stock, got %v", err)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(sender.sent))
	}
	if sender.sent[0].To != "buyer@example.com" {
		t.Fatalf("expected lower-cased recipient, got %s", sender.sent[0].To)
	}
	if sender.sent[0].Subject != "Your software activation keys" {
		t.Fatalf("unexpected subject: %s", sender.sent[0].Subject)
	}
}

func TestRedeemOrderMultiProduct(t *testing.T) {
	products := seedCatalog()
	keys := newMemKeyRepo()
	keys.Provision(context.Background(), 1, []string{"A1"})
	keys.Provision(context.Background(), 2, []string{"B1"})
	sender := &memSender{}
	s := NewOrderService(products, keys, sender, nil)

	r, err := s.RedeemOrder(context.Background(), "buyer@example.com", []int64{2, 1})
	if err != nil {
		t.Fatalf("redemption failed: %v", err)
	}

	// Lines follow the supplied product order, one email for the whole order.
	if len(r.Lines) != 2 || r.Lines[0] != "VectorPress - B1" || r.Lines[1] != "PhotoForge - A1" {
		t.Fatalf("unexpected lines: %v", r.Lines)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected a single notification, got %d", len(sender.sent))
	}
	if body := sender.sent[0].Body; body != "VectorPress - B1\nPhotoForge - A1" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestRedeemOrderAbortsMidOrder(t *testing.T) {
	products := seedCatalog()
	keys := newMemKeyRepo()
	keys.Provision(context.Background(), 1, []string{"A1"})
	// Product 2 has no keys.
	sender := &memSender{}
	s := NewOrderService(products, keys, sender, nil)

	_, err := s.RedeemOrder(context.Background(), "buyer@example.com", []int64{1, 2})
	if !domain.IsKind(err, domain.KindOutOfStock) {
		t.Fatalf("expected out_of_stock, got %v", err)
	}

	// The key consumed before the failure stays consumed, and nothing is sent.
	if keys.consumedCount() != 1 {
		t.Fatalf("expected 1 consumed key after abort, got %d", keys.consumedCount())
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no notification after abort, got %d", len(sender.sent))
	}
}

func TestRedeemOrderUnknownProduct(t *testing.T) {
	products := seedCatalog()
	keys := newMemKeyRepo()
	s := NewOrderService(products, keys, &memSender{}, nil)

	_, err := s.RedeemOrder(context.Background(), "buyer@example.com", []int64{99})
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestRedeemOrderValidation(t *testing.T) {
	s := NewOrderService(seedCatalog(), newMemKeyRepo(), &memSender{}, nil)

	if _, err := s.RedeemOrder(context.Background(), "  ", []int64{1}); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error for empty email, got %v", err)
	}
	if _, err := s.RedeemOrder(context.Background(), "buyer@example.com", nil); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error for empty order, got %v", err)
	}
}

func TestRedeemOrderNotificationFailure(t *testing.T) {
	products := seedCatalog()
	keys := newMemKeyRepo()
	keys.Provision(context.Background(), 1, []string{"K1"})
	sender := &memSender{fail: errors.New("smtp unreachable")}
	s := NewOrderService(products, keys, sender, nil)

	r, err := s.RedeemOrder(context.Background(), "buyer@example.com", []int64{1})
	if err != nil {
		t.Fatalf("delivery failure must not fail the order: %v", err)
	}
	if r.Notified {
		t.Fatalf("expected Notified=false")
	}
	if !strings.Contains(r.Confirmation, "could not be delivered") {
		t.Fatalf("unexpected confirmation: %s", r.Confirmation)
	}

	// The key stays consumed.
	if keys.consumedCount() != 1 {
		t.Fatalf("expected key to stay consumed, got %d", keys.consumedCount())
	}
}

func TestRedeemOrderLastKeyRace(t *testing.T) {
	products := seedCatalog()
	keys := newMemKeyRepo()
	keys.Provision(context.Background(), 1, []string{"K1"})
	s := NewOrderService(products, keys, &memSender{}, nil)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RedeemOrder(context.Background(), "buyer@example.com", []int64{1})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, outOfStock int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case domain.IsKind(err, domain.KindOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || outOfStock != 1 {
		t.Fatalf("expected exactly one winner, got ok=%d out_of_stock=%d", ok, outOfStock)
	}
	if keys.consumedCount() != 1 {
		t.Fatalf("expected exactly 1 consumed key, got %d", keys.consumedCount())
	}
}
