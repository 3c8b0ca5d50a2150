package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/softstore/internal/domain"
)

// PostgresKeyRepository implements domain.KeyRepository using PostgreSQL
type PostgresKeyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresKeyRepository creates a new activation-key repository
func NewPostgresKeyRepository(db *sql.DB, logger *slog.Logger) *PostgresKeyRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresKeyRepository{
		db:     db,
		logger: logger,
	}
}

// ConsumeOne marks the lowest-id unused key of a product consumed and returns
// it. The candidate select takes a row lock with SKIP LOCKED and the update
// re-checks consumed=false, so two concurrent redemptions can never be handed
// the same key: the loser sees zero rows and gets OutOfStock.
func (r *PostgresKeyRepository) ConsumeOne(ctx context.Context, productID int64) (*domain.ProductKey, error) {
	query := `
		UPDATE product_keys
		SET consumed = true, consumed_at = now()
		WHERE id = (
			SELECT id
			FROM product_keys
			WHERE product_id = $1 AND consumed = false
			ORDER BY id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		AND consumed = false
		RETURNING id, product_id, code, consumed, consumed_at
	`

	key := &domain.ProductKey{}
	var consumedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, productID).Scan(
		&key.ID,
		&key.ProductID,
		&key.Code,
		&key.Consumed,
		&consumedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.OutOfStock("no unused key for product %d", productID)
		}
		r.logger.Error("failed to consume key",
			slog.Int64("product_id", productID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to consume key: %w", err)
	}

	if consumedAt.Valid {
		t := consumedAt.Time
		key.ConsumedAt = &t
	}

	return key, nil
}

// CountUnused returns the number of unused keys per product id
func (r *PostgresKeyRepository) CountUnused(ctx context.Context) (map[int64]int64, error) {
	query := `
		SELECT product_id, COUNT(*)
		FROM product_keys
		WHERE consumed = false
		GROUP BY product_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count unused keys: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var productID, count int64
		if err := rows.Scan(&productID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan key count: %w", err)
		}
		counts[productID] = count
	}

	return counts, rows.Err()
}

// Provision inserts pre-generated activation codes for a product in one
// transaction. Codes are immutable once stored.
func (r *PostgresKeyRepository) Provision(ctx context.Context, productID int64, codes []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin provision transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO product_keys (product_id, code, consumed)
		VALUES ($1, $2, false)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare key insert: %w", err)
	}
	defer stmt.Close()

	for _, code := range codes {
		if _, err := stmt.ExecContext(ctx, productID, code); err != nil {
			if isUniqueViolation(err) {
				return domain.Validation("activation code %q already exists", code)
			}
			if isForeignKeyViolation(err) {
				return domain.NotFound("product %d not found", productID)
			}
			return fmt.Errorf("failed to insert key: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit provision transaction: %w", err)
	}

	r.logger.Info("keys provisioned",
		slog.Int64("product_id", productID),
		slog.Int("count", len(codes)),
	)
	return nil
}
