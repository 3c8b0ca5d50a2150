package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/softstore/internal/domain"
)

// PostgresCompanyRepository implements domain.CompanyRepository using PostgreSQL
type PostgresCompanyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresCompanyRepository creates a new company repository
func NewPostgresCompanyRepository(db *sql.DB, logger *slog.Logger) *PostgresCompanyRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCompanyRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a company by id
func (r *PostgresCompanyRepository) GetByID(ctx context.Context, id int64) (*domain.Company, error) {
	company := &domain.Company{}

	query := `SELECT id, name FROM companies WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(&company.ID, &company.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("company %d not found", id)
		}
		r.logger.Error("failed to get company",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return company, nil
}

// Delete removes a company. The FK from products carries ON DELETE RESTRICT,
// so deleting a referenced company surfaces an integrity error instead of
// cascading.
func (r *PostgresCompanyRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Integrity("company %d is still referenced by products", id)
		}
		return fmt.Errorf("failed to delete company: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("company %d not found", id)
	}

	return nil
}
