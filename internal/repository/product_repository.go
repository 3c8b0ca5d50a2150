package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"
	"github.com/yourorg/softstore/internal/domain"
)

// PostgresProductRepository implements domain.ProductRepository using PostgreSQL
type PostgresProductRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresProductRepository creates a new product repository
func NewPostgresProductRepository(db *sql.DB, logger *slog.Logger) *PostgresProductRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresProductRepository{
		db:     db,
		logger: logger,
	}
}

// productColumns is the shared select list; the company is joined eagerly so
// listings never go back per item.
const productColumns = `
	p.id, p.title, p.slug, p.description, p.meta_description, p.price::text,
	COALESCE(p.photo, ''), p.publish_date, p.published, p.created_at, p.updated_at,
	c.id, c.name
`

const productFrom = `
	FROM products p
	LEFT JOIN companies c ON c.id = p.company_id
`

// Null publish dates sort last; id breaks ties so ordering is stable.
const productOrder = ` ORDER BY p.publish_date DESC NULLS LAST, p.id DESC`

// List returns all products, optionally restricted to one tag
func (r *PostgresProductRepository) List(ctx context.Context, tagID *int64) ([]*domain.Product, error) {
	query := `SELECT` + productColumns + productFrom
	var args []any
	if tagID != nil {
		query += ` JOIN product_tags pt ON pt.product_id = p.id AND pt.tag_id = $1`
		args = append(args, *tagID)
	}
	query += productOrder

	return r.queryProducts(ctx, query, args...)
}

// GetBySlug retrieves a single product by its unique slug
func (r *PostgresProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := `SELECT` + productColumns + productFrom + ` WHERE p.slug = $1`

	products, err := r.queryProducts(ctx, query, slug)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, domain.NotFound("product with slug %q not found", slug)
	}
	return products[0], nil
}

// GetByID retrieves a single product by id
func (r *PostgresProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT` + productColumns + productFrom + ` WHERE p.id = $1`

	products, err := r.queryProducts(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, domain.NotFound("product %d not found", id)
	}
	return products[0], nil
}

// ListByCompany returns products published by the given company
func (r *PostgresProductRepository) ListByCompany(ctx context.Context, companyID int64) ([]*domain.Product, error) {
	query := `SELECT` + productColumns + productFrom + ` WHERE p.company_id = $1` + productOrder

	return r.queryProducts(ctx, query, companyID)
}

// ListByTagName returns products linked to a tag, matched case-insensitively
func (r *PostgresProductRepository) ListByTagName(ctx context.Context, tagName string) ([]*domain.Product, error) {
	query := `SELECT` + productColumns + productFrom + `
		JOIN product_tags pt ON pt.product_id = p.id
		JOIN tags t ON t.id = pt.tag_id AND LOWER(t.name) = LOWER($1)` + productOrder

	return r.queryProducts(ctx, query, tagName)
}

// Search matches any token as a case-insensitive substring of the title,
// description, or textual price. Tokens are OR-combined; no tokens means the
// full catalog.
func (r *PostgresProductRepository) Search(ctx context.Context, tokens []string) ([]*domain.Product, error) {
	if len(tokens) == 0 {
		return r.List(ctx, nil)
	}

	var clauses []string
	var args []any
	for i, token := range tokens {
		n := i + 1
		clauses = append(clauses, fmt.Sprintf(
			"(p.title ILIKE $%d OR p.description ILIKE $%d OR p.price::text ILIKE $%d)", n, n, n))
		args = append(args, "%"+escapeLike(token)+"%")
	}

	query := `SELECT` + productColumns + productFrom +
		` WHERE ` + strings.Join(clauses, " OR ") + productOrder

	return r.queryProducts(ctx, query, args...)
}

// TagCounts returns every tag with its linked-product count, ascending by name
func (r *PostgresProductRepository) TagCounts(ctx context.Context) ([]domain.TagCount, error) {
	query := `
		SELECT t.name, COUNT(pt.product_id)
		FROM tags t
		LEFT JOIN product_tags pt ON pt.tag_id = t.id
		GROUP BY t.id, t.name
		ORDER BY t.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to count products per tag", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to count products per tag: %w", err)
	}
	defer rows.Close()

	var counts []domain.TagCount
	for rows.Next() {
		var tc domain.TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tag count: %w", err)
		}
		counts = append(counts, tc)
	}

	return counts, rows.Err()
}

// OperatingSystemCounts returns every operating system with its linked-product count
func (r *PostgresProductRepository) OperatingSystemCounts(ctx context.Context) ([]domain.OperatingSystemCount, error) {
	query := `
		SELECT os.name, COUNT(pos.product_id)
		FROM operating_systems os
		LEFT JOIN product_operating_systems pos ON pos.operating_system_id = os.id
		GROUP BY os.id, os.name
		ORDER BY os.id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to count products per operating system", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to count products per operating system: %w", err)
	}
	defer rows.Close()

	var counts []domain.OperatingSystemCount
	for rows.Next() {
		var oc domain.OperatingSystemCount
		if err := rows.Scan(&oc.Name, &oc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan operating system count: %w", err)
		}
		counts = append(counts, oc)
	}

	return counts, rows.Err()
}

// queryProducts runs a product select and eagerly resolves tags, operating
// systems, and languages for the whole result set in three batched queries.
func (r *PostgresProductRepository) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query products", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	byID := make(map[int64]*domain.Product)

	for rows.Next() {
		p := &domain.Product{}
		var photo string
		var publishDate sql.NullTime
		var companyID sql.NullInt64
		var companyName sql.NullString

		err := rows.Scan(
			&p.ID,
			&p.Title,
			&p.Slug,
			&p.Description,
			&p.MetaDescription,
			&p.Price,
			&photo,
			&publishDate,
			&p.Published,
			&p.CreatedAt,
			&p.UpdatedAt,
			&companyID,
			&companyName,
		)
		if err != nil {
			r.logger.Error("failed to scan product row", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		p.PhotoPath = photo
		if publishDate.Valid {
			t := publishDate.Time
			p.PublishDate = &t
		}
		if companyID.Valid {
			p.Company = &domain.Company{ID: companyID.Int64, Name: companyName.String}
		}

		products = append(products, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	if len(products) == 0 {
		return products, nil
	}

	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}

	if err := r.attachTags(ctx, byID, ids); err != nil {
		return nil, err
	}
	if err := r.attachOperatingSystems(ctx, byID, ids); err != nil {
		return nil, err
	}
	if err := r.attachLanguages(ctx, byID, ids); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *PostgresProductRepository) attachTags(ctx context.Context, byID map[int64]*domain.Product, ids []int64) error {
	query := `
		SELECT pt.product_id, t.id, t.name
		FROM product_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.product_id = ANY($1)
		ORDER BY t.name
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load product tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var tag domain.Tag
		if err := rows.Scan(&productID, &tag.ID, &tag.Name); err != nil {
			return fmt.Errorf("failed to scan product tag: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Tags = append(p.Tags, tag)
		}
	}

	return rows.Err()
}

func (r *PostgresProductRepository) attachOperatingSystems(ctx context.Context, byID map[int64]*domain.Product, ids []int64) error {
	query := `
		SELECT pos.product_id, os.id, os.name
		FROM product_operating_systems pos
		JOIN operating_systems os ON os.id = pos.operating_system_id
		WHERE pos.product_id = ANY($1)
		ORDER BY os.name
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load product operating systems: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var os domain.OperatingSystem
		if err := rows.Scan(&productID, &os.ID, &os.Name); err != nil {
			return fmt.Errorf("failed to scan product operating system: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.OperatingSystems = append(p.OperatingSystems, os)
		}
	}

	return rows.Err()
}

func (r *PostgresProductRepository) attachLanguages(ctx context.Context, byID map[int64]*domain.Product, ids []int64) error {
	query := `
		SELECT pl.product_id, l.id, l.name
		FROM product_languages pl
		JOIN languages l ON l.id = pl.language_id
		WHERE pl.product_id = ANY($1)
		ORDER BY l.name
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load product languages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var lang domain.Language
		if err := rows.Scan(&productID, &lang.ID, &lang.Name); err != nil {
			return fmt.Errorf("failed to scan product language: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Languages = append(p.Languages, lang)
		}
	}

	return rows.Err()
}

// escapeLike neutralizes LIKE wildcards so tokens match literally
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
