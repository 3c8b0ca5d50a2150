package domain

import (
	"context"
	"time"
)

// Product represents a software product listed in the catalog
type Product struct {
	ID              int64
	Title           string // Unique product title
	Slug            string // Unique URL-safe identifier
	Description     string
	MetaDescription string
	Price           string // Fixed-point price, two decimals, as stored (e.g. "149.90")
	PhotoPath       string // Opaque media store reference, empty if none
	PublishDate     *time.Time
	Published       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Company          *Company
	Tags             []Tag
	OperatingSystems []OperatingSystem
	Languages        []Language
}

// ProductKey is a single-use activation code tied to one product.
// Once Consumed flips to true it is never reset and never selected again.
type ProductKey struct {
	ID         int64
	ProductID  int64
	Code       string // UUID, immutable once generated
	Consumed   bool
	ConsumedAt *time.Time
}

// Tag is a named catalog label
type Tag struct {
	ID   int64
	Name string
}

// OperatingSystem is a named platform a product supports
type OperatingSystem struct {
	ID   int64
	Name string
}

// Company is a software publisher
type Company struct {
	ID   int64
	Name string
}

// Language is a localization a product ships with
type Language struct {
	ID   int64
	Name string
}

// TagCount pairs a tag name with the number of linked products
type TagCount struct {
	Name  string
	Count int64
}

// OperatingSystemCount pairs an OS name with the number of linked products
type OperatingSystemCount struct {
	Name  string
	Count int64
}

// ProductRepository defines read access to the catalog
type ProductRepository interface {
	List(ctx context.Context, tagID *int64) ([]*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	ListByCompany(ctx context.Context, companyID int64) ([]*Product, error)
	ListByTagName(ctx context.Context, tagName string) ([]*Product, error)
	Search(ctx context.Context, tokens []string) ([]*Product, error)
	TagCounts(ctx context.Context) ([]TagCount, error)
	OperatingSystemCounts(ctx context.Context) ([]OperatingSystemCount, error)
}

// KeyRepository defines activation-key inventory access.
// ConsumeOne must be atomic against concurrent redemptions: two callers
// racing for the last unused key get one success and one OutOfStock.
type KeyRepository interface {
	ConsumeOne(ctx context.Context, productID int64) (*ProductKey, error)
	CountUnused(ctx context.Context) (map[int64]int64, error)
	Provision(ctx context.Context, productID int64, codes []string) error
}

// CompanyRepository defines publisher access. Delete fails with an
// integrity error while any product references the company.
type CompanyRepository interface {
	GetByID(ctx context.Context, id int64) (*Company, error)
	Delete(ctx context.Context, id int64) error
}
