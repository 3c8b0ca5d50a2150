package domain

import (
	"context"
	"time"
)

// User represents a store account. Email is the login identifier.
type User struct {
	ID             int64
	Email          string // Unique, stored lower-cased
	FirstName      string
	LastName       string
	PasswordHash   string // Bcrypt hash, never returned by the API
	BankcardNumber string // Optional payment-card reference
	AvatarPath     string // Opaque media store reference, empty if none
	IsActive       bool
	IsStaff        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName returns first and last name separated by a space
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
}
