package service

import (
	"context"
	"testing"
	"time"

	"github.com/yourorg/softstore/internal/domain"
	"github.com/yourorg/softstore/internal/security/auth"
)

type memUserRepo struct {
	nextID  int64
	byID    map[int64]*domain.User
	byEmail map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[int64]*domain.User{}, byEmail: map[string]*domain.User{}}
}

func (m *memUserRepo) Create(_ context.Context, u *domain.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return domain.Validation("email %q already registered", u.Email)
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, domain.NotFound("user %d not found", id)
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := m.byEmail[email]; ok && u.IsActive {
		return u, nil
	}
	return nil, domain.NotFound("user %q not found", email)
}

func (m *memUserRepo) Update(_ context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now()
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u
	return nil
}

type memRevocationStore struct {
	revoked map[string]bool
}

func newMemRevocationStore() *memRevocationStore {
	return &memRevocationStore{revoked: map[string]bool{}}
}

func (m *memRevocationStore) Revoke(_ context.Context, jti string, _ time.Duration) error {
	m.revoked[jti] = true
	return nil
}

func (m *memRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	return m.revoked[jti], nil
}

func newTestAuthService() (*AuthService, *memUserRepo) {
	repo := newMemUserRepo()
	tm := auth.NewTokenManager("test-secret", "softstore-test", 15*time.Minute, 7*24*time.Hour)
	return NewAuthService(repo, tm, newMemRevocationStore(), nil), repo
}

func TestRegisterAndTokenAuth(t *testing.T) {
	s, _ := newTestAuthService()

	// Register
	r, err := s.Register(context.Background(), "Alice@Example.com", "Alice", "Smith", "Password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if r.User.ID == 0 || r.Tokens.AccessToken == "" || r.Tokens.RefreshToken == "" {
		t.Fatalf("expected user id and token pair")
	}
	if r.User.Email != "alice@example.com" {
		t.Fatalf("expected lower-cased email, got %s", r.User.Email)
	}

	// Duplicate email
	if _, err := s.Register(context.Background(), "alice@example.com", "Alice", "Smith", "Password123"); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error for duplicate email, got %v", err)
	}

	// Login ok
	tokens, err := s.TokenAuth(context.Background(), "alice@example.com", "Password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if tokens.AccessToken == "" || tokens.TokenType != "Bearer" {
		t.Fatalf("expected bearer token pair, got %+v", tokens)
	}

	// Wrong password
	if _, err := s.TokenAuth(context.Background(), "alice@example.com", "wrong"); !domain.IsKind(err, domain.KindPermissionDenied) {
		t.Fatalf("expected permission_denied, got %v", err)
	}

	// Unknown email looks identical to a wrong password.
	if _, err := s.TokenAuth(context.Background(), "nobody@example.com", "Password123"); !domain.IsKind(err, domain.KindPermissionDenied) {
		t.Fatalf("expected permission_denied, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestAuthService()

	if _, err := s.Register(context.Background(), "  ", "A", "B", "Password123"); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error for empty email, got %v", err)
	}
	if _, err := s.Register(context.Background(), "a@example.com", "A", "B", "short"); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error for short password, got %v", err)
	}
}

func TestVerifyToken(t *testing.T) {
	s, _ := newTestAuthService()
	r, err := s.Register(context.Background(), "bob@example.com", "Bob", "Lee", "Password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	claims, err := s.VerifyToken(context.Background(), r.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.UserID != r.User.ID || claims.TokenType != auth.TypeAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := s.VerifyToken(context.Background(), "not-a-token"); !domain.IsKind(err, domain.KindPermissionDenied) {
		t.Fatalf("expected permission_denied for garbage token, got %v", err)
	}
}

func TestRefreshToken(t *testing.T) {
	s, _ := newTestAuthService()
	r, err := s.Register(context.Background(), "carol@example.com", "Carol", "King", "Password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	pair, err := s.RefreshToken(context.Background(), r.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatalf("expected a fresh access token")
	}

	// An access token cannot be used as a refresh token.
	if _, err := s.RefreshToken(context.Background(), r.Tokens.AccessToken); !domain.IsKind(err, domain.KindPermissionDenied) {
		t.Fatalf("expected permission_denied, got %v", err)
	}
}

func TestRevokeToken(t *testing.T) {
	s, _ := newTestAuthService()
	r, err := s.Register(context.Background(), "dan@example.com", "Dan", "Cho", "Password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := s.RevokeToken(context.Background(), r.Tokens.RefreshToken); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	// A revoked refresh token no longer verifies or refreshes.
	if _, err := s.VerifyToken(context.Background(), r.Tokens.RefreshToken); !domain.IsKind(err, domain.KindPermissionDenied) {
		t.Fatalf("expected permission_denied after revoke, got %v", err)
	}
	if _, err := s.RefreshToken(context.Background(), r.Tokens.RefreshToken); !domain.IsKind(err, domain.KindPermissionDenied) {
		t.Fatalf("expected permission_denied after revoke, got %v", err)
	}

	// The access token is unaffected; revocation is per token.
	if _, err := s.VerifyToken(context.Background(), r.Tokens.AccessToken); err != nil {
		t.Fatalf("access token should still verify: %v", err)
	}
}

func TestViewer(t *testing.T) {
	s, _ := newTestAuthService()
	r, err := s.Register(context.Background(), "eve@example.com", "Eve", "Stone", "Password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	claims, err := s.VerifyToken(context.Background(), r.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	u, err := s.Viewer(context.Background(), claims)
	if err != nil {
		t.Fatalf("viewer failed: %v", err)
	}
	if u.Email != "eve@example.com" || u.FullName() != "Eve Stone" {
		t.Fatalf("unexpected viewer: %+v", u)
	}

	if _, err := s.Viewer(context.Background(), nil); !domain.IsKind(err, domain.KindPermissionDenied) {
		t.Fatalf("expected permission_denied for nil claims, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	s, repo := newTestAuthService()
	r, err := s.Register(context.Background(), "fay@example.com", "Fay", "Wong", "Password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	claims, err := s.VerifyToken(context.Background(), r.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	first := "  Faye "
	card := "4111111111111111"
	u, err := s.UpdateProfile(context.Background(), claims, ProfileUpdate{FirstName: &first, BankcardNumber: &card})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if u.FirstName != "Faye" || u.BankcardNumber != card {
		t.Fatalf("unexpected profile: %+v", u)
	}

	// Untouched fields survive a partial update.
	if u.LastName != "Wong" || u.FullName() != "Faye Wong" {
		t.Fatalf("expected last name to survive, got %+v", u)
	}

	stored, err := repo.GetByID(context.Background(), r.User.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.FirstName != "Faye" {
		t.Fatalf("update was not persisted: %+v", stored)
	}

	if _, err := s.UpdateProfile(context.Background(), nil, ProfileUpdate{FirstName: &first}); !domain.IsKind(err, domain.KindPermissionDenied) {
		t.Fatalf("expected permission_denied for nil claims, got %v", err)
	}
}
