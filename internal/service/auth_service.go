package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/yourorg/softstore/internal/domain"
	"github.com/yourorg/softstore/internal/security/auth"
	"golang.org/x/crypto/bcrypt"
)

// RevocationStore tracks tokens revoked before expiry
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthService handles registration, credential checks, and the token lifecycle
type AuthService struct {
	users       domain.UserRepository
	tokens      *auth.TokenManager
	revocations RevocationStore
	logger      *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users domain.UserRepository,
	tokens *auth.TokenManager,
	revocations RevocationStore,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		logger:      logger,
	}
}

// TokenPair is an access/refresh token pair
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"` // seconds
	TokenType    string `json:"tokenType"`
}

// RegisterResult represents registration response
type RegisterResult struct {
	User   *domain.User
	Tokens TokenPair
}

// Register creates a new store account
func (s *AuthService) Register(ctx context.Context, email, firstName, lastName, password string) (*RegisterResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.Validation("email is required")
	}
	if len(password) < 8 {
		return nil, domain.Validation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, domain.Internal(err, "failed to register user")
	}

	user := &domain.User{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: string(hash),
		IsActive:     true,
	}

	// The unique index on email is the duplicate check; racing registrations
	// surface as a validation error from the repository.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &RegisterResult{User: user, Tokens: tokens}, nil
}

// TokenAuth authenticates credentials and issues a token pair
func (s *AuthService) TokenAuth(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.Validation("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Info("login attempt with unknown email", slog.String("email", email))
		return nil, domain.PermissionDenied("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed with wrong password", slog.String("email", email))
		return nil, domain.PermissionDenied("invalid credentials")
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &tokens, nil
}

// VerifyToken validates a token of either type, including its revocation state
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, domain.PermissionDenied("invalid token")
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, domain.Internal(err, "failed to check token revocation")
	}
	if revoked {
		return nil, domain.PermissionDenied("token revoked")
	}

	return claims, nil
}

// RefreshToken exchanges a valid refresh token for a new access token
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.VerifyToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != auth.TypeRefresh {
		return nil, domain.PermissionDenied("not a refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, domain.PermissionDenied("invalid credentials")
	}

	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, domain.Internal(err, "failed to generate token")
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// RevokeToken denylists a token for the remainder of its lifetime
func (s *AuthService) RevokeToken(ctx context.Context, tokenString string) error {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return domain.PermissionDenied("invalid token")
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	return s.revocations.Revoke(ctx, claims.ID, ttl)
}

// Viewer resolves already-verified claims to the owning user
func (s *AuthService) Viewer(ctx context.Context, claims *auth.Claims) (*domain.User, error) {
	if claims == nil {
		return nil, domain.PermissionDenied("authentication required")
	}
	return s.users.GetByID(ctx, claims.UserID)
}

// ProfileUpdate carries the account fields a user may edit. Nil means the
// field keeps its stored value.
type ProfileUpdate struct {
	FirstName      *string
	LastName       *string
	BankcardNumber *string
	AvatarPath     *string
}

// UpdateProfile applies a partial update to the authenticated user's account
func (s *AuthService) UpdateProfile(ctx context.Context, claims *auth.Claims, upd ProfileUpdate) (*domain.User, error) {
	if claims == nil {
		return nil, domain.PermissionDenied("authentication required")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	if upd.FirstName != nil {
		user.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		user.LastName = strings.TrimSpace(*upd.LastName)
	}
	if upd.BankcardNumber != nil {
		user.BankcardNumber = strings.TrimSpace(*upd.BankcardNumber)
	}
	if upd.AvatarPath != nil {
		user.AvatarPath = strings.TrimSpace(*upd.AvatarPath)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated",
		slog.Int64("user_id", user.ID),
		slog.String("name", user.FullName()),
	)

	return user, nil
}

func (s *AuthService) issueTokens(user *domain.User) (TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to sign access token", slog.String("error", err.Error()))
		return TokenPair{}, domain.Internal(err, "failed to generate token")
	}

	refresh, err := s.tokens.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to sign refresh token", slog.String("error", err.Error()))
		return TokenPair{}, domain.Internal(err, "failed to generate token")
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
		TokenType:    "Bearer",
	}, nil
}
