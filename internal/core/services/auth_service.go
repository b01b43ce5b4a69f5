package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/config"
	"loanbook/internal/core/domain"
	"loanbook/internal/pkg/jwt"
	"loanbook/internal/pkg/password"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthService handles authentication and resolves the current actor
type AuthService struct {
	store repositories.Store
	cfg   *config.Config
}

// NewAuthService creates a new auth service
func NewAuthService(store repositories.Store, cfg *config.Config) *AuthService {
	return &AuthService{store: store, cfg: cfg}
}

// LoginInput represents login input
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User         *models.UserResponse `json:"user"`
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
	ExpiresAt    time.Time            `json:"expires_at"`
}

func invalidCredentials() error {
	return &domain.Error{
		Kind:    domain.KindAuthentication,
		Message: "invalid email or password",
		Err:     domain.ErrInvalidCredentials,
	}
}

// Login authenticates a user
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, domain.NewValidationError("email", "email and password are required")
	}

	// 1. Find user by email
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCredentials()
		}
		return nil, storageError(err, "user")
	}

	// 2. Verify password
	if !password.Verify(input.Password, user.Password) {
		return nil, invalidCredentials()
	}

	// 3. Check if user is active
	if !user.IsActive {
		return nil, &domain.Error{Kind: domain.KindAuthentication, Message: "user account is inactive", Err: domain.ErrUserInactive}
	}

	// 4. Upgrade hashes made with another cost
	if password.NeedsRehash(user.Password) {
		if hashed, err := password.Hash(input.Password); err == nil {
			user.Password = hashed
			if err := s.store.Users().Update(ctx, user); err != nil {
				log.Printf("⚠️ Failed to rehash password of user #%d: %v", user.ID, err)
			}
		}
	}

	resp, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ User logged in: %s", user.Email)
	return resp, nil
}

// RefreshToken rotates a refresh token
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	// 1. Validate refresh token JWT
	claims, err := jwt.ValidateRefreshToken(refreshToken, s.cfg.JWT.RefreshSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &domain.Error{Kind: domain.KindAuthentication, Message: "refresh token expired", Err: domain.ErrTokenExpired}
		}
		return nil, &domain.Error{Kind: domain.KindAuthentication, Message: "invalid refresh token", Err: domain.ErrTokenInvalid}
	}

	// 2. Find the live token by hash
	tokenHash := password.HashToken(refreshToken)
	storedToken, err := s.store.RefreshTokens().GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.Error{Kind: domain.KindAuthentication, Message: "refresh token revoked", Err: domain.ErrTokenInvalid}
		}
		return nil, storageError(err, "refresh token")
	}
	if storedToken.IsRevoked() || storedToken.IsExpiredAt(time.Now()) || storedToken.UserID != claims.UserID {
		return nil, &domain.Error{Kind: domain.KindAuthentication, Message: "invalid refresh token", Err: domain.ErrTokenInvalid}
	}

	// 3. Get user
	user, err := s.store.Users().GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewAuthenticationError("user no longer exists")
		}
		return nil, storageError(err, "user")
	}
	if !user.IsActive {
		return nil, &domain.Error{Kind: domain.KindAuthentication, Message: "user account is inactive", Err: domain.ErrUserInactive}
	}

	// 4. Revoke old refresh token (Token Rotation)
	if err := s.store.RefreshTokens().RevokeByTokenHash(ctx, tokenHash, time.Now()); err != nil {
		return nil, storageError(err, "refresh token")
	}

	resp, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Token refreshed for user: %s", user.Email)
	return resp, nil
}

// Logout revokes the refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	tokenHash := password.HashToken(refreshToken)
	if err := s.store.RefreshTokens().RevokeByTokenHash(ctx, tokenHash, time.Now()); err != nil {
		return storageError(err, "refresh token")
	}

	log.Printf("✅ User logged out")
	return nil
}

// LogoutAll revokes all refresh tokens for a user
func (s *AuthService) LogoutAll(ctx context.Context, userID uint) error {
	if err := s.store.RefreshTokens().RevokeAllByUserID(ctx, userID, time.Now()); err != nil {
		return storageError(err, "refresh token")
	}

	log.Printf("✅ All sessions revoked for user ID: %d", userID)
	return nil
}

// ResolveActor validates an access token and loads the actor behind it. The
// actor is rebuilt from storage on every call, so role, grant and status
// changes apply to the next request.
func (s *AuthService) ResolveActor(ctx context.Context, accessToken string) (*domain.Actor, error) {
	claims, err := jwt.ValidateAccessToken(accessToken, s.cfg.JWT.Secret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &domain.Error{Kind: domain.KindAuthentication, Message: "token expired", Err: domain.ErrTokenExpired}
		}
		return nil, &domain.Error{Kind: domain.KindAuthentication, Message: "invalid token", Err: domain.ErrTokenInvalid}
	}

	user, err := s.store.Users().GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewAuthenticationError("user no longer exists")
		}
		return nil, storageError(err, "user")
	}
	if !user.IsActive {
		return nil, &domain.Error{Kind: domain.KindAuthentication, Message: "user account is inactive", Err: domain.ErrUserInactive}
	}

	return user.ToActor(), nil
}

// PurgeExpiredTokens deletes refresh tokens past their expiry
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) error {
	return s.store.RefreshTokens().DeleteExpired(ctx, time.Now())
}

// issue generates and stores a new token pair
func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResponse, error) {
	tokens, err := s.generateTokens(user)
	if err != nil {
		return nil, err
	}
	if err := s.storeRefreshToken(ctx, user.ID, tokens.RefreshToken); err != nil {
		return nil, storageError(err, "refresh token")
	}
	return &AuthResponse{
		User:         user.ToResponse(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	}, nil
}

// generateTokens generates access and refresh tokens
func (s *AuthService) generateTokens(user *models.User) (*domain.TokenPair, error) {
	// Generate access token
	accessToken, err := jwt.GenerateAccessToken(
		user.ID,
		user.Email,
		user.Role,
		s.cfg.JWT.Secret,
		s.cfg.JWT.AccessTokenMins,
	)
	if err != nil {
		return nil, err
	}

	// Generate unique token ID
	tokenID := uuid.New().String()

	// Generate refresh token
	refreshToken, err := jwt.GenerateRefreshToken(
		user.ID,
		tokenID,
		s.cfg.JWT.RefreshSecret,
		s.cfg.JWT.RefreshTokenDays,
	)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(s.cfg.JWT.AccessTokenMins) * time.Minute),
	}, nil
}

// storeRefreshToken stores a refresh token in the database
func (s *AuthService) storeRefreshToken(ctx context.Context, userID uint, refreshToken string) error {
	token := &models.RefreshToken{
		UserID:    userID,
		TokenHash: password.HashToken(refreshToken),
		ExpiresAt: jwt.GetExpiryTime(s.cfg.JWT.RefreshTokenDays),
	}
	return s.store.RefreshTokens().Create(ctx, token)
}
