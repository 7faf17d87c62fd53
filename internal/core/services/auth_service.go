package services

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
)

const (
	DefaultTokenTTL = 24 * time.Hour
	tokenType       = "bearer"
)

// AuthService checks desk credentials and issues RS256 access tokens.
type AuthService struct {
	userRepo   ports.UserRepository
	privateKey *rsa.PrivateKey
	blacklist  ports.TokenBlacklist
	ttl        time.Duration
	now        func() time.Time
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(
	userRepo ports.UserRepository,
	privateKey *rsa.PrivateKey,
	blacklist ports.TokenBlacklist,
	ttl time.Duration,
) *AuthService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AuthService{
		userRepo:   userRepo,
		privateKey: privateKey,
		blacklist:  blacklist,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPasswordHash(password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, domain.ErrInactiveUser
	}

	now := s.now()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"role":     string(user.Role),
		"username": user.Username,
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      now.Add(s.ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &ports.LoginResult{
		AccessToken: token,
		TokenType:   tokenType,
		User:        *user,
	}, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return &s.privateKey.PublicKey, nil
	})
	if err != nil || !token.Valid {
		return domain.ErrInvalidCredentials
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.ErrInvalidCredentials
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return domain.ErrInvalidCredentials
	}

	ttl := s.ttl
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ttl = exp.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}
	return s.blacklist.Revoke(ctx, jti, ttl)
}

func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}
