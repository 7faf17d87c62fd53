package services_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parksys/parking-service/internal/adapters/repository"
	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/services"
	"github.com/parksys/parking-service/test/mocks"
)

func newSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func seedUser(t *testing.T, repo *mocks.MockUserRepository, username, password string, role domain.Role, active bool) *domain.User {
	t.Helper()
	hashed, err := services.HashPassword(password)
	require.NoError(t, err)
	user := &domain.User{
		ID:       "user-" + username,
		Username: username,
		Email:    username + "@parksys.test",
		Role:     role,
		Password: hashed,
		Active:   active,
	}
	repo.SeedUser(user)
	return user
}

func TestAuthService_Login(t *testing.T) {
	key := newSigningKey(t)
	repo := mocks.NewMockUserRepository()
	seedUser(t, repo, "desk", "secret1", domain.RoleAttendant, true)
	seedUser(t, repo, "retired", "secret1", domain.RoleAttendant, false)

	svc := services.NewAuthService(repo, key, repository.NewMemoryTokenBlacklist(), time.Hour)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "valid credentials", username: "desk", password: "secret1"},
		{name: "unknown user", username: "ghost", password: "secret1", wantErr: domain.ErrInvalidCredentials},
		{name: "wrong password", username: "desk", password: "nope", wantErr: domain.ErrInvalidCredentials},
		{name: "inactive user", username: "retired", password: "secret1", wantErr: domain.ErrInactiveUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Login(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "bearer", res.TokenType)
			assert.Equal(t, tt.username, res.User.Username)

			token, err := jwt.Parse(res.AccessToken, func(*jwt.Token) (any, error) {
				return &key.PublicKey, nil
			}, jwt.WithValidMethods([]string{"RS256"}))
			require.NoError(t, err)

			claims := token.Claims.(jwt.MapClaims)
			assert.Equal(t, "user-desk", claims["sub"])
			assert.Equal(t, string(domain.RoleAttendant), claims["role"])
			assert.NotEmpty(t, claims["jti"])
		})
	}
}

func TestAuthService_LoginRepositoryFailure(t *testing.T) {
	repo := mocks.NewMockUserRepository()
	repo.FindByUsernameError = errors.New("db down")

	svc := services.NewAuthService(repo, newSigningKey(t), repository.NewMemoryTokenBlacklist(), 0)
	_, err := svc.Login(context.Background(), "desk", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_Logout(t *testing.T) {
	key := newSigningKey(t)
	repo := mocks.NewMockUserRepository()
	seedUser(t, repo, "desk", "secret1", domain.RoleAttendant, true)
	blacklist := repository.NewMemoryTokenBlacklist()
	svc := services.NewAuthService(repo, key, blacklist, time.Hour)
	ctx := context.Background()

	res, err := svc.Login(ctx, "desk", "secret1")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, res.AccessToken))

	token, _, err := jwt.NewParser().ParseUnverified(res.AccessToken, jwt.MapClaims{})
	require.NoError(t, err)
	jti := token.Claims.(jwt.MapClaims)["jti"].(string)

	revoked, err := blacklist.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)

	t.Run("garbage token", func(t *testing.T) {
		assert.ErrorIs(t, svc.Logout(ctx, "not-a-token"), domain.ErrInvalidCredentials)
	})

	t.Run("token signed by another key", func(t *testing.T) {
		other := services.NewAuthService(repo, newSigningKey(t), blacklist, time.Hour)
		foreign, err := other.Login(ctx, "desk", "secret1")
		require.NoError(t, err)
		assert.ErrorIs(t, svc.Logout(ctx, foreign.AccessToken), domain.ErrInvalidCredentials)
	})
}

func TestAuthService_Me(t *testing.T) {
	repo := mocks.NewMockUserRepository()
	user := seedUser(t, repo, "desk", "secret1", domain.RoleAdmin, true)
	svc := services.NewAuthService(repo, newSigningKey(t), repository.NewMemoryTokenBlacklist(), time.Hour)

	got, err := svc.Me(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "desk", got.Username)
	assert.True(t, got.IsAdmin())

	_, err = svc.Me(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
