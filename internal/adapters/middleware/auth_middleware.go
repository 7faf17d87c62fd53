package middleware

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
	"github.com/parksys/parking-service/internal/logging"
)

type AuthMiddleware struct {
	publicKey *rsa.PublicKey
	blacklist ports.TokenBlacklist
}

func NewAuthMiddleware(publicKey *rsa.PublicKey, blacklist ports.TokenBlacklist) *AuthMiddleware {
	return &AuthMiddleware{
		publicKey: publicKey,
		blacklist: blacklist,
	}
}

type contextKey string

const (
	UserIDKey   contextKey = "userID"
	UsernameKey contextKey = "username"
	RoleKey     contextKey = "role"
	TokenKey    contextKey = "token"
)

// RequireRole admits requests carrying a valid, unrevoked bearer token
// whose role is one of roles.
func (m *AuthMiddleware) RequireRole(roles []domain.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())

		tokenString, ok := bearerToken(r)
		if !ok {
			log.Debug().Msg("missing or malformed authorization header")
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.publicKey, nil
		})
		if err != nil || !token.Valid {
			log.Debug().Err(err).Msg("token rejected")
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}

		userID, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		if userID == "" || role == "" {
			log.Debug().Interface("sub", claims["sub"]).Interface("role", claims["role"]).Msg("incomplete token claims")
			writeError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}

		if jti, _ := claims["jti"].(string); jti != "" && m.blacklist != nil {
			revoked, err := m.blacklist.IsRevoked(r.Context(), jti)
			if err != nil {
				log.Error().Err(err).Msg("token blacklist unavailable")
				writeError(w, http.StatusServiceUnavailable, "authentication temporarily unavailable")
				return
			}
			if revoked {
				writeError(w, http.StatusUnauthorized, "token has been revoked")
				return
			}
		}

		if !slices.Contains(roles, domain.Role(role)) {
			log.Debug().Str("role", role).Msg("role not permitted")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}

		username, _ := claims["username"].(string)
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		ctx = context.WithValue(ctx, UsernameKey, username)
		ctx = context.WithValue(ctx, RoleKey, domain.Role(role))
		ctx = context.WithValue(ctx, TokenKey, tokenString)

		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func UserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

func Username(ctx context.Context) string {
	v, _ := ctx.Value(UsernameKey).(string)
	return v
}

func Role(ctx context.Context) domain.Role {
	v, _ := ctx.Value(RoleKey).(domain.Role)
	return v
}

// Token returns the raw bearer token of an authenticated request.
func Token(ctx context.Context) string {
	v, _ := ctx.Value(TokenKey).(string)
	return v
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}
