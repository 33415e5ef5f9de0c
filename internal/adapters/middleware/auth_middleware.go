package middleware

import (
	"context"
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type AuthMiddleware struct {
	publicKey *rsa.PublicKey
	log       zerolog.Logger
}

func NewAuthMiddleware(publicKey *rsa.PublicKey, log zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		publicKey: publicKey,
		log:       log,
	}
}

type contextKey string

const UserIDKey contextKey = "userID"

// UserIDFromContext returns the authenticated user, or "" outside RequireAuth.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

// WithUserID stores userID the way RequireAuth does.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// RequireAuth verifies an RS256 bearer token issued by the identity service
// and puts its subject in the request context.
func (m *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "invalid authorization header", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.publicKey, nil
		})
		if err != nil || !token.Valid {
			m.log.Debug().Err(err).Msg("token rejected")
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		userID, err := token.Claims.GetSubject()
		if err != nil || userID == "" {
			http.Error(w, "invalid token: missing user ID", http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(WithUserID(r.Context(), userID)))
	}
}
