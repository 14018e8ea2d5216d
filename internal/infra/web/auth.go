package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"examprep-marketplace/internal/infra/logging"
	"examprep-marketplace/internal/usecase"
)

// ===== Session/JWT primitives =====

// SessionClaims is the bearer session minted by the (out-of-scope) auth
// service. Subject carries the user id; name and email ride along as display
// metadata for the payment widget.
type SessionClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type SessionManager struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{secret: []byte(secret), ttl: ttl}
}

// Mint issues a signed session token. Used by tests and tooling; production
// tokens come from the auth service sharing the same secret.
func (m *SessionManager) Mint(userID, name, email string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Name:  name,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *SessionManager) parse(tok string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type identityCtxKey struct{}

// Middleware authenticates "Authorization: Bearer <jwt>" and stores the
// caller identity in the request context.
func (m *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := r.Header.Get("Authorization")
		if hdr == "" || !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		claims, err := m.parse(strings.TrimSpace(hdr[7:]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		ident := usecase.Identity{UserID: claims.Subject, Name: claims.Name, Email: claims.Email}
		ctx := logging.WithUserID(r.Context(), ident.UserID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, identityCtxKey{}, ident)))
	})
}

// identityFrom returns the authenticated caller, if any.
func identityFrom(ctx context.Context) (usecase.Identity, bool) {
	ident, ok := ctx.Value(identityCtxKey{}).(usecase.Identity)
	return ident, ok
}
