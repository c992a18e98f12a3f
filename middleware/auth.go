package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"study-notes/auth"
	"study-notes/models"
)

type contextKey string

const (
	userKey   contextKey = "user"
	claimsKey contextKey = "claims"
)

// UserLoader is the slice of db.Store the session resolver needs.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// SessionResolver turns the auth-token cookie into the live user record.
type SessionResolver struct {
	tokens  *auth.Tokens
	revoker auth.Revoker
	users   UserLoader
}

func NewSessionResolver(tokens *auth.Tokens, revoker auth.Revoker, users UserLoader) *SessionResolver {
	return &SessionResolver{tokens: tokens, revoker: revoker, users: users}
}

// Resolve returns the caller and the verified claims, or nil when the caller
// is anonymous for any reason.
func (s *SessionResolver) Resolve(r *http.Request) (*models.User, *auth.Claims) {
	cookie, err := r.Cookie(auth.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	ctx := r.Context()

	claims, err := s.tokens.Verify(cookie.Value)
	if err != nil {
		slog.DebugContext(ctx, "session rejected", "reason", err)
		return nil, nil
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			slog.WarnContext(ctx, "revocation check failed", "error", err)
			return nil, nil
		}
		if revoked {
			slog.DebugContext(ctx, "session rejected", "reason", "revoked")
			return nil, nil
		}
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		slog.DebugContext(ctx, "session rejected", "reason", err)
		return nil, nil
	}
	return &user, claims
}

// LoadSession attaches the resolved user to the request context. It never
// rejects a request; use RequireAuth for that.
func (s *SessionResolver) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, claims := s.Resolve(r)
		if user != nil {
			r = r.WithContext(WithSession(r.Context(), user, claims))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests that LoadSession left anonymous.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithSession(ctx context.Context, user *models.User, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	if claims != nil {
		ctx = context.WithValue(ctx, claimsKey, claims)
	}
	return ctx
}

func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}
