package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"study-notes/auth"
	"study-notes/db"
	"study-notes/models"
	"study-notes/ratelimit"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "middleware-test-secret"

type fixture struct {
	store    *db.MemoryStore
	tokens   *auth.Tokens
	revoker  *auth.MemoryRevoker
	sessions *SessionResolver
	user     models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := db.NewMemoryStore()
	user := &models.User{Name: "Ana", Email: "ana@example.com", StudentID: "S1", PasswordHash: "x", Role: models.RoleUser}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	tokens := auth.NewTokens(testSecret, time.Hour)
	revoker := auth.NewMemoryRevoker()
	return &fixture{
		store:    store,
		tokens:   tokens,
		revoker:  revoker,
		sessions: NewSessionResolver(tokens, revoker, store),
		user:     *user,
	}
}

func (f *fixture) token(t *testing.T) string {
	t.Helper()
	token, _, err := f.tokens.Issue(f.user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func requestWithCookie(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	return req
}

// protected is LoadSession followed by RequireAuth, as mounted by the router.
func (f *fixture) protected(next http.Handler) http.Handler {
	return f.sessions.LoadSession(RequireAuth(next))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	f := newFixture(t)

	// Test case 1: Valid cookie
	t.Run("Valid token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.protected(okHandler()).ServeHTTP(rr, requestWithCookie(f.token(t)))
		if rr.Code != http.StatusOK {
			t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
	})

	// Test case 2: No cookie
	t.Run("Missing cookie", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.protected(okHandler()).ServeHTTP(rr, requestWithCookie(""))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
		}
		if !strings.Contains(rr.Body.String(), "Unauthorized") {
			t.Errorf("unexpected body: %s", rr.Body.String())
		}
	})

	// Test case 3: Garbage cookie value
	t.Run("Invalid token format", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.protected(okHandler()).ServeHTTP(rr, requestWithCookie("InvalidToken"))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
		}
	})

	// Test case 4: Token past its expiry
	t.Run("Expired token", func(t *testing.T) {
		claims := auth.Claims{
			UserID: f.user.ID,
			Email:  f.user.Email,
			Role:   f.user.Role,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "study-notes",
				ID:        "expired-jti",
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-48 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-24 * time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		rr := httptest.NewRecorder()
		f.protected(okHandler()).ServeHTTP(rr, requestWithCookie(token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
		}
	})

	// Test case 5: Token signed with another secret
	t.Run("Token with wrong signature", func(t *testing.T) {
		other := auth.NewTokens("some-other-secret", time.Hour)
		token, _, err := other.Issue(f.user)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		rr := httptest.NewRecorder()
		f.protected(okHandler()).ServeHTTP(rr, requestWithCookie(token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
		}
	})

	// Test case 6: Revoked token
	t.Run("Revoked token", func(t *testing.T) {
		token := f.token(t)
		claims, err := f.tokens.Verify(token)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if err := f.revoker.Revoke(context.Background(), claims.ID, time.Hour); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		rr := httptest.NewRecorder()
		f.protected(okHandler()).ServeHTTP(rr, requestWithCookie(token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
		}
	})

	// Test case 7: User removed after the token was issued
	t.Run("Deleted user", func(t *testing.T) {
		ghost := models.User{ID: "missing-user", Email: "ghost@example.com", Role: models.RoleUser}
		token, _, err := f.tokens.Issue(ghost)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		rr := httptest.NewRecorder()
		f.protected(okHandler()).ServeHTTP(rr, requestWithCookie(token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
		}
	})

	// Test case 8: Context carries the stored user
	t.Run("Context propagation", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				t.Fatal("user not found in request context")
			}
			if user.ID != f.user.ID || user.Name != "Ana" {
				t.Errorf("user in context: got %+v want %+v", user, f.user)
			}
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || claims.UserID != f.user.ID {
				t.Errorf("claims in context: got %+v", claims)
			}
			w.WriteHeader(http.StatusOK)
		})
		rr := httptest.NewRecorder()
		f.protected(next).ServeHTTP(rr, requestWithCookie(f.token(t)))
		if rr.Code != http.StatusOK {
			t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
	})
}

func TestLoadSessionAnonymous(t *testing.T) {
	f := newFixture(t)
	var sawUser bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawUser = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	f.sessions.LoadSession(next).ServeHTTP(rr, requestWithCookie("not-a-jwt"))
	if rr.Code != http.StatusOK {
		t.Fatalf("LoadSession must not reject: got %d", rr.Code)
	}
	if sawUser {
		t.Error("anonymous request should carry no user")
	}
}

func TestRateLimit(t *testing.T) {
	limiter, err := ratelimit.NewMemory(2, time.Minute)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	handler := RateLimit(limiter, "login")(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence: %v", codes)
	}

	// another client has its own window
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("second client limited: got %d", rr.Code)
	}

	// nil limiter passes through
	rr = httptest.NewRecorder()
	RateLimit(nil, "login")(okHandler()).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("nil limiter should pass: got %d", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	// Test case 1: Preflight short-circuits
	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/notes", nil)
		rr := httptest.NewRecorder()
		CORS("https://notes.example.com")(okHandler()).ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Errorf("got %d want %d", rr.Code, http.StatusNoContent)
		}
		if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("credentials should be allowed for an explicit origin")
		}
	})

	// Test case 2: Wildcard never allows credentials
	t.Run("Wildcard", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		rr := httptest.NewRecorder()
		CORS("")(okHandler()).ServeHTTP(rr, req)
		if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("origin: %q", rr.Header().Get("Access-Control-Allow-Origin"))
		}
		if rr.Header().Get("Access-Control-Allow-Credentials") != "" {
			t.Error("wildcard origin must not allow credentials")
		}
	})
}

func TestSecurityHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rr, req)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff")
	}
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("missing HSTS behind https proxy")
	}
}
