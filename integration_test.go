package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"study-notes/auth"
	"study-notes/db"
	"study-notes/handlers"
	appmw "study-notes/middleware"
	"study-notes/models"
	"study-notes/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

var (
	router *chi.Mux
	store  *db.MemoryStore
)

const (
	adminEmail    = "admin@studynotes.com"
	adminPassword = "admin-password"
)

func setupIntegrationTest() {
	auth.HashCost = bcrypt.MinCost
	store = db.NewMemoryStore()

	tokens := auth.NewTokens("integration-secret", auth.DefaultSessionTTL)
	revoker := auth.NewMemoryRevoker()
	limiter, _ := ratelimit.NewMemory(1000, time.Minute)
	h := handlers.New(store, tokens, revoker, false)
	router = newRouter(h, appmw.NewSessionResolver(tokens, revoker, store), limiter, "*")

	hash, _ := auth.HashPassword(adminPassword)
	store.CreateUser(context.Background(), &models.User{
		Name:         "Admin",
		Email:        adminEmail,
		StudentID:    "ADMIN001",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
}

func TestMain(m *testing.M) {
	if err := godotenv.Load(".env.test"); err != nil {
		slog.Info("no .env.test loaded, using defaults")
	}
	setupIntegrationTest()
	os.Exit(m.Run())
}

// client remembers the session cookie the server hands out.
type client struct {
	t      *testing.T
	cookie *http.Cookie
}

func newClient(t *testing.T) *client {
	return &client{t: t}
}

func (c *client) do(method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	for _, ck := range rr.Result().Cookies() {
		if ck.Name == auth.CookieName {
			if ck.MaxAge < 0 {
				c.cookie = nil
			} else {
				c.cookie = ck
			}
		}
	}
	var decoded map[string]any
	json.Unmarshal(rr.Body.Bytes(), &decoded)
	return rr, decoded
}

func (c *client) register(name, email, studentID string) string {
	c.t.Helper()
	rr, body := c.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": name, "email": email, "password": "password123", "studentId": studentID,
	})
	if rr.Code != http.StatusCreated {
		c.t.Fatalf("register %s: got %v (%s)", email, rr.Code, rr.Body.String())
	}
	return body["user"].(map[string]any)["id"].(string)
}

func (c *client) upload(title string) string {
	c.t.Helper()
	rr, body := c.do(http.MethodPost, "/api/notes", map[string]string{
		"title": title, "description": "desc", "subject": "math",
	})
	if rr.Code != http.StatusCreated {
		c.t.Fatalf("upload: got %v (%s)", rr.Code, rr.Body.String())
	}
	return body["note"].(map[string]any)["id"].(string)
}

func TestOwnershipFlow(t *testing.T) {
	ana := newClient(t)
	ana.register("Ana", "ana.flow@example.com", "FLOW1")
	noteID := ana.upload("Integration Test Note")

	ben := newClient(t)
	ben.register("Ben", "ben.flow@example.com", "FLOW2")

	// Ben cannot delete Ana's note
	if rr, _ := ben.do(http.MethodDelete, "/api/notes?noteId="+noteID, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("Expected status Forbidden, got %v", rr.Code)
	}

	// Ana can
	if rr, _ := ana.do(http.MethodDelete, "/api/notes?noteId="+noteID, nil); rr.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", rr.Code)
	}

	if rr, _ := ana.do(http.MethodGet, "/api/notes/"+noteID, nil); rr.Code != http.StatusNotFound {
		t.Errorf("Expected status NotFound, got %v", rr.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	c := newClient(t)

	_, body := c.do(http.MethodGet, "/api/auth/session", nil)
	if body["authenticated"] != false {
		t.Fatalf("expected anonymous session, got %v", body)
	}

	c.register("Cleo", "cleo@example.com", "LIFE1")
	_, body = c.do(http.MethodGet, "/api/auth/session", nil)
	if body["authenticated"] != true {
		t.Fatalf("expected authenticated session, got %v", body)
	}

	stolen := c.cookie
	if rr, _ := c.do(http.MethodPost, "/api/auth/logout", nil); rr.Code != http.StatusOK {
		t.Fatalf("logout: got %v", rr.Code)
	}
	if c.cookie != nil {
		t.Error("logout did not clear the cookie")
	}

	// a copy of the old cookie is revoked
	replay := &client{t: t, cookie: stolen}
	if rr, _ := replay.do(http.MethodGet, "/api/notes", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("revoked token accepted: got %v", rr.Code)
	}

	rr, _ := c.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "cleo@example.com", "password": "password123",
	})
	if rr.Code != http.StatusOK || c.cookie == nil {
		t.Fatalf("login: got %v", rr.Code)
	}
	if rr, _ := c.do(http.MethodGet, "/api/notes", nil); rr.Code != http.StatusOK {
		t.Errorf("notes after login: got %v", rr.Code)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	c := newClient(t)
	c.register("Dana", "dana@example.com", "DUP1")

	other := newClient(t)
	rr, _ := other.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Dana 2", "email": "DANA@example.com", "password": "password123", "studentId": "DUP2",
	})
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status Conflict, got %v", rr.Code)
	}
	if other.cookie != nil {
		t.Error("failed registration set a session cookie")
	}
}

func TestModerationFlow(t *testing.T) {
	owner := newClient(t)
	owner.register("Eve", "eve@example.com", "MOD1")
	noteID := owner.upload("Needs review")

	// the owner is not an admin
	rr, _ := owner.do(http.MethodPatch, "/api/notes", map[string]string{"noteId": noteID, "status": "approved"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("Expected status Forbidden, got %v", rr.Code)
	}
	anonymous := newClient(t)
	if rr, _ := anonymous.do(http.MethodPatch, "/api/notes", map[string]string{"noteId": noteID, "status": "approved"}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status Unauthorized, got %v", rr.Code)
	}

	admin := newClient(t)
	if rr, _ := admin.do(http.MethodPost, "/api/auth/login", map[string]string{"email": adminEmail, "password": adminPassword}); rr.Code != http.StatusOK {
		t.Fatalf("admin login: got %v", rr.Code)
	}
	_, body := admin.do(http.MethodGet, "/api/notes?status=pending", nil)
	found := false
	for _, n := range body["notes"].([]any) {
		if n.(map[string]any)["id"] == noteID {
			found = true
		}
	}
	if !found {
		t.Fatal("note missing from the pending queue")
	}

	rr, body = admin.do(http.MethodPatch, "/api/notes", map[string]string{
		"noteId": noteID, "status": "rejected", "rejectionReason": "Incomplete",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("reject: got %v (%s)", rr.Code, rr.Body.String())
	}
	note := body["note"].(map[string]any)
	if note["status"] != "rejected" || note["rejectionReason"] != "Incomplete" {
		t.Errorf("unexpected note: %v", note)
	}
}

func TestAccountDeletionCascade(t *testing.T) {
	frank := newClient(t)
	frank.register("Frank", "frank@example.com", "DEL1")
	noteID := frank.upload("Frank's note")

	gina := newClient(t)
	gina.register("Gina", "gina@example.com", "DEL2")
	ginaNote := gina.upload("Gina's note")
	if rr, _ := frank.do(http.MethodPost, "/api/comments", map[string]string{"noteId": ginaNote, "content": "nice"}); rr.Code != http.StatusCreated {
		t.Fatalf("comment: got %v", rr.Code)
	}

	if rr, _ := frank.do(http.MethodDelete, "/api/users", nil); rr.Code != http.StatusOK {
		t.Fatalf("delete account: got %v", rr.Code)
	}
	if rr, _ := gina.do(http.MethodGet, "/api/notes/"+noteID, nil); rr.Code != http.StatusNotFound {
		t.Errorf("Frank's note still reachable: %v", rr.Code)
	}
	_, body := gina.do(http.MethodGet, "/api/comments?noteId="+ginaNote, nil)
	if comments := body["comments"].([]any); len(comments) != 0 {
		t.Errorf("Frank's comments survived: %v", comments)
	}
	if frank.cookie != nil {
		t.Error("account deletion did not clear the cookie")
	}
}

func TestHealthz(t *testing.T) {
	rr, body := newClient(t).do(http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("unexpected health response: %v %v", rr.Code, body)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}
