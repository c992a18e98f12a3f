package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"study-notes/auth"
	"study-notes/db"
	"study-notes/middleware"
	"study-notes/models"

	chimw "github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// Handler serves the JSON API. All state lives in Store; the struct itself is
// safe for concurrent use.
type Handler struct {
	Store        db.Store
	Tokens       *auth.Tokens
	Revoker      auth.Revoker
	SecureCookie bool
}

func New(store db.Store, tokens *auth.Tokens, revoker auth.Revoker, secureCookie bool) *Handler {
	if revoker == nil {
		revoker = auth.NewMemoryRevoker()
	}
	return &Handler{
		Store:        store,
		Tokens:       tokens,
		Revoker:      revoker,
		SecureCookie: secureCookie,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// internalError logs err with the request id and answers with a generic 500.
func internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.ErrorContext(r.Context(), op+" failed",
		"error", err,
		"request_id", chimw.GetReqID(r.Context()),
		"path", r.URL.Path,
	)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// decodeJSON reads a single JSON object from the body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

// currentUser writes 401 and returns false when the request is anonymous.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return user, true
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(h.Tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// startSession issues a token for user and sets the session cookie.
func (h *Handler) startSession(w http.ResponseWriter, user models.User) error {
	token, expiresAt, err := h.Tokens.Issue(user)
	if err != nil {
		return err
	}
	h.setSessionCookie(w, token, expiresAt)
	return nil
}

// revokeSession invalidates the token presented with r until it expires.
func (h *Handler) revokeSession(r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.ExpiresAt == nil {
		return
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := h.Revoker.Revoke(r.Context(), claims.ID, ttl); err != nil {
		slog.WarnContext(r.Context(), "token revocation failed", "error", err, "jti", claims.ID)
	}
}

// authors resolves user ids to public summaries, looking each id up once.
type authors struct {
	store db.Store
	seen  map[string]models.Author
}

func newAuthors(store db.Store) *authors {
	return &authors{store: store, seen: make(map[string]models.Author)}
}

// get falls back to a bare id when the user no longer exists.
func (a *authors) get(ctx context.Context, id string) (models.Author, error) {
	if author, ok := a.seen[id]; ok {
		return author, nil
	}
	user, err := a.store.GetUserByID(ctx, id)
	var author models.Author
	switch {
	case err == nil:
		author = models.AuthorOf(user)
	case errors.Is(err, db.ErrNotFound):
		author = models.Author{ID: id}
	default:
		return models.Author{}, err
	}
	a.seen[id] = author
	return author, nil
}

func (a *authors) note(ctx context.Context, note models.Note) (models.NoteView, error) {
	author, err := a.get(ctx, note.UploadedBy)
	if err != nil {
		return models.NoteView{}, err
	}
	return models.NoteView{Note: note, Uploader: author}, nil
}

func (a *authors) comment(ctx context.Context, comment models.Comment) (models.CommentView, error) {
	author, err := a.get(ctx, comment.UserID)
	if err != nil {
		return models.CommentView{}, err
	}
	return models.CommentView{Comment: comment, Author: author}, nil
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
