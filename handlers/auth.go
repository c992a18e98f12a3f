package handlers

import (
	"errors"
	"net/http"
	"strings"

	"study-notes/auth"
	"study-notes/db"
	"study-notes/middleware"
	"study-notes/models"
)

type registerRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	StudentID string `json:"studentId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if req.Name == "" || req.Email == "" || req.Password == "" || req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}
	if errors.Is(err, auth.ErrPasswordTooLong) {
		writeError(w, http.StatusBadRequest, "Password must be at most 72 characters")
		return
	}
	if err != nil {
		internalError(w, r, "hash password", err)
		return
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		StudentID:    req.StudentID,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	err = h.Store.CreateUser(r.Context(), &user)
	switch {
	case errors.Is(err, db.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "Email already registered")
		return
	case errors.Is(err, db.ErrDuplicateStudentID):
		writeError(w, http.StatusConflict, "Student ID already registered")
		return
	case err != nil:
		internalError(w, r, "create user", err)
		return
	}

	if err := h.startSession(w, user); err != nil {
		internalError(w, r, "issue token", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful",
		"user":    user,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		internalError(w, r, "load user", err)
		return
	}
	if err != nil {
		// same bcrypt cost as a real check so timing does not reveal the email
		auth.CheckDummyPassword(req.Password)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := h.startSession(w, user); err != nil {
		internalError(w, r, "issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    user,
	})
}

// Logout always succeeds; a presented token is revoked until it expires.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.revokeSession(r)
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Session reports the caller; it never answers 401.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          user,
	})
}
