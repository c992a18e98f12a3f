package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"study-notes/auth"
	"study-notes/db"
)

type updateUserRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword"`
}

// UpdateUser edits the caller's own profile. A new password needs the current one.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.Store.GetUserByID(r.Context(), caller.ID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		internalError(w, r, "load user", err)
		return
	}

	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			user.Name = name
		}
	}
	if req.Email != nil {
		if email := normalizeEmail(*req.Email); email != "" {
			user.Email = email
		}
	}
	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			writeError(w, http.StatusBadRequest, "Current password is required to set a new password")
			return
		}
		if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
			writeError(w, http.StatusBadRequest, "Current password is incorrect")
			return
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if errors.Is(err, auth.ErrPasswordTooShort) {
			writeError(w, http.StatusBadRequest, "New password must be at least 6 characters")
			return
		}
		if errors.Is(err, auth.ErrPasswordTooLong) {
			writeError(w, http.StatusBadRequest, "New password must be at most 72 characters")
			return
		}
		if err != nil {
			internalError(w, r, "hash password", err)
			return
		}
		user.PasswordHash = hash
	}

	err = h.Store.UpdateUser(r.Context(), &user)
	switch {
	case errors.Is(err, db.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "Email already in use")
		return
	case errors.Is(err, db.ErrDuplicateStudentID):
		writeError(w, http.StatusConflict, "Student ID already registered")
		return
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return
	case err != nil:
		internalError(w, r, "update user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// DeleteUser removes the caller with every note and comment they own, plus
// comments left by others on those notes. The deletes are not atomic.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	notes, err := h.Store.ListNotes(ctx, db.NoteFilter{OwnerID: user.ID})
	if err != nil {
		internalError(w, r, "list user notes", err)
		return
	}
	for _, note := range notes {
		if _, err := h.Store.DeleteCommentsByNote(ctx, note.ID); err != nil {
			internalError(w, r, "delete note comments", err)
			return
		}
	}
	deletedNotes, err := h.Store.DeleteNotesByOwner(ctx, user.ID)
	if err != nil {
		internalError(w, r, "delete user notes", err)
		return
	}
	deletedComments, err := h.Store.DeleteCommentsByUser(ctx, user.ID)
	if err != nil {
		internalError(w, r, "delete user comments", err)
		return
	}
	if err := h.Store.DeleteUser(ctx, user.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
		internalError(w, r, "delete user", err)
		return
	}
	slog.InfoContext(ctx, "account deleted",
		"user_id", user.ID,
		"notes", deletedNotes,
		"comments", deletedComments,
	)

	h.revokeSession(r)
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Account deleted successfully. All your notes and comments have been removed.",
	})
}
