package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"study-notes/db"
	"study-notes/models"

	"github.com/go-chi/chi/v5"
)

type createNoteRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Subject       string `json:"subject"`
	ReferenceLink string `json:"referenceLink"`
}

type moderateNoteRequest struct {
	NoteID          string            `json:"noteId"`
	Status          models.NoteStatus `json:"status"`
	RejectionReason string            `json:"rejectionReason"`
}

// GetNotes lists notes newest first, optionally filtered by ?subject= and ?status=.
func (h *Handler) GetNotes(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	filter := db.NoteFilter{
		Subject: strings.TrimSpace(r.URL.Query().Get("subject")),
		Status:  models.NoteStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	notes, err := h.Store.ListNotes(r.Context(), filter)
	if err != nil {
		internalError(w, r, "list notes", err)
		return
	}
	lookup := newAuthors(h.Store)
	views := make([]models.NoteView, 0, len(notes))
	for _, note := range notes {
		view, err := lookup.note(r.Context(), note)
		if err != nil {
			internalError(w, r, "load note author", err)
			return
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": views})
}

func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	note, err := h.Store.GetNote(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Note not found")
		return
	}
	if err != nil {
		internalError(w, r, "get note", err)
		return
	}
	view, err := newAuthors(h.Store).note(r.Context(), note)
	if err != nil {
		internalError(w, r, "load note author", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"note": view})
}

// CreateNote stores a new note owned by the caller in the pending state.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	note := models.Note{
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Subject:       strings.TrimSpace(req.Subject),
		ReferenceLink: strings.TrimSpace(req.ReferenceLink),
		UploadedBy:    user.ID,
		Status:        models.StatusPending,
	}
	if note.Title == "" || note.Description == "" || note.Subject == "" {
		writeError(w, http.StatusBadRequest, "Title, description, and subject are required")
		return
	}

	if err := h.Store.CreateNote(r.Context(), &note); err != nil {
		internalError(w, r, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Note shared successfully!",
		"note":    models.NoteView{Note: note, Uploader: models.AuthorOf(*user)},
	})
}

// ModerateNote moves a pending note to approved or rejected. Admin only.
func (h *Handler) ModerateNote(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !canModerate(user) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	var req moderateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.NoteID == "" || req.Status == "" {
		writeError(w, http.StatusBadRequest, "Note ID and status are required")
		return
	}
	if req.Status != models.StatusApproved && req.Status != models.StatusRejected {
		writeError(w, http.StatusBadRequest, "Status must be approved or rejected")
		return
	}

	note, err := h.Store.GetNote(r.Context(), req.NoteID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Note not found")
		return
	}
	if err != nil {
		internalError(w, r, "get note", err)
		return
	}
	if note.Status != models.StatusPending {
		writeError(w, http.StatusConflict, fmt.Sprintf("Note is already %s", note.Status))
		return
	}

	reason := ""
	if req.Status == models.StatusRejected {
		reason = strings.TrimSpace(req.RejectionReason)
	}
	note, err = h.Store.SetNoteStatus(r.Context(), note.ID, req.Status, reason)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Note not found")
		return
	}
	if errors.Is(err, db.ErrNotPending) {
		writeError(w, http.StatusConflict, "Note was already moderated")
		return
	}
	if err != nil {
		internalError(w, r, "set note status", err)
		return
	}
	view, err := newAuthors(h.Store).note(r.Context(), note)
	if err != nil {
		internalError(w, r, "load note author", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Note %s successfully", req.Status),
		"note":    view,
	})
}

// DeleteNote removes ?noteId= and its comments. Owner or admin.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	noteID := strings.TrimSpace(r.URL.Query().Get("noteId"))
	if noteID == "" {
		writeError(w, http.StatusBadRequest, "Note ID is required")
		return
	}

	note, err := h.Store.GetNote(r.Context(), noteID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Note not found")
		return
	}
	if err != nil {
		internalError(w, r, "get note", err)
		return
	}
	if !canDeleteNote(user, note) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	if err := h.Store.DeleteNote(r.Context(), note.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
		internalError(w, r, "delete note", err)
		return
	}
	if _, err := h.Store.DeleteCommentsByNote(r.Context(), note.ID); err != nil {
		internalError(w, r, "delete note comments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Note deleted successfully"})
}
