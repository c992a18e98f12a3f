package handlers

import (
	"errors"
	"net/http"
	"strings"

	"study-notes/db"
	"study-notes/models"
)

type createCommentRequest struct {
	NoteID  string `json:"noteId"`
	Content string `json:"content"`
}

type updateCommentRequest struct {
	CommentID string `json:"commentId"`
	Content   string `json:"content"`
}

func (h *Handler) GetComments(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	noteID := strings.TrimSpace(r.URL.Query().Get("noteId"))
	if noteID == "" {
		writeError(w, http.StatusBadRequest, "Note ID is required")
		return
	}

	comments, err := h.Store.ListComments(r.Context(), noteID)
	if err != nil {
		internalError(w, r, "list comments", err)
		return
	}
	lookup := newAuthors(h.Store)
	views := make([]models.CommentView, 0, len(comments))
	for _, c := range comments {
		view, err := lookup.comment(r.Context(), c)
		if err != nil {
			internalError(w, r, "load comment author", err)
			return
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": views})
}

// CreateComment attaches a comment by the caller to an existing note.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.NoteID = strings.TrimSpace(req.NoteID)
	req.Content = strings.TrimSpace(req.Content)
	if req.NoteID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "Note ID and content are required")
		return
	}

	if _, err := h.Store.GetNote(r.Context(), req.NoteID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Note not found")
			return
		}
		internalError(w, r, "get note", err)
		return
	}

	comment := models.Comment{NoteID: req.NoteID, UserID: user.ID, Content: req.Content}
	if err := h.Store.CreateComment(r.Context(), &comment); err != nil {
		internalError(w, r, "create comment", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Comment added successfully",
		"comment": models.CommentView{Comment: comment, Author: models.AuthorOf(*user)},
	})
}

func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req updateCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.CommentID = strings.TrimSpace(req.CommentID)
	req.Content = strings.TrimSpace(req.Content)
	if req.CommentID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "Comment ID and content are required")
		return
	}

	comment, err := h.Store.GetComment(r.Context(), req.CommentID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		internalError(w, r, "get comment", err)
		return
	}
	if !canEditComment(user, comment) {
		writeError(w, http.StatusForbidden, "Forbidden - You can only edit your own comments")
		return
	}

	comment, err = h.Store.UpdateCommentContent(r.Context(), comment.ID, req.Content)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		internalError(w, r, "update comment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Comment updated successfully",
		"comment": models.CommentView{Comment: comment, Author: models.AuthorOf(*user)},
	})
}

// DeleteComment removes ?commentId=. Author or admin.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	commentID := strings.TrimSpace(r.URL.Query().Get("commentId"))
	if commentID == "" {
		writeError(w, http.StatusBadRequest, "Comment ID is required")
		return
	}

	comment, err := h.Store.GetComment(r.Context(), commentID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		internalError(w, r, "get comment", err)
		return
	}
	if !canDeleteComment(user, comment) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	if err := h.Store.DeleteComment(r.Context(), comment.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
		internalError(w, r, "delete comment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Comment deleted successfully"})
}
