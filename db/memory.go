package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"study-notes/models"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. Used by tests and the
// "memory" driver for local development.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	users    map[string]models.User
	notes    map[string]memNote
	comments map[string]memComment
	now      func() time.Time
}

type memNote struct {
	seq  int64
	note models.Note
}

type memComment struct {
	seq     int64
	comment models.Comment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		notes:    make(map[string]memNote),
		comments: make(map[string]memComment),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
		if u.StudentID == user.StudentID {
			return ErrDuplicateStudentID
		}
	}
	now := s.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *MemoryStore) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return ErrNotFound
	}
	for id, u := range s.users {
		if id == user.ID {
			continue
		}
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
		if u.StudentID == user.StudentID {
			return ErrDuplicateStudentID
		}
	}
	user.UpdatedAt = s.now()
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) CreateNote(_ context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	note.ID = uuid.NewString()
	note.CreatedAt = now
	note.UpdatedAt = now
	s.notes[note.ID] = memNote{seq: s.nextSeq(), note: *note}
	return nil
}

func (s *MemoryStore) GetNote(_ context.Context, id string) (models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return models.Note{}, ErrNotFound
	}
	return n.note, nil
}

func (s *MemoryStore) ListNotes(_ context.Context, filter NoteFilter) ([]models.Note, error) {
	s.mu.RLock()
	matched := make([]memNote, 0, len(s.notes))
	for _, n := range s.notes {
		if filter.Subject != "" && n.note.Subject != filter.Subject {
			continue
		}
		if filter.Status != "" && n.note.Status != filter.Status {
			continue
		}
		if filter.OwnerID != "" && n.note.UploadedBy != filter.OwnerID {
			continue
		}
		matched = append(matched, n)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })
	out := make([]models.Note, 0, len(matched))
	for _, n := range matched {
		out = append(out, n.note)
	}
	return out, nil
}

func (s *MemoryStore) SetNoteStatus(_ context.Context, id string, status models.NoteStatus, reason string) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return models.Note{}, ErrNotFound
	}
	if n.note.Status != models.StatusPending {
		return models.Note{}, ErrNotPending
	}
	n.note.Status = status
	n.note.RejectionReason = reason
	n.note.UpdatedAt = s.now()
	s.notes[id] = n
	return n.note, nil
}

func (s *MemoryStore) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *MemoryStore) DeleteNotesByOwner(_ context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, note := range s.notes {
		if note.note.UploadedBy == ownerID {
			delete(s.notes, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CreateComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	comment.ID = uuid.NewString()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	s.comments[comment.ID] = memComment{seq: s.nextSeq(), comment: *comment}
	return nil
}

func (s *MemoryStore) GetComment(_ context.Context, id string) (models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return models.Comment{}, ErrNotFound
	}
	return c.comment, nil
}

func (s *MemoryStore) ListComments(_ context.Context, noteID string) ([]models.Comment, error) {
	s.mu.RLock()
	matched := make([]memComment, 0)
	for _, c := range s.comments {
		if c.comment.NoteID == noteID {
			matched = append(matched, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })
	out := make([]models.Comment, 0, len(matched))
	for _, c := range matched {
		out = append(out, c.comment)
	}
	return out, nil
}

func (s *MemoryStore) UpdateCommentContent(_ context.Context, id, content string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return models.Comment{}, ErrNotFound
	}
	c.comment.Content = content
	c.comment.UpdatedAt = s.now()
	s.comments[id] = c
	return c.comment, nil
}

func (s *MemoryStore) DeleteComment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *MemoryStore) DeleteCommentsByNote(_ context.Context, noteID string) (int64, error) {
	return s.deleteComments(func(c models.Comment) bool { return c.NoteID == noteID }), nil
}

func (s *MemoryStore) DeleteCommentsByUser(_ context.Context, userID string) (int64, error) {
	return s.deleteComments(func(c models.Comment) bool { return c.UserID == userID }), nil
}

func (s *MemoryStore) deleteComments(match func(models.Comment) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, c := range s.comments {
		if match(c.comment) {
			delete(s.comments, id)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Close() error { return nil }
