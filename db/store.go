package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"study-notes/models"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateStudentID = errors.New("student id already registered")
	ErrNotPending         = errors.New("note already moderated")
)

// NoteFilter narrows ListNotes. Empty fields match everything.
type NoteFilter struct {
	Subject string
	Status  models.NoteStatus
	OwnerID string
}

// Store is the persistence layer shared by every handler. Lookups return
// ErrNotFound when the id does not exist. Create methods assign ID and
// timestamps on the passed record.
type Store interface {
	// users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error

	// notes
	CreateNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, id string) (models.Note, error)
	ListNotes(ctx context.Context, filter NoteFilter) ([]models.Note, error)
	// SetNoteStatus only moves a pending note; otherwise it returns ErrNotPending.
	SetNoteStatus(ctx context.Context, id string, status models.NoteStatus, reason string) (models.Note, error)
	DeleteNote(ctx context.Context, id string) error
	DeleteNotesByOwner(ctx context.Context, ownerID string) (int64, error)

	// comments
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id string) (models.Comment, error)
	ListComments(ctx context.Context, noteID string) ([]models.Comment, error)
	UpdateCommentContent(ctx context.Context, id, content string) (models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	DeleteCommentsByNote(ctx context.Context, noteID string) (int64, error)
	DeleteCommentsByUser(ctx context.Context, userID string) (int64, error)

	Close() error
}

const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
	DriverMongo  = "mongo"
)

type Options struct {
	Driver        string
	DSN           string
	MongoURI      string
	MongoDatabase string
}

// Open connects to the backend selected by opts.Driver and prepares its schema.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverMySQL, "":
		return NewMySQLStore(ctx, opts.DSN)
	case DriverMongo:
		return NewMongoStore(ctx, opts.MongoURI, opts.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
