package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"study-notes/models"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

const (
	userTable = `
	CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		student_id VARCHAR(64) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'user',
		created_at TIMESTAMP(6) NOT NULL,
		updated_at TIMESTAMP(6) NOT NULL,
		UNIQUE KEY uq_users_email (email),
		UNIQUE KEY uq_users_student_id (student_id)
	);`

	// No foreign keys: cascades are done explicitly by the handlers.
	notesTable = `
	CREATE TABLE IF NOT EXISTS notes (
		id VARCHAR(36) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		subject VARCHAR(255) NOT NULL,
		reference_link VARCHAR(2048) NOT NULL DEFAULT '',
		uploaded_by VARCHAR(36) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		rejection_reason TEXT NULL,
		created_at TIMESTAMP(6) NOT NULL,
		updated_at TIMESTAMP(6) NOT NULL,
		INDEX idx_notes_uploaded_by (uploaded_by),
		INDEX idx_notes_subject (subject)
	);`

	commentsTable = `
	CREATE TABLE IF NOT EXISTS comments (
		id VARCHAR(36) PRIMARY KEY,
		note_id VARCHAR(36) NOT NULL,
		user_id VARCHAR(36) NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP(6) NOT NULL,
		updated_at TIMESTAMP(6) NOT NULL,
		INDEX idx_comments_note_id (note_id),
		INDEX idx_comments_user_id (user_id)
	);`

	noteColumns    = "id, title, description, subject, reference_link, uploaded_by, status, rejection_reason, created_at, updated_at"
	commentColumns = "id, note_id, user_id, content, created_at, updated_at"
	userColumns    = "id, name, email, student_id, password_hash, role, created_at, updated_at"

	mysqlDuplicateEntry = 1062
)

// MySQLStore implements Store on database/sql with the MySQL driver.
type MySQLStore struct {
	DB *sql.DB
}

// NewMySQLStore opens the pool and creates the tables if they are missing.
func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	conn, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	for _, stmt := range []string{userTable, notesTable, commentsTable} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &MySQLStore{DB: conn}, nil
}

func (s *MySQLStore) Close() error {
	return s.DB.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.StudentID, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	u.Role = models.Role(role)
	return u, err
}

func scanNote(row rowScanner) (models.Note, error) {
	var n models.Note
	var status string
	var reason sql.NullString
	err := row.Scan(&n.ID, &n.Title, &n.Description, &n.Subject, &n.ReferenceLink, &n.UploadedBy, &status, &reason, &n.CreatedAt, &n.UpdatedAt)
	n.Status = models.NoteStatus(status)
	n.RejectionReason = reason.String
	return n, err
}

func scanComment(row rowScanner) (models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.NoteID, &c.UserID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// duplicateUserError maps a unique-key violation on users to the matching sentinel.
func duplicateUserError(err error) error {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) || mysqlErr.Number != mysqlDuplicateEntry {
		return err
	}
	if strings.Contains(mysqlErr.Message, "uq_users_student_id") {
		return ErrDuplicateStudentID
	}
	return ErrDuplicateEmail
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *MySQLStore) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		user.ID, user.Name, user.Email, user.StudentID, user.PasswordHash, string(user.Role), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return duplicateUserError(err)
	}
	return nil
}

func (s *MySQLStore) GetUserByID(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	return u, notFound(err)
}

func (s *MySQLStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(s.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
	return u, notFound(err)
}

func (s *MySQLStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := s.DB.ExecContext(ctx,
		"UPDATE users SET name = ?, email = ?, student_id = ?, password_hash = ?, role = ?, updated_at = ? WHERE id = ?",
		user.Name, user.Email, user.StudentID, user.PasswordHash, string(user.Role), user.UpdatedAt, user.ID)
	if err != nil {
		return duplicateUserError(err)
	}
	return requireAffected(res)
}

func (s *MySQLStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *MySQLStore) CreateNote(ctx context.Context, note *models.Note) error {
	now := time.Now().UTC()
	note.ID = uuid.NewString()
	note.CreatedAt = now
	note.UpdatedAt = now
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO notes ("+noteColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		note.ID, note.Title, note.Description, note.Subject, note.ReferenceLink, note.UploadedBy,
		string(note.Status), nullable(note.RejectionReason), note.CreatedAt, note.UpdatedAt)
	return err
}

func (s *MySQLStore) GetNote(ctx context.Context, id string) (models.Note, error) {
	n, err := scanNote(s.DB.QueryRowContext(ctx, "SELECT "+noteColumns+" FROM notes WHERE id = ?", id))
	return n, notFound(err)
}

func (s *MySQLStore) ListNotes(ctx context.Context, filter NoteFilter) ([]models.Note, error) {
	query := "SELECT " + noteColumns + " FROM notes"
	var where []string
	var args []any
	if filter.Subject != "" {
		where = append(where, "subject = ?")
		args = append(args, filter.Subject)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.OwnerID != "" {
		where = append(where, "uploaded_by = ?")
		args = append(args, filter.OwnerID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	notes := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *MySQLStore) SetNoteStatus(ctx context.Context, id string, status models.NoteStatus, reason string) (models.Note, error) {
	res, err := s.DB.ExecContext(ctx,
		"UPDATE notes SET status = ?, rejection_reason = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(status), nullable(reason), time.Now().UTC(), id, string(models.StatusPending))
	if err != nil {
		return models.Note{}, err
	}
	if err := requireAffected(res); errors.Is(err, ErrNotFound) {
		if _, err := s.GetNote(ctx, id); err != nil {
			return models.Note{}, err
		}
		return models.Note{}, ErrNotPending
	} else if err != nil {
		return models.Note{}, err
	}
	return s.GetNote(ctx, id)
}

func (s *MySQLStore) DeleteNote(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *MySQLStore) DeleteNotesByOwner(ctx context.Context, ownerID string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM notes WHERE uploaded_by = ?", ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MySQLStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	now := time.Now().UTC()
	comment.ID = uuid.NewString()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO comments ("+commentColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		comment.ID, comment.NoteID, comment.UserID, comment.Content, comment.CreatedAt, comment.UpdatedAt)
	return err
}

func (s *MySQLStore) GetComment(ctx context.Context, id string) (models.Comment, error) {
	c, err := scanComment(s.DB.QueryRowContext(ctx, "SELECT "+commentColumns+" FROM comments WHERE id = ?", id))
	return c, notFound(err)
}

func (s *MySQLStore) ListComments(ctx context.Context, noteID string) ([]models.Comment, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT "+commentColumns+" FROM comments WHERE note_id = ? ORDER BY created_at DESC", noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	comments := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *MySQLStore) UpdateCommentContent(ctx context.Context, id, content string) (models.Comment, error) {
	res, err := s.DB.ExecContext(ctx, "UPDATE comments SET content = ?, updated_at = ? WHERE id = ?", content, time.Now().UTC(), id)
	if err != nil {
		return models.Comment{}, err
	}
	if err := requireAffected(res); err != nil {
		return models.Comment{}, err
	}
	return s.GetComment(ctx, id)
}

func (s *MySQLStore) DeleteComment(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *MySQLStore) DeleteCommentsByNote(ctx context.Context, noteID string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM comments WHERE note_id = ?", noteID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MySQLStore) DeleteCommentsByUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM comments WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// requireAffected turns a zero-row UPDATE/DELETE into ErrNotFound. Every
// UPDATE here bumps updated_at, so zero rows always means a missing id.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
