package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type NoteStatus string

const (
	StatusPending  NoteStatus = "pending"
	StatusApproved NoteStatus = "approved"
	StatusRejected NoteStatus = "rejected"
)

// Valid reports whether s is one of the known moderation states.
func (s NoteStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	StudentID    string    `json:"studentId" bson:"studentId"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	Role         Role      `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Note struct {
	ID              string     `json:"id" bson:"_id"`
	Title           string     `json:"title" bson:"title"`
	Description     string     `json:"description" bson:"description"`
	Subject         string     `json:"subject" bson:"subject"`
	ReferenceLink   string     `json:"referenceLink,omitempty" bson:"referenceLink,omitempty"`
	UploadedBy      string     `json:"-" bson:"uploadedBy"`
	Status          NoteStatus `json:"status" bson:"status"`
	RejectionReason string     `json:"rejectionReason,omitempty" bson:"rejectionReason,omitempty"`
	CreatedAt       time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt" bson:"updatedAt"`
}

type Comment struct {
	ID        string    `json:"id" bson:"_id"`
	NoteID    string    `json:"noteId" bson:"noteId"`
	UserID    string    `json:"-" bson:"userId"`
	Content   string    `json:"content" bson:"content"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Author is the public summary of a user embedded in note and comment responses.
type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	StudentID string `json:"studentId,omitempty"`
}

func AuthorOf(u User) Author {
	return Author{ID: u.ID, Name: u.Name, StudentID: u.StudentID}
}

type NoteView struct {
	Note
	Uploader Author `json:"uploadedBy"`
}

type CommentView struct {
	Comment
	Author Author `json:"user"`
}
