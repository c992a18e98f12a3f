package handlers

import "study-notes/models"

func canModerate(user *models.User) bool {
	return user != nil && user.IsAdmin()
}

func canDeleteNote(user *models.User, note models.Note) bool {
	return user != nil && (user.IsAdmin() || note.UploadedBy == user.ID)
}

// canEditComment is author-only; admins get no exception.
func canEditComment(user *models.User, comment models.Comment) bool {
	return user != nil && comment.UserID == user.ID
}

func canDeleteComment(user *models.User, comment models.Comment) bool {
	return user != nil && (user.IsAdmin() || comment.UserID == user.ID)
}
