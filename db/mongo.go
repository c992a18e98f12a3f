package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"study-notes/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultMongoDatabase = "studynotes"

// MongoStore implements Store on MongoDB collections users, notes and comments.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	notes    *mongo.Collection
	comments *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("mongo uri is required")
	}
	if strings.TrimSpace(database) == "" {
		database = defaultMongoDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	dbh := client.Database(database)
	s := &MongoStore{
		client:   client,
		users:    dbh.Collection("users"),
		notes:    dbh.Collection("notes"),
		comments: dbh.Collection("comments"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uq_users_email")},
		{Keys: bson.D{{Key: "studentId", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uq_users_student_id")},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	_, err = s.notes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "uploadedBy", Value: 1}}},
		{Keys: bson.D{{Key: "subject", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create note indexes: %w", err)
	}
	_, err = s.comments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "noteId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create comment indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func mongoNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func mongoDuplicateUser(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	if strings.Contains(err.Error(), "uq_users_student_id") {
		return ErrDuplicateStudentID
	}
	return ErrDuplicateEmail
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		return mongoDuplicateUser(err)
	}
	return nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	return u, mongoNotFound(err)
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	return u, mongoNotFound(err)
}

func (s *MongoStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"name":         user.Name,
		"email":        user.Email,
		"studentId":    user.StudentID,
		"passwordHash": user.PasswordHash,
		"role":         user.Role,
		"updatedAt":    user.UpdatedAt,
	}})
	if err != nil {
		return mongoDuplicateUser(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteUser(ctx context.Context, id string) error {
	return s.deleteOne(ctx, s.users, id)
}

func (s *MongoStore) CreateNote(ctx context.Context, note *models.Note) error {
	now := time.Now().UTC()
	note.ID = uuid.NewString()
	note.CreatedAt = now
	note.UpdatedAt = now
	_, err := s.notes.InsertOne(ctx, note)
	return err
}

func (s *MongoStore) GetNote(ctx context.Context, id string) (models.Note, error) {
	var n models.Note
	err := s.notes.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	return n, mongoNotFound(err)
}

func (s *MongoStore) ListNotes(ctx context.Context, filter NoteFilter) ([]models.Note, error) {
	query := bson.M{}
	if filter.Subject != "" {
		query["subject"] = filter.Subject
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.OwnerID != "" {
		query["uploadedBy"] = filter.OwnerID
	}
	cur, err := s.notes.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	notes := []models.Note{}
	if err := cur.All(ctx, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *MongoStore) SetNoteStatus(ctx context.Context, id string, status models.NoteStatus, reason string) (models.Note, error) {
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}}
	if reason != "" {
		update["$set"].(bson.M)["rejectionReason"] = reason
	} else {
		update["$unset"] = bson.M{"rejectionReason": ""}
	}
	var n models.Note
	err := s.notes.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": models.StatusPending}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := s.GetNote(ctx, id); err != nil {
			return models.Note{}, err
		}
		return models.Note{}, ErrNotPending
	}
	return n, err
}

func (s *MongoStore) DeleteNote(ctx context.Context, id string) error {
	return s.deleteOne(ctx, s.notes, id)
}

func (s *MongoStore) DeleteNotesByOwner(ctx context.Context, ownerID string) (int64, error) {
	res, err := s.notes.DeleteMany(ctx, bson.M{"uploadedBy": ownerID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	now := time.Now().UTC()
	comment.ID = uuid.NewString()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	_, err := s.comments.InsertOne(ctx, comment)
	return err
}

func (s *MongoStore) GetComment(ctx context.Context, id string) (models.Comment, error) {
	var c models.Comment
	err := s.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	return c, mongoNotFound(err)
}

func (s *MongoStore) ListComments(ctx context.Context, noteID string) ([]models.Comment, error) {
	cur, err := s.comments.Find(ctx, bson.M{"noteId": noteID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	comments := []models.Comment{}
	if err := cur.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *MongoStore) UpdateCommentContent(ctx context.Context, id, content string) (models.Comment, error) {
	var c models.Comment
	err := s.comments.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"content": content, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&c)
	return c, mongoNotFound(err)
}

func (s *MongoStore) DeleteComment(ctx context.Context, id string) error {
	return s.deleteOne(ctx, s.comments, id)
}

func (s *MongoStore) DeleteCommentsByNote(ctx context.Context, noteID string) (int64, error) {
	res, err := s.comments.DeleteMany(ctx, bson.M{"noteId": noteID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) DeleteCommentsByUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.comments.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) deleteOne(ctx context.Context, coll *mongo.Collection, id string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
