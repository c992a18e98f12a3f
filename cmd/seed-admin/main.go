// Command seed-admin creates the initial admin account if it does not exist.
//
//	go run ./cmd/seed-admin -password 's3cret!'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"study-notes/auth"
	"study-notes/db"
	appmw "study-notes/middleware"
	"study-notes/models"

	"github.com/joho/godotenv"
)

const (
	defaultAdminEmail     = "admin@studynotes.com"
	defaultAdminStudentID = "ADMIN001"
	defaultAdminName      = "Admin User"
)

type seedOptions struct {
	Name      string
	Email     string
	StudentID string
	Password  string
}

// seedAdmin creates the admin unless a user with the same email exists.
// It reports whether a record was created.
func seedAdmin(ctx context.Context, store db.Store, opts seedOptions) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(opts.Email))
	if email == "" {
		return false, errors.New("admin email is required")
	}
	_, err := store.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return false, fmt.Errorf("look up admin: %w", err)
	}

	hash, err := auth.HashPassword(opts.Password)
	if err != nil {
		return false, err
	}
	admin := models.User{
		Name:         opts.Name,
		Email:        email,
		StudentID:    opts.StudentID,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := store.CreateUser(ctx, &admin); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}

func main() {
	_ = godotenv.Load()
	appmw.InitLogger(os.Getenv("LOG_LEVEL"))

	driver := flag.String("driver", envOr("STORE_DRIVER", db.DriverMySQL), "store driver: mysql or mongo")
	dsn := flag.String("dsn", os.Getenv("DSN"), "MySQL DSN")
	mongoURI := flag.String("mongo-uri", os.Getenv("MONGO_URI"), "MongoDB connection string")
	mongoDB := flag.String("mongo-db", envOr("MONGO_DATABASE", "studynotes"), "MongoDB database")
	email := flag.String("email", defaultAdminEmail, "admin email")
	studentID := flag.String("student-id", defaultAdminStudentID, "admin student id")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password (or ADMIN_PASSWORD)")
	flag.Parse()

	if *driver == db.DriverMemory {
		slog.Error("seeding the memory store has no lasting effect")
		os.Exit(2)
	}
	if *password == "" {
		slog.Error("admin password is required: pass -password or set ADMIN_PASSWORD")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := db.Open(ctx, db.Options{Driver: *driver, DSN: *dsn, MongoURI: *mongoURI, MongoDatabase: *mongoDB})
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	created, err := seedAdmin(ctx, store, seedOptions{
		Name:      defaultAdminName,
		Email:     *email,
		StudentID: *studentID,
		Password:  *password,
	})
	if err != nil {
		slog.Error("seed admin", "error", err)
		store.Close()
		os.Exit(1)
	}
	if !created {
		slog.Info("admin user already exists", "email", *email)
		return
	}
	slog.Info("admin user created", "email", *email, "student_id", *studentID)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
