package repo

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/velora-ai/chat-backend/internal/domain"
)

func TestCreateUser_SuccessAndDuplicateEmail(t *testing.T) {
	db := newRepoDB(t, &domain.User{})

	u, err := CreateUser(context.Background(), db, "ada", "ada@example.com", "$2a$10$hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" || u.Email != "ada@example.com" || u.PasswordHash != "$2a$10$hash" {
		t.Fatalf("unexpected user: %+v", u)
	}

	// Same email again must violate the unique index.
	if _, err := CreateUser(context.Background(), db, "ada2", "ada@example.com", "$2a$10$other"); err == nil {
		t.Fatalf("expected unique-email violation")
	}
}

func TestGetUserByEmail(t *testing.T) {
	db := newRepoDB(t, &domain.User{})

	if _, err := GetUserByEmail(context.Background(), db, "ghost@example.com"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("missing user: got %v; want ErrRecordNotFound", err)
	}

	created, err := CreateUser(context.Background(), db, "ada", "ada@example.com", "h")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	got, err := GetUserByEmail(context.Background(), db, "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != created.ID || got.Username != "ada" {
		t.Fatalf("mismatch: %+v", got)
	}
}

func TestGetUserByID(t *testing.T) {
	db := newRepoDB(t, &domain.User{})

	created, err := CreateUser(context.Background(), db, "ada", "ada@example.com", "h")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	got, err := GetUserByID(context.Background(), db, created.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.Email != "ada@example.com" {
		t.Fatalf("mismatch: %+v", got)
	}

	if _, err := GetUserByID(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id: got %v; want ErrNotFound", err)
	}
}
