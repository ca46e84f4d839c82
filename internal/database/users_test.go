package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"credit-ledger-go/internal/store"
)

func TestCreateUser(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, err := service.CreateUser(ctx, "user1", "Test User", "test@example.com")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.Id != "user1" || user.Email != "test@example.com" {
		t.Errorf("Unexpected user returned: %+v", user)
	}

	_, err = service.CreateUser(ctx, "user2", "Duplicate", "test@example.com")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected duplicate email error, got %v", err)
	}
}

func TestGetUserById_NotFound(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := service.GetUserById(context.Background(), "missing")
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestGetUsers(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "user1", "Alice", "alice@example.com")
	createTestUser(t, service, "user2", "Bob", "bob@example.com")

	users, err := service.GetUsers(ctx)
	if err != nil {
		t.Fatalf("GetUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("Expected 2 users, got %d", len(users))
	}
}
