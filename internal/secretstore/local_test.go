package secretstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/syncforge/syncforge/internal/db"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*LocalStore, *gorm.DB) {
	t.Helper()
	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	store, errStore := NewLocalStore(conn, "test-passphrase")
	if errStore != nil {
		t.Fatalf("new local store: %v", errStore)
	}
	return store, conn
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ref, errPut := store.Put(ctx, 1, "github-default", "ghp_secret")
	if errPut != nil {
		t.Fatalf("put: %v", errPut)
	}
	if !strings.HasPrefix(ref, "local:") {
		t.Fatalf("expected local ref, got %q", ref)
	}

	value, errGet := store.Get(ctx, 1, ref)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if value != "ghp_secret" {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestLocalStorePutReplacesValueKeepsRef(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, _ := store.Put(ctx, 1, "github-default", "old")
	second, errPut := store.Put(ctx, 1, "github-default", "new")
	if errPut != nil {
		t.Fatalf("put: %v", errPut)
	}
	if first != second {
		t.Fatalf("expected stable ref across replacement, got %q and %q", first, second)
	}

	value, errGet := store.Get(ctx, 1, second)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if value != "new" {
		t.Fatalf("expected replaced value, got %q", value)
	}
}

func TestLocalStoreGetIsOwnerScoped(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ref, _ := store.Put(ctx, 1, "github-default", "ghp_secret")
	if _, err := store.Get(ctx, 2, ref); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound for other user, got %v", err)
	}
}

func TestLocalStoreGetUnknownRef(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, 1, "local:nope"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, 1, "aws:prefix/1/name"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound for foreign ref, got %v", err)
	}
}

func TestLocalStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ref, _ := store.Put(ctx, 1, "github-default", "ghp_secret")
	if errDelete := store.Delete(ctx, 1, ref); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}
	if _, err := store.Get(ctx, 1, ref); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound after delete, got %v", err)
	}

	// Unknown references are not an error.
	if errDelete := store.Delete(ctx, 1, "local:gone"); errDelete != nil {
		t.Fatalf("expected idempotent delete, got %v", errDelete)
	}
}

func TestNewLocalStoreRejectsEmptyKey(t *testing.T) {
	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if _, err := NewLocalStore(conn, "  "); err == nil {
		t.Fatalf("expected error for empty passphrase")
	}
}
