package keyring

import (
	"errors"
	"testing"
)

func TestStore_SetAndGet(t *testing.T) {
	store := NewMockStore()

	err := store.Set("tasty", KeyPassword, "hunter2")
	if err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}

	got, err := store.Get("tasty", KeyPassword)
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got != "hunter2" {
		t.Errorf("Get() = %q, want %q", got, "hunter2")
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store := NewMockStore()

	_, err := store.Get("tasty", "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store := NewMockStore()

	// Set a value
	_ = store.Set("tasty", KeySessionToken, "to-delete")

	// Delete it
	err := store.Delete("tasty", KeySessionToken)
	if err != nil {
		t.Fatalf("Delete() error = %v, want nil", err)
	}

	// Verify it's gone
	_, err = store.Get("tasty", KeySessionToken)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStore_OverwriteValue(t *testing.T) {
	store := NewMockStore()

	_ = store.Set("tasty", "key", "value1")
	_ = store.Set("tasty", "key", "value2")

	got, _ := store.Get("tasty", "key")
	if got != "value2" {
		t.Errorf("Get() = %q, want %q after overwrite", got, "value2")
	}
}

func TestSystemStore_ImplementsInterface(t *testing.T) {
	// Compile-time check that SystemStore implements Store
	var _ Store = (*SystemStore)(nil)
}

func TestEnvStore_ImplementsInterface(t *testing.T) {
	// Compile-time check that EnvStore implements Store
	var _ Store = (*EnvStore)(nil)
}

func TestEnvStore_GetFromEnvVar(t *testing.T) {
	mock := NewMockStore()
	store := NewEnvStore(mock)

	// Set env var
	t.Setenv(EnvPassword, "env-password-123")

	// Should get from env var, not underlying store
	got, err := store.Get("tasty", KeyPassword)
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got != "env-password-123" {
		t.Errorf("Get() = %q, want %q", got, "env-password-123")
	}
}

func TestEnvStore_FallbackToUnderlying(t *testing.T) {
	mock := NewMockStore()
	_ = mock.Set("tasty", KeyPassword, "keyring-password")
	store := NewEnvStore(mock)

	// No env var set, should fall back to underlying store
	got, err := store.Get("tasty", KeyPassword)
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got != "keyring-password" {
		t.Errorf("Get() = %q, want %q", got, "keyring-password")
	}
}

func TestEnvStore_EnvVarOnlyForPassword(t *testing.T) {
	mock := NewMockStore()
	_ = mock.Set("tasty", KeySessionToken, "cached-token")
	store := NewEnvStore(mock)

	// Env var only affects password lookups
	t.Setenv(EnvPassword, "env-password")

	// Other keys should not use env var
	got, err := store.Get("tasty", KeySessionToken)
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got != "cached-token" {
		t.Errorf("Get() = %q, want %q", got, "cached-token")
	}
}

func TestEnvStore_SetPassesThrough(t *testing.T) {
	mock := NewMockStore()
	store := NewEnvStore(mock)

	err := store.Set("tasty", KeyPassword, "new-password")
	if err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}

	// Verify it was stored in underlying store
	got, _ := mock.Get("tasty", KeyPassword)
	if got != "new-password" {
		t.Errorf("underlying Get() = %q, want %q", got, "new-password")
	}
}

func TestEnvStore_DeletePassesThrough(t *testing.T) {
	mock := NewMockStore()
	_ = mock.Set("tasty", KeySessionToken, "to-delete")
	store := NewEnvStore(mock)

	err := store.Delete("tasty", KeySessionToken)
	if err != nil {
		t.Fatalf("Delete() error = %v, want nil", err)
	}

	// Verify it was deleted from underlying store
	_, err = mock.Get("tasty", KeySessionToken)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("underlying Get() after Delete() error = %v, want ErrNotFound", err)
	}
}
