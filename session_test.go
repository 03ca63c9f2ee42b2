package mcp_test

import (
	"errors"
	"testing"

	"github.com/jpowersdev/gomcp"
)

func TestSessionStoreInitialize(t *testing.T) {
	store := mcp.NewSessionStore()

	sess := store.Initialize()
	if sess.ID == "" {
		t.Fatal("expected non-empty session ID")
	}
	if sess.Active() {
		t.Error("expected new session to be pending")
	}
	if sess.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	other := store.Initialize()
	if other.ID == sess.ID {
		t.Error("expected distinct session IDs")
	}
}

func TestSessionStoreFindByID(t *testing.T) {
	store := mcp.NewSessionStore()
	sess := store.Initialize()

	found, err := store.FindByID(sess.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.ID != sess.ID {
		t.Errorf("FindByID() ID = %s, want %s", found.ID, sess.ID)
	}

	_, err = store.FindByID("no-such-session")
	if !errors.Is(err, mcp.ErrSessionNotFound) {
		t.Errorf("FindByID() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStoreActivateByID(t *testing.T) {
	store := mcp.NewSessionStore()
	sess := store.Initialize()

	activated, err := store.ActivateByID(sess.ID)
	if err != nil {
		t.Fatalf("ActivateByID() error = %v", err)
	}
	if !activated.Active() {
		t.Fatal("expected session to be active after activation")
	}

	// Activation is idempotent.
	again, err := store.ActivateByID(sess.ID)
	if err != nil {
		t.Fatalf("ActivateByID() second call error = %v", err)
	}
	if !again.Active() {
		t.Error("expected session to stay active")
	}

	_, err = store.ActivateByID("no-such-session")
	if !errors.Is(err, mcp.ErrSessionNotFound) {
		t.Errorf("ActivateByID() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStoreDeactivateByID(t *testing.T) {
	store := mcp.NewSessionStore()
	sess := store.Initialize()

	store.DeactivateByID(sess.ID)

	_, err := store.FindByID(sess.ID)
	if !errors.Is(err, mcp.ErrSessionNotFound) {
		t.Errorf("FindByID() after deactivate error = %v, want ErrSessionNotFound", err)
	}

	// Deactivating a missing session is a no-op.
	store.DeactivateByID("no-such-session")
}
