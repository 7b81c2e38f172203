package testsupport

import (
	"context"
	"testing"

	"experimenter/internal/config"
	"experimenter/internal/experiments"
	"experimenter/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustUser returns the user with email, creating it when needed.
func MustUser(t testing.TB, st *store.Store, email string) experiments.User {
	t.Helper()

	user, err := st.GetOrCreateUser(context.Background(), email)
	if err != nil {
		t.Fatalf("GetOrCreateUser(%q): %v", email, err)
	}
	return user
}
