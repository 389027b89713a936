package testsupport

import (
	"context"
	"testing"

	"splice/internal/config"
	"splice/internal/history"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordEntry inserts a history entry for tests using the provided store.
func RecordEntry(t testing.TB, store *history.Store, entry history.Entry) *history.Entry {
	t.Helper()

	recorded, err := store.Record(context.Background(), entry)
	if err != nil {
		t.Fatalf("store.Record: %v", err)
	}
	return recorded
}
