// Package testutil provides shared test helpers for setting up stores and inbox directories.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/store"
)

// TestStore creates a temporary SQLite store that is automatically cleaned up.
func TestStore(t *testing.T) *store.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "larder-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Seed inserts recs into table and returns them with their assigned ids.
func Seed(t *testing.T, st store.Store, table string, recs ...models.RawRecord) []models.RawRecord {
	t.Helper()
	out := make([]models.RawRecord, 0, len(recs))
	for _, r := range recs {
		got, err := st.Insert(context.Background(), table, r)
		if err != nil {
			t.Fatalf("seed %s: %v", table, err)
		}
		out = append(out, got)
	}
	return out
}
