package sqlite

import (
	"testing"

	"github.com/tribeapp/tribe-server/internal/store"
	"github.com/tribeapp/tribe-server/internal/store/storetest"
)

func makeStore(t *testing.T) store.Store {
	db, err := Open(t.TempDir() + "/tribe.db")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return NewWithDB(db)
}

func TestSQLiteStoreCompliance(t *testing.T) {
	storetest.Run(t, makeStore)
}

func TestSQLiteConcurrentSend(t *testing.T) {
	storetest.RunConcurrentSend(t, makeStore)
}

func TestSQLitePaginationWalk(t *testing.T) {
	storetest.RunPaginationWalk(t, makeStore)
}
