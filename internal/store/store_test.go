package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nerrad567/doorlock-core/internal/infrastructure/database"
	_ "github.com/nerrad567/doorlock-core/migrations"
)

// storeFactories returns every backend available in this environment.
// Postgres runs only when DOORLOCK_TEST_POSTGRES_DSN is set.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()

	factories := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			return newSQLTestStore(t, database.Config{
				Driver:      database.DriverSQLite,
				Path:        filepath.Join(t.TempDir(), "store.db"),
				WALMode:     true,
				BusyTimeout: 5,
			})
		},
	}

	if dsn := os.Getenv("DOORLOCK_TEST_POSTGRES_DSN"); dsn != "" {
		factories["postgres"] = func(t *testing.T) Store {
			s := newSQLTestStore(t, database.Config{Driver: database.DriverPostgres, DSN: dsn})
			if _, err := s.db.ExecContext(t.Context(), "DELETE FROM documents"); err != nil {
				t.Fatalf("clearing documents: %v", err)
			}
			return s
		}
	}
	return factories
}

func newSQLTestStore(t *testing.T, cfg database.Config) *SQLStore {
	t.Helper()

	db, err := database.Open(t.Context(), cfg)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(t.Context()); err != nil {
		t.Fatalf("migrating database: %v", err)
	}

	s, err := NewSQLStore(db.DB, db.Driver())
	if err != nil {
		t.Fatalf("NewSQLStore() error = %v", err)
	}
	return s
}

// forEachStore runs fn as a subtest against every backend.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		doc, err := s.Get(t.Context(), "doors/AA:BB")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if doc != nil {
			t.Errorf("Get() = %v, want nil", doc)
		}
	})
}

func TestStore_UpdateMerges(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := t.Context()
		path := "doors/AA:BB"

		if err := s.Update(ctx, path, Document{"MAC": "AA:BB", "IP": "10.0.0.1", "BLE": "X"}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if err := s.Update(ctx, path, Document{"IP": "10.0.0.2", "BLE": nil}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		doc, err := s.Get(ctx, path)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if doc.String("MAC") != "AA:BB" {
			t.Errorf("MAC = %q, want untouched AA:BB", doc.String("MAC"))
		}
		if doc.String("IP") != "10.0.0.2" {
			t.Errorf("IP = %q, want 10.0.0.2", doc.String("IP"))
		}
		if _, ok := doc["BLE"]; ok {
			t.Error("BLE should have been removed by nil value")
		}
	})
}

func TestStore_UpdateRemovesEmptyDocument(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := t.Context()
		path := "users/u1/locks/l1"

		if err := s.Update(ctx, path, Document{"saved_invite": "abc"}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if err := s.Update(ctx, path, Document{"saved_invite": nil}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		doc, err := s.Get(ctx, path)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if doc != nil {
			t.Errorf("Get() = %v, want nil for emptied document", doc)
		}
	})
}

func TestStore_DeleteCascades(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := t.Context()
		for _, p := range []string{"users/u1", "users/u1/locks/a", "users/u1/locks/b", "users/u10"} {
			if err := s.Update(ctx, p, Document{"v": 1}); err != nil {
				t.Fatalf("Update(%s) error = %v", p, err)
			}
		}

		if err := s.Delete(ctx, "users/u1"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}

		for _, p := range []string{"users/u1", "users/u1/locks/a", "users/u1/locks/b"} {
			if doc, _ := s.Get(ctx, p); doc != nil {
				t.Errorf("%s survived Delete", p)
			}
		}
		// A sibling sharing the prefix string is not a descendant.
		if doc, _ := s.Get(ctx, "users/u10"); doc == nil {
			t.Error("users/u10 should not be deleted with users/u1")
		}
	})
}

func TestStore_Take(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := t.Context()
		path := "invites/abc"

		if err := s.Update(ctx, path, Document{"type": 2}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		doc, err := s.Take(ctx, path)
		if err != nil {
			t.Fatalf("Take() error = %v", err)
		}
		if doc["type"] != float64(2) {
			t.Errorf("type = %v, want 2", doc["type"])
		}

		if _, err := s.Take(ctx, path); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Take() error = %v, want ErrNotFound", err)
		}
		if doc, _ := s.Get(ctx, path); doc != nil {
			t.Error("document still present after Take")
		}
	})
}

func TestStore_TakeConcurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := t.Context()
		path := "invites/race"
		if err := s.Update(ctx, path, Document{"type": 0}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		const callers = 16
		var wins atomic.Int32
		var wg sync.WaitGroup
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Take(ctx, path); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		if got := wins.Load(); got != 1 {
			t.Errorf("successful Take calls = %d, want 1", got)
		}
	})
}

func TestStore_List(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := t.Context()
		for _, p := range []string{"authorizations/M1/p1", "authorizations/M1/p2", "authorizations/M2/p3", "authorizations/M1/p1/deep"} {
			if err := s.Update(ctx, p, Document{"phone_id": keyOf(p)}); err != nil {
				t.Fatalf("Update(%s) error = %v", p, err)
			}
		}

		children, err := s.List(ctx, "authorizations/M1")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(children) != 2 {
			t.Fatalf("List() returned %d children, want 2: %v", len(children), children)
		}
		if children["p2"].String("phone_id") != "p2" {
			t.Errorf("children[p2] = %v", children["p2"])
		}
	})
}

func TestStore_QueryFirstWhereEqual(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := t.Context()
		docs := map[string]Document{
			"doors/B": {"BLE": "BLE-1", "port": 3333},
			"doors/A": {"BLE": "BLE-1", "port": 4444},
			"doors/C": {"BLE": "BLE-2", "port": 3333},
		}
		for p, d := range docs {
			if err := s.Update(ctx, p, d); err != nil {
				t.Fatalf("Update(%s) error = %v", p, err)
			}
		}

		tests := []struct {
			name    string
			field   string
			value   any
			wantKey string
		}{
			{name: "first by key order", field: "BLE", value: "BLE-1", wantKey: "A"},
			{name: "unique match", field: "BLE", value: "BLE-2", wantKey: "C"},
			{name: "numeric value", field: "port", value: 4444, wantKey: "A"},
			{name: "no match", field: "BLE", value: "missing", wantKey: ""},
			{name: "missing field", field: "certificate", value: "x", wantKey: ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				key, doc, err := s.QueryFirstWhereEqual(ctx, "doors", tt.field, tt.value)
				if err != nil {
					t.Fatalf("QueryFirstWhereEqual() error = %v", err)
				}
				if key != tt.wantKey {
					t.Errorf("key = %q, want %q", key, tt.wantKey)
				}
				if tt.wantKey == "" && doc != nil {
					t.Errorf("doc = %v, want nil", doc)
				}
			})
		}

		if _, _, err := s.QueryFirstWhereEqual(ctx, "doors", "BLE') OR 1=1 --", "x"); !errors.Is(err, ErrInvalidField) {
			t.Errorf("injected field error = %v, want ErrInvalidField", err)
		}
	})
}

func TestStore_InvalidPath(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		for _, p := range []string{"", "/doors", "doors/", "doors//x", "doors/../x"} {
			if _, err := s.Get(t.Context(), p); !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Get(%q) error = %v, want ErrInvalidPath", p, err)
			}
		}
	})
}
