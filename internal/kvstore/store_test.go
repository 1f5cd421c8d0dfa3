package kvstore

import (
	"context"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// failedQueryLogger records every statement gorm reports as failed.
type failedQueryLogger struct {
	mu     sync.Mutex
	failed []error
}

func (l *failedQueryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }
func (l *failedQueryLogger) Info(context.Context, string, ...interface{})     {}
func (l *failedQueryLogger) Warn(context.Context, string, ...interface{})     {}
func (l *failedQueryLogger) Error(context.Context, string, ...interface{})    {}

func (l *failedQueryLogger) Trace(_ context.Context, _ time.Time, _ func() (string, int64), err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	l.failed = append(l.failed, err)
	l.mu.Unlock()
}

func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	return newTestGormStoreWithConfig(t, &gorm.Config{})
}

func newTestGormStoreWithConfig(t *testing.T, config *gorm.Config) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), config)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Entry{}); err != nil {
		t.Fatalf("failed to migrate kv schema: %v", err)
	}
	store, err := NewGormStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestStoresRoundTripAndOverwrite(t *testing.T) {
	stores := map[string]Store{
		"gorm":   newTestGormStore(t),
		"memory": NewMemoryStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, ok, err := store.Get(ctx, KeyToken); err != nil || ok {
				t.Fatalf("expected absent key, ok=%v err=%v", ok, err)
			}
			if err := store.Set(ctx, KeyToken, "first"); err != nil {
				t.Fatalf("set failed: %v", err)
			}
			if err := store.Set(ctx, KeyToken, "second"); err != nil {
				t.Fatalf("overwrite failed: %v", err)
			}
			value, ok, err := store.Get(ctx, KeyToken)
			if err != nil || !ok || value != "second" {
				t.Fatalf("expected second, got %q ok=%v err=%v", value, ok, err)
			}
			if err := store.Delete(ctx, KeyToken); err != nil {
				t.Fatalf("delete failed: %v", err)
			}
			if _, ok, _ := store.Get(ctx, KeyToken); ok {
				t.Fatalf("expected key to be deleted")
			}
		})
	}
}

func TestMissingKeyIsNotReportedAsFailedQuery(t *testing.T) {
	queries := &failedQueryLogger{}
	store := newTestGormStoreWithConfig(t, &gorm.Config{Logger: queries})

	value, ok, err := store.Get(context.Background(), KeyToken)
	if err != nil || ok || value != "" {
		t.Fatalf("expected clean miss, got %q ok=%v err=%v", value, ok, err)
	}
	queries.mu.Lock()
	defer queries.mu.Unlock()
	if len(queries.failed) != 0 {
		t.Fatalf("expected no failed queries, got %v", queries.failed)
	}
}

func TestReadStringListToleratesCorruption(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	values, err := ReadStringList(ctx, store, KeyShownNotificationIDs)
	if err != nil || len(values) != 0 {
		t.Fatalf("expected empty list for absent key, got %v err=%v", values, err)
	}

	for _, raw := range []string{"{not json", `{"a":1}`, `[1,2,3]`, "   "} {
		_ = store.Set(ctx, KeyShownNotificationIDs, raw)
		values, err := ReadStringList(ctx, store, KeyShownNotificationIDs)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
		if len(values) != 0 {
			t.Fatalf("expected empty list for %q, got %v", raw, values)
		}
	}

	if err := WriteStringList(ctx, store, KeyShownNotificationIDs, []string{"n1", "n2"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	values, err = ReadStringList(ctx, store, KeyShownNotificationIDs)
	if err != nil || len(values) != 2 || values[0] != "n1" || values[1] != "n2" {
		t.Fatalf("unexpected list %v err=%v", values, err)
	}
}

func TestInvalidKeysAreRejected(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Set(context.Background(), " ", "value"); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
