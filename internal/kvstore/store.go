// Package kvstore persists the small set of keys the console keeps across
// restarts (the bearer credential and toast bookkeeping).
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// KeyToken holds the bearer credential.
	KeyToken = "token"
	// KeyShownNotificationIDs holds the JSON array of toasted notification ids.
	KeyShownNotificationIDs = "shownNotificationIds"

	maxKeyLength = 190
)

var (
	// ErrInvalidKey indicates an empty or oversized key.
	ErrInvalidKey = errors.New("kvstore: invalid key")
	// ErrMissingDatabase indicates the gorm store was built without a handle.
	ErrMissingDatabase = errors.New("kvstore: database handle is required")
)

// Store is a string key-value store with a single writer per key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Entry is the persisted row backing GormStore.
type Entry struct {
	Key       string    `gorm:"column:entry_key;primaryKey;size:190;not null"`
	Value     string    `gorm:"column:entry_value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "console_kv"
}

// GormStore keeps entries in a SQL table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a migrated gorm handle.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, ErrMissingDatabase
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	var entries []Entry
	result := s.db.WithContext(ctx).Where("entry_key = ?", key).Limit(1).Find(&entries)
	if result.Error != nil {
		return "", false, result.Error
	}
	if result.RowsAffected == 0 {
		return "", false, nil
	}
	return entries[0].Value, true, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	entry := Entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&Entry{}).Error
}

// MemoryStore is a process-local Store used in tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[key]
	return value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// ReadStringList decodes a JSON array of strings stored under key. Absent keys,
// invalid JSON, and non-string members all read as an empty list.
func ReadStringList(ctx context.Context, store Store, key string) ([]string, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, nil
	}
	return values, nil
}

// WriteStringList stores values as a JSON array under key.
func WriteStringList(ctx context.Context, store Store, key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(encoded))
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || len(key) > maxKeyLength {
		return ErrInvalidKey
	}
	return nil
}
