package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ytresolve/catalog"
)

const (
	schemaVersion = "1.0"
	lockTimeout   = 5 * time.Second

	// DefaultReplacementList is returned when a caller asks for a
	// non-positive number of replacement entries.
	DefaultReplacementList = 50
)

// JSONStore implements Store using a single JSON file.
type JSONStore struct {
	path string
	lock *FileLock
	data *storeData
	mu   sync.RWMutex
}

// storeData is the top-level JSON structure.
type storeData struct {
	Version      string         `json:"version"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Items        []catalog.Item `json:"items"`
	Replacements []*Replacement `json:"replacements"`
}

// NewJSONStore creates a new JSON file store at the given path.
// If the file exists, it is loaded; otherwise an empty store is created.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{
		path: path,
		lock: NewFileLock(path),
	}

	if err := s.lock.Lock(lockTimeout); err != nil {
		return nil, err
	}

	if err := s.load(); err != nil {
		s.lock.Unlock()
		return nil, err
	}

	return s, nil
}

// load reads the JSON file into memory. Creates empty data if file doesn't exist.
func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.data = newStoreData()
			// Save immediately to catch permission errors early
			return s.save()
		}
		return &StorageError{Op: "read", Entity: "store", Err: err}
	}

	s.data = &storeData{}
	if err := json.Unmarshal(data, s.data); err != nil {
		return &StorageError{Op: "read", Entity: "store", Err: ErrStorageCorrupt}
	}

	return nil
}

// save persists the data to disk atomically.
func (s *JSONStore) save() error {
	s.data.UpdatedAt = time.Now()

	writer, err := NewAtomicWriter(s.path)
	if err != nil {
		return &StorageError{Op: "write", Entity: "store", Err: err}
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		writer.Abort()
		return &StorageError{Op: "write", Entity: "store", Err: err}
	}

	if err := writer.Commit(); err != nil {
		return &StorageError{Op: "write", Entity: "store", Err: err}
	}

	return nil
}

// Close releases resources held by the store.
func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Unlock()
}

func newStoreData() *storeData {
	return &storeData{
		Version:      schemaVersion,
		UpdatedAt:    time.Now(),
		Items:        []catalog.Item{},
		Replacements: []*Replacement{},
	}
}

// --- CatalogStore implementation ---

func (s *JSONStore) LoadCatalog(ctx context.Context) ([]catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]catalog.Item, len(s.data.Items))
	copy(items, s.data.Items)
	return items, nil
}

func (s *JSONStore) SaveCatalog(ctx context.Context, items []catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := make([]catalog.Item, len(items))
	copy(replaced, items)
	s.data.Items = replaced

	return s.save()
}

// --- ReplacementStore implementation ---

func (s *JSONStore) AppendReplacement(ctx context.Context, rec *Replacement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec == nil || strings.TrimSpace(rec.OriginalURL) == "" {
		return &StorageError{Op: "create", Entity: "replacement", Err: ErrInvalidInput}
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Status == "" {
		rec.Status = StatusApplied
	}

	s.data.Replacements = append(s.data.Replacements, rec)

	return s.save()
}

func (s *JSONStore) ListReplacements(ctx context.Context, limit int) ([]*Replacement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultReplacementList
	}
	if limit > MaxReplacementList {
		limit = MaxReplacementList
	}

	total := len(s.data.Replacements)
	if limit > total {
		limit = total
	}

	// Entries are appended in chronological order; serve newest first.
	out := make([]*Replacement, 0, limit)
	for i := total - 1; i >= total-limit; i-- {
		out = append(out, s.data.Replacements[i])
	}
	return out, nil
}
