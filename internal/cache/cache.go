package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrCorrupt is reported when the cache file exists but cannot be parsed.
// Callers may treat the store as empty and continue; the run must not abort.
var ErrCorrupt = errors.New("cache: corrupt cache file")

// Record is what the store keeps per fingerprint.
type Record struct {
	PaperID   string `json:"paper_id"`
	Title     string `json:"title"`
	FirstSeen string `json:"first_seen_date"`
}

// document is the on-disk shape of the cache file. The shape is stable across
// runs; an initial instance is {"records": {}, "updated_at": "", "total_count": 0}.
type document struct {
	Records    map[string]Record `json:"records"`
	UpdatedAt  string            `json:"updated_at"`
	TotalCount int               `json:"total_count"`
}

// Store is a persistent fingerprint -> Record mapping backed by a single JSON
// file. The file is owned exclusively by the running process; records are only
// added or cleared, never updated in place.
type Store struct {
	path    string
	records map[string]Record
}

func NewStore(path string) *Store {
	return &Store{
		path:    path,
		records: make(map[string]Record),
	}
}

// Load reads the persisted mapping. A missing file initializes an empty store
// and is not an error. An unreadable or unparseable file returns ErrCorrupt
// (wrapped); the store is left empty so the caller can proceed.
func (s *Store) Load() error {
	s.records = make(map[string]Record)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: reading %s: %v", ErrCorrupt, s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", ErrCorrupt, s.path, err)
	}

	if doc.Records != nil {
		s.records = doc.Records
	}
	return nil
}

// Contains reports whether a fingerprint has been seen before.
func (s *Store) Contains(fingerprint string) bool {
	_, ok := s.records[fingerprint]
	return ok
}

// Add stages a record for the fingerprint. Adding an existing fingerprint is
// a no-op. Nothing is persisted until Flush.
func (s *Store) Add(fingerprint string, r Record) {
	if _, ok := s.records[fingerprint]; ok {
		return
	}
	s.records[fingerprint] = r
}

// Forget drops a fingerprint staged during this run before it is flushed.
// Used by the "summarized" seen-policy to avoid recording degraded papers.
func (s *Store) Forget(fingerprint string) {
	delete(s.records, fingerprint)
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	return len(s.records)
}

// Flush persists the full mapping atomically: the document is written to a
// temp file in the same directory and renamed over the cache file, so a crash
// mid-write never leaves a partially written cache behind.
func (s *Store) Flush() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: creating %s: %w", dir, err)
	}

	doc := document{
		Records:    s.records,
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
		TotalCount: len(s.records),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshaling cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return fmt.Errorf("cache: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: replacing %s: %w", s.path, err)
	}
	return nil
}

// Clear empties the mapping and persists immediately.
func (s *Store) Clear() error {
	s.records = make(map[string]Record)
	return s.Flush()
}
