package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const stateFileName = "state.json"

// FileStore keeps every key in a single JSON document on disk. Writes go to a
// temporary file that is synced and renamed over the old one, so a crash never
// leaves a half-written state file behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore prepares dir and returns a store writing dir/state.json.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("ledger directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrUnavailable, dir, err)
	}
	return &FileStore{path: filepath.Join(dir, stateFileName)}, nil
}

// Path returns the location of the state document.
func (s *FileStore) Path() string {
	return s.path
}

// Get reads the requested keys from the state document.
func (s *FileStore) Get(_ context.Context, keys ...string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			out[k] = []byte(v)
		}
	}
	return out, nil
}

// Put merges entries into the state document and replaces the file atomically.
func (s *FileStore) Put(_ context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		if !errors.Is(err, errCorrupt) {
			return err
		}
		// Keep the unreadable document next to the new one instead of discarding it.
		if err := os.Rename(s.path, s.path+".corrupt"); err != nil {
			return fmt.Errorf("%w: moving corrupt state aside: %v", ErrUnavailable, err)
		}
		doc = make(map[string]json.RawMessage)
	}
	for k, v := range entries {
		if !json.Valid(v) {
			return fmt.Errorf("value for %q is not valid JSON", k)
		}
		doc[k] = json.RawMessage(v)
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	return s.writeAtomic(payload)
}

var errCorrupt = errors.New("state file is corrupt")

func (s *FileStore) read() (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]json.RawMessage), nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, s.path, err)
	}
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrUnavailable, errCorrupt, err)
	}
	return doc, nil
}

func (s *FileStore) writeAtomic(payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), stateFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // nolint:errcheck

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing state: %v", ErrUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: syncing state: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing state: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replacing state: %v", ErrUnavailable, err)
	}
	return nil
}
