package dsconfig

import (
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
)

// OverrideStore persists the highest-priority configuration layer: the local
// operator override. Implementations hold a single JSON document in the
// Partial shape.
type OverrideStore interface {
	// Load returns the persisted override patch, reporting whether one exists.
	Load() (Partial, bool, error)
	// Save replaces the persisted override patch.
	Save(Partial) error
	// Delete removes the persisted override patch.
	Delete() error
}

// FileOverrideStore keeps the override patch in a JSON file on disk.
type FileOverrideStore struct {
	path string
}

// NewFileOverrideStore constructs a file-backed override store at the given
// path. An empty path resolves under the user configuration directory.
func NewFileOverrideStore(path string) *FileOverrideStore {
	if path == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			path = filepath.Join(dir, "showgate", "datasource-override.json")
		} else {
			path = "datasource-override.json"
		}
	}
	return &FileOverrideStore{path: path}
}

// Path returns the backing file location.
func (f *FileOverrideStore) Path() string {
	return f.path
}

// Load reads and decodes the override file.
func (f *FileOverrideStore) Load() (Partial, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Partial{}, false, nil
		}
		return Partial{}, false, err
	}
	var p Partial
	if err := json.Unmarshal(data, &p); err != nil {
		return Partial{}, false, err
	}
	return p, true, nil
}

// Save encodes and writes the override file, creating parent directories as
// needed. The document is written to a sibling temp file and renamed so a
// crash mid-write never leaves a truncated override.
func (f *FileOverrideStore) Save(p Partial) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Delete removes the override file. A missing file is not an error.
func (f *FileOverrideStore) Delete() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemoryOverrideStore keeps the override patch in memory. Used in tests and
// when no durable location is available.
type MemoryOverrideStore struct {
	mu      sync.Mutex
	patch   Partial
	present bool
}

// NewMemoryOverrideStore constructs an empty in-memory override store.
func NewMemoryOverrideStore() *MemoryOverrideStore {
	return &MemoryOverrideStore{}
}

// Load returns the stored patch.
func (m *MemoryOverrideStore) Load() (Partial, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patch, m.present, nil
}

// Save replaces the stored patch.
func (m *MemoryOverrideStore) Save(p Partial) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patch = p
	m.present = true
	return nil
}

// Delete clears the stored patch.
func (m *MemoryOverrideStore) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patch = Partial{}
	m.present = false
	return nil
}
