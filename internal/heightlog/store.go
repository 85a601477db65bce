package heightlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Store loads and persists the heights document.
//
// Load returns ErrNotFound when nothing was written yet and an error wrapping
// ErrDocumentCorrupt when the stored bytes are unreadable. Quarantine moves
// unreadable bytes aside and reports where they went.
type Store interface {
	Load(ctx context.Context) (*HeightLog, error)
	Save(ctx context.Context, l *HeightLog) error
	Quarantine(ctx context.Context) (string, error)
}

// FileStore keeps the document in a single JSON file.
//
// Writes go to a temp file in the same directory and are renamed over the
// target, so readers never observe a partial document.
type FileStore struct {
	Path string

	now func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path, now: time.Now}
}

func (s *FileStore) Load(ctx context.Context) (*HeightLog, error) {
	_ = ctx
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read heights document: %w", err)
	}
	return Decode(data)
}

func (s *FileStore) Save(ctx context.Context, l *HeightLog) error {
	_ = ctx
	data, err := Encode(l)
	if err != nil {
		return err
	}
	return WriteFileAtomic(s.Path, data, 0o644)
}

// Quarantine renames the current file to <path>.corrupt-<UTC stamp>.
func (s *FileStore) Quarantine(ctx context.Context) (string, error) {
	_ = ctx
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	base := s.Path + ".corrupt-" + now().UTC().Format("20060102T150405Z")
	dst := base
	for i := 1; ; i++ {
		if _, err := os.Lstat(dst); os.IsNotExist(err) {
			break
		}
		if i > 100 {
			return "", fmt.Errorf("quarantine heights document: too many backups named %s", base)
		}
		dst = fmt.Sprintf("%s.%d", base, i)
	}
	if err := os.Rename(s.Path, dst); err != nil {
		return "", fmt.Errorf("quarantine heights document: %w", err)
	}
	return dst, nil
}

// WriteFileAtomic writes data to a temp file next to path, syncs it and
// renames it into place. On failure the previous file is left untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	cleanup := func() { _ = os.Remove(tmp) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp, perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// MemStore is an in-memory Store holding raw document bytes. It is used by
// tests and by dry runs that must not touch the real document.
type MemStore struct {
	mu      sync.Mutex
	data    []byte
	backups [][]byte

	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

// NewMemStore returns a store seeded with raw bytes (nil means no document).
func NewMemStore(raw []byte) *MemStore {
	return &MemStore{data: raw}
}

func (m *MemStore) Load(ctx context.Context) (*HeightLog, error) {
	_ = ctx
	m.mu.Lock()
	data := m.data
	m.mu.Unlock()
	if data == nil {
		return nil, ErrNotFound
	}
	return Decode(data)
}

func (m *MemStore) Save(ctx context.Context, l *HeightLog) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	data, err := Encode(l)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

func (m *MemStore) Quarantine(ctx context.Context) (string, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return "", errors.New("nothing to quarantine")
	}
	m.backups = append(m.backups, m.data)
	m.data = nil
	return fmt.Sprintf("mem:backup-%d", len(m.backups)), nil
}

// Raw returns the currently stored bytes.
func (m *MemStore) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Backups returns every quarantined document, oldest first.
func (m *MemStore) Backups() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.backups))
	copy(out, m.backups)
	return out
}

// IsBackupPath reports whether name looks like a quarantined document.
func IsBackupPath(name string) bool {
	return strings.Contains(filepath.Base(name), ".corrupt-")
}
