package gate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pefman/break-the-wall/internal/wall"
)

// File keeps the marker in a small JSON key-value file, for a local
// single-user client. Other keys in the file are preserved.
type File struct {
	path string
	mu   sync.Mutex
}

var _ wall.Gate = (*File)(nil)

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read gate file %s: %w", f.path, err)
	}
	kv := map[string]string{}
	if len(data) == 0 {
		return kv, nil
	}
	if err := json.Unmarshal(data, &kv); err != nil {
		return nil, fmt.Errorf("decode gate file %s: %w", f.path, err)
	}
	return kv, nil
}

func (f *File) LastClickDate() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.read()
	if err != nil {
		return "", err
	}
	return valid(kv[Key]), nil
}

func (f *File) SetLastClickDate(date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking the punch.
		kv = map[string]string{}
	}
	kv[Key] = date
	data, err := json.MarshalIndent(kv, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create gate dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write gate file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace gate file: %w", err)
	}
	return nil
}
