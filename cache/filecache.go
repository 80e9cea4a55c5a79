package cache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
)

// FileStore implements Store using one file per key in a directory
type FileStore struct {
	mu    sync.Mutex
	dir   string
	quota int64
}

type fileItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewFileStore creates a file-backed store in dir. If dir is empty, uses
// ~/.wooadmin_cache. quota caps the directory size in bytes; 0 means
// unlimited.
func NewFileStore(dir string, quota int64) (*FileStore, error) {
	if dir == "" {
		usr, err := user.Current()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(usr.HomeDir, ".wooadmin_cache")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	return &FileStore{dir: dir, quota: quota}, nil
}

// GetItem implements Store
func (fc *FileStore) GetItem(_ context.Context, key string) (string, bool, error) {
	item, err := fc.read(fc.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return item.Value, true, nil
}

// SetItem implements Store
func (fc *FileStore) SetItem(_ context.Context, key, value string) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	path := fc.path(key)
	data, err := json.Marshal(fileItem{Key: key, Value: value})
	if err != nil {
		return err
	}

	if fc.quota > 0 {
		used, err := fc.usage()
		if err != nil {
			return err
		}
		if info, err := os.Stat(path); err == nil {
			used -= info.Size()
		}
		if used+int64(len(data)) > fc.quota {
			return fmt.Errorf("set %q: %w", key, ErrQuotaExceeded)
		}
	}

	// Write to temporary file first, then rename (atomic operation)
	tmpPath := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		if errors.Is(err, syscall.ENOSPC) {
			return fmt.Errorf("set %q: %w", key, ErrQuotaExceeded)
		}
		return err
	}

	return os.Rename(tmpPath, path)
}

// RemoveItem implements Store
func (fc *FileStore) RemoveItem(_ context.Context, key string) error {
	err := os.Remove(fc.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Keys implements Store. A .json file that cannot be read back has no
// recoverable key, so it is deleted to release its quota.
func (fc *FileStore) Keys(_ context.Context) ([]string, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	entries, err := os.ReadDir(fc.dir)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(fc.dir, e.Name())
		item, err := fc.read(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			// writes rename complete files into place, so this is damage
			_ = os.Remove(path)
			continue
		}
		keys = append(keys, item.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op.
func (fc *FileStore) Close() error { return nil }

func (fc *FileStore) read(path string) (*fileItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var item fileItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return &item, nil
}

// usage sums the size of stored files
func (fc *FileStore) usage() (int64, error) {
	var total int64
	err := filepath.WalkDir(fc.dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// path maps a key to its file. Keys contain '/', '+' and '=' so they are
// hashed rather than sanitized.
func (fc *FileStore) path(key string) string {
	hash := md5.Sum([]byte(key))
	return filepath.Join(fc.dir, fmt.Sprintf("%x.json", hash))
}
