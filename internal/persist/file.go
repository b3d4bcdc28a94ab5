package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotJSON is returned by FileKV.Put for a value that is not JSON.
var ErrNotJSON = errors.New("value is not valid JSON")

// FileKV keeps every key in one JSON file under dir. Values are stored as
// raw JSON, so they must be valid JSON documents.
type FileKV struct {
	dir     string
	entries map[string]json.RawMessage
	mu      sync.RWMutex
}

// NewFileKV loads dir/kv.json if it exists.
func NewFileKV(dir string) *FileKV {
	kv := &FileKV{
		dir:     dir,
		entries: make(map[string]json.RawMessage),
	}
	kv.loadFromDisk()
	return kv
}

func (k *FileKV) Get(ctx context.Context, key string) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (k *FileKV) Put(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("put %s: %w", key, ErrNotJSON)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.entries[key] = append(json.RawMessage(nil), value...)
	return k.saveToDisk()
}

func (k *FileKV) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.entries[key]; !ok {
		return nil
	}
	delete(k.entries, key)
	return k.saveToDisk()
}

func (k *FileKV) Close() error { return nil }

func (k *FileKV) file() string {
	return filepath.Join(k.dir, "kv.json")
}

func (k *FileKV) loadFromDisk() {
	data, err := os.ReadFile(k.file())
	if err != nil {
		return // File doesn't exist yet, start empty
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil || entries == nil {
		return // Invalid JSON, start empty
	}
	k.entries = entries
}

func (k *FileKV) saveToDisk() error {
	if err := os.MkdirAll(k.dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(k.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(k.file(), data, 0644)
}
