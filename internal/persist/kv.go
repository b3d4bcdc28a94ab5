// Package persist saves and restores the state snapshot through a small
// key/value interface, with a badger-backed and a file-backed implementation.
package persist

import (
	"context"
	"errors"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("key not found")

// KV is the local key/value cache the snapshot lives in.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names a KV implementation.
type Backend string

const (
	BackendBadger Backend = "badger"
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
)

// OpenBackend opens the named backend rooted at dir.
func OpenBackend(b Backend, dir string, cfg Config) (KV, error) {
	switch b {
	case BackendBadger, "":
		if cfg.Path == "" && !cfg.InMemory {
			cfg.Path = dir
		}
		return OpenBadger(cfg)
	case BackendFile:
		return NewFileKV(dir), nil
	case BackendMemory:
		mem := InMemoryConfig()
		mem.Logger = cfg.Logger
		return OpenBadger(mem)
	}
	return nil, errors.New("unknown kv backend: " + string(b))
}
