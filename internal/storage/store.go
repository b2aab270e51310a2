// Package storage provides the key/value blob stores that hold serialized conversations.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/compeq-chat/backend/internal/config"
)

// ErrInvalidKey is returned for keys that cannot name a blob.
var ErrInvalidKey = errors.New("invalid blob key")

// Store is an opaque key to string persistence mechanism.
type Store interface {
	// Get returns the value stored at key; ok is false when nothing is stored there.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set overwrites the value stored at key.
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir), nil
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case "mongo":
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
