// Package storage provides a key-value storage abstraction independent of DB
// providers, with in-memory, file-backed, and redis implementations.
package storage

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Type identifies a storage provider.
type Type string

const (
	Memory Type = "memory"
	Bolt   Type = "bolt"
	Redis  Type = "redis"
)

// ServiceStorage describes the api for storage independent of DB providers
type ServiceStorage interface {
	Type() Type
	Close() error
	Write(ctx context.Context, namespace, key string, value []byte) error
	Read(ctx context.Context, namespace, key string) ([]byte, error)
	ReadAll(ctx context.Context, namespace string) (map[string][]byte, error)
	ReadAllKeys(ctx context.Context, namespace string) ([]string, error)
	Delete(ctx context.Context, namespace, key string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Option carries provider-specific configuration.
type Option struct {
	// BoltFilePath is the database file for the bolt provider.
	BoltFilePath string
	// RedisAddress and RedisPassword configure the redis provider.
	RedisAddress  string
	RedisPassword string
}

// NewServiceStorage instantiates the configured storage provider.
func NewServiceStorage(provider Type, option Option) (ServiceStorage, error) {
	switch provider {
	case Memory, "":
		return NewMemoryDB(), nil
	case Bolt:
		return NewBoltDB(option.BoltFilePath)
	case Redis:
		return NewRedisDB(option.RedisAddress, option.RedisPassword), nil
	default:
		return nil, errors.Errorf("unsupported storage provider: %s", provider)
	}
}

// MakeNamespace takes a set of possible namespace values and combines them as a convention
func MakeNamespace(ns ...string) string {
	return strings.Join(ns, "-")
}
