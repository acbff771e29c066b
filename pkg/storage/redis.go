package storage

import (
	"context"
	"fmt"

	goredislib "github.com/redis/go-redis/v9"
)

const redisScanBatchSize = 1000

// RedisDB is a redis-backed implementation of ServiceStorage.
type RedisDB struct {
	db *goredislib.Client
}

func NewRedisDB(address, password string) *RedisDB {
	client := goredislib.NewClient(&goredislib.Options{
		Addr:     address,
		Password: password,
	})
	return &RedisDB{db: client}
}

// NewRedisDBWithClient wraps an existing client. Used by tests running against miniredis.
func NewRedisDBWithClient(client *goredislib.Client) *RedisDB {
	return &RedisDB{db: client}
}

// Client exposes the underlying client for callers that need scripting.
func (b *RedisDB) Client() *goredislib.Client {
	return b.db
}

func (b *RedisDB) Type() Type {
	return Redis
}

func (b *RedisDB) Close() error {
	return b.db.Close()
}

func (b *RedisDB) Write(ctx context.Context, namespace, key string, value []byte) error {
	// zero expiration means the key has no expiration time
	return b.db.Set(ctx, getRedisKey(namespace, key), value, 0).Err()
}

func (b *RedisDB) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	value, err := b.db.Get(ctx, getRedisKey(namespace, key)).Bytes()
	if err == goredislib.Nil {
		return nil, nil
	}
	return value, err
}

func (b *RedisDB) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	keys, err := b.readAllKeys(ctx, namespace)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, err := b.db.Get(ctx, key).Bytes()
		if err == goredislib.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[key[len(namespace)+1:]] = value
	}
	return result, nil
}

func (b *RedisDB) ReadAllKeys(ctx context.Context, namespace string) ([]string, error) {
	keys, err := b.readAllKeys(ctx, namespace)
	if err != nil {
		return nil, err
	}
	trimmed := make([]string, 0, len(keys))
	for _, key := range keys {
		trimmed = append(trimmed, key[len(namespace)+1:])
	}
	return trimmed, nil
}

func (b *RedisDB) readAllKeys(ctx context.Context, namespace string) ([]string, error) {
	var cursor uint64
	allKeys := make([]string, 0)
	for {
		keys, nextCursor, err := b.db.Scan(ctx, cursor, namespace+"-*", redisScanBatchSize).Result()
		if err != nil {
			return nil, err
		}
		allKeys = append(allKeys, keys...)
		if nextCursor == 0 {
			break
		}
		cursor = nextCursor
	}
	return allKeys, nil
}

func (b *RedisDB) Delete(ctx context.Context, namespace, key string) error {
	return b.db.Del(ctx, getRedisKey(namespace, key)).Err()
}

func (b *RedisDB) DeleteNamespace(ctx context.Context, namespace string) error {
	keys, err := b.readAllKeys(ctx, namespace)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return b.db.Del(ctx, keys...).Err()
}

func getRedisKey(namespace, key string) string {
	return fmt.Sprintf("%s-%s", namespace, key)
}
