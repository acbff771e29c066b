package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/spendgate/spendgate/pkg/storage"
)

const namespace = "challenge"

// Storage is the nonce ledger's persistence contract. ConsumeChallenge must be
// linearizable per nonce: of N concurrent consumers exactly one observes
// success and the rest observe a used rejection.
type Storage interface {
	StoreChallenge(ctx context.Context, entry StoredChallenge) error
	ConsumeChallenge(ctx context.Context, nonce, domain string, now time.Time) (*StoredChallenge, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
	ListChallenges(ctx context.Context) ([]StoredChallenge, error)
}

// NewChallengeStorage selects the ledger implementation matching the configured
// storage provider.
func NewChallengeStorage(db storage.ServiceStorage) (Storage, error) {
	switch s := db.(type) {
	case *storage.BoltDB:
		return &boltChallengeStorage{db: s}, nil
	case *storage.RedisDB:
		return &redisChallengeStorage{db: s}, nil
	case *storage.MemoryDB:
		return newMemoryChallengeStorage(), nil
	default:
		return nil, errors.Errorf("no challenge storage for provider: %s", db.Type())
	}
}

// checkEntry applies the consumption checks shared by all implementations.
// Order is fixed: used before expired before domain mismatch, so that a nonce
// consumed once keeps reporting used for its remaining lifetime.
func checkEntry(entry *StoredChallenge, domain string, now time.Time) *ReplayError {
	if entry.Used {
		return &ReplayError{Reason: ReasonUsed}
	}
	if !now.Before(entry.ExpiresAt) {
		return &ReplayError{Reason: ReasonExpired}
	}
	if entry.Domain != domain {
		return &ReplayError{Reason: ReasonDomainMismatch}
	}
	return nil
}

// memoryChallengeStorage is a mutex-guarded map. The single lock makes the
// check-and-mark transition trivially linearizable.
type memoryChallengeStorage struct {
	mu      sync.Mutex
	entries map[string]*StoredChallenge
}

func newMemoryChallengeStorage() *memoryChallengeStorage {
	return &memoryChallengeStorage{entries: make(map[string]*StoredChallenge)}
}

func (m *memoryChallengeStorage) StoreChallenge(_ context.Context, entry StoredChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.Nonce]; ok {
		return errors.Errorf("challenge<%s> already exists", entry.Nonce)
	}
	m.entries[entry.Nonce] = &entry
	return nil
}

func (m *memoryChallengeStorage) ConsumeChallenge(_ context.Context, nonce, domain string, now time.Time) (*StoredChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[nonce]
	if !ok {
		return nil, &ReplayError{Reason: ReasonUnknown}
	}
	if rejection := checkEntry(entry, domain, now); rejection != nil {
		return nil, rejection
	}
	entry.Used = true
	consumed := *entry
	return &consumed, nil
}

func (m *memoryChallengeStorage) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for nonce, entry := range m.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(m.entries, nonce)
			purged++
		}
	}
	return purged, nil
}

func (m *memoryChallengeStorage) ListChallenges(_ context.Context) ([]StoredChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]StoredChallenge, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, *entry)
	}
	return entries, nil
}

// boltChallengeStorage keeps entries in a bolt bucket. Consumption runs in a
// single write transaction, which bolt serializes.
type boltChallengeStorage struct {
	db *storage.BoltDB
}

func (b *boltChallengeStorage) StoreChallenge(ctx context.Context, entry StoredChallenge) error {
	entryBytes, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshaling challenge entry")
	}
	return b.db.Write(ctx, namespace, entry.Nonce, entryBytes)
}

func (b *boltChallengeStorage) ConsumeChallenge(_ context.Context, nonce, domain string, now time.Time) (*StoredChallenge, error) {
	var consumed *StoredChallenge
	err := b.db.UpdateTx(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return &ReplayError{Reason: ReasonUnknown}
		}
		entryBytes := bucket.Get([]byte(nonce))
		if entryBytes == nil {
			return &ReplayError{Reason: ReasonUnknown}
		}
		var entry StoredChallenge
		if err := json.Unmarshal(entryBytes, &entry); err != nil {
			return errors.Wrap(err, "unmarshaling challenge entry")
		}
		if rejection := checkEntry(&entry, domain, now); rejection != nil {
			return rejection
		}
		entry.Used = true
		updatedBytes, err := json.Marshal(entry)
		if err != nil {
			return errors.Wrap(err, "marshaling consumed entry")
		}
		if err = bucket.Put([]byte(nonce), updatedBytes); err != nil {
			return err
		}
		consumed = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

func (b *boltChallengeStorage) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	purged := 0
	err := b.db.UpdateTx(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return nil
		}
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var entry StoredChallenge
			if err := json.Unmarshal(v, &entry); err != nil {
				continue
			}
			if !now.Before(entry.ExpiresAt) {
				if err := cursor.Delete(); err != nil {
					return err
				}
				purged++
			}
		}
		return nil
	})
	return purged, err
}

func (b *boltChallengeStorage) ListChallenges(ctx context.Context) ([]StoredChallenge, error) {
	all, err := b.db.ReadAll(ctx, namespace)
	if err != nil {
		return nil, err
	}
	entries := make([]StoredChallenge, 0, len(all))
	for _, value := range all {
		var entry StoredChallenge
		if err = json.Unmarshal(value, &entry); err != nil {
			return nil, errors.Wrap(err, "unmarshaling challenge entry")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// consumeScript atomically applies the check-and-mark transition server-side,
// so that concurrent consumers across processes still elect a single winner.
// Returns the entry's prior state as a status string, or the consumed entry.
const consumeScript = `
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 'unknown'
end
local entry = cjson.decode(raw)
if entry.used then
  return 'used'
end
if tonumber(ARGV[2]) >= entry.expiresAtUnix then
  return 'expired'
end
if entry.domain ~= ARGV[1] then
  return 'domain_mismatch'
end
entry.used = true
redis.call('SET', KEYS[1], cjson.encode(entry))
return raw
`

// redisEntry mirrors StoredChallenge with a numeric expiry the script can compare.
type redisEntry struct {
	StoredChallenge
	ExpiresAtUnix int64 `json:"expiresAtUnix"`
}

type redisChallengeStorage struct {
	db *storage.RedisDB
}

func (r *redisChallengeStorage) StoreChallenge(ctx context.Context, entry StoredChallenge) error {
	entryBytes, err := json.Marshal(redisEntry{StoredChallenge: entry, ExpiresAtUnix: entry.ExpiresAt.Unix()})
	if err != nil {
		return errors.Wrap(err, "marshaling challenge entry")
	}
	return r.db.Write(ctx, namespace, entry.Nonce, entryBytes)
}

func (r *redisChallengeStorage) ConsumeChallenge(ctx context.Context, nonce, domain string, now time.Time) (*StoredChallenge, error) {
	key := storage.MakeNamespace(namespace, nonce)
	result, err := r.db.Client().Eval(ctx, consumeScript, []string{key}, domain, now.Unix()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "evaluating consume script")
	}
	raw, ok := result.(string)
	if !ok {
		return nil, errors.Errorf("unexpected consume script result: %v", result)
	}
	switch raw {
	case string(ReasonUnknown), string(ReasonUsed), string(ReasonExpired), string(ReasonDomainMismatch):
		return nil, &ReplayError{Reason: RejectionReason(raw)}
	}
	var entry redisEntry
	if err = json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, errors.Wrap(err, "unmarshaling consumed entry")
	}
	entry.Used = true
	consumed := entry.StoredChallenge
	return &consumed, nil
}

func (r *redisChallengeStorage) ListChallenges(ctx context.Context) ([]StoredChallenge, error) {
	all, err := r.db.ReadAll(ctx, namespace)
	if err != nil {
		return nil, err
	}
	entries := make([]StoredChallenge, 0, len(all))
	for _, value := range all {
		var entry redisEntry
		if err = json.Unmarshal(value, &entry); err != nil {
			return nil, errors.Wrap(err, "unmarshaling challenge entry")
		}
		entries = append(entries, entry.StoredChallenge)
	}
	return entries, nil
}

func (r *redisChallengeStorage) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	all, err := r.db.ReadAll(ctx, namespace)
	if err != nil {
		return 0, err
	}
	purged := 0
	for key, value := range all {
		var entry redisEntry
		if err = json.Unmarshal(value, &entry); err != nil {
			continue
		}
		if !now.Before(entry.ExpiresAt) {
			if err = r.db.Delete(ctx, namespace, key); err != nil {
				return purged, err
			}
			purged++
		}
	}
	return purged, nil
}
