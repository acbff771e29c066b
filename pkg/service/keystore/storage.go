package keystore

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/goccy/go-json"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/spendgate/spendgate/internal/util"
	"github.com/spendgate/spendgate/pkg/storage"
)

const (
	namespace = "keystore"
	saltKey   = "service-key-salt"
)

// StoredKey is a signing key at rest. The key material is encrypted with the
// service key before it ever reaches the underlying store.
type StoredKey struct {
	ID         string `json:"id"`
	Controller string `json:"controller"`
	Base58Key  string `json:"key"`
	CreatedAt  string `json:"createdAt"`
}

// Storage wraps the service storage with encryption at rest for key material.
type Storage struct {
	db         storage.ServiceStorage
	serviceKey []byte
}

// NewKeyStoreStorage derives the service key from the password and a persisted
// salt, creating the salt on first boot. The same password and salt always
// yield the same service key, so previously stored keys stay readable.
func NewKeyStoreStorage(ctx context.Context, db storage.ServiceStorage, password string) (*Storage, error) {
	salt, err := loadOrCreateSalt(ctx, db)
	if err != nil {
		return nil, errors.Wrap(err, "preparing service key salt")
	}
	serviceKey, err := util.Argon2KeyGen(password, salt, chacha20poly1305.KeySize)
	if err != nil {
		return nil, errors.Wrap(err, "deriving service key")
	}
	return &Storage{db: db, serviceKey: serviceKey}, nil
}

func loadOrCreateSalt(ctx context.Context, db storage.ServiceStorage) ([]byte, error) {
	stored, err := db.Read(ctx, namespace, saltKey)
	if err != nil {
		return nil, errors.Wrap(err, "reading salt")
	}
	if len(stored) > 0 {
		return base64.StdEncoding.DecodeString(string(stored))
	}
	salt, err := util.GenerateSalt(util.Argon2SaltSize)
	if err != nil {
		return nil, errors.Wrap(err, "generating salt")
	}
	encoded := base64.StdEncoding.EncodeToString(salt)
	if err = db.Write(ctx, namespace, saltKey, []byte(encoded)); err != nil {
		return nil, errors.Wrap(err, "persisting salt")
	}
	return salt, nil
}

// StoreKey encrypts and persists a signing key.
func (s *Storage) StoreKey(ctx context.Context, id, controller string, privateKey []byte) error {
	encrypted, err := util.XChaCha20Poly1305Encrypt(s.serviceKey, privateKey)
	if err != nil {
		return errors.Wrapf(err, "encrypting key<%s>", id)
	}
	key := StoredKey{
		ID:         id,
		Controller: controller,
		Base58Key:  base58.Encode(encrypted),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	keyBytes, err := json.Marshal(key)
	if err != nil {
		return errors.Wrapf(err, "marshaling key<%s>", id)
	}
	return s.db.Write(ctx, namespace, id, keyBytes)
}

// GetKey fetches and decrypts a signing key. A missing key returns nil without error.
func (s *Storage) GetKey(ctx context.Context, id string) (*StoredKey, []byte, error) {
	stored, err := s.db.Read(ctx, namespace, id)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading key<%s>", id)
	}
	if len(stored) == 0 {
		return nil, nil, nil
	}
	var key StoredKey
	if err = json.Unmarshal(stored, &key); err != nil {
		return nil, nil, errors.Wrapf(err, "unmarshaling key<%s>", id)
	}
	encrypted, err := base58.Decode(key.Base58Key)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decoding key<%s>", id)
	}
	decrypted, err := util.XChaCha20Poly1305Decrypt(s.serviceKey, encrypted)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decrypting key<%s>", id)
	}
	return &key, decrypted, nil
}
