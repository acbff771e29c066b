package keystore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/spendgate/spendgate/config"
	"github.com/spendgate/spendgate/internal/keyaccess"
	"github.com/spendgate/spendgate/internal/util"
	"github.com/spendgate/spendgate/pkg/service/framework"
	"github.com/spendgate/spendgate/pkg/storage"
)

// signingKeyID names the service's token signing key within the store and the
// published key set.
const signingKeyID = "spendgate-signing-key-1"

// Service holds the authorization server's signing key, encrypted at rest with
// a key derived from the configured service password.
type Service struct {
	storage *Storage
	config  config.KeyStoreServiceConfig
}

func (s *Service) Type() framework.Type {
	return framework.KeyStore
}

func (s *Service) Status() framework.Status {
	if s.storage == nil {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: "no storage",
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func NewKeyStoreService(cfg config.KeyStoreServiceConfig, db storage.ServiceStorage) (*Service, error) {
	if cfg.ServiceKeyPassword == "" {
		return nil, util.LoggingNewError("keystore requires a service key password")
	}
	keyStoreStorage, err := NewKeyStoreStorage(context.Background(), db, cfg.ServiceKeyPassword)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating storage for the keystore service")
	}
	return &Service{
		storage: keyStoreStorage,
		config:  cfg,
	}, nil
}

// GetOrCreateSigningKey returns key access for the service's token signing key,
// generating and persisting a fresh Ed25519 key pair on first boot.
func (s *Service) GetOrCreateSigningKey(ctx context.Context) (*keyaccess.JWKKeyAccess, error) {
	stored, privateKey, err := s.storage.GetKey(ctx, signingKeyID)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "loading signing key")
	}
	if stored != nil {
		return keyaccess.NewJWKKeyAccess(stored.Controller, stored.ID, privateKey)
	}

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "generating signing key")
	}
	controller := keyaccess.EncodeKeyID(pubKey)
	if err = s.storage.StoreKey(ctx, signingKeyID, controller, privKey); err != nil {
		return nil, util.LoggingErrorMsg(err, "storing signing key")
	}
	logrus.WithField("controller", controller).Info("generated new service signing key")
	return keyaccess.NewJWKKeyAccess(controller, signingKeyID, privKey)
}

// RotateSigningKey replaces the stored signing key with a freshly generated one.
// Tokens signed with the previous key fail verification once the resource side
// refreshes its key set.
func (s *Service) RotateSigningKey(ctx context.Context) (*keyaccess.JWKKeyAccess, error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating replacement key")
	}
	controller := keyaccess.EncodeKeyID(pubKey)
	if err = s.storage.StoreKey(ctx, signingKeyID, controller, privKey); err != nil {
		return nil, errors.Wrap(err, "storing replacement key")
	}
	logrus.WithField("controller", controller).Info("rotated service signing key")
	return keyaccess.NewJWKKeyAccess(controller, signingKeyID, privKey)
}
