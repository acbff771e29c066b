package keystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendgate/spendgate/config"
	"github.com/spendgate/spendgate/pkg/storage"
)

func TestGetOrCreateSigningKeyIsStable(t *testing.T) {
	db := storage.NewMemoryDB()
	service, err := NewKeyStoreService(config.KeyStoreServiceConfig{ServiceKeyPassword: "test-password"}, db)
	require.NoError(t, err)

	first, err := service.GetOrCreateSigningKey(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID())
	assert.Equal(t, signingKeyID, first.KID())

	second, err := service.GetOrCreateSigningKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
}

func TestSigningKeySurvivesRestartWithSamePassword(t *testing.T) {
	boltDB, err := storage.NewBoltDB(t.TempDir() + "/keystore-test.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = boltDB.Close() })

	service, err := NewKeyStoreService(config.KeyStoreServiceConfig{ServiceKeyPassword: "test-password"}, boltDB)
	require.NoError(t, err)
	first, err := service.GetOrCreateSigningKey(context.Background())
	require.NoError(t, err)

	// a second service instance over the same store reads the same key
	reopened, err := NewKeyStoreService(config.KeyStoreServiceConfig{ServiceKeyPassword: "test-password"}, boltDB)
	require.NoError(t, err)
	second, err := reopened.GetOrCreateSigningKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
}

func TestWrongPasswordCannotDecryptKey(t *testing.T) {
	db := storage.NewMemoryDB()
	service, err := NewKeyStoreService(config.KeyStoreServiceConfig{ServiceKeyPassword: "correct-password"}, db)
	require.NoError(t, err)
	_, err = service.GetOrCreateSigningKey(context.Background())
	require.NoError(t, err)

	intruder, err := NewKeyStoreService(config.KeyStoreServiceConfig{ServiceKeyPassword: "wrong-password"}, db)
	require.NoError(t, err)
	_, err = intruder.GetOrCreateSigningKey(context.Background())
	assert.Error(t, err)
}

func TestRotateSigningKey(t *testing.T) {
	db := storage.NewMemoryDB()
	service, err := NewKeyStoreService(config.KeyStoreServiceConfig{ServiceKeyPassword: "test-password"}, db)
	require.NoError(t, err)

	original, err := service.GetOrCreateSigningKey(context.Background())
	require.NoError(t, err)

	rotated, err := service.RotateSigningKey(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, original.ID(), rotated.ID())

	current, err := service.GetOrCreateSigningKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rotated.ID(), current.ID())
}

func TestKeyStoreRequiresPassword(t *testing.T) {
	_, err := NewKeyStoreService(config.KeyStoreServiceConfig{}, storage.NewMemoryDB())
	assert.Error(t, err)
}
