// Package service instantiates all spendgate services and their dependencies
// independent of transport.
package service

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/spendgate/spendgate/config"
	"github.com/spendgate/spendgate/internal/util"
	"github.com/spendgate/spendgate/pkg/service/audit"
	"github.com/spendgate/spendgate/pkg/service/challenge"
	"github.com/spendgate/spendgate/pkg/service/exchange"
	"github.com/spendgate/spendgate/pkg/service/expense"
	"github.com/spendgate/spendgate/pkg/service/framework"
	"github.com/spendgate/spendgate/pkg/service/keystore"
	"github.com/spendgate/spendgate/pkg/service/token"
	"github.com/spendgate/spendgate/pkg/storage"
)

// SpendgateService represents all services and their dependencies independent
// of transport.
type SpendgateService struct {
	KeyStore  *keystore.Service
	Challenge *challenge.Service
	Exchange  *exchange.Service
	Token     *token.Service
	Expense   *expense.Service
	Audit     *audit.Service

	storage storage.ServiceStorage
}

// InstantiateSpendgateService creates all services wired together: the
// keystore supplies the token service's signing key, the exchange service
// drives the challenge and token services, and the expense service validates
// against the token service's published keys.
func InstantiateSpendgateService(ctx context.Context, cfg config.ServicesConfig, clk clock.Clock) (*SpendgateService, error) {
	storageProvider, err := storage.NewServiceStorage(storage.Type(cfg.StorageProvider), storage.Option{
		BoltFilePath:  cfg.BoltFilePath,
		RedisAddress:  cfg.RedisAddress,
		RedisPassword: cfg.RedisPassword,
	})
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "could not instantiate storage provider: %s", cfg.StorageProvider)
	}

	auditService, err := audit.NewAuditService(storageProvider, clk)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate the audit service")
	}

	keyStoreService, err := keystore.NewKeyStoreService(cfg.KeyStoreConfig, storageProvider)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate the keystore service")
	}
	signingKey, err := keyStoreService.GetOrCreateSigningKey(ctx)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not load the service signing key")
	}

	challengeService, err := challenge.NewChallengeService(cfg.ChallengeConfig, storageProvider, clk)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate the challenge service")
	}
	challengeService.StartReaper(ctx)

	tokenService, err := token.NewTokenService(cfg.TokenConfig, cfg.ServiceEndpoint, signingKey, clk)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate the token service")
	}

	registry := exchange.NewRegistry(cfg.ExchangeConfig)
	if refreshErr := registry.Refresh(ctx); refreshErr != nil {
		// fail-closed: the static set still applies, nothing new is trusted
		util.LoggingError(refreshErr)
	}
	exchangeService, err := exchange.NewExchangeService(cfg.ExchangeConfig, registry, challengeService,
		tokenService, auditService, cfg.ExpenseConfig.Audience, clk)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate the exchange service")
	}

	keySource, err := expenseKeySource(ctx, cfg.ExpenseConfig, tokenService)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate the expense key source")
	}
	validator, err := token.NewValidator(cfg.ExpenseConfig.Audience, keySource, clk)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate the token validator")
	}
	expenseService, err := expense.NewExpenseService(cfg.ExpenseConfig, storageProvider, validator, auditService, clk)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate the expense service")
	}

	return &SpendgateService{
		KeyStore:  keyStoreService,
		Challenge: challengeService,
		Exchange:  exchangeService,
		Token:     tokenService,
		Expense:   expenseService,
		Audit:     auditService,
		storage:   storageProvider,
	}, nil
}

// expenseKeySource picks in-process key sharing or a remote JWKS fetch
// depending on configuration.
func expenseKeySource(ctx context.Context, cfg config.ExpenseServiceConfig, tokenService *token.Service) (token.KeySource, error) {
	if cfg.JWKSEndpoint != "" {
		return token.NewRemoteKeySource(ctx, cfg.JWKSEndpoint, cfg.RefreshInterval)
	}
	set, err := tokenService.PublicKeySet()
	if err != nil {
		return nil, err
	}
	return token.NewStaticKeySource(set), nil
}

// GetServices returns all services for status reporting.
func (s *SpendgateService) GetServices() []framework.Service {
	return []framework.Service{
		s.KeyStore,
		s.Challenge,
		s.Exchange,
		s.Token,
		s.Expense,
		s.Audit,
	}
}

// Close stops background work and releases the storage provider.
func (s *SpendgateService) Close() error {
	s.Challenge.Stop()
	return s.storage.Close()
}
