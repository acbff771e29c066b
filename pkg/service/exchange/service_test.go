package exchange

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendgate/spendgate/config"
	"github.com/spendgate/spendgate/internal/keyaccess"
	"github.com/spendgate/spendgate/pkg/service/challenge"
	"github.com/spendgate/spendgate/pkg/service/common"
	"github.com/spendgate/spendgate/pkg/service/token"
	"github.com/spendgate/spendgate/pkg/storage"
	"github.com/spendgate/spendgate/pkg/testutil"
	"github.com/spendgate/spendgate/pkg/wallet"
)

const testAudience = "spendgate:expenses"

type exchangeFixture struct {
	service   *Service
	challenge *challenge.Service
	issuer    *testutil.Issuer
	wallet    *wallet.Wallet
	clock     *clock.Mock
}

func newExchangeFixture(t *testing.T) *exchangeFixture {
	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC))

	challengeService, err := challenge.NewChallengeService(config.ChallengeServiceConfig{
		NonceTTL:     300 * time.Second,
		ReapInterval: 60 * time.Second,
	}, storage.NewMemoryDB(), mockClock)
	require.NoError(t, err)

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	serviceID := keyaccess.EncodeKeyID(pubKey)
	keys, err := keyaccess.NewJWKKeyAccess(serviceID, "spendgate-signing-key", privKey)
	require.NoError(t, err)
	tokenService, err := token.NewTokenService(config.TokenServiceConfig{TokenTTL: 60 * time.Second},
		"http://localhost:8080", keys, mockClock)
	require.NoError(t, err)

	issuer, err := testutil.NewIssuer()
	require.NoError(t, err)
	holderWallet, err := wallet.New()
	require.NoError(t, err)

	validFrom := mockClock.Now().Add(-time.Hour)
	employment, err := issuer.IssueEmployment(holderWallet.ID(), "Acme Corp", "manager", validFrom)
	require.NoError(t, err)
	require.NoError(t, holderWallet.AddCredential(*employment))
	approval, err := issuer.IssueApprovalAuthority(holderWallet.ID(), 10000, validFrom, nil)
	require.NoError(t, err)
	require.NoError(t, holderWallet.AddCredential(*approval))

	registry := NewRegistry(config.ExchangeServiceConfig{TrustedIssuers: []string{issuer.ID}})
	exchangeService, err := NewExchangeService(config.ExchangeServiceConfig{}, registry,
		challengeService, tokenService, nil, testAudience, mockClock)
	require.NoError(t, err)

	return &exchangeFixture{
		service:   exchangeService,
		challenge: challengeService,
		issuer:    issuer,
		wallet:    holderWallet,
		clock:     mockClock,
	}
}

func TestExchangePresentationMintsScopedToken(t *testing.T) {
	f := newExchangeFixture(t)

	issued, err := f.challenge.IssueChallenge(context.Background(), testDomain, common.ActionApprove)
	require.NoError(t, err)

	presentation, err := f.wallet.CreatePresentation(issued.Nonce, testDomain, issued.RequiredCredentialTypes...)
	require.NoError(t, err)

	minted, err := f.service.ExchangePresentation(context.Background(), presentation, issued.Nonce, testDomain)
	require.NoError(t, err)
	assert.Equal(t, f.wallet.ID(), minted.Subject)
	assert.Equal(t, testAudience, minted.Audience)
	assert.Equal(t, "approve:10000", minted.Scope)
	assert.Equal(t, 60*time.Second, minted.ExpiresAt.Sub(minted.IssuedAt))
	assert.NotEmpty(t, minted.ID)
	assert.NotEmpty(t, minted.Token)
}

func TestExchangePresentationReplayRejected(t *testing.T) {
	f := newExchangeFixture(t)

	issued, err := f.challenge.IssueChallenge(context.Background(), testDomain, common.ActionApprove)
	require.NoError(t, err)
	presentation, err := f.wallet.CreatePresentation(issued.Nonce, testDomain, issued.RequiredCredentialTypes...)
	require.NoError(t, err)

	_, err = f.service.ExchangePresentation(context.Background(), presentation, issued.Nonce, testDomain)
	require.NoError(t, err)

	// replaying the identical, cryptographically valid presentation yields
	// exactly zero additional tokens
	_, err = f.service.ExchangePresentation(context.Background(), presentation, issued.Nonce, testDomain)
	var replay *challenge.ReplayError
	require.ErrorAs(t, err, &replay)
	assert.Equal(t, challenge.ReasonUsed, replay.Reason)
}

func TestExchangePresentationFailedVerificationPreservesNonce(t *testing.T) {
	f := newExchangeFixture(t)

	issued, err := f.challenge.IssueChallenge(context.Background(), testDomain, common.ActionSubmit)
	require.NoError(t, err)
	presentation, err := f.wallet.CreatePresentation(issued.Nonce, testDomain, issued.RequiredCredentialTypes...)
	require.NoError(t, err)

	// wrong asserted domain fails binding without consuming the challenge
	_, err = f.service.ExchangePresentation(context.Background(), presentation, issued.Nonce, "elsewhere.example")
	var verification *VerificationError
	require.ErrorAs(t, err, &verification)

	_, err = f.service.ExchangePresentation(context.Background(), presentation, issued.Nonce, testDomain)
	assert.NoError(t, err)
}

func TestExchangePresentationNarrowsToIntent(t *testing.T) {
	f := newExchangeFixture(t)

	issued, err := f.challenge.IssueChallenge(context.Background(), testDomain, common.ActionView)
	require.NoError(t, err)
	// present both credentials despite the view-only intent
	presentation, err := f.wallet.CreatePresentation(issued.Nonce, testDomain,
		f.wallet.Credentials()[0].Kind, f.wallet.Credentials()[1].Kind)
	require.NoError(t, err)

	minted, err := f.service.ExchangePresentation(context.Background(), presentation, issued.Nonce, testDomain)
	require.NoError(t, err)
	assert.Equal(t, "view", minted.Scope)
}

func TestExchangePresentationExpiredChallenge(t *testing.T) {
	f := newExchangeFixture(t)

	issued, err := f.challenge.IssueChallenge(context.Background(), testDomain, common.ActionSubmit)
	require.NoError(t, err)
	presentation, err := f.wallet.CreatePresentation(issued.Nonce, testDomain, issued.RequiredCredentialTypes...)
	require.NoError(t, err)

	f.clock.Add(301 * time.Second)

	_, err = f.service.ExchangePresentation(context.Background(), presentation, issued.Nonce, testDomain)
	var replay *challenge.ReplayError
	require.ErrorAs(t, err, &replay)
	assert.Equal(t, challenge.ReasonExpired, replay.Reason)
}
