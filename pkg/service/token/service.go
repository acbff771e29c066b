package token

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/spendgate/spendgate/config"
	"github.com/spendgate/spendgate/internal/keyaccess"
	"github.com/spendgate/spendgate/internal/util"
	"github.com/spendgate/spendgate/pkg/service/common"
	"github.com/spendgate/spendgate/pkg/service/framework"
)

// Service mints short-lived access tokens asserting a subject's grant set to a
// specific resource audience. The TTL is a deploy-time constant clamped to a
// hard cap; nothing in a request can raise it.
type Service struct {
	config config.TokenServiceConfig
	issuer string
	keys   *keyaccess.JWKKeyAccess
	clock  clock.Clock
}

func (s *Service) Type() framework.Type {
	return framework.Token
}

func (s *Service) Status() framework.Status {
	if s.keys == nil {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: "no signing key configured",
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func NewTokenService(cfg config.TokenServiceConfig, issuer string, keys *keyaccess.JWKKeyAccess, clk clock.Clock) (*Service, error) {
	if keys == nil {
		return nil, util.LoggingNewError("token service requires a signing key")
	}
	if cfg.TokenTTL <= 0 || cfg.TokenTTL > config.MaxTokenTTL {
		cfg.TokenTTL = config.MaxTokenTTL
	}
	return &Service{
		config: cfg,
		issuer: issuer,
		keys:   keys,
		clock:  clk,
	}, nil
}

// MintToken produces a signed token for the subject carrying the encoded grant
// set and a snapshot of the verified claims it was derived from.
func (s *Service) MintToken(_ context.Context, subject, audience string, grants common.GrantSet, claims map[string]any) (*MintedToken, error) {
	if subject == "" {
		return nil, util.LoggingNewError("cannot mint token without a subject")
	}
	if audience == "" {
		return nil, util.LoggingNewError("cannot mint token without an audience")
	}

	now := s.clock.Now()
	expiry := now.Add(s.config.TokenTTL)
	jti := uuid.NewString()
	scope := grants.Encode()

	builder := jwt.NewBuilder().
		Issuer(s.issuer).
		Subject(subject).
		Audience([]string{audience}).
		IssuedAt(now).
		Expiration(expiry).
		JwtID(jti).
		Claim(ScopeClaim, scope)
	if claims != nil {
		builder = builder.Claim(ClaimsSnapshotClaim, claims)
	}
	tok, err := builder.Build()
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "building token")
	}

	signed, err := s.keys.SignToken(tok)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "signing token")
	}

	return &MintedToken{
		Token:     *signed,
		ID:        jti,
		Subject:   subject,
		Audience:  audience,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: expiry,
	}, nil
}

// PublicKeySet exposes the signing key's public half for the resource side to
// verify against.
func (s *Service) PublicKeySet() (jwk.Set, error) {
	return s.keys.PublicKeySet()
}
