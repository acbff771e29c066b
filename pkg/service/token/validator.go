package token

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"

	"github.com/spendgate/spendgate/internal/keyaccess"
	"github.com/spendgate/spendgate/internal/util"
	"github.com/spendgate/spendgate/pkg/service/common"
)

// KeySource supplies the issuer's current public key set. Implementations
// cache; Refresh forces a re-fetch after a verification miss, which is how key
// rotation is tolerated without ever accepting a key that was never published.
type KeySource interface {
	Get(ctx context.Context) (jwk.Set, error)
	Refresh(ctx context.Context) (jwk.Set, error)
}

// StaticKeySource wraps a fixed key set, used when the authorization server and
// resource server share a process.
type StaticKeySource struct {
	set jwk.Set
}

func NewStaticKeySource(set jwk.Set) *StaticKeySource {
	return &StaticKeySource{set: set}
}

func (s *StaticKeySource) Get(context.Context) (jwk.Set, error) {
	return s.set, nil
}

func (s *StaticKeySource) Refresh(context.Context) (jwk.Set, error) {
	return s.set, nil
}

// RemoteKeySource fetches the issuer's JWKS over HTTP, re-fetching on a timer.
type RemoteKeySource struct {
	cache    *jwk.Cache
	endpoint string
}

func NewRemoteKeySource(ctx context.Context, endpoint string, refreshInterval time.Duration) (*RemoteKeySource, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(endpoint, jwk.WithMinRefreshInterval(refreshInterval)); err != nil {
		return nil, errors.Wrap(err, "registering jwks endpoint")
	}
	return &RemoteKeySource{cache: cache, endpoint: endpoint}, nil
}

func (r *RemoteKeySource) Get(ctx context.Context) (jwk.Set, error) {
	return r.cache.Get(ctx, r.endpoint)
}

func (r *RemoteKeySource) Refresh(ctx context.Context) (jwk.Set, error) {
	return r.cache.Refresh(ctx, r.endpoint)
}

// Validator checks minted tokens on the resource side: signature against the
// issuer's published keys, strict expiry, and audience.
type Validator struct {
	audience string
	keys     KeySource
	clock    clock.Clock
}

func NewValidator(audience string, keys KeySource, clk clock.Clock) (*Validator, error) {
	if audience == "" {
		return nil, util.LoggingNewError("validator requires an audience identity")
	}
	if keys == nil {
		return nil, util.LoggingNewError("validator requires a key source")
	}
	return &Validator{
		audience: audience,
		keys:     keys,
		clock:    clk,
	}, nil
}

// ValidateToken verifies the compact token and returns its grant set and claims
// snapshot. A token that fails any check yields a typed error and nothing else.
func (v *Validator) ValidateToken(ctx context.Context, token keyaccess.JWT) (*ValidatedToken, error) {
	if token == "" {
		return nil, &SignatureError{Cause: errors.New("token is empty")}
	}

	parsed, err := v.parseAndVerify(ctx, token)
	if err != nil {
		return nil, &SignatureError{Cause: err}
	}

	// strict expiry: a token is dead the instant now reaches exp
	now := v.clock.Now()
	expiry := parsed.Expiration()
	if !now.Before(expiry) {
		return nil, &ExpiredError{Expiry: expiry}
	}

	if !containsAudience(parsed.Audience(), v.audience) {
		return nil, &AudienceError{Expected: v.audience}
	}

	grants := make(common.GrantSet)
	if scopeRaw, ok := parsed.Get(ScopeClaim); ok {
		scope, ok := scopeRaw.(string)
		if !ok {
			return nil, errors.New("token scope claim is not a string")
		}
		if grants, err = common.ParseGrantSet(scope); err != nil {
			return nil, errors.Wrap(err, "parsing token scope")
		}
	}

	var snapshot map[string]any
	if claimsRaw, ok := parsed.Get(ClaimsSnapshotClaim); ok {
		snapshot, _ = claimsRaw.(map[string]any)
	}

	return &ValidatedToken{
		ID:       parsed.JwtID(),
		Subject:  parsed.Subject(),
		Audience: v.audience,
		Grants:   grants,
		Claims:   snapshot,
		Expiry:   expiry,
	}, nil
}

// parseAndVerify checks the signature against the cached key set, refreshing
// once on a miss to pick up rotated keys.
func (v *Validator) parseAndVerify(ctx context.Context, token keyaccess.JWT) (jwt.Token, error) {
	set, err := v.keys.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching key set")
	}
	parsed, err := jwt.Parse([]byte(token), jwt.WithKeySet(set), jwt.WithValidate(false))
	if err == nil {
		return parsed, nil
	}

	set, refreshErr := v.keys.Refresh(ctx)
	if refreshErr != nil {
		return nil, errors.Wrap(err, "verifying token")
	}
	parsed, retryErr := jwt.Parse([]byte(token), jwt.WithKeySet(set), jwt.WithValidate(false))
	if retryErr != nil {
		return nil, errors.Wrap(retryErr, "verifying token after key refresh")
	}
	return parsed, nil
}

func containsAudience(audiences []string, expected string) bool {
	for _, audience := range audiences {
		if audience == expected {
			return true
		}
	}
	return false
}
