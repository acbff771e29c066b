package keyaccess

import (
	"crypto/ed25519"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
)

// JWKKeyAccess signs and verifies JWTs with an Ed25519 key held as a JWK.
type JWKKeyAccess struct {
	id      string
	kid     string
	signKey jwk.Key
	pubKey  jwk.Key
}

// NewJWKKeyAccess creates a JWKKeyAccess object from an id, key id, and private
// key, able to both sign and verify.
func NewJWKKeyAccess(id, kid string, key ed25519.PrivateKey) (*JWKKeyAccess, error) {
	if id == "" {
		return nil, errors.New("id cannot be empty")
	}
	if kid == "" {
		return nil, errors.New("kid cannot be empty")
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("key must be a valid ed25519 private key")
	}
	signKey, err := jwk.FromRaw(key)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create JWK for kid: %s", kid)
	}
	if err = signKey.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, errors.Wrap(err, "setting key id")
	}
	if err = signKey.Set(jwk.AlgorithmKey, jwa.EdDSA); err != nil {
		return nil, errors.Wrap(err, "setting algorithm")
	}
	pubKey, err := signKey.PublicKey()
	if err != nil {
		return nil, errors.Wrapf(err, "could not derive public JWK for kid: %s", kid)
	}
	return &JWKKeyAccess{
		id:      id,
		kid:     kid,
		signKey: signKey,
		pubKey:  pubKey,
	}, nil
}

// ID returns the key controller's identifier.
func (ka JWKKeyAccess) ID() string {
	return ka.id
}

// KID returns the key's identifier within the published key set.
func (ka JWKKeyAccess) KID() string {
	return ka.kid
}

// SignToken signs the given token, returning its compact serialization.
func (ka JWKKeyAccess) SignToken(token jwt.Token) (*JWT, error) {
	if token == nil {
		return nil, errors.New("token cannot be nil")
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.EdDSA, ka.signKey))
	if err != nil {
		return nil, errors.Wrap(err, "could not sign token")
	}
	signedJWT := JWT(signed)
	return &signedJWT, nil
}

// Verify checks the token's signature against this key access object's public key.
func (ka JWKKeyAccess) Verify(token JWT) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	if _, err := jwt.Parse([]byte(token), jwt.WithKey(jwa.EdDSA, ka.pubKey), jwt.WithValidate(false)); err != nil {
		return errors.Wrap(err, "verifying token signature")
	}
	return nil
}

// PublicKeySet returns the public portion of the signing key as a JWK set,
// suitable for publication.
func (ka JWKKeyAccess) PublicKeySet() (jwk.Set, error) {
	set := jwk.NewSet()
	if err := set.AddKey(ka.pubKey); err != nil {
		return nil, errors.Wrap(err, "adding public key to set")
	}
	return set, nil
}
