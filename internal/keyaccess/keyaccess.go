// Package keyaccess wraps the signing and verification primitives used across the
// service: data integrity proofs over canonical JSON documents, and JWT signing
// for access tokens.
package keyaccess

import (
	"crypto/ed25519"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	// KeyIDPrefix prefixes self-describing identifiers whose key material is
	// derivable from the identifier itself.
	KeyIDPrefix = "key:z"

	// FragmentDelimiter separates an identifier from its key fragment in a
	// verification method reference.
	FragmentDelimiter = "#"

	defaultKeyFragment = "key-1"
)

// JWT is a signed token in compact serialization.
type JWT string

func (j JWT) String() string {
	return string(j)
}

func (j JWT) Ptr() *JWT {
	return &j
}

// EncodeKeyID derives a self-describing identifier from an Ed25519 public key.
// Identifiers of this form can be resolved back to their key material without
// an external registry.
func EncodeKeyID(pubKey ed25519.PublicKey) string {
	return KeyIDPrefix + base58.Encode(pubKey)
}

// DecodeKeyID resolves a self-describing identifier to its Ed25519 public key.
func DecodeKeyID(id string) (ed25519.PublicKey, error) {
	if !strings.HasPrefix(id, KeyIDPrefix) {
		return nil, errors.Errorf("identifier<%s> is not a resolvable key identifier", id)
	}
	keyBytes, err := base58.Decode(strings.TrimPrefix(id, KeyIDPrefix))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding key material from identifier<%s>", id)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, errors.Errorf("identifier<%s> does not contain an ed25519 public key", id)
	}
	return keyBytes, nil
}

// VerificationMethodForID returns the default verification method reference for an identifier.
func VerificationMethodForID(id string) string {
	return id + FragmentDelimiter + defaultKeyFragment
}

// ControllerOfVerificationMethod strips the key fragment from a verification
// method reference, returning the controlling identifier.
func ControllerOfVerificationMethod(verificationMethod string) string {
	if idx := strings.Index(verificationMethod, FragmentDelimiter); idx >= 0 {
		return verificationMethod[:idx]
	}
	return verificationMethod
}

// ResolveKeyForVerificationMethod resolves the public key referenced by a
// verification method built from a self-describing identifier.
func ResolveKeyForVerificationMethod(verificationMethod string) (ed25519.PublicKey, error) {
	return DecodeKeyID(ControllerOfVerificationMethod(verificationMethod))
}
