// Package wallet holds a holder's credentials and assembles challenge-bound
// presentations from them. It lives on the holder's side of the trust boundary:
// the service never stores a presentation, and a wallet never mints a nonce.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spendgate/spendgate/internal/credential"
	"github.com/spendgate/spendgate/internal/keyaccess"
)

// Wallet is an in-memory credential holder bound to one Ed25519 key pair.
type Wallet struct {
	id          string
	keyAccess   *keyaccess.DataIntegrityKeyAccess
	credentials []credential.Credential
}

// New creates a wallet with a fresh key pair and a self-describing identifier
// derived from it.
func New() (*Wallet, error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating wallet key")
	}
	id := keyaccess.EncodeKeyID(pubKey)
	ka, err := keyaccess.NewDataIntegrityKeyAccess(id, privKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating wallet key access")
	}
	return &Wallet{id: id, keyAccess: ka}, nil
}

// ID returns the wallet's holder identifier.
func (w *Wallet) ID() string {
	return w.id
}

// AddCredential stores a credential issued to this wallet's identifier.
func (w *Wallet) AddCredential(cred credential.Credential) error {
	if cred.Subject != w.id {
		return errors.Errorf("credential<%s> was not issued to this wallet", cred.ID)
	}
	if cred.Proof == nil {
		return errors.Errorf("credential<%s> carries no proof", cred.ID)
	}
	w.credentials = append(w.credentials, cred)
	return nil
}

// Credentials returns the stored credentials.
func (w *Wallet) Credentials() []credential.Credential {
	return w.credentials
}

// CredentialsOfKind returns the stored credentials matching any of the given kinds.
func (w *Wallet) CredentialsOfKind(kinds ...credential.Kind) []credential.Credential {
	wanted := make(map[credential.Kind]bool, len(kinds))
	for _, kind := range kinds {
		wanted[kind] = true
	}
	var matched []credential.Credential
	for _, cred := range w.credentials {
		if wanted[cred.Kind] {
			matched = append(matched, cred)
		}
	}
	return matched
}

// CreatePresentation bundles the wallet's credentials of the required kinds and
// signs the bundle with an authentication-purpose proof binding the challenge
// and domain. The signature covers the whole document, so neither the nonce nor
// the credential list can be swapped afterwards.
func (w *Wallet) CreatePresentation(challenge, domain string, requiredKinds ...credential.Kind) (*credential.Presentation, error) {
	if challenge == "" || domain == "" {
		return nil, errors.New("presentations must be bound to a challenge and domain")
	}
	bundle := w.CredentialsOfKind(requiredKinds...)
	if len(bundle) < len(requiredKinds) {
		return nil, errors.Errorf("wallet holds %d of the %d required credential kinds", len(bundle), len(requiredKinds))
	}
	presentation := credential.Presentation{
		ID:          uuid.NewString(),
		Holder:      w.id,
		Credentials: bundle,
	}
	if err := w.keyAccess.Sign(&presentation, keyaccess.Authentication, keyaccess.WithChallenge(challenge, domain)); err != nil {
		return nil, errors.Wrap(err, "signing presentation")
	}
	return &presentation, nil
}
