// Package testutil provides fixtures shared by tests across packages: issuer
// identities and signed credentials.
package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spendgate/spendgate/internal/credential"
	"github.com/spendgate/spendgate/internal/keyaccess"
)

// Issuer is a credential-issuing identity with its signing key.
type Issuer struct {
	ID        string
	KeyAccess *keyaccess.DataIntegrityKeyAccess
}

// NewIssuer generates an issuer with a fresh Ed25519 key pair.
func NewIssuer() (*Issuer, error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating issuer key")
	}
	id := keyaccess.EncodeKeyID(pubKey)
	ka, err := keyaccess.NewDataIntegrityKeyAccess(id, privKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating issuer key access")
	}
	return &Issuer{ID: id, KeyAccess: ka}, nil
}

// IssueEmployment issues a signed employment credential to the subject.
func (i *Issuer) IssueEmployment(subject, employer, role string, validFrom time.Time) (*credential.Credential, error) {
	cred := credential.Credential{
		ID:        uuid.NewString(),
		Kind:      credential.KindEmployment,
		Issuer:    i.ID,
		Subject:   subject,
		ValidFrom: validFrom,
		Claims:    credential.EmploymentClaims{Employer: employer, Role: role},
	}
	if err := credential.SignCredential(i.KeyAccess, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// IssueApprovalAuthority issues a signed approval authority credential with the
// given ceiling, valid from validFrom until validUntil when set.
func (i *Issuer) IssueApprovalAuthority(subject string, ceiling int64, validFrom time.Time, validUntil *time.Time) (*credential.Credential, error) {
	cred := credential.Credential{
		ID:         uuid.NewString(),
		Kind:       credential.KindApprovalAuthority,
		Issuer:     i.ID,
		Subject:    subject,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		Claims:     credential.ApprovalAuthorityClaims{ApprovalCeiling: ceiling, Currency: "USD"},
	}
	if err := credential.SignCredential(i.KeyAccess, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}
