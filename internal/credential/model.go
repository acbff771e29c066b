// Package credential defines the typed credential and presentation documents
// exchanged over the trust boundary.
package credential

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/spendgate/spendgate/internal/keyaccess"
)

// Kind tags a credential with its claim variant.
type Kind string

const (
	// KindEmployment attests that the subject is employed by the issuer.
	KindEmployment Kind = "EmploymentCredential"

	// KindApprovalAuthority attests that the subject may approve expenses up to
	// a signed numeric ceiling.
	KindApprovalAuthority Kind = "ApprovalAuthorityCredential"
)

// Claims is the typed payload of a credential. The set of variants is closed:
// consumers match on the concrete type and treat anything else as granting
// nothing.
type Claims interface {
	ClaimKind() Kind
}

// EmploymentClaims asserts an employment relationship.
type EmploymentClaims struct {
	Employer string `json:"employer" validate:"required"`
	Role     string `json:"role,omitempty"`
}

func (EmploymentClaims) ClaimKind() Kind { return KindEmployment }

// ApprovalAuthorityClaims asserts a numeric approval ceiling. The ceiling is
// only meaningful when positive.
type ApprovalAuthorityClaims struct {
	ApprovalCeiling int64  `json:"approvalCeiling"`
	Currency        string `json:"currency,omitempty"`
}

func (ApprovalAuthorityClaims) ClaimKind() Kind { return KindApprovalAuthority }

// UnknownClaims carries the raw payload of a credential kind this service does
// not understand. Unknown kinds verify cryptographically but derive no grants.
type UnknownClaims struct {
	Raw json.RawMessage
}

func (UnknownClaims) ClaimKind() Kind { return "" }

func (u UnknownClaims) MarshalJSON() ([]byte, error) {
	if u.Raw == nil {
		return []byte("null"), nil
	}
	return u.Raw, nil
}

// Credential is a signed claim set about a subject. Immutable once issued.
type Credential struct {
	ID         string           `json:"id" validate:"required"`
	Kind       Kind             `json:"kind" validate:"required"`
	Issuer     string           `json:"issuer" validate:"required"`
	Subject    string           `json:"subject" validate:"required"`
	ValidFrom  time.Time        `json:"validFrom"`
	ValidUntil *time.Time       `json:"validUntil,omitempty"`
	Claims     Claims           `json:"claims"`
	Proof      *keyaccess.Proof `json:"proof,omitempty"`
}

func (c *Credential) GetProof() *keyaccess.Proof { return c.Proof }

func (c *Credential) SetProof(p *keyaccess.Proof) { c.Proof = p }

// ValidAt reports whether the credential's validity window covers the given instant.
func (c *Credential) ValidAt(now time.Time) error {
	if now.Before(c.ValidFrom) {
		return errors.Errorf("credential<%s> is not yet valid", c.ID)
	}
	if c.ValidUntil != nil && !now.Before(*c.ValidUntil) {
		return errors.Errorf("credential<%s> has expired", c.ID)
	}
	return nil
}

type credentialAlias struct {
	ID         string           `json:"id"`
	Kind       Kind             `json:"kind"`
	Issuer     string           `json:"issuer"`
	Subject    string           `json:"subject"`
	ValidFrom  time.Time        `json:"validFrom"`
	ValidUntil *time.Time       `json:"validUntil,omitempty"`
	Claims     json.RawMessage  `json:"claims"`
	Proof      *keyaccess.Proof `json:"proof,omitempty"`
}

// UnmarshalJSON decodes the claims payload into the variant selected by the
// credential's kind tag.
func (c *Credential) UnmarshalJSON(data []byte) error {
	var alias credentialAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	c.ID = alias.ID
	c.Kind = alias.Kind
	c.Issuer = alias.Issuer
	c.Subject = alias.Subject
	c.ValidFrom = alias.ValidFrom
	c.ValidUntil = alias.ValidUntil
	c.Proof = alias.Proof

	claims, err := decodeClaims(alias.Kind, alias.Claims)
	if err != nil {
		return err
	}
	c.Claims = claims
	return nil
}

func decodeClaims(kind Kind, raw json.RawMessage) (Claims, error) {
	if len(raw) == 0 {
		return nil, errors.New("credential carries no claims")
	}
	switch kind {
	case KindEmployment:
		var claims EmploymentClaims
		if err := json.Unmarshal(raw, &claims); err != nil {
			return nil, errors.Wrap(err, "decoding employment claims")
		}
		return claims, nil
	case KindApprovalAuthority:
		var claims ApprovalAuthorityClaims
		if err := json.Unmarshal(raw, &claims); err != nil {
			return nil, errors.Wrap(err, "decoding approval authority claims")
		}
		return claims, nil
	default:
		return UnknownClaims{Raw: raw}, nil
	}
}

// Presentation is a holder-assembled, holder-signed bundle of credentials bound
// to one challenge and domain. Created per authorization attempt and never
// persisted beyond the exchange.
type Presentation struct {
	ID          string           `json:"id" validate:"required"`
	Holder      string           `json:"holder" validate:"required"`
	Credentials []Credential     `json:"credentials" validate:"required"`
	Proof       *keyaccess.Proof `json:"proof,omitempty"`
}

func (p *Presentation) GetProof() *keyaccess.Proof { return p.Proof }

func (p *Presentation) SetProof(proof *keyaccess.Proof) { p.Proof = proof }
