package token

import (
	"fmt"
	"time"

	"github.com/spendgate/spendgate/internal/keyaccess"
	"github.com/spendgate/spendgate/pkg/service/common"
)

const (
	// ScopeClaim carries the encoded grant set.
	ScopeClaim = "scope"
	// ClaimsSnapshotClaim carries the verified claims the grants were derived
	// from, frozen at mint time.
	ClaimsSnapshotClaim = "claims"
)

// MintedToken is a freshly signed access token and its metadata.
type MintedToken struct {
	Token     keyaccess.JWT `json:"token"`
	ID        string        `json:"id"`
	Subject   string        `json:"subject"`
	Audience  string        `json:"audience"`
	Scope     string        `json:"scope"`
	IssuedAt  time.Time     `json:"issuedAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// ValidatedToken is the outcome of successful validation: the grant set and
// claims snapshot a caller may act on. Possession is necessary but never
// sufficient for a specific action.
type ValidatedToken struct {
	ID       string
	Subject  string
	Audience string
	Grants   common.GrantSet
	Claims   map[string]any
	Expiry   time.Time
}

// SignatureError rejects a token whose signature does not verify against the
// issuer's published key set.
type SignatureError struct {
	Cause error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("token signature invalid: %v", e.Cause)
}

func (e *SignatureError) Unwrap() error { return e.Cause }

// ExpiredError rejects a token at or past its expiry. There is no grace window.
type ExpiredError struct {
	Expiry time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("token expired at %s", e.Expiry.UTC().Format(time.RFC3339))
}

// AudienceError rejects a token minted for a different resource audience.
type AudienceError struct {
	Expected string
}

func (e *AudienceError) Error() string {
	return fmt.Sprintf("token audience does not include %s", e.Expected)
}
