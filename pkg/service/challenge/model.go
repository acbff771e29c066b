package challenge

import (
	"fmt"
	"time"

	"github.com/spendgate/spendgate/internal/credential"
	"github.com/spendgate/spendgate/pkg/service/common"
)

// RejectionReason classifies why a challenge consumption was refused.
type RejectionReason string

const (
	ReasonUnknown        RejectionReason = "unknown"
	ReasonUsed           RejectionReason = "used"
	ReasonExpired        RejectionReason = "expired"
	ReasonDomainMismatch RejectionReason = "domain_mismatch"
)

// ReplayError is returned when a challenge cannot be consumed. Its reason is
// safe to surface: it never reveals which nonces are currently outstanding.
type ReplayError struct {
	Reason RejectionReason
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("challenge rejected: %s", e.Reason)
}

// StoredChallenge is a single-use nonce entry in the ledger.
type StoredChallenge struct {
	Nonce     string        `json:"nonce"`
	Domain    string        `json:"domain"`
	Intent    common.Action `json:"intent,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
	// Used transitions false to true exactly once, ever.
	Used bool `json:"used"`
}

// RequiredCredentialTypes computes, from the declared intent, the least set of
// credential kinds a presentation must carry.
func RequiredCredentialTypes(intent common.Action) []credential.Kind {
	if intent == common.ActionApprove {
		return []credential.Kind{credential.KindEmployment, credential.KindApprovalAuthority}
	}
	return []credential.Kind{credential.KindEmployment}
}
