package exchange

import (
	"fmt"
)

// Step identifies a stage of the presentation verification pipeline.
type Step string

const (
	StepBinding            Step = "binding"
	StepHolderProof        Step = "holder_proof"
	StepCredentialProof    Step = "credential_proof"
	StepIssuerTrust        Step = "issuer_trust"
	StepCredentialValidity Step = "credential_validity"
)

// VerificationError is a terminal rejection from the verification pipeline,
// identifying the step that failed. It carries no information about which
// nonces are currently outstanding.
type VerificationError struct {
	Step  Step
	Cause error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("presentation verification failed at %s: %v", e.Step, e.Cause)
}

func (e *VerificationError) Unwrap() error {
	return e.Cause
}

// UntrustedIssuerError rejects a cryptographically valid credential whose
// issuer is not a member of the trusted set.
type UntrustedIssuerError struct {
	Issuer string
}

func (e *UntrustedIssuerError) Error() string {
	return fmt.Sprintf("issuer<%s> is not trusted", e.Issuer)
}

// ExpiredCredentialError rejects a credential outside its validity window.
type ExpiredCredentialError struct {
	CredentialID string
	Cause        error
}

func (e *ExpiredCredentialError) Error() string {
	return fmt.Sprintf("credential<%s> is outside its validity window: %v", e.CredentialID, e.Cause)
}

func (e *ExpiredCredentialError) Unwrap() error {
	return e.Cause
}
