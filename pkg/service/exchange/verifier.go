package exchange

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/spendgate/spendgate/internal/credential"
)

// TrustRegistry answers issuer membership questions for the verifier.
type TrustRegistry interface {
	IsTrusted(issuer string) bool
}

// VerifyPresentation runs the fixed verification pipeline over a presentation
// and the caller-asserted challenge and domain. The pipeline short-circuits on
// the first failure and mutates nothing: verifying the same presentation twice
// yields the same result.
//
// Order is fixed: binding equality, holder authentication proof, credential
// assertion proofs (all-or-nothing), issuer trust, validity windows.
func VerifyPresentation(presentation *credential.Presentation, nonce, domain string, now time.Time, registry TrustRegistry) error {
	if presentation == nil {
		return &VerificationError{Step: StepBinding, Cause: errors.New("presentation cannot be nil")}
	}

	// 1. the embedded challenge and domain must equal the asserted pair exactly
	proof := presentation.GetProof()
	if proof == nil {
		return failStep(StepBinding, errors.New("presentation carries no proof"))
	}
	if proof.Challenge != nonce {
		return failStep(StepBinding, errors.New("presentation challenge does not match"))
	}
	if proof.Domain != domain {
		return failStep(StepBinding, errors.New("presentation domain does not match"))
	}

	// 2. the holder's authentication proof covers the full presentation,
	// challenge and domain included
	if err := credential.VerifyPresentationProof(presentation); err != nil {
		return failStep(StepHolderProof, err)
	}

	// 3. every embedded credential must verify; one bad credential voids the
	// whole exchange
	for i := range presentation.Credentials {
		if err := credential.VerifyCredentialProof(&presentation.Credentials[i]); err != nil {
			return failStep(StepCredentialProof, err)
		}
	}

	// 4. valid signatures from unknown issuers still count for nothing
	for i := range presentation.Credentials {
		if !registry.IsTrusted(presentation.Credentials[i].Issuer) {
			return failStep(StepIssuerTrust, &UntrustedIssuerError{Issuer: presentation.Credentials[i].Issuer})
		}
	}

	// 5. validity windows
	for i := range presentation.Credentials {
		cred := &presentation.Credentials[i]
		if err := cred.ValidAt(now); err != nil {
			return failStep(StepCredentialValidity, &ExpiredCredentialError{CredentialID: cred.ID, Cause: err})
		}
	}

	return nil
}

func failStep(step Step, cause error) error {
	logrus.WithError(cause).WithField("step", step).Info("presentation verification failed")
	return &VerificationError{Step: step, Cause: cause}
}
