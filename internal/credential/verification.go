package credential

import (
	"github.com/pkg/errors"

	"github.com/spendgate/spendgate/internal/keyaccess"
)

// SignCredential embeds an assertion-purpose proof over the credential using
// the issuer's key access. The issuer identifier on the credential must match
// the signing identity.
func SignCredential(ka *keyaccess.DataIntegrityKeyAccess, cred *Credential) error {
	if cred == nil {
		return errors.New("credential cannot be nil")
	}
	if cred.Claims == nil {
		return errors.New("cannot sign credential without claims")
	}
	return ka.Sign(cred, keyaccess.AssertionMethod)
}

// VerifyCredentialProof checks the credential's assertion-purpose proof. The
// issuer's public key is resolved from its self-describing identifier; trust in
// the issuer is a separate concern, checked by the caller.
func VerifyCredentialProof(cred *Credential) error {
	if cred == nil {
		return errors.New("credential cannot be nil")
	}
	proof := cred.GetProof()
	if proof == nil {
		return errors.Errorf("credential<%s> carries no proof", cred.ID)
	}
	if proof.ProofPurpose != keyaccess.AssertionMethod {
		return errors.Errorf("credential<%s> proof purpose<%s> is not %s", cred.ID, proof.ProofPurpose, keyaccess.AssertionMethod)
	}
	if keyaccess.ControllerOfVerificationMethod(proof.VerificationMethod) != cred.Issuer {
		return errors.Errorf("credential<%s> proof is not controlled by its issuer", cred.ID)
	}
	issuerKey, err := keyaccess.ResolveKeyForVerificationMethod(proof.VerificationMethod)
	if err != nil {
		return errors.Wrapf(err, "resolving issuer key for credential<%s>", cred.ID)
	}
	verifier, err := keyaccess.NewDataIntegrityKeyAccessVerifier(cred.Issuer, issuerKey)
	if err != nil {
		return errors.Wrapf(err, "creating verifier for credential<%s>", cred.ID)
	}
	return verifier.Verify(cred)
}

// VerifyPresentationProof checks the presentation's authentication-purpose
// proof, demonstrating the holder's control over the presented bundle. The
// embedded challenge and domain are part of the verified bytes.
func VerifyPresentationProof(presentation *Presentation) error {
	if presentation == nil {
		return errors.New("presentation cannot be nil")
	}
	proof := presentation.GetProof()
	if proof == nil {
		return errors.Errorf("presentation<%s> carries no proof", presentation.ID)
	}
	if proof.ProofPurpose != keyaccess.Authentication {
		return errors.Errorf("presentation<%s> proof purpose<%s> is not %s", presentation.ID, proof.ProofPurpose, keyaccess.Authentication)
	}
	if keyaccess.ControllerOfVerificationMethod(proof.VerificationMethod) != presentation.Holder {
		return errors.Errorf("presentation<%s> proof is not controlled by its holder", presentation.ID)
	}
	holderKey, err := keyaccess.ResolveKeyForVerificationMethod(proof.VerificationMethod)
	if err != nil {
		return errors.Wrapf(err, "resolving holder key for presentation<%s>", presentation.ID)
	}
	verifier, err := keyaccess.NewDataIntegrityKeyAccessVerifier(presentation.Holder, holderKey)
	if err != nil {
		return errors.Wrapf(err, "creating verifier for presentation<%s>", presentation.ID)
	}
	return verifier.Verify(presentation)
}
