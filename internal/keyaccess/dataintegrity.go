package keyaccess

import (
	"crypto/ed25519"
	"encoding/base64"
	"time"

	"github.com/goccy/go-json"
	"github.com/gowebpki/jcs"
	"github.com/pkg/errors"
)

// ProofPurpose states what a proof is intended to demonstrate.
type ProofPurpose string

const (
	// AssertionMethod marks proofs asserting the truth of a document's claims,
	// such as an issuer's signature over a credential.
	AssertionMethod ProofPurpose = "assertionMethod"

	// Authentication marks proofs demonstrating control of an identifier, such
	// as a holder's signature over a presentation.
	Authentication ProofPurpose = "authentication"

	// Ed25519Signature2020 is the only supported proof type.
	Ed25519Signature2020 = "Ed25519Signature2020"
)

// Proof is an embedded data integrity proof. The challenge and domain fields,
// when present, are part of the signed byte sequence and cannot be swapped
// after signing.
type Proof struct {
	Type               string       `json:"type" validate:"required"`
	Created            string       `json:"created" validate:"required"`
	VerificationMethod string       `json:"verificationMethod" validate:"required"`
	ProofPurpose       ProofPurpose `json:"proofPurpose" validate:"required"`
	ProofValue         string       `json:"proofValue,omitempty"`
	Challenge          string       `json:"challenge,omitempty"`
	Domain             string       `json:"domain,omitempty"`
}

// Provable is a document that can carry an embedded proof.
type Provable interface {
	GetProof() *Proof
	SetProof(p *Proof)
}

// ProofOption customizes proof construction at signing time.
type ProofOption func(*Proof)

// WithChallenge binds a challenge and domain pair into the proof, and therefore
// into the signed bytes.
func WithChallenge(challenge, domain string) ProofOption {
	return func(p *Proof) {
		p.Challenge = challenge
		p.Domain = domain
	}
}

// DataIntegrityKeyAccess signs and verifies documents carrying embedded
// Ed25519Signature2020 proofs over their RFC 8785 canonical form.
type DataIntegrityKeyAccess struct {
	id      string
	kid     string
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
}

// NewDataIntegrityKeyAccess creates a signing and verifying key access object
// for an identifier and its Ed25519 private key.
func NewDataIntegrityKeyAccess(id string, key ed25519.PrivateKey) (*DataIntegrityKeyAccess, error) {
	if id == "" {
		return nil, errors.New("id cannot be empty")
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("key must be a valid ed25519 private key")
	}
	return &DataIntegrityKeyAccess{
		id:      id,
		kid:     VerificationMethodForID(id),
		privKey: key,
		pubKey:  key.Public().(ed25519.PublicKey),
	}, nil
}

// NewDataIntegrityKeyAccessVerifier creates a verification-only key access
// object for an identifier and its Ed25519 public key.
func NewDataIntegrityKeyAccessVerifier(id string, key ed25519.PublicKey) (*DataIntegrityKeyAccess, error) {
	if id == "" {
		return nil, errors.New("id cannot be empty")
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, errors.New("key must be a valid ed25519 public key")
	}
	return &DataIntegrityKeyAccess{
		id:     id,
		kid:    VerificationMethodForID(id),
		pubKey: key,
	}, nil
}

// Sign computes and embeds a proof over the canonical form of the payload.
func (ka DataIntegrityKeyAccess) Sign(payload Provable, purpose ProofPurpose, opts ...ProofOption) error {
	if ka.privKey == nil {
		return errors.New("cannot sign with verification-only key access")
	}
	if payload == nil {
		return errors.New("payload cannot be nil")
	}
	proof := &Proof{
		Type:               Ed25519Signature2020,
		Created:            time.Now().UTC().Format(time.RFC3339),
		VerificationMethod: ka.kid,
		ProofPurpose:       purpose,
	}
	for _, opt := range opts {
		opt(proof)
	}
	payload.SetProof(proof)
	signingInput, err := canonicalSigningInput(payload)
	if err != nil {
		return errors.Wrap(err, "computing signing input")
	}
	signature := ed25519.Sign(ka.privKey, signingInput)
	proof.ProofValue = base64.RawURLEncoding.EncodeToString(signature)
	payload.SetProof(proof)
	return nil
}

// Verify checks the embedded proof against the canonical form of the payload.
// The proof's verification method must be controlled by this key access object's
// identifier.
func (ka DataIntegrityKeyAccess) Verify(payload Provable) error {
	if payload == nil {
		return errors.New("payload cannot be nil")
	}
	proof := payload.GetProof()
	if proof == nil {
		return errors.New("payload carries no proof")
	}
	if proof.Type != Ed25519Signature2020 {
		return errors.Errorf("unsupported proof type: %s", proof.Type)
	}
	if ControllerOfVerificationMethod(proof.VerificationMethod) != ka.id {
		return errors.Errorf("proof verification method<%s> is not controlled by<%s>", proof.VerificationMethod, ka.id)
	}
	signature, err := base64.RawURLEncoding.DecodeString(proof.ProofValue)
	if err != nil {
		return errors.Wrap(err, "decoding proof value")
	}

	// rebuild the signing input with the proof value blanked, then restore it
	unsignedProof := *proof
	unsignedProof.ProofValue = ""
	payload.SetProof(&unsignedProof)
	signingInput, err := canonicalSigningInput(payload)
	payload.SetProof(proof)
	if err != nil {
		return errors.Wrap(err, "computing signing input")
	}

	if !ed25519.Verify(ka.pubKey, signingInput, signature) {
		return errors.New("signature verification failed")
	}
	return nil
}

// canonicalSigningInput serializes the payload and transforms it to its
// RFC 8785 canonical form.
func canonicalSigningInput(payload Provable) ([]byte, error) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling payload")
	}
	return jcs.Transform(jsonBytes)
}
