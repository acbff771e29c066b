package keyaccess

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDocument struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Proof   *Proof `json:"proof,omitempty"`
}

func (d *testDocument) GetProof() *Proof {
	return d.Proof
}

func (d *testDocument) SetProof(p *Proof) {
	d.Proof = p
}

func TestDataIntegritySignVerify(t *testing.T) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	id := EncodeKeyID(pubKey)

	t.Run("sign and verify round trip", func(t *testing.T) {
		ka, err := NewDataIntegrityKeyAccess(id, privKey)
		require.NoError(t, err)

		doc := testDocument{ID: "doc-1", Message: "hello"}
		err = ka.Sign(&doc, AssertionMethod)
		require.NoError(t, err)
		assert.NotEmpty(t, doc.Proof.ProofValue)
		assert.Equal(t, AssertionMethod, doc.Proof.ProofPurpose)

		verifier, err := NewDataIntegrityKeyAccessVerifier(id, pubKey)
		require.NoError(t, err)
		assert.NoError(t, verifier.Verify(&doc))
	})

	t.Run("challenge and domain are part of the signed bytes", func(t *testing.T) {
		ka, err := NewDataIntegrityKeyAccess(id, privKey)
		require.NoError(t, err)

		doc := testDocument{ID: "doc-2", Message: "hello"}
		err = ka.Sign(&doc, Authentication, WithChallenge("nonce-value", "spendgate.example"))
		require.NoError(t, err)
		assert.Equal(t, "nonce-value", doc.Proof.Challenge)
		assert.Equal(t, "spendgate.example", doc.Proof.Domain)

		verifier, err := NewDataIntegrityKeyAccessVerifier(id, pubKey)
		require.NoError(t, err)
		assert.NoError(t, verifier.Verify(&doc))

		// any tampering with the bound challenge voids the proof
		doc.Proof.Challenge = "another-nonce"
		err = verifier.Verify(&doc)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "signature verification failed")
	})

	t.Run("tampered payload fails verification", func(t *testing.T) {
		ka, err := NewDataIntegrityKeyAccess(id, privKey)
		require.NoError(t, err)

		doc := testDocument{ID: "doc-3", Message: "hello"}
		require.NoError(t, ka.Sign(&doc, AssertionMethod))

		doc.Message = "goodbye"
		verifier, err := NewDataIntegrityKeyAccessVerifier(id, pubKey)
		require.NoError(t, err)
		assert.Error(t, verifier.Verify(&doc))
	})

	t.Run("proof from a different signer is rejected", func(t *testing.T) {
		otherPub, otherPriv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		otherID := EncodeKeyID(otherPub)
		otherKA, err := NewDataIntegrityKeyAccess(otherID, otherPriv)
		require.NoError(t, err)

		doc := testDocument{ID: "doc-4", Message: "hello"}
		require.NoError(t, otherKA.Sign(&doc, AssertionMethod))

		verifier, err := NewDataIntegrityKeyAccessVerifier(id, pubKey)
		require.NoError(t, err)
		err = verifier.Verify(&doc)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not controlled by")
	})

	t.Run("missing proof", func(t *testing.T) {
		verifier, err := NewDataIntegrityKeyAccessVerifier(id, pubKey)
		require.NoError(t, err)
		err = verifier.Verify(&testDocument{ID: "doc-5"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no proof")
	})
}

func TestKeyIDRoundTrip(t *testing.T) {
	pubKey, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	id := EncodeKeyID(pubKey)
	resolved, err := DecodeKeyID(id)
	require.NoError(t, err)
	assert.Equal(t, pubKey, resolved)

	vm := VerificationMethodForID(id)
	assert.Equal(t, id, ControllerOfVerificationMethod(vm))

	resolvedFromVM, err := ResolveKeyForVerificationMethod(vm)
	require.NoError(t, err)
	assert.Equal(t, pubKey, resolvedFromVM)

	_, err = DecodeKeyID("not-a-key-id")
	assert.Error(t, err)
}
