package wallet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendgate/spendgate/internal/credential"
	"github.com/spendgate/spendgate/pkg/testutil"
)

func TestWalletCreatePresentation(t *testing.T) {
	issuer, err := testutil.NewIssuer()
	require.NoError(t, err)
	w, err := New()
	require.NoError(t, err)

	employment, err := issuer.IssueEmployment(w.ID(), "Acme Corp", "manager", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, w.AddCredential(*employment))

	presentation, err := w.CreatePresentation("nonce-1", "spendgate.example", credential.KindEmployment)
	require.NoError(t, err)
	assert.Equal(t, w.ID(), presentation.Holder)
	require.NotNil(t, presentation.Proof)
	assert.Equal(t, "nonce-1", presentation.Proof.Challenge)
	assert.Equal(t, "spendgate.example", presentation.Proof.Domain)
	assert.NoError(t, credential.VerifyPresentationProof(presentation))
}

func TestWalletRejectsForeignCredential(t *testing.T) {
	issuer, err := testutil.NewIssuer()
	require.NoError(t, err)
	w, err := New()
	require.NoError(t, err)
	other, err := New()
	require.NoError(t, err)

	cred, err := issuer.IssueEmployment(other.ID(), "Acme Corp", "manager", time.Now())
	require.NoError(t, err)
	assert.Error(t, w.AddCredential(*cred))
}

func TestWalletRequiresAllKinds(t *testing.T) {
	issuer, err := testutil.NewIssuer()
	require.NoError(t, err)
	w, err := New()
	require.NoError(t, err)

	employment, err := issuer.IssueEmployment(w.ID(), "Acme Corp", "manager", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, w.AddCredential(*employment))

	_, err = w.CreatePresentation("nonce-1", "spendgate.example",
		credential.KindEmployment, credential.KindApprovalAuthority)
	assert.Error(t, err)
}

func TestWalletPresentationRequiresBinding(t *testing.T) {
	w, err := New()
	require.NoError(t, err)

	_, err = w.CreatePresentation("", "spendgate.example")
	assert.Error(t, err)
	_, err = w.CreatePresentation("nonce-1", "")
	assert.Error(t, err)
}
