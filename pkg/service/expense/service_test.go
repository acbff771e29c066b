package expense

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendgate/spendgate/config"
	"github.com/spendgate/spendgate/internal/keyaccess"
	"github.com/spendgate/spendgate/pkg/service/audit"
	"github.com/spendgate/spendgate/pkg/service/common"
	"github.com/spendgate/spendgate/pkg/service/token"
	"github.com/spendgate/spendgate/pkg/storage"
)

const testAudience = "spendgate:expenses"

type expenseFixture struct {
	service *Service
	tokens  *token.Service
	audit   *audit.Service
	clock   *clock.Mock
}

func newExpenseFixture(t *testing.T) *expenseFixture {
	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC))
	db := storage.NewMemoryDB()

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	keys, err := keyaccess.NewJWKKeyAccess(keyaccess.EncodeKeyID(pubKey), "signing-key-1", privKey)
	require.NoError(t, err)
	tokenService, err := token.NewTokenService(config.TokenServiceConfig{TokenTTL: 60 * time.Second},
		"http://localhost:8080", keys, mockClock)
	require.NoError(t, err)

	set, err := tokenService.PublicKeySet()
	require.NoError(t, err)
	validator, err := token.NewValidator(testAudience, token.NewStaticKeySource(set), mockClock)
	require.NoError(t, err)

	auditService, err := audit.NewAuditService(db, mockClock)
	require.NoError(t, err)

	expenseService, err := NewExpenseService(config.ExpenseServiceConfig{Audience: testAudience},
		db, validator, auditService, mockClock)
	require.NoError(t, err)

	return &expenseFixture{service: expenseService, tokens: tokenService, audit: auditService, clock: mockClock}
}

func (f *expenseFixture) mint(t *testing.T, subject string, grants common.GrantSet) keyaccess.JWT {
	minted, err := f.tokens.MintToken(context.Background(), subject, testAudience, grants, nil)
	require.NoError(t, err)
	return minted.Token
}

func submitterGrants() common.GrantSet {
	return common.GrantSet{
		common.ActionView:   {Action: common.ActionView},
		common.ActionSubmit: {Action: common.ActionSubmit},
	}
}

func approverGrants(ceiling int64) common.GrantSet {
	return common.GrantSet{
		common.ActionApprove: {Action: common.ActionApprove, Ceiling: ceiling},
	}
}

func (f *expenseFixture) pendingExpense(t *testing.T, amount int64) *Expense {
	tok := f.mint(t, "key:zSubmitter", submitterGrants())
	exp, err := f.service.CreateExpense(context.Background(), tok, "team offsite", amount, "USD")
	require.NoError(t, err)
	require.Equal(t, StatusPending, exp.Status)
	return exp
}

func TestApproveWithinCeiling(t *testing.T) {
	f := newExpenseFixture(t)
	exp := f.pendingExpense(t, 9999)

	tok := f.mint(t, "key:zApprover", approverGrants(10000))
	result, err := f.service.ApproveExpense(context.Background(), tok, exp.ID, 9999)
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, int64(10000), result.Ceiling)
	assert.Equal(t, int64(9999), result.Requested)
	assert.Equal(t, "key:zApprover", result.Approver)

	stored, err := f.service.storage.GetExpense(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, stored.Status)
	assert.Equal(t, "key:zApprover", stored.Approver)
}

func TestApproveAtExactCeiling(t *testing.T) {
	f := newExpenseFixture(t)
	exp := f.pendingExpense(t, 10000)

	// an amount equal to the ceiling is permitted; the comparison is strict >
	tok := f.mint(t, "key:zApprover", approverGrants(10000))
	result, err := f.service.ApproveExpense(context.Background(), tok, exp.ID, 10000)
	require.NoError(t, err)
	assert.True(t, result.Approved)
}

func TestApproveOneOverCeilingDenied(t *testing.T) {
	f := newExpenseFixture(t)
	exp := f.pendingExpense(t, 10001)

	tok := f.mint(t, "key:zApprover", approverGrants(10000))
	_, err := f.service.ApproveExpense(context.Background(), tok, exp.ID, 10001)
	var exceeded *CeilingExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, int64(10000), exceeded.Ceiling)
	assert.Equal(t, int64(10001), exceeded.Requested)

	// denial leaves the expense untouched
	stored, err := f.service.storage.GetExpense(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Empty(t, stored.Approver)
}

func TestApproveWithoutApproveGrant(t *testing.T) {
	f := newExpenseFixture(t)
	exp := f.pendingExpense(t, 500)

	tok := f.mint(t, "key:zSubmitter", submitterGrants())
	_, err := f.service.ApproveExpense(context.Background(), tok, exp.ID, 500)
	var insufficient *InsufficientGrantError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, common.ActionApprove, insufficient.Action)
}

func TestApproveWithInvalidToken(t *testing.T) {
	f := newExpenseFixture(t)
	exp := f.pendingExpense(t, 500)

	_, err := f.service.ApproveExpense(context.Background(), "not.a.token", exp.ID, 500)
	var unauthenticated *UnauthenticatedError
	require.ErrorAs(t, err, &unauthenticated)
}

func TestApproveWithExpiredToken(t *testing.T) {
	f := newExpenseFixture(t)
	exp := f.pendingExpense(t, 500)

	tok := f.mint(t, "key:zApprover", approverGrants(10000))
	f.clock.Add(61 * time.Second)

	_, err := f.service.ApproveExpense(context.Background(), tok, exp.ID, 500)
	var unauthenticated *UnauthenticatedError
	require.ErrorAs(t, err, &unauthenticated)

	stored, err := f.service.storage.GetExpense(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestApprovedIsTerminal(t *testing.T) {
	f := newExpenseFixture(t)
	exp := f.pendingExpense(t, 500)

	tok := f.mint(t, "key:zApprover", approverGrants(10000))
	_, err := f.service.ApproveExpense(context.Background(), tok, exp.ID, 500)
	require.NoError(t, err)

	_, err = f.service.ApproveExpense(context.Background(), tok, exp.ID, 500)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already approved")
}

func TestApproveDefaultsToStoredAmount(t *testing.T) {
	f := newExpenseFixture(t)
	exp := f.pendingExpense(t, 7500)

	tok := f.mint(t, "key:zApprover", approverGrants(10000))
	result, err := f.service.ApproveExpense(context.Background(), tok, exp.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7500), result.Requested)
}

func TestCreateExpenseRequiresSubmitGrant(t *testing.T) {
	f := newExpenseFixture(t)

	tok := f.mint(t, "key:zApprover", approverGrants(10000))
	_, err := f.service.CreateExpense(context.Background(), tok, "supplies", 100, "USD")
	var insufficient *InsufficientGrantError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, common.ActionSubmit, insufficient.Action)
}

func TestListAndGetRequireViewGrant(t *testing.T) {
	f := newExpenseFixture(t)
	exp := f.pendingExpense(t, 100)

	viewer := f.mint(t, "key:zViewer", common.GrantSet{common.ActionView: {Action: common.ActionView}})
	got, err := f.service.GetExpense(context.Background(), viewer, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, exp.ID, got.ID)

	listed, err := f.service.ListExpenses(context.Background(), viewer)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	approverOnly := f.mint(t, "key:zApprover", approverGrants(10000))
	_, err = f.service.ListExpenses(context.Background(), approverOnly)
	var insufficient *InsufficientGrantError
	assert.ErrorAs(t, err, &insufficient)
}

func TestDenialsAreAudited(t *testing.T) {
	f := newExpenseFixture(t)
	exp := f.pendingExpense(t, 20000)

	tok := f.mint(t, "key:zApprover", approverGrants(10000))
	_, err := f.service.ApproveExpense(context.Background(), tok, exp.ID, 20000)
	require.Error(t, err)

	entries, err := f.audit.List(context.Background())
	require.NoError(t, err)

	var denied []audit.Entry
	for _, entry := range entries {
		if entry.Decision == audit.DecisionDenied {
			denied = append(denied, entry)
		}
	}
	require.Len(t, denied, 1)
	assert.Equal(t, "ceiling_exceeded", denied[0].Reason)
	assert.Equal(t, "key:zApprover", denied[0].Subject)
}
