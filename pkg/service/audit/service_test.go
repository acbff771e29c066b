package audit

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendgate/spendgate/pkg/storage"
)

func TestRecordAndList(t *testing.T) {
	mockClock := clock.NewMock()
	service, err := NewAuditService(storage.NewMemoryDB(), mockClock)
	require.NoError(t, err)

	service.Record(context.Background(), "exchange", DecisionDenied, "untrusted_issuer", "key:zHolder", "")
	mockClock.Add(time.Second)
	service.Record(context.Background(), "expense", DecisionGranted, "approved", "key:zApprover", "expense=abc")

	entries, err := service.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// timestamp order
	assert.Equal(t, "exchange", entries[0].Component)
	assert.Equal(t, DecisionDenied, entries[0].Decision)
	assert.Equal(t, "expense", entries[1].Component)
	assert.Equal(t, DecisionGranted, entries[1].Decision)
	assert.True(t, entries[0].Timestamp.Before(entries[1].Timestamp))
	assert.NotEmpty(t, entries[0].ID)
}

func TestListEmptyTrail(t *testing.T) {
	service, err := NewAuditService(storage.NewMemoryDB(), clock.NewMock())
	require.NoError(t, err)

	entries, err := service.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
