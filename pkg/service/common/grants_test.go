package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantSetEncodeParseRoundTrip(t *testing.T) {
	grants := GrantSet{
		ActionView:    {Action: ActionView},
		ActionSubmit:  {Action: ActionSubmit},
		ActionApprove: {Action: ActionApprove, Ceiling: 10000},
	}

	scope := grants.Encode()
	assert.Equal(t, "approve:10000 submit view", scope)

	parsed, err := ParseGrantSet(scope)
	require.NoError(t, err)
	assert.Equal(t, grants, parsed)

	approve, ok := parsed.Get(ActionApprove)
	require.True(t, ok)
	assert.Equal(t, int64(10000), approve.Ceiling)

	_, ok = parsed.Get(Action("delete"))
	assert.False(t, ok)
}

func TestParseGrantSetRejectsUnknownActions(t *testing.T) {
	_, err := ParseGrantSet("view destroy:9000")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
}

func TestParseGrantSetEmpty(t *testing.T) {
	grants, err := ParseGrantSet("")
	require.NoError(t, err)
	assert.Empty(t, grants)
}
