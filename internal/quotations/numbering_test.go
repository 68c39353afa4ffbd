package quotations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

func TestNextNumber(t *testing.T) {
	cases := map[string]string{
		"":       "00001",
		"00001":  "00002",
		"00041":  "00042",
		"00099":  "00100",
		"99999":  "100000",
		"100000": "100001",
	}
	for current, want := range cases {
		got, err := NextNumber(current)
		require.NoError(t, err, current)
		assert.Equal(t, want, got, current)
	}
}

func TestNextNumberRejectsMalformed(t *testing.T) {
	_, err := NextNumber("COT-12")
	require.Error(t, err)
}

func TestTransitionPolicy(t *testing.T) {
	strict := TransitionPolicy{}
	assert.NoError(t, strict.Check(StatusDraft, StatusAccepted))
	assert.NoError(t, strict.Check(StatusSent, StatusRejected))
	assert.Error(t, strict.Check(StatusAccepted, StatusRejected))
	assert.Error(t, strict.Check(StatusRejected, StatusAccepted))
	assert.Error(t, strict.Check(StatusVoided, StatusAccepted))
	assert.Error(t, strict.Check(StatusAccepted, StatusAccepted))
	assert.Error(t, strict.Check(StatusAccepted, StatusVoided))
	assert.NoError(t, strict.Check(StatusRejected, StatusVoided))
	assert.NoError(t, strict.Check(StatusDraft, StatusSent))
	assert.NoError(t, strict.Check(StatusSent, StatusDraft))

	assert.NoError(t, strict.Check(StatusRejected, StatusDraft))
	assert.NoError(t, strict.Check(StatusVoided, StatusVoided))
	assert.NoError(t, strict.Check(StatusDraft, StatusDraft))

	lenient := TransitionPolicy{AllowVoidAccepted: true}
	assert.NoError(t, lenient.Check(StatusAccepted, StatusVoided))

	for _, policy := range []TransitionPolicy{strict, lenient} {
		for _, to := range []Status{StatusDraft, StatusSent, StatusAccepted, StatusRejected} {
			assert.ErrorIs(t, policy.Check(StatusVoided, to), shared.ErrInvalidTransition, "voided -> %s", to)
		}
		assert.ErrorIs(t, policy.Check(StatusAccepted, StatusDraft), shared.ErrInvalidTransition)
		assert.ErrorIs(t, policy.Check(StatusAccepted, StatusSent), shared.ErrInvalidTransition)
	}
}
