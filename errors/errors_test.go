package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelWrappingPreservesClass(t *testing.T) {
	err := Wrap(ErrNetwork, "efetch request")
	assert.True(t, Is(err, ErrNetwork))
	assert.False(t, Is(err, ErrParse))
}

func TestAutomationKindOf(t *testing.T) {
	err := NewAutomation(AutomationRateLimited, "portal reported %q", "service busy")

	var ae *AutomationError
	require.True(t, As(err, &ae))
	assert.Equal(t, AutomationRateLimited, ae.Kind)
	assert.Equal(t, AutomationRateLimited, AutomationKindOf(err))

	wrapped := Wrap(err, "submit step")
	assert.Equal(t, AutomationRateLimited, AutomationKindOf(wrapped))

	assert.Equal(t, AutomationKind(""), AutomationKindOf(New("plain")))
}

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		ErrNetwork,
		Wrap(ErrNetwork, "esearch"),
		ErrDownload,
		NewAutomation(AutomationTimeout, "waitFor status cell"),
		NewAutomation(AutomationElementNotFound, "job row missing"),
		NewAutomation(AutomationRateLimited, "service busy"),
	}
	for _, err := range retryable {
		assert.True(t, IsRetryable(err), "expected retryable: %v", err)
	}

	fatal := []error{
		nil,
		ErrValidation,
		ErrParse,
		ErrInvalidSequence,
		ErrNotFound,
		ErrCancelled,
		ErrJobFailed,
		NewAutomation(AutomationUnrecognizedResponse, "unknown banner"),
		New("unclassified"),
	}
	for _, err := range fatal {
		assert.False(t, IsRetryable(err), "expected fatal: %v", err)
	}
}
