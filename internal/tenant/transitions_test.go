package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates the single request transition table shared by administrator actions and payment settlement.
// Scope: Unit Test
// Expected: Legal moves yield the documented target; terminal states and undefined moves fail with ErrIllegalTransition.
// Test Case ID: TEN-01
func TestTransition(t *testing.T) {
	legal := []struct {
		typ   RequestType
		from  RequestStatus
		event Event
		to    RequestStatus
	}{
		{RequestExtension, RequestPending, EventApprove, RequestApproved},
		{RequestExtension, RequestPending, EventPaymentConfirmed, RequestApproved},
		{RequestExtension, RequestPending, EventReject, RequestRejected},
		{RequestUpgrade, RequestPending, EventApprove, RequestWaitingPayment},
		{RequestUpgrade, RequestWaitingPayment, EventPaymentConfirmed, RequestApproved},
		{RequestUpgrade, RequestWaitingPayment, EventReject, RequestRejected},
		{RequestMigrate, RequestWaitingPayment, EventPaymentConfirmed, RequestApproved},
	}
	for _, tc := range legal {
		got, err := Transition(tc.typ, tc.from, tc.event)
		require.NoError(t, err, "%s %s %s", tc.typ, tc.from, tc.event)
		assert.Equal(t, tc.to, got)
	}

	illegal := []struct {
		typ   RequestType
		from  RequestStatus
		event Event
	}{
		{RequestExtension, RequestApproved, EventPaymentConfirmed},
		{RequestExtension, RequestRejected, EventApprove},
		{RequestUpgrade, RequestWaitingPayment, EventApprove},
		{RequestUpgrade, RequestPending, EventPaymentConfirmed},
		{RequestUpgrade, RequestApproved, EventReject},
		{RequestMigrate, RequestPending, EventApprove},
	}
	for _, tc := range illegal {
		_, err := Transition(tc.typ, tc.from, tc.event)
		assert.ErrorIs(t, err, ErrIllegalTransition, "%s %s %s", tc.typ, tc.from, tc.event)
	}
}

func TestCanSetStatus(t *testing.T) {
	assert.True(t, CanSetStatus(StatusTrial, StatusBlocked))
	assert.True(t, CanSetStatus(StatusBlocked, StatusActive))
	assert.True(t, CanSetStatus(StatusExpired, StatusExpired))
	assert.False(t, CanSetStatus(StatusPendingVerification, StatusActive))
	assert.False(t, CanSetStatus(StatusActive, StatusPendingVerification))
}
