// Copyright 2026 The FluxoClean Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tenant

import "fmt"

// Event drives a request from one status to another.
type Event string

const (
	// EventApprove is an administrator approval.
	EventApprove Event = "approve"
	// EventPaymentConfirmed is a gateway-confirmed payment.
	EventPaymentConfirmed Event = "payment_confirmed"
	// EventReject is an administrator rejection.
	EventReject Event = "reject"
)

type transitionKey struct {
	typ   RequestType
	from  RequestStatus
	event Event
}

// transitions is the only place request status changes are defined. Both
// administrator actions and payment reconciliation consult it.
var transitions = map[transitionKey]RequestStatus{
	{RequestExtension, RequestPending, EventApprove}:          RequestApproved,
	{RequestExtension, RequestPending, EventPaymentConfirmed}: RequestApproved,
	{RequestExtension, RequestPending, EventReject}:           RequestRejected,

	{RequestUpgrade, RequestPending, EventApprove}:                 RequestWaitingPayment,
	{RequestUpgrade, RequestPending, EventReject}:                  RequestRejected,
	{RequestUpgrade, RequestWaitingPayment, EventPaymentConfirmed}: RequestApproved,
	{RequestUpgrade, RequestWaitingPayment, EventReject}:           RequestRejected,

	{RequestMigrate, RequestPending, EventPaymentConfirmed}:        RequestApproved,
	{RequestMigrate, RequestPending, EventReject}:                  RequestRejected,
	{RequestMigrate, RequestWaitingPayment, EventPaymentConfirmed}: RequestApproved,
	{RequestMigrate, RequestWaitingPayment, EventReject}:           RequestRejected,
}

// Transition returns the status a request of type t moves to when event
// occurs in status from.
func Transition(t RequestType, from RequestStatus, event Event) (RequestStatus, error) {
	to, ok := transitions[transitionKey{t, from, event}]
	if !ok {
		return "", fmt.Errorf("%w: %s request is %s, cannot %s", ErrIllegalTransition, t, from, event)
	}
	return to, nil
}

// statusTransitions lists the tenant statuses an administrator may set from
// each status. pending_verification only leaves through registration.
var statusTransitions = map[Status][]Status{
	StatusTrial:   {StatusActive, StatusExpired, StatusBlocked},
	StatusActive:  {StatusTrial, StatusExpired, StatusBlocked},
	StatusExpired: {StatusTrial, StatusActive, StatusBlocked},
	StatusBlocked: {StatusTrial, StatusActive, StatusExpired},
}

// CanSetStatus reports whether an administrator may move from one tenant
// status to another.
func CanSetStatus(from, to Status) bool {
	if from == to {
		return from != StatusPendingVerification
	}
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
