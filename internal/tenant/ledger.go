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

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RequestType discriminates billing request variants.
type RequestType string

const (
	RequestExtension RequestType = "extension"
	RequestUpgrade   RequestType = "upgrade"
	RequestMigrate   RequestType = "migrate"
)

// RequestStatus is the position of a request in its state machine.
type RequestStatus string

const (
	RequestPending        RequestStatus = "pending"
	RequestWaitingPayment RequestStatus = "waiting_payment"
	RequestApproved       RequestStatus = "approved"
	RequestRejected       RequestStatus = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// Cycle distinguishes a trial extension from a monthly renewal. Both are
// settled as extensions.
type Cycle string

const (
	CycleTrial   Cycle = "trial"
	CycleMonthly Cycle = "monthly"
)

// RequestBase carries the fields shared by every request variant.
type RequestBase struct {
	Status        RequestStatus   `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	ReferenceCode string          `json:"reference_code"`
	PreferenceID  string          `json:"preference_id,omitempty"`
	RequestedAt   time.Time       `json:"requested_at"`
}

func (b *RequestBase) base() *RequestBase { return b }

// Request is a billing request. The set of implementations is closed:
// *ExtensionRequest, *UpgradeRequest and *MigrateRequest.
type Request interface {
	Type() RequestType
	base() *RequestBase
}

// ExtensionRequest extends the trial, or renews a paid plan when the cycle
// is monthly.
type ExtensionRequest struct {
	RequestBase
	Cycle Cycle `json:"cycle,omitempty"`
}

func (*ExtensionRequest) Type() RequestType { return RequestExtension }

// UpgradeRequest moves the tenant to a dedicated instance. A migration
// checkout replaces its reference code; the replaced codes are kept so a
// payment against an older checkout still settles.
type UpgradeRequest struct {
	RequestBase
	SupersededReferences []string `json:"superseded_references,omitempty"`
}

func (*UpgradeRequest) Type() RequestType { return RequestUpgrade }

// MigrateRequest is a standalone migration charge.
type MigrateRequest struct {
	RequestBase
	UpgradeReference string `json:"upgrade_reference,omitempty"`
}

func (*MigrateRequest) Type() RequestType { return RequestMigrate }

// Base exposes the shared fields of r.
func Base(r Request) *RequestBase {
	return r.base()
}

// Matches reports whether ref identifies r, including superseded checkouts.
func Matches(r Request, ref string) bool {
	if r.base().ReferenceCode == ref {
		return true
	}
	if up, ok := r.(*UpgradeRequest); ok {
		for _, old := range up.SupersededReferences {
			if old == ref {
				return true
			}
		}
	}
	return false
}

// Ledger is the append-ordered request history of a tenant.
type Ledger []Request

// IndexOf returns the index of the first request of type t in one of the
// given statuses, or -1.
func (l Ledger) IndexOf(t RequestType, statuses ...RequestStatus) int {
	for i, r := range l {
		if r.Type() != t {
			continue
		}
		for _, s := range statuses {
			if r.base().Status == s {
				return i
			}
		}
	}
	return -1
}

// IndexOfReference returns the index of the request identified by ref, or -1.
func (l Ledger) IndexOfReference(ref string) int {
	if ref == "" {
		return -1
	}
	for i, r := range l {
		if Matches(r, ref) {
			return i
		}
	}
	return -1
}

// withoutPending drops pending requests of type t, sparing index keep.
func (l Ledger) withoutPending(t RequestType, keep int) Ledger {
	out := make(Ledger, 0, len(l))
	for i, r := range l {
		if i != keep && r.Type() == t && r.base().Status == RequestPending {
			continue
		}
		out = append(out, r)
	}
	return out
}

type envelope struct {
	Type RequestType `json:"type"`
}

// MarshalJSON writes each request with a type discriminator.
func (l Ledger) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for _, r := range l {
		var (
			raw []byte
			err error
		)
		switch v := r.(type) {
		case *ExtensionRequest:
			raw, err = json.Marshal(struct {
				Type RequestType `json:"type"`
				*ExtensionRequest
			}{v.Type(), v})
		case *UpgradeRequest:
			raw, err = json.Marshal(struct {
				Type RequestType `json:"type"`
				*UpgradeRequest
			}{v.Type(), v})
		case *MigrateRequest:
			raw, err = json.Marshal(struct {
				Type RequestType `json:"type"`
				*MigrateRequest
			}{v.Type(), v})
		default:
			return nil, fmt.Errorf("unsupported request type %T", r)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes requests by their type discriminator.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Ledger, 0, len(raws))
	for _, raw := range raws {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return err
		}
		var r Request
		switch env.Type {
		case RequestExtension:
			r = &ExtensionRequest{}
		case RequestUpgrade:
			r = &UpgradeRequest{}
		case RequestMigrate:
			r = &MigrateRequest{}
		default:
			return fmt.Errorf("unknown request type %q", env.Type)
		}
		if err := json.Unmarshal(raw, r); err != nil {
			return fmt.Errorf("failed to decode %s request: %w", env.Type, err)
		}
		out = append(out, r)
	}
	*l = out
	return nil
}
