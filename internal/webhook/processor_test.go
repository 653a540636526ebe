package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/billing"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) GetPayment(ctx context.Context, id string) (*billing.Payment, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*billing.Payment); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSettler struct {
	mock.Mock
}

func (m *mockSettler) ApplyPayment(ctx context.Context, ref string, amount decimal.Decimal) (billing.Result, error) {
	args := m.Called(ctx, ref, amount)
	return args.Get(0).(billing.Result), args.Error(1)
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

var approved = &billing.Payment{
	ID:                "555",
	Status:            billing.PaymentApproved,
	ExternalReference: "MTH-20260501-0000AAAA",
	TransactionAmount: decimal.NewFromInt(197),
}

// TestPurpose: Validates notification processing.
// Scope: Unit Test
// Security: Settlement is driven by the gateway's payment record, not the notification body
// Expected: Approved payments are settled by their external reference; other statuses and non-payment topics are ignored.
// Test Case ID: WH-02
func TestProcessor_Process(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthenticator("whsec")

	payments := new(mockPayments)
	payments.On("GetPayment", mock.Anything, "555").Return(approved, nil)
	payments.On("GetPayment", mock.Anything, "556").Return(&billing.Payment{ID: "556", Status: "pending", ExternalReference: "MTH-20260501-0000BBBB"}, nil)
	payments.On("GetPayment", mock.Anything, "557").Return(nil, billing.ErrPaymentNotFound)

	settler := new(mockSettler)
	settler.On("ApplyPayment", mock.Anything, "MTH-20260501-0000AAAA", mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(197))
	})).Return(billing.Result{Outcome: tenant.OutcomeApplied, Applied: true}, nil).Once()

	p := NewProcessor(auth, payments, settler, audit.NopLogger{}, nil, time.Second)

	signed := Notification{Type: "payment", DataID: "555", RequestID: "r1", Signature: auth.Sign("555", "r1", "1")}
	require.NoError(t, p.Process(ctx, signed))
	require.NoError(t, p.Process(ctx, Notification{Type: "payment", DataID: "556"}))
	require.NoError(t, p.Process(ctx, Notification{Type: "payment", DataID: "557"}))
	require.NoError(t, p.Process(ctx, Notification{Type: "merchant_order", DataID: "9"}))

	settler.AssertExpectations(t)
	payments.AssertNotCalled(t, "GetPayment", mock.Anything, "9")
}

// TestPurpose: Validates that a bad signature is recorded without blocking settlement.
// Scope: Unit Test
// Security: Mismatches are audited as security events
// Expected: A webhook_signature_invalid audit event is logged and the payment is still settled from the gateway record.
// Test Case ID: WH-03
func TestProcessor_SignatureMismatchIsAudited(t *testing.T) {
	ctx := context.Background()
	payments := new(mockPayments)
	payments.On("GetPayment", mock.Anything, "555").Return(approved, nil)
	settler := new(mockSettler)
	settler.On("ApplyPayment", mock.Anything, "MTH-20260501-0000AAAA", mock.Anything).
		Return(billing.Result{Outcome: tenant.OutcomeApplied, Applied: true}, nil).Once()
	rec := &recordingAudit{}

	p := NewProcessor(NewAuthenticator("whsec"), payments, settler, rec, nil, time.Second)
	forged := Notification{Type: "payment", DataID: "555", RequestID: "r1", Signature: "ts=1,v1=00ff"}
	require.NoError(t, p.Process(ctx, forged))

	assert.Equal(t, []string{audit.TypeWebhookSignatureInvalid}, rec.types())
	settler.AssertExpectations(t)
}

// TestPurpose: Validates background dispatch and shutdown draining.
// Scope: Unit Test
// Expected: Dispatched work runs after the caller's context is canceled, and Wait returns once it finished.
// Test Case ID: WH-04
func TestProcessor_DispatchAndWait(t *testing.T) {
	payments := new(mockPayments)
	payments.On("GetPayment", mock.Anything, "555").Return(approved, nil)
	settler := new(mockSettler)
	settler.On("ApplyPayment", mock.Anything, "MTH-20260501-0000AAAA", mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			assert.NoError(t, ctx.Err())
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
		}).
		Return(billing.Result{Outcome: tenant.OutcomeApplied, Applied: true}, nil).Once()

	p := NewProcessor(NewAuthenticator(""), payments, settler, audit.NopLogger{}, nil, time.Second)

	reqCtx, cancel := context.WithCancel(context.Background())
	p.Dispatch(reqCtx, Notification{Type: "payment", DataID: "555"})
	cancel()

	waitCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	require.NoError(t, p.Wait(waitCtx))
	settler.AssertExpectations(t)
}
