package webhook

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates HMAC verification of gateway notifications.
// Scope: Unit Test
// Security: Signature covers the payment id, request id and timestamp; comparison is constant time
// Expected: A correct signature verifies; any altered field is a mismatch; broken headers are malformed; missing secret or headers skip the check.
// Test Case ID: WH-01
func TestAuthenticator_Verify(t *testing.T) {
	auth := NewAuthenticator("whsec")
	sig := auth.Sign("123456", "req-1", "1714550400")

	n := Notification{DataID: "123456", RequestID: "req-1", Signature: sig}
	assert.Equal(t, VerificationVerified, auth.Verify(n))

	tampered := n
	tampered.DataID = "654321"
	assert.Equal(t, VerificationMismatch, auth.Verify(tampered))

	tampered = n
	tampered.RequestID = "req-2"
	assert.Equal(t, VerificationMismatch, auth.Verify(tampered))

	assert.Equal(t, VerificationMismatch, NewAuthenticator("other").Verify(n))

	for _, header := range []string{"v1=abcd", "ts=1714550400", "ts=1,v1=zz-not-hex", "garbage"} {
		bad := n
		bad.Signature = header
		assert.Equal(t, VerificationMalformed, auth.Verify(bad), header)
	}

	assert.Equal(t, VerificationSkipped, NewAuthenticator("").Verify(n))
	noHeaders := n
	noHeaders.Signature = ""
	assert.Equal(t, VerificationSkipped, auth.Verify(noHeaders))
}

func TestParseSignature_ToleratesSpacing(t *testing.T) {
	ts, v1, err := parseSignature(" ts = 1714550400 , v1 = deadbeef ")
	assert.NoError(t, err)
	assert.Equal(t, "1714550400", ts)
	assert.Equal(t, "deadbeef", v1)
}

func TestParseNotification(t *testing.T) {
	header := http.Header{}
	header.Set("x-signature", "ts=1,v1=ab")
	header.Set("x-request-id", "req-9")

	t.Run("query wins", func(t *testing.T) {
		q := url.Values{"type": {"payment"}, "data.id": {"111"}}
		n := ParseNotification(header, q, []byte(`{"type":"payment","action":"payment.updated","data":{"id":"222"}}`))
		assert.Equal(t, "111", n.DataID)
		assert.Equal(t, "payment.updated", n.Action)
		assert.Equal(t, "req-9", n.RequestID)
		assert.True(t, n.IsPayment())
	})

	t.Run("numeric body id", func(t *testing.T) {
		n := ParseNotification(http.Header{}, url.Values{}, []byte(`{"type":"payment","data":{"id":98765432101}}`))
		assert.Equal(t, "98765432101", n.DataID)
		assert.True(t, n.IsPayment())
	})

	t.Run("legacy topic", func(t *testing.T) {
		n := ParseNotification(http.Header{}, url.Values{"topic": {"merchant_order"}, "id": {"5"}}, nil)
		assert.Equal(t, "merchant_order", n.Type)
		assert.False(t, n.IsPayment())
	})

	t.Run("unreadable body", func(t *testing.T) {
		n := ParseNotification(http.Header{}, url.Values{}, []byte(`{not json`))
		assert.Empty(t, n.DataID)
		assert.False(t, n.IsPayment())
	})
}
