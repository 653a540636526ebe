// Package webhook authenticates and processes payment gateway
// notifications.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Verification is the result of checking a notification signature.
type Verification string

const (
	VerificationVerified  Verification = "verified"
	VerificationMismatch  Verification = "mismatch"
	VerificationSkipped   Verification = "skipped"
	VerificationMalformed Verification = "malformed"
)

var errMalformedSignature = errors.New("malformed signature header")

// Authenticator checks the x-signature header of gateway notifications:
// "ts=<unix>,v1=<hex hmac-sha256>" over "id:<data id>;request-id:<x-request-id>;ts:<ts>;".
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator. An empty secret skips every
// check.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Verify checks n's signature.
func (a *Authenticator) Verify(n Notification) Verification {
	if len(a.secret) == 0 || n.Signature == "" || n.RequestID == "" {
		return VerificationSkipped
	}
	ts, v1, err := parseSignature(n.Signature)
	if err != nil {
		return VerificationMalformed
	}
	got, err := hex.DecodeString(v1)
	if err != nil {
		return VerificationMalformed
	}
	if !hmac.Equal(got, a.sign(n.DataID, n.RequestID, ts)) {
		return VerificationMismatch
	}
	return VerificationVerified
}

func (a *Authenticator) sign(dataID, requestID, ts string) []byte {
	mac := hmac.New(sha256.New, a.secret)
	fmt.Fprintf(mac, "id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	return mac.Sum(nil)
}

// Sign returns the v1 signature header for a notification. Used by tests
// and local tooling that replays notifications.
func (a *Authenticator) Sign(dataID, requestID, ts string) string {
	return fmt.Sprintf("ts=%s,v1=%s", ts, hex.EncodeToString(a.sign(dataID, requestID, ts)))
}

func parseSignature(header string) (ts, v1 string, err error) {
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	if ts == "" || v1 == "" {
		return "", "", errMalformedSignature
	}
	return ts, v1, nil
}
