package token

import (
	"testing"
	"time"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates bearer token issuance and verification.
// Scope: Unit Test
// Security: Tokens are bound to the secret, the issuer and an expiry
// Expected: A fresh token round-trips its claims; expired, foreign or tampered tokens are rejected as unauthenticated.
// Test Case ID: TOK-01
func TestIssuer_IssueVerify(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	iss, err := NewIssuer("s3cret", "fluxoclean", clk)
	require.NoError(t, err)

	raw, err := iss.Issue(Claims{
		UserID:      "u1",
		TenantID:    "t1",
		Role:        "owner",
		Email:       "owner@acme.io",
		CompanyName: "Acme",
	}, 24*time.Hour)
	require.NoError(t, err)

	claims, err := iss.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, "owner", claims.Role)
	assert.Equal(t, "Acme", claims.CompanyName)

	clk.Advance(24*time.Hour + time.Second)
	_, err = iss.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	other, err := NewIssuer("different", "fluxoclean", clk)
	require.NoError(t, err)
	fresh, err := other.Issue(Claims{Role: "owner"}, time.Hour)
	require.NoError(t, err)
	_, err = iss.Verify(fresh)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Verify("null")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsOtherAlgorithms(t *testing.T) {
	clk := clock.NewFake(time.Now())
	iss, err := NewIssuer("s3cret", "fluxoclean", clk)
	require.NoError(t, err)

	claims := Claims{Role: "superadmin"}
	claims.Issuer = "fluxoclean"
	claims.ExpiresAt = jwt.NewNumericDate(clk.Now().Add(time.Hour))
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.Verify(unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer("", "fluxoclean", clock.Real{})
	require.ErrorIs(t, err, ErrSecretRequired)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}
