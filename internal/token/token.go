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

// Package token issues and verifies the bearer tokens handed to product
// front-ends.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrSecretRequired = apperr.New(apperr.KindConfiguration, "token signing secret is not configured")
	ErrInvalidToken   = apperr.New(apperr.KindUnauthenticated, "invalid or expired token")
)

// Claims carried by a bearer token. TenantID is empty for the platform
// operator.
type Claims struct {
	UserID      string `json:"userId,omitempty"`
	TenantID    string `json:"tenantId,omitempty"`
	Role        string `json:"role"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	Document    string `json:"document,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	issuer string
	clock  clock.Clock
}

// NewIssuer creates an issuer. An empty secret is a configuration error.
func NewIssuer(secret, issuer string, clk clock.Clock) (*Issuer, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, clock: clk}, nil
}

// Issue signs claims valid for ttl.
func (i *Issuer) Issue(claims Claims, ttl time.Duration) (string, error) {
	now := i.clock.Now()
	claims.Issuer = i.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.Subject == "" {
		claims.Subject = claims.UserID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm, issuer and expiry of raw.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}
