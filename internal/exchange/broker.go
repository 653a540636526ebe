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

// Package exchange hands bearer tokens to front-ends through short-lived,
// single-use codes so tokens never travel in redirect URLs.
package exchange

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"github.com/fluxoclean/controlplane/internal/observability/metrics"
)

// DefaultTTL is how long a code stays redeemable.
const DefaultTTL = 60 * time.Second

const codeBytes = 32

var (
	ErrCodeRequired = apperr.New(apperr.KindValidation, "authorization code is required")
	ErrCodeInvalid  = apperr.New(apperr.KindValidation, "invalid or expired code")

	// ErrCodeNotFound is returned by stores for unknown, expired or already
	// taken codes.
	ErrCodeNotFound = errors.New("code not found")
	// ErrCodeExists is returned by stores when the code is already held.
	ErrCodeExists = errors.New("code already exists")
)

// Store is an expiring key-value store with atomic take.
type Store interface {
	// Put stores token under code for ttl. It fails with ErrCodeExists if
	// code is live.
	Put(ctx context.Context, code, token string, ttl time.Duration) error
	// Take returns and removes the token under code.
	Take(ctx context.Context, code string) (string, error)
}

// Broker issues and redeems one-time codes.
type Broker struct {
	store       Store
	ttl         time.Duration
	instruments *metrics.BillingInstruments
}

// NewBroker creates a broker. A non-positive ttl uses DefaultTTL.
func NewBroker(store Store, ttl time.Duration, instruments *metrics.BillingInstruments) *Broker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Broker{store: store, ttl: ttl, instruments: instruments}
}

// Issue stores token behind a fresh code.
func (b *Broker) Issue(ctx context.Context, token string) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		code, err := newCode()
		if err != nil {
			return "", err
		}
		err = b.store.Put(ctx, code, token, b.ttl)
		if errors.Is(err, ErrCodeExists) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to store exchange code: %w", err)
		}
		b.instruments.ExchangeCode(ctx, "issued")
		return code, nil
	}
	return "", errors.New("failed to allocate a unique exchange code")
}

// Exchange redeems code for its token. A code works once.
func (b *Broker) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", ErrCodeRequired
	}
	token, err := b.store.Take(ctx, code)
	if errors.Is(err, ErrCodeNotFound) {
		b.instruments.ExchangeCode(ctx, "refused")
		slog.DebugContext(ctx, "exchange code refused", logger.Component("exchange"))
		return "", ErrCodeInvalid
	}
	if err != nil {
		return "", fmt.Errorf("failed to redeem exchange code: %w", err)
	}
	b.instruments.ExchangeCode(ctx, "redeemed")
	return token, nil
}

func newCode() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate exchange code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
