package exchange

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fluxoclean/controlplane/internal/apperr"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that exchange codes are single use.
// Scope: Unit Test
// Security: A leaked code cannot be replayed once redeemed
// Expected: The first exchange returns the token; later exchanges fail with a validation error.
// Test Case ID: EXC-01
func TestBroker_SingleUse(t *testing.T) {
	ctx := context.Background()
	b := NewBroker(NewMemoryStore(clock.NewFake(time.Now())), time.Minute, nil)

	code, err := b.Issue(ctx, "jwt-token")
	require.NoError(t, err)
	assert.Len(t, code, 43)
	assert.NotContains(t, code, "+")
	assert.NotContains(t, code, "/")

	token, err := b.Exchange(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)

	_, err = b.Exchange(ctx, code)
	require.ErrorIs(t, err, ErrCodeInvalid)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = b.Exchange(ctx, "")
	require.ErrorIs(t, err, ErrCodeRequired)
}

// TestPurpose: Validates code expiry.
// Scope: Unit Test
// Expected: A code redeemed after its TTL fails even if its cleanup timer has not fired yet.
// Test Case ID: EXC-02
func TestBroker_Expiry(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	b := NewBroker(NewMemoryStore(clk), DefaultTTL, nil)

	code, err := b.Issue(ctx, "jwt-token")
	require.NoError(t, err)

	clk.Advance(DefaultTTL)
	_, err = b.Exchange(ctx, code)
	require.ErrorIs(t, err, ErrCodeInvalid)
}

// TestPurpose: Validates concurrent redemption of one code.
// Scope: Unit Test
// Security: Racing clients cannot both obtain the token
// Expected: Exactly one of many concurrent exchanges succeeds.
// Test Case ID: EXC-03
func TestBroker_ConcurrentExchange(t *testing.T) {
	ctx := context.Background()
	b := NewBroker(NewMemoryStore(clock.Real{}), time.Minute, nil)
	code, err := b.Issue(ctx, "jwt-token")
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Exchange(ctx, code); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_EvictsUnredeemedCodes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(clock.Real{})
	require.NoError(t, s.Put(ctx, "abc", "tok", 20*time.Millisecond))
	require.ErrorIs(t, s.Put(ctx, "abc", "other", time.Minute), ErrCodeExists)

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}
