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

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates secret detection for audit metadata keys.
// Scope: Unit Test
// Security: Credentials and signatures never reach audit logs
// Expected: Password, token and signature keys are secrets; billing and identity keys are not.
// Test Case ID: AUD-01
func TestAudit_IsSecret(t *testing.T) {
	secrets := []string{"password", "NewPassword", "registration_token", "reset_token", "jwt_secret", "api_key", "password_hash", "credential", "x_signature", "Authorization"}
	for _, k := range secrets {
		assert.True(t, isSecret(k), k)
	}

	visible := []string{"user_id", "tenant_id", "email", "status", "reference_code", "amount", "outcome", "request_type", "payment_id", "reason"}
	for _, k := range visible {
		assert.False(t, isSecret(k), k)
	}
}

// TestPurpose: Validates that the slog audit logger writes one structured line per event.
// Scope: Unit Test
// Security: Secret metadata is redacted in the emitted record
// Expected: The record carries the event type, tenant and metadata with secrets replaced.
// Test Case ID: AUD-02
func TestSlogLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	NewSlogLogger().Log(context.Background(), Event{
		Type:     TypePaymentAmountMismatch,
		TenantID: "tenant-1",
		Resource: "TRIAL-20260501-0A1B2C3D",
		Metadata: map[string]any{"amount": "50.00", "x_signature": "ts=1,v1=abc"},
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "AUDIT_EVENT", rec["msg"])
	assert.Equal(t, TypePaymentAmountMismatch, rec["audit_type"])
	assert.Equal(t, "tenant-1", rec["tenant_id"])
	meta := rec["metadata"].(map[string]any)
	assert.Equal(t, "50.00", meta["amount"])
	assert.Equal(t, "[REDACTED]", meta["x_signature"])
}
