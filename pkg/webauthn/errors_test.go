// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package webauthn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasskeyError(t *testing.T) {
	err := NewError("finish authentication", ErrCounterReplay)
	assert.Equal(t, "finish authentication: signature counter did not advance", err.Error())
	assert.ErrorIs(t, err, ErrCounterReplay)
	assert.NotErrorIs(t, err, ErrChallengeInvalid)

	// Nested wrapping still unwraps to the sentinel.
	outer := WrapError("http handler", err)
	assert.ErrorIs(t, outer, ErrCounterReplay)

	assert.NoError(t, WrapError("noop", nil))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		ceremony string
		err      error
		want     string
	}{
		{"missing credential", "authentication", ErrCredentialNotFound, MsgNoPasskey},
		{"no credentials", "authentication", ErrNoCredentials, MsgNoPasskey},
		{"unavailable", "authentication", ErrPasskeysUnavailable, MsgPasskeysUnavailable},
		{"duplicate credential", "registration", ErrCredentialExists, MsgRegistrationFailed},
		{"bad attestation", "registration", ErrAttestationParse, MsgRegistrationFailed},
		{"duplicate user", "registration", ErrUserExists, MsgRegistrationFailed},
		{"stale challenge", "authentication", ErrChallengeInvalid, MsgAuthenticationFailed},
		{"bad signature", "authentication", ErrSignatureInvalid, MsgAuthenticationFailed},
		{"counter replay", "authentication", ErrCounterReplay, MsgAuthenticationFailed},
		{"internal", "authentication", errors.New("database on fire"), MsgAuthenticationFailed},

		// Every registration failure collapses to the registration
		// message, including errors shared with authentication.
		{"registration stale challenge", "registration", ErrChallengeInvalid, MsgRegistrationFailed},
		{"registration origin mismatch", "registration", ErrOriginMismatch, MsgRegistrationFailed},
		{"registration type mismatch", "registration", ErrTypeMismatch, MsgRegistrationFailed},
		{"registration bad client data", "registration", ErrClientDataParse, MsgRegistrationFailed},
		{"registration internal", "registration", errors.New("database on fire"), MsgRegistrationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.ceremony, tt.err))
			// Wrapping must not change the user-facing message.
			assert.Equal(t, tt.want, UserMessage(tt.ceremony, WrapError("op", tt.err)))
		})
	}
}

func TestIsSecurityEvent(t *testing.T) {
	assert.True(t, IsSecurityEvent(ErrCounterReplay))
	assert.True(t, IsSecurityEvent(ErrOriginMismatch))
	assert.True(t, IsSecurityEvent(ErrTypeMismatch))
	assert.True(t, IsSecurityEvent(ErrSignatureInvalid))
	assert.True(t, IsSecurityEvent(WrapError("op", ErrCounterReplay)))

	assert.False(t, IsSecurityEvent(ErrChallengeInvalid))
	assert.False(t, IsSecurityEvent(ErrCredentialNotFound))
	assert.False(t, IsSecurityEvent(nil))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "counter_replay", Reason(ErrCounterReplay))
	assert.Equal(t, "origin_mismatch", Reason(WrapError("op", ErrOriginMismatch)))
	assert.Equal(t, "challenge_invalid", Reason(ErrChallengeInvalid))
	assert.Equal(t, "internal", Reason(errors.New("database on fire")))
}
