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

package http

import (
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
	"github.com/jeremyhahn/go-passkey/pkg/webauthn"
)

// HeaderUserID is the header carrying the base64url-encoded user handle
// for credential management endpoints.
const HeaderUserID = "X-User-Id"

// RegisterOptionsRequest is the request body for starting registration.
type RegisterOptionsRequest struct {
	// Username is the user's sign-in name (required).
	Username string `json:"username"`

	// DisplayName is the user's display name (optional, defaults to username).
	DisplayName string `json:"display_name,omitempty"`
}

// RegisterVerifyRequest is the request body for finishing registration.
type RegisterVerifyRequest struct {
	// Credential is the attestation response from the authenticator.
	Credential webauthn.RegistrationResponse `json:"credential"`

	// Label is an optional user-visible name for the new credential.
	Label string `json:"label,omitempty"`
}

// AuthenticateOptionsRequest is the request body for starting authentication.
type AuthenticateOptionsRequest struct {
	// Username is optional; when empty the discoverable credential
	// (usernameless) flow is used.
	Username string `json:"username,omitempty"`
}

// AuthResponse is the response after a verified authentication.
type AuthResponse struct {
	// UserID is the base64url-encoded user handle.
	UserID string `json:"user_id"`

	// Username is the user's sign-in name.
	Username string `json:"username"`

	// Tokens is the minted session, when a session minter is configured.
	Tokens *webauthn.TokenPair `json:"tokens,omitempty"`
}

// CredentialSummary is the credential representation returned by the
// management endpoints. Key material is never exposed.
type CredentialSummary struct {
	ID             string     `json:"id"`
	Label          string     `json:"label,omitempty"`
	Transports     []string   `json:"transports,omitempty"`
	BackupEligible bool       `json:"backup_eligible"`
	BackupState    bool       `json:"backup_state"`
	CreatedAt      time.Time  `json:"created_at"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
}

// RenameCredentialRequest is the request body for renaming a credential.
type RenameCredentialRequest struct {
	Label string `json:"label"`
}

// ErrorResponse is the response format for errors. Message is safe to show
// to end users; internal failure detail stays in the server logs.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeRegistrationFailed   = "registration_failed"
	ErrorCodeAuthenticationFailed = "authentication_failed"
	ErrorCodeNoCredentials        = "no_credentials"
	ErrorCodeNotFound             = "not_found"
	ErrorCodeUnavailable          = "passkeys_unavailable"
	ErrorCodeInternalError        = "internal_error"
)

func summarize(cred *webauthn.Credential) CredentialSummary {
	s := CredentialSummary{
		ID:             encoding.EncodeBase64URL(cred.ID),
		Label:          cred.Label,
		Transports:     cred.Transports,
		BackupEligible: cred.BackupEligible,
		BackupState:    cred.BackupState,
		CreatedAt:      cred.CreatedAt,
	}
	if !cred.LastUsedAt.IsZero() {
		t := cred.LastUsedAt
		s.LastUsedAt = &t
	}
	return s
}
