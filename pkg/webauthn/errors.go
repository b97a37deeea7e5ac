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
	"fmt"
)

// Sentinel errors for passkey operations. These form a closed taxonomy:
// every verification failure maps to exactly one of them.
var (
	// ErrChallengeInvalid is returned when a challenge is missing, expired,
	// or already consumed.
	ErrChallengeInvalid = errors.New("challenge invalid")

	// ErrOriginMismatch is returned when the client data origin is not in
	// the relying party's allowed origins.
	ErrOriginMismatch = errors.New("origin mismatch")

	// ErrTypeMismatch is returned when the client data type does not match
	// the expected ceremony.
	ErrTypeMismatch = errors.New("ceremony type mismatch")

	// ErrClientDataParse is returned when the client data JSON is malformed.
	ErrClientDataParse = errors.New("malformed client data")

	// ErrAttestationParse is returned when the attestation object or its
	// authenticator data cannot be decoded.
	ErrAttestationParse = errors.New("malformed attestation object")

	// ErrSignatureInvalid is returned when assertion signature verification
	// fails against the stored public key.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrCounterReplay is returned when an assertion reports a signature
	// counter that did not advance. This indicates a possible cloned
	// authenticator and always fails closed.
	ErrCounterReplay = errors.New("signature counter did not advance")

	// ErrCredentialNotFound is returned when a credential cannot be found.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExists is returned when registering a duplicate credential.
	ErrCredentialExists = errors.New("credential already exists")

	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when creating a user that already exists.
	ErrUserExists = errors.New("user already exists")

	// ErrNoCredentials is returned when a user has no registered credentials.
	ErrNoCredentials = errors.New("user has no registered credentials")

	// ErrPasskeysUnavailable is returned when passkeys are disabled for the
	// requesting host (preview and staging deployments).
	ErrPasskeysUnavailable = errors.New("passkeys unavailable for this host")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("passkey service not configured")
)

// PasskeyError wraps an error with the operation that produced it.
type PasskeyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *PasskeyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PasskeyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *PasskeyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new PasskeyError with the given operation and error.
func NewError(op string, err error) error {
	return &PasskeyError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// User-facing messages. Internal reason codes are logged but never sent to
// clients; every failure collapses to one of these.
const (
	MsgRegistrationFailed   = "Registration failed. Please try again."
	MsgAuthenticationFailed = "Authentication failed. Please try again or use an alternate sign-in method."
	MsgNoPasskey            = "No passkey is registered for this account. Please use an alternate sign-in method."
	MsgPasskeysUnavailable  = "Passkeys are not available in this environment."
)

// UserMessage maps an internal error to the generic string shown to
// clients. It is a pure function over the closed error taxonomy; the
// ceremony selects the fallback, so a challenge or origin failure during
// registration collapses to the registration message, never the
// authentication one.
func UserMessage(ceremony string, err error) string {
	switch {
	case errors.Is(err, ErrCredentialNotFound), errors.Is(err, ErrNoCredentials):
		return MsgNoPasskey
	case errors.Is(err, ErrPasskeysUnavailable):
		return MsgPasskeysUnavailable
	case errors.Is(err, ErrCredentialExists),
		errors.Is(err, ErrAttestationParse),
		errors.Is(err, ErrUserExists):
		return MsgRegistrationFailed
	}
	if ceremony == string(ChallengeRegistration) {
		return MsgRegistrationFailed
	}
	return MsgAuthenticationFailed
}

// IsSecurityEvent reports whether an error should be surfaced to security
// monitoring in addition to normal request logging. Counter replays suggest
// a cloned authenticator; origin and type mismatches suggest tampering or a
// misconfigured deployment.
func IsSecurityEvent(err error) bool {
	return errors.Is(err, ErrCounterReplay) ||
		errors.Is(err, ErrOriginMismatch) ||
		errors.Is(err, ErrTypeMismatch) ||
		errors.Is(err, ErrSignatureInvalid)
}

// Reason returns a stable label for an error, used for logs and metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrChallengeInvalid):
		return "challenge_invalid"
	case errors.Is(err, ErrOriginMismatch):
		return "origin_mismatch"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrClientDataParse):
		return "client_data_parse"
	case errors.Is(err, ErrAttestationParse):
		return "attestation_parse"
	case errors.Is(err, ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrCounterReplay):
		return "counter_replay"
	case errors.Is(err, ErrCredentialNotFound):
		return "credential_not_found"
	case errors.Is(err, ErrCredentialExists):
		return "credential_exists"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrUserExists):
		return "user_exists"
	case errors.Is(err, ErrNoCredentials):
		return "no_credentials"
	case errors.Is(err, ErrPasskeysUnavailable):
		return "passkeys_unavailable"
	default:
		return "internal"
	}
}
