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
	"context"
	"time"
)

// ChallengeStore persists issued challenges and enforces single use.
type ChallengeStore interface {
	// Issue persists a freshly generated challenge.
	Issue(ctx context.Context, challenge *Challenge) error

	// Consume atomically marks the challenge with the given value as used
	// and returns it. The store must guarantee that for any value, exactly
	// one Consume call succeeds: concurrent consumers racing on the same
	// value get ErrChallengeInvalid. Expired and unknown challenges also
	// return ErrChallengeInvalid.
	Consume(ctx context.Context, value []byte, kind ChallengeKind) (*Challenge, error)

	// DeleteExpired removes challenges whose TTL passed before the cutoff.
	// Returns the number of challenges removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CredentialStore persists registered credentials.
type CredentialStore interface {
	// Create stores a new credential. Returns ErrCredentialExists if a
	// credential with the same ID is already registered.
	Create(ctx context.Context, credential *Credential) error

	// Get returns the credential with the given ID, or ErrCredentialNotFound.
	Get(ctx context.Context, id []byte) (*Credential, error)

	// GetByUser returns all credentials registered to a user handle.
	GetByUser(ctx context.Context, userID []byte) ([]*Credential, error)

	// UpdateSignCount advances the signature counter using compare-and-swap
	// on the previously observed value. Returns ErrCounterReplay if the
	// stored counter no longer matches observed, meaning another assertion
	// won the race. Also stamps LastUsedAt.
	UpdateSignCount(ctx context.Context, id []byte, observed, updated uint32) error

	// UpdateLabel renames a credential. The caller must own it; stores
	// enforce this by matching both id and userID.
	UpdateLabel(ctx context.Context, id, userID []byte, label string) error

	// Delete removes a credential owned by the given user. Returns
	// ErrCredentialNotFound if it does not exist or belongs to another user.
	Delete(ctx context.Context, id, userID []byte) error
}

// UserStore persists passkey users.
type UserStore interface {
	// Create stores a new user. Returns ErrUserExists if the username is
	// already taken.
	Create(ctx context.Context, user User) error

	// GetByUsername returns the user with the given username, or
	// ErrUserNotFound.
	GetByUsername(ctx context.Context, username string) (User, error)

	// GetByHandle returns the user with the given user handle, or
	// ErrUserNotFound.
	GetByHandle(ctx context.Context, handle []byte) (User, error)
}

// SessionMinter mints application sessions for users that completed a
// verified authentication ceremony. The token format is opaque to the
// ceremony code.
type SessionMinter interface {
	Mint(ctx context.Context, user User, credentialID []byte) (*TokenPair, error)
}
