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
	"crypto/rand"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/google/uuid"
)

// ChallengeKind distinguishes registration challenges from authentication
// challenges. A challenge issued for one ceremony cannot be consumed by the
// other.
type ChallengeKind string

const (
	ChallengeRegistration   ChallengeKind = "registration"
	ChallengeAuthentication ChallengeKind = "authentication"
)

// ChallengeSize is the number of random bytes in a challenge value.
const ChallengeSize = 32

// Challenge is a single-use nonce proving freshness of a client response.
// A challenge is consumed at most once: stores mark UsedAt atomically so
// concurrent verification attempts cannot both succeed.
type Challenge struct {
	// Value is the raw random challenge bytes. Transported base64url.
	Value []byte `json:"value"`

	// UserID is the user handle the challenge was issued for. Nil for
	// usernameless (discoverable credential) authentication.
	UserID []byte `json:"user_id,omitempty"`

	// RPID is the relying party the challenge was issued for.
	RPID string `json:"rp_id"`

	// Kind is the ceremony this challenge is valid for.
	Kind ChallengeKind `json:"kind"`

	// IssuedAt is when the challenge was created.
	IssuedAt time.Time `json:"issued_at"`

	// ExpiresAt is when the challenge stops being consumable.
	ExpiresAt time.Time `json:"expires_at"`

	// UsedAt is set exactly once, at verification time.
	UsedAt *time.Time `json:"used_at,omitempty"`
}

// NewChallenge creates an unsaved challenge with fresh random bytes.
func NewChallenge(userID []byte, rpID string, kind ChallengeKind, ttl time.Duration) (*Challenge, error) {
	value := make([]byte, ChallengeSize)
	if _, err := rand.Read(value); err != nil {
		return nil, fmt.Errorf("failed to generate challenge: %w", err)
	}
	now := time.Now().UTC()
	return &Challenge{
		Value:     value,
		UserID:    userID,
		RPID:      rpID,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Expired reports whether the challenge TTL has passed.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Credential represents one registered authenticator bound to one user.
type Credential struct {
	// ID is the credential identifier assigned by the authenticator.
	// Opaque and globally unique.
	ID []byte `json:"id"`

	// UserID is the user handle this credential belongs to.
	UserID []byte `json:"user_id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// Algorithm is the COSE algorithm negotiated at registration
	// (ES256 = -7, RS256 = -257).
	Algorithm webauthncose.COSEAlgorithmIdentifier `json:"algorithm"`

	// SignCount is the signature counter for clone detection.
	SignCount uint32 `json:"sign_count"`

	// Transports lists how the authenticator communicates
	// (usb, nfc, ble, internal, hybrid).
	Transports []string `json:"transports,omitempty"`

	// BackupEligible indicates the credential can be synced across devices.
	BackupEligible bool `json:"backup_eligible"`

	// BackupState indicates the credential is currently backed up.
	BackupState bool `json:"backup_state"`

	// AAGUID is the authenticator model identifier. May be all zeros.
	AAGUID []byte `json:"aaguid,omitempty"`

	// Label is the user-assigned name for this credential.
	Label string `json:"label,omitempty"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential last completed an authentication.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// TokenPair is the application session minted after a verified
// authentication. Opaque to this package.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// User represents a passkey user. Applications implement this interface to
// integrate their own user model.
type User interface {
	// UserHandle returns the opaque WebAuthn user handle. This is never
	// the username or any other human-readable identifier.
	UserHandle() []byte

	// Username returns the user's sign-in name.
	Username() string

	// DisplayName returns the user's display name.
	DisplayName() string
}

// DefaultUser is a simple implementation of the User interface.
type DefaultUser struct {
	handle      []byte
	username    string
	displayName string
}

// NewDefaultUser creates a user with a fresh random (UUID) user handle.
func NewDefaultUser(username, displayName string) *DefaultUser {
	id := uuid.New()
	return &DefaultUser{
		handle:      id[:],
		username:    username,
		displayName: displayName,
	}
}

// NewDefaultUserWithHandle creates a user with an existing handle, for
// stores rehydrating persisted users.
func NewDefaultUserWithHandle(handle []byte, username, displayName string) *DefaultUser {
	return &DefaultUser{
		handle:      handle,
		username:    username,
		displayName: displayName,
	}
}

// UserHandle returns the opaque user handle.
func (u *DefaultUser) UserHandle() []byte {
	return u.handle
}

// Username returns the sign-in name.
func (u *DefaultUser) Username() string {
	return u.username
}

// DisplayName returns the display name, falling back to the username.
func (u *DefaultUser) DisplayName() string {
	if u.displayName == "" {
		return u.username
	}
	return u.displayName
}

// Capabilities describes what the configured relying party supports. It is
// resolved once at service construction so clients can feature-gate without
// probing.
type Capabilities struct {
	// PlatformAuthenticator is true unless configuration restricts
	// ceremonies to roaming (cross-platform) authenticators.
	PlatformAuthenticator bool `json:"platform_authenticator"`

	// DiscoverableCredentials is true when the relying party requests
	// resident keys, enabling usernameless sign-in.
	DiscoverableCredentials bool `json:"discoverable_credentials"`

	// Algorithms lists the supported COSE algorithms in preference order.
	Algorithms []webauthncose.COSEAlgorithmIdentifier `json:"algorithms"`
}

func resolveCapabilities(cfg *Config) Capabilities {
	return Capabilities{
		PlatformAuthenticator:   cfg.AuthenticatorAttachment != "cross-platform",
		DiscoverableCredentials: cfg.ResidentKeyRequirement != "discouraged",
		Algorithms: []webauthncose.COSEAlgorithmIdentifier{
			webauthncose.AlgES256,
			webauthncose.AlgRS256,
		},
	}
}
