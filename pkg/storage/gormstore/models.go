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

package gormstore

import (
	"time"
)

// User is the persisted passkey user. The handle is the opaque WebAuthn
// user handle, never derived from the username.
type User struct {
	Handle      []byte `gorm:"primaryKey;type:bytea"`
	Username    string `gorm:"uniqueIndex;not null"`
	DisplayName string
	CreatedAt   time.Time
}

// TableName overrides the GORM default.
func (User) TableName() string {
	return "passkey_users"
}

// Credential is the persisted WebAuthn credential. Binary columns are
// BYTEA in Postgres; the sign counter is compared-and-swapped on every
// authentication.
type Credential struct {
	ID             []byte   `gorm:"primaryKey;type:bytea"`
	UserHandle     []byte   `gorm:"index;type:bytea;not null"`
	PublicKey      []byte   `gorm:"type:bytea;not null"`
	Algorithm      int64    `gorm:"not null"`
	SignCount      int64    `gorm:"not null;default:0"`
	Transports     []string `gorm:"serializer:json"`
	BackupEligible bool
	BackupState    bool
	AAGUID         []byte `gorm:"type:bytea"`
	Label          string
	CreatedAt      time.Time
	LastUsedAt     *time.Time
}

// TableName overrides the GORM default.
func (Credential) TableName() string {
	return "passkey_credentials"
}

// Challenge is a persisted single-use ceremony challenge, keyed by its
// random value. UsedAt is set exactly once by the consume CAS.
type Challenge struct {
	Value      []byte `gorm:"primaryKey;type:bytea"`
	UserHandle []byte `gorm:"type:bytea"`
	RPID       string `gorm:"not null"`
	Kind       string `gorm:"not null"`
	IssuedAt   time.Time
	ExpiresAt  time.Time `gorm:"index"`
	UsedAt     *time.Time
}

// TableName overrides the GORM default.
func (Challenge) TableName() string {
	return "passkey_challenges"
}
