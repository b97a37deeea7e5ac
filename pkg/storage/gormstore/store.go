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
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/jeremyhahn/go-passkey/pkg/webauthn"
)

// Store bundles the GORM-backed implementations of the webauthn storage
// interfaces. Single-use challenge consumption and sign counter updates
// are compare-and-swap UPDATEs so concurrent ceremonies serialize in the
// database rather than in application locks.
type Store struct {
	db          *gorm.DB
	Challenges  *ChallengeStore
	Credentials *CredentialStore
	Users       *UserStore
}

// New creates a store on an existing GORM connection. The connection must
// be opened with TranslateError so duplicate key violations surface as
// gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Challenges:  &ChallengeStore{db: db},
		Credentials: &CredentialStore{db: db},
		Users:       &UserStore{db: db},
	}
}

// Open connects to Postgres and runs migrations.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := New(db)
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// Migrate creates or updates the passkey tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&User{}, &Credential{}, &Challenge{}); err != nil {
		return fmt.Errorf("failed to migrate passkey tables: %w", err)
	}
	return nil
}

// DB returns the underlying GORM connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ChallengeStore implements webauthn.ChallengeStore on GORM.
type ChallengeStore struct {
	db *gorm.DB
}

// Issue persists a freshly generated challenge.
func (s *ChallengeStore) Issue(ctx context.Context, challenge *webauthn.Challenge) error {
	model := &Challenge{
		Value:      challenge.Value,
		UserHandle: challenge.UserID,
		RPID:       challenge.RPID,
		Kind:       string(challenge.Kind),
		IssuedAt:   challenge.IssuedAt,
		ExpiresAt:  challenge.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to persist challenge: %w", err)
	}
	return nil
}

// Consume atomically marks a challenge used. The UPDATE's WHERE clause
// carries the whole precondition (unused, unexpired, right kind), so under
// concurrent consumers the database lets exactly one row-update win.
func (s *ChallengeStore) Consume(ctx context.Context, value []byte, kind webauthn.ChallengeKind) (*webauthn.Challenge, error) {
	now := time.Now().UTC()

	res := s.db.WithContext(ctx).Model(&Challenge{}).
		Where("value = ? AND kind = ? AND used_at IS NULL AND expires_at > ?", value, string(kind), now).
		Update("used_at", now)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, webauthn.ErrChallengeInvalid
	}

	var model Challenge
	if err := s.db.WithContext(ctx).First(&model, "value = ?", value).Error; err != nil {
		return nil, fmt.Errorf("failed to load consumed challenge: %w", err)
	}
	return &webauthn.Challenge{
		Value:     model.Value,
		UserID:    model.UserHandle,
		RPID:      model.RPID,
		Kind:      webauthn.ChallengeKind(model.Kind),
		IssuedAt:  model.IssuedAt,
		ExpiresAt: model.ExpiresAt,
		UsedAt:    model.UsedAt,
	}, nil
}

// DeleteExpired removes challenges whose expiry passed before the cutoff.
func (s *ChallengeStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&Challenge{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CredentialStore implements webauthn.CredentialStore on GORM.
type CredentialStore struct {
	db *gorm.DB
}

// Create stores a new credential.
func (s *CredentialStore) Create(ctx context.Context, credential *webauthn.Credential) error {
	model := &Credential{
		ID:             credential.ID,
		UserHandle:     credential.UserID,
		PublicKey:      credential.PublicKey,
		Algorithm:      int64(credential.Algorithm),
		SignCount:      int64(credential.SignCount),
		Transports:     credential.Transports,
		BackupEligible: credential.BackupEligible,
		BackupState:    credential.BackupState,
		AAGUID:         credential.AAGUID,
		Label:          credential.Label,
		CreatedAt:      credential.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return webauthn.ErrCredentialExists
		}
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	return nil
}

// Get returns the credential with the given ID.
func (s *CredentialStore) Get(ctx context.Context, id []byte) (*webauthn.Credential, error) {
	var model Credential
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, webauthn.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return toCredential(&model), nil
}

// GetByUser returns all credentials registered to a user handle.
func (s *CredentialStore) GetByUser(ctx context.Context, userID []byte) ([]*webauthn.Credential, error) {
	var models []Credential
	if err := s.db.WithContext(ctx).
		Where("user_handle = ?", userID).
		Order("created_at").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	creds := make([]*webauthn.Credential, 0, len(models))
	for i := range models {
		creds = append(creds, toCredential(&models[i]))
	}
	return creds, nil
}

// UpdateSignCount advances the signature counter with an optimistic
// UPDATE ... WHERE sign_count = observed. A lost race means another
// assertion advanced the counter first, which is indistinguishable from a
// cloned authenticator and reported the same way.
func (s *CredentialStore) UpdateSignCount(ctx context.Context, id []byte, observed, updated uint32) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&Credential{}).
		Where("id = ? AND sign_count = ?", id, int64(observed)).
		Updates(map[string]interface{}{
			"sign_count":   int64(updated),
			"last_used_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update sign count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&Credential{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to update sign count: %w", err)
		}
		if count == 0 {
			return webauthn.ErrCredentialNotFound
		}
		return webauthn.ErrCounterReplay
	}
	return nil
}

// UpdateLabel renames a credential owned by the given user.
func (s *CredentialStore) UpdateLabel(ctx context.Context, id, userID []byte, label string) error {
	res := s.db.WithContext(ctx).Model(&Credential{}).
		Where("id = ? AND user_handle = ?", id, userID).
		Update("label", label)
	if res.Error != nil {
		return fmt.Errorf("failed to rename credential: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return webauthn.ErrCredentialNotFound
	}
	return nil
}

// Delete removes a credential owned by the given user.
func (s *CredentialStore) Delete(ctx context.Context, id, userID []byte) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_handle = ?", id, userID).
		Delete(&Credential{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete credential: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return webauthn.ErrCredentialNotFound
	}
	return nil
}

// UserStore implements webauthn.UserStore on GORM.
type UserStore struct {
	db *gorm.DB
}

// Create stores a new user.
func (s *UserStore) Create(ctx context.Context, user webauthn.User) error {
	model := &User{
		Handle:      user.UserHandle(),
		Username:    user.Username(),
		DisplayName: user.DisplayName(),
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return webauthn.ErrUserExists
		}
		return fmt.Errorf("failed to persist user: %w", err)
	}
	return nil
}

// GetByUsername returns the user with the given username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (webauthn.User, error) {
	var model User
	if err := s.db.WithContext(ctx).First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, webauthn.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return webauthn.NewDefaultUserWithHandle(model.Handle, model.Username, model.DisplayName), nil
}

// GetByHandle returns the user with the given user handle.
func (s *UserStore) GetByHandle(ctx context.Context, handle []byte) (webauthn.User, error) {
	var model User
	if err := s.db.WithContext(ctx).First(&model, "handle = ?", handle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, webauthn.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return webauthn.NewDefaultUserWithHandle(model.Handle, model.Username, model.DisplayName), nil
}

func toCredential(model *Credential) *webauthn.Credential {
	cred := &webauthn.Credential{
		ID:             model.ID,
		UserID:         model.UserHandle,
		PublicKey:      model.PublicKey,
		Algorithm:      webauthncose.COSEAlgorithmIdentifier(model.Algorithm),
		SignCount:      uint32(model.SignCount),
		Transports:     model.Transports,
		BackupEligible: model.BackupEligible,
		BackupState:    model.BackupState,
		AAGUID:         model.AAGUID,
		Label:          model.Label,
		CreatedAt:      model.CreatedAt,
	}
	if model.LastUsedAt != nil {
		cred.LastUsedAt = *model.LastUsedAt
	}
	return cred
}
