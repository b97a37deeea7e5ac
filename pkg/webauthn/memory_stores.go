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
	"sync"
	"time"
)

// MemoryChallengeStore is a thread-safe in-memory challenge store,
// suitable for development and testing. Single-use semantics are enforced
// under the store mutex.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
}

// NewMemoryChallengeStore creates a new in-memory challenge store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]*Challenge),
	}
}

// Issue persists a challenge keyed by its value.
func (s *MemoryChallengeStore) Issue(ctx context.Context, challenge *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[string(challenge.Value)] = challenge
	return nil
}

// Consume atomically marks a challenge used. Exactly one caller succeeds
// per value; expired, already-used, wrong-kind, and unknown challenges all
// collapse to ErrChallengeInvalid.
func (s *MemoryChallengeStore) Consume(ctx context.Context, value []byte, kind ChallengeKind) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[string(value)]
	if !ok {
		return nil, ErrChallengeInvalid
	}
	if challenge.Kind != kind {
		return nil, ErrChallengeInvalid
	}
	if challenge.UsedAt != nil {
		return nil, ErrChallengeInvalid
	}
	now := time.Now().UTC()
	if challenge.Expired(now) {
		return nil, ErrChallengeInvalid
	}

	challenge.UsedAt = &now
	return challenge, nil
}

// DeleteExpired removes challenges whose expiry passed before the cutoff.
func (s *MemoryChallengeStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, challenge := range s.challenges {
		if challenge.ExpiresAt.Before(cutoff) {
			delete(s.challenges, key)
			n++
		}
	}
	return n, nil
}

// MemoryCredentialStore is a thread-safe in-memory credential store.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]*Credential
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		creds: make(map[string]*Credential),
	}
}

// Create stores a new credential.
func (s *MemoryCredentialStore) Create(ctx context.Context, credential *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(credential.ID)
	if _, exists := s.creds[key]; exists {
		return ErrCredentialExists
	}
	clone := *credential
	s.creds[key] = &clone
	return nil
}

// Get returns the credential with the given ID.
func (s *MemoryCredentialStore) Get(ctx context.Context, id []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[string(id)]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	clone := *cred
	return &clone, nil
}

// GetByUser returns all credentials registered to a user handle.
func (s *MemoryCredentialStore) GetByUser(ctx context.Context, userID []byte) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var creds []*Credential
	for _, cred := range s.creds {
		if string(cred.UserID) == string(userID) {
			clone := *cred
			creds = append(creds, &clone)
		}
	}
	return creds, nil
}

// UpdateSignCount advances the counter with compare-and-swap semantics.
func (s *MemoryCredentialStore) UpdateSignCount(ctx context.Context, id []byte, observed, updated uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[string(id)]
	if !ok {
		return ErrCredentialNotFound
	}
	if cred.SignCount != observed {
		return ErrCounterReplay
	}
	cred.SignCount = updated
	cred.LastUsedAt = time.Now().UTC()
	return nil
}

// UpdateLabel renames a credential owned by the given user.
func (s *MemoryCredentialStore) UpdateLabel(ctx context.Context, id, userID []byte, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[string(id)]
	if !ok || string(cred.UserID) != string(userID) {
		return ErrCredentialNotFound
	}
	cred.Label = label
	return nil
}

// Delete removes a credential owned by the given user.
func (s *MemoryCredentialStore) Delete(ctx context.Context, id, userID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[string(id)]
	if !ok || string(cred.UserID) != string(userID) {
		return ErrCredentialNotFound
	}
	delete(s.creds, string(id))
	return nil
}

// MemoryUserStore is a thread-safe in-memory user store.
type MemoryUserStore struct {
	mu         sync.RWMutex
	byUsername map[string]User
	byHandle   map[string]User
}

// NewMemoryUserStore creates a new in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byUsername: make(map[string]User),
		byHandle:   make(map[string]User),
	}
}

// Create stores a new user.
func (s *MemoryUserStore) Create(ctx context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[user.Username()]; exists {
		return ErrUserExists
	}
	s.byUsername[user.Username()] = user
	s.byHandle[string(user.UserHandle())] = user
	return nil
}

// GetByUsername returns the user with the given username.
func (s *MemoryUserStore) GetByUsername(ctx context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetByHandle returns the user with the given user handle.
func (s *MemoryUserStore) GetByHandle(ctx context.Context, handle []byte) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byHandle[string(handle)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}
