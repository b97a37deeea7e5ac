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
	"fmt"
	"time"
)

// Service provides passkey registration and authentication ceremonies.
type Service struct {
	config       *Config
	challenges   ChallengeStore
	creds        CredentialStore
	users        UserStore
	minter       SessionMinter // optional
	capabilities Capabilities
	configured   bool
}

// ServiceParams contains dependencies for creating a passkey service.
type ServiceParams struct {
	// Config is the relying party configuration (required).
	Config *Config

	// ChallengeStore is the challenge persistence layer (required).
	ChallengeStore ChallengeStore

	// CredentialStore is the credential persistence layer (required).
	CredentialStore CredentialStore

	// UserStore is the user persistence layer (required).
	UserStore UserStore

	// SessionMinter is an optional token minter for post-auth sessions.
	// If nil, FinishAuthentication returns the user with a nil TokenPair.
	SessionMinter SessionMinter
}

// NewService creates a new passkey service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.ChallengeStore == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if params.UserStore == nil {
		return nil, fmt.Errorf("user store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		config:       params.Config,
		challenges:   params.ChallengeStore,
		creds:        params.CredentialStore,
		users:        params.UserStore,
		minter:       params.SessionMinter,
		capabilities: resolveCapabilities(params.Config),
		configured:   true,
	}, nil
}

// Config returns the relying party configuration.
func (s *Service) Config() *Config {
	return s.config
}

// Capabilities returns what the configured relying party supports.
func (s *Service) Capabilities() Capabilities {
	return s.capabilities
}

// Credentials returns all credentials registered to a user handle.
func (s *Service) Credentials(ctx context.Context, userID []byte) ([]*Credential, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	creds, err := s.creds.GetByUser(ctx, userID)
	if err != nil {
		return nil, WrapError("list credentials", err)
	}
	return creds, nil
}

// RenameCredential sets the user-visible label on a credential. The
// credential must belong to the given user.
func (s *Service) RenameCredential(ctx context.Context, id, userID []byte, label string) error {
	if !s.configured {
		return ErrNotConfigured
	}
	if label == "" {
		return NewError("rename credential", fmt.Errorf("label is required"))
	}
	return WrapError("rename credential", s.creds.UpdateLabel(ctx, id, userID, label))
}

// DeleteCredential removes a credential owned by the given user.
func (s *Service) DeleteCredential(ctx context.Context, id, userID []byte) error {
	if !s.configured {
		return ErrNotConfigured
	}
	return WrapError("delete credential", s.creds.Delete(ctx, id, userID))
}

// SweepChallenges removes expired challenges. Intended to run periodically;
// returns the number of challenges removed.
func (s *Service) SweepChallenges(ctx context.Context) (int64, error) {
	if !s.configured {
		return 0, ErrNotConfigured
	}
	n, err := s.challenges.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, WrapError("sweep challenges", err)
	}
	return n, nil
}
