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
	"errors"
	"time"

	"github.com/go-webauthn/webauthn/protocol/webauthncose"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
)

// BeginRegistration starts a registration ceremony for the given username.
// A new user is created on first registration; existing users add another
// credential, with their current credentials excluded so the authenticator
// does not mint a duplicate.
func (s *Service) BeginRegistration(ctx context.Context, username, displayName string) (*CreationOptions, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	if username == "" {
		return nil, NewError("begin registration", errors.New("username is required"))
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, WrapError("get user", err)
		}
		user = NewDefaultUser(username, displayName)
		if err := s.users.Create(ctx, user); err != nil {
			return nil, WrapError("create user", err)
		}
	}

	existing, err := s.creds.GetByUser(ctx, user.UserHandle())
	if err != nil {
		return nil, WrapError("get credentials", err)
	}

	challenge, err := NewChallenge(user.UserHandle(), s.config.RPID, ChallengeRegistration, s.config.ChallengeTTL)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}
	if err := s.challenges.Issue(ctx, challenge); err != nil {
		return nil, WrapError("issue challenge", err)
	}

	exclude := make([]CredentialDescriptor, 0, len(existing))
	for _, cred := range existing {
		exclude = append(exclude, CredentialDescriptor{
			Type:       "public-key",
			ID:         encoding.EncodeBase64URL(cred.ID),
			Transports: cred.Transports,
		})
	}

	opts := &CreationOptions{
		Challenge: encoding.EncodeBase64URL(challenge.Value),
		RelyingParty: RelyingPartyEntity{
			ID:   s.config.RPID,
			Name: s.config.RPDisplayName,
		},
		User: UserEntity{
			ID:          encoding.EncodeBase64URL(user.UserHandle()),
			Name:        user.Username(),
			DisplayName: user.DisplayName(),
		},
		Parameters: []CredentialParameter{
			{Type: "public-key", Algorithm: webauthncose.AlgES256},
			{Type: "public-key", Algorithm: webauthncose.AlgRS256},
		},
		Timeout:            s.config.CeremonyTimeout.Milliseconds(),
		ExcludeCredentials: exclude,
		AuthenticatorSelection: &AuthenticatorSelection{
			AuthenticatorAttachment: s.config.AuthenticatorAttachment,
			ResidentKey:             s.config.ResidentKeyRequirement,
			RequireResidentKey:      s.config.ResidentKeyRequirement == "required",
			UserVerification:        s.config.UserVerification,
		},
		Attestation: s.config.AttestationPreference,
	}

	return opts, nil
}

// FinishRegistration verifies a registration response and persists the new
// credential. Verification order: client data (type, challenge, origin),
// then the attestation object's authenticator data (RP ID hash, user
// presence), then the credential public key, which must decode to a
// supported COSE algorithm before anything is stored.
func (s *Service) FinishRegistration(ctx context.Context, resp *RegistrationResponse, label string) (*Credential, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	clientDataJSON, err := encoding.DecodeBase64URL(resp.Response.ClientDataJSON)
	if err != nil {
		return nil, NewError("finish registration", ErrClientDataParse)
	}
	attestationRaw, err := encoding.DecodeBase64URL(resp.Response.AttestationObject)
	if err != nil {
		return nil, NewError("finish registration", ErrAttestationParse)
	}

	clientData, err := ParseClientData(clientDataJSON)
	if err != nil {
		return nil, WrapError("finish registration", err)
	}

	challengeValue, err := encoding.DecodeBase64URL(clientData.Challenge)
	if err != nil {
		return nil, NewError("finish registration", ErrClientDataParse)
	}
	challenge, err := s.challenges.Consume(ctx, challengeValue, ChallengeRegistration)
	if err != nil {
		return nil, WrapError("finish registration", err)
	}

	if err := VerifyClientData(clientData, clientDataTypeCreate, challenge.Value, s.config); err != nil {
		return nil, WrapError("finish registration", err)
	}

	_, authData, err := ParseAttestationObject(attestationRaw)
	if err != nil {
		return nil, WrapError("finish registration", err)
	}
	if err := authData.VerifyRPIDHash(s.config.RPID); err != nil {
		return nil, WrapError("finish registration", err)
	}
	if !authData.UserPresent() {
		return nil, NewError("finish registration", errors.New("user presence flag not set"))
	}
	if s.config.UserVerification == "required" && !authData.UserVerified() {
		return nil, NewError("finish registration", errors.New("user verification required but not performed"))
	}

	// Reject keys we cannot later verify assertions with.
	key, err := ParseCOSEPublicKey(authData.Attested.PublicKey)
	if err != nil {
		return nil, WrapError("finish registration", err)
	}

	now := time.Now().UTC()
	cred := &Credential{
		ID:             authData.Attested.CredentialID,
		UserID:         challenge.UserID,
		PublicKey:      authData.Attested.PublicKey,
		Algorithm:      key.Algorithm,
		SignCount:      authData.SignCount,
		Transports:     resp.Response.Transports,
		BackupEligible: authData.BackupEligible(),
		BackupState:    authData.BackupState(),
		AAGUID:         authData.Attested.AAGUID,
		Label:          label,
		CreatedAt:      now,
	}

	if err := s.creds.Create(ctx, cred); err != nil {
		return nil, WrapError("store credential", err)
	}

	return cred, nil
}
