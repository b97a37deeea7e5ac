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
	"bytes"
	"context"
	"errors"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
)

// BeginAuthentication starts an authentication ceremony. With a username,
// the options list that user's credentials in allowCredentials; with an
// empty username the list is empty, which tells the authenticator to offer
// any discoverable credential for this relying party (usernameless flow).
func (s *Service) BeginAuthentication(ctx context.Context, username string) (*RequestOptions, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	var userID []byte
	allow := []CredentialDescriptor{}

	if username != "" {
		user, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return nil, WrapError("get user", err)
		}
		userID = user.UserHandle()

		creds, err := s.creds.GetByUser(ctx, userID)
		if err != nil {
			return nil, WrapError("get credentials", err)
		}
		if len(creds) == 0 {
			return nil, NewError("begin authentication", ErrNoCredentials)
		}
		for _, cred := range creds {
			allow = append(allow, CredentialDescriptor{
				Type:       "public-key",
				ID:         encoding.EncodeBase64URL(cred.ID),
				Transports: cred.Transports,
			})
		}
	}

	challenge, err := NewChallenge(userID, s.config.RPID, ChallengeAuthentication, s.config.ChallengeTTL)
	if err != nil {
		return nil, WrapError("begin authentication", err)
	}
	if err := s.challenges.Issue(ctx, challenge); err != nil {
		return nil, WrapError("issue challenge", err)
	}

	return &RequestOptions{
		Challenge:        encoding.EncodeBase64URL(challenge.Value),
		Timeout:          s.config.CeremonyTimeout.Milliseconds(),
		RPID:             s.config.RPID,
		AllowCredentials: allow,
		UserVerification: s.config.UserVerification,
	}, nil
}

// FinishAuthentication verifies an assertion response and, when a session
// minter is configured, mints an application session for the user.
//
// Verification order: credential lookup, client data (type, challenge,
// origin), authenticator data (RP ID hash, user presence), signature over
// authData || SHA256(clientDataJSON), then the counter compare-and-swap,
// which both detects cloned authenticators and serializes concurrent
// assertions on the same credential.
func (s *Service) FinishAuthentication(ctx context.Context, resp *AuthenticationResponse) (User, *TokenPair, error) {
	if !s.configured {
		return nil, nil, ErrNotConfigured
	}

	credentialID, err := encoding.DecodeBase64URL(resp.RawID)
	if err != nil {
		return nil, nil, NewError("finish authentication", ErrClientDataParse)
	}
	clientDataJSON, err := encoding.DecodeBase64URL(resp.Response.ClientDataJSON)
	if err != nil {
		return nil, nil, NewError("finish authentication", ErrClientDataParse)
	}
	authDataRaw, err := encoding.DecodeBase64URL(resp.Response.AuthenticatorData)
	if err != nil {
		return nil, nil, NewError("finish authentication", ErrAttestationParse)
	}
	sig, err := encoding.DecodeBase64URL(resp.Response.Signature)
	if err != nil {
		return nil, nil, NewError("finish authentication", ErrSignatureInvalid)
	}

	cred, err := s.creds.Get(ctx, credentialID)
	if err != nil {
		return nil, nil, WrapError("finish authentication", err)
	}

	clientData, err := ParseClientData(clientDataJSON)
	if err != nil {
		return nil, nil, WrapError("finish authentication", err)
	}

	challengeValue, err := encoding.DecodeBase64URL(clientData.Challenge)
	if err != nil {
		return nil, nil, NewError("finish authentication", ErrClientDataParse)
	}
	challenge, err := s.challenges.Consume(ctx, challengeValue, ChallengeAuthentication)
	if err != nil {
		return nil, nil, WrapError("finish authentication", err)
	}

	if err := VerifyClientData(clientData, clientDataTypeGet, challenge.Value, s.config); err != nil {
		return nil, nil, WrapError("finish authentication", err)
	}

	// Challenges issued for a named user must be answered by that user's
	// credential.
	if len(challenge.UserID) > 0 && !bytes.Equal(challenge.UserID, cred.UserID) {
		return nil, nil, NewError("finish authentication", ErrCredentialNotFound)
	}

	authData, err := ParseAuthenticatorData(authDataRaw)
	if err != nil {
		return nil, nil, WrapError("finish authentication", err)
	}
	if err := authData.VerifyRPIDHash(s.config.RPID); err != nil {
		return nil, nil, WrapError("finish authentication", err)
	}
	if !authData.UserPresent() {
		return nil, nil, NewError("finish authentication", errors.New("user presence flag not set"))
	}
	if s.config.UserVerification == "required" && !authData.UserVerified() {
		return nil, nil, NewError("finish authentication", errors.New("user verification required but not performed"))
	}

	if err := VerifyAssertionSignature(cred.PublicKey, authDataRaw, clientDataJSON, sig); err != nil {
		return nil, nil, WrapError("finish authentication", err)
	}

	if err := VerifyCounter(cred.SignCount, authData.SignCount); err != nil {
		return nil, nil, WrapError("finish authentication", err)
	}
	// The compare-and-swap on the previously read counter serializes
	// concurrent assertions: the loser observes a stale value and fails
	// with ErrCounterReplay. Zero-counter authenticators still go through
	// so LastUsedAt is stamped.
	if err := s.creds.UpdateSignCount(ctx, cred.ID, cred.SignCount, authData.SignCount); err != nil {
		return nil, nil, WrapError("finish authentication", err)
	}

	user, err := s.users.GetByHandle(ctx, cred.UserID)
	if err != nil {
		return nil, nil, WrapError("finish authentication", err)
	}

	if s.minter == nil {
		return user, nil, nil
	}
	tokens, err := s.minter.Mint(ctx, user, cred.ID)
	if err != nil {
		return nil, nil, WrapError("mint session", err)
	}
	return user, tokens, nil
}
