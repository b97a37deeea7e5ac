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
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
)

// JWTMinter mints ES256-signed JWT session tokens after a verified
// authentication ceremony.
type JWTMinter struct {
	privateKey *ecdsa.PrivateKey
	issuer     string
	audience   []string
	accessTTL  time.Duration
	refreshTTL time.Duration
	keyID      string
}

// JWTMinterConfig contains configuration for the JWT minter.
type JWTMinterConfig struct {
	// PrivateKey is the ES256 signing key (required).
	PrivateKey *ecdsa.PrivateKey
	// Issuer is the JWT issuer claim (default: "go-passkey").
	Issuer string
	// Audience is the JWT audience claim (default: ["go-passkey"]).
	Audience []string
	// AccessTTL is the access token lifetime (default: 15 minutes).
	AccessTTL time.Duration
	// RefreshTTL is the refresh token lifetime (default: 30 days).
	RefreshTTL time.Duration
	// KeyID sets the kid header on minted tokens (optional).
	KeyID string
}

// NewJWTMinter creates a JWT minter with the given configuration.
func NewJWTMinter(config *JWTMinterConfig) (*JWTMinter, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.PrivateKey == nil {
		return nil, fmt.Errorf("private key is required")
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "go-passkey"
	}
	audience := config.Audience
	if len(audience) == 0 {
		audience = []string{"go-passkey"}
	}
	accessTTL := config.AccessTTL
	if accessTTL == 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := config.RefreshTTL
	if refreshTTL == 0 {
		refreshTTL = 30 * 24 * time.Hour
	}

	return &JWTMinter{
		privateKey: config.PrivateKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		keyID:      config.KeyID,
	}, nil
}

// Mint creates an access/refresh token pair for a user that completed
// authentication. The amr claim records that a passkey was used; cred
// carries which one.
func (m *JWTMinter) Mint(ctx context.Context, user User, credentialID []byte) (*TokenPair, error) {
	now := time.Now()
	sub := encoding.EncodeBase64URL(user.UserHandle())

	access, err := m.sign(jwt.MapClaims{
		"iss":      m.issuer,
		"aud":      m.audience,
		"sub":      sub,
		"iat":      now.Unix(),
		"exp":      now.Add(m.accessTTL).Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
		"amr":      []string{"webauthn"},
		"cred":     encoding.EncodeBase64URL(credentialID),
		"username": user.Username(),
		"name":     user.DisplayName(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := m.sign(jwt.MapClaims{
		"iss": m.issuer,
		"aud": m.audience,
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(m.refreshTTL).Unix(),
		"nbf": now.Unix(),
		"jti": uuid.NewString(),
		"typ": "refresh",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}

// Verify parses and validates a minted token, returning its claims.
func (m *JWTMinter) Verify(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return &m.privateKey.PublicKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	return claims, nil
}

func (m *JWTMinter) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	if m.keyID != "" {
		token.Header["kid"] = m.keyID
	}
	return token.SignedString(m.privateKey)
}
