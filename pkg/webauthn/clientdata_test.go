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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
)

func testConfig() *Config {
	cfg := &Config{
		RPID:          "example.com",
		RPDisplayName: "Example",
		RPOrigins:     []string{"https://example.com"},
	}
	cfg.SetDefaults()
	return cfg
}

func TestParseClientData(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{
			name: "valid create",
			raw:  `{"type":"webauthn.create","challenge":"abc","origin":"https://example.com"}`,
		},
		{
			name: "valid get with extra fields",
			raw:  `{"type":"webauthn.get","challenge":"abc","origin":"https://example.com","crossOrigin":false,"other":1}`,
		},
		{
			name:    "not json",
			raw:     `not json`,
			wantErr: ErrClientDataParse,
		},
		{
			name:    "missing type",
			raw:     `{"challenge":"abc","origin":"https://example.com"}`,
			wantErr: ErrClientDataParse,
		},
		{
			name:    "missing challenge",
			raw:     `{"type":"webauthn.create","origin":"https://example.com"}`,
			wantErr: ErrClientDataParse,
		},
		{
			name:    "missing origin",
			raw:     `{"type":"webauthn.create","challenge":"abc"}`,
			wantErr: ErrClientDataParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cd, err := ParseClientData([]byte(tt.raw))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, cd.Type)
		})
	}
}

func TestVerifyClientData(t *testing.T) {
	cfg := testConfig()
	challenge := []byte("0123456789abcdef0123456789abcdef")
	encoded := encoding.EncodeBase64URL(challenge)

	tests := []struct {
		name    string
		cd      *CollectedClientData
		cType   string
		wantErr error
	}{
		{
			name: "valid",
			cd: &CollectedClientData{
				Type:      "webauthn.create",
				Challenge: encoded,
				Origin:    "https://example.com",
			},
			cType: clientDataTypeCreate,
		},
		{
			name: "wrong ceremony type",
			cd: &CollectedClientData{
				Type:      "webauthn.get",
				Challenge: encoded,
				Origin:    "https://example.com",
			},
			cType:   clientDataTypeCreate,
			wantErr: ErrTypeMismatch,
		},
		{
			name: "wrong challenge",
			cd: &CollectedClientData{
				Type:      "webauthn.create",
				Challenge: encoding.EncodeBase64URL([]byte("ffffffffffffffffffffffffffffffff")),
				Origin:    "https://example.com",
			},
			cType:   clientDataTypeCreate,
			wantErr: ErrChallengeInvalid,
		},
		{
			name: "challenge not base64url",
			cd: &CollectedClientData{
				Type:      "webauthn.create",
				Challenge: "!!!not-base64!!!",
				Origin:    "https://example.com",
			},
			cType:   clientDataTypeCreate,
			wantErr: ErrClientDataParse,
		},
		{
			name: "origin not allowed",
			cd: &CollectedClientData{
				Type:      "webauthn.create",
				Challenge: encoded,
				Origin:    "https://evil.example.net",
			},
			cType:   clientDataTypeCreate,
			wantErr: ErrOriginMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyClientData(tt.cd, tt.cType, challenge, cfg)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestVerifyClientDataLocalhostOrigin(t *testing.T) {
	challenge := []byte("0123456789abcdef0123456789abcdef")
	cd := &CollectedClientData{
		Type:      "webauthn.get",
		Challenge: encoding.EncodeBase64URL(challenge),
		Origin:    "http://localhost:3000",
	}

	prod := testConfig()
	err := VerifyClientData(cd, clientDataTypeGet, challenge, prod)
	assert.ErrorIs(t, err, ErrOriginMismatch)

	dev := testConfig()
	dev.Environment = EnvDevelopment
	assert.NoError(t, VerifyClientData(cd, clientDataTypeGet, challenge, dev))
}
