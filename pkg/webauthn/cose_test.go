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
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCOSEPublicKeyEC2(t *testing.T) {
	mock, err := NewMockAuthenticator("example.com")
	require.NoError(t, err)

	raw, err := mock.PublicKeyBytes()
	require.NoError(t, err)

	key, err := ParseCOSEPublicKey(raw)
	require.NoError(t, err)
	assert.Equal(t, webauthncose.AlgES256, key.Algorithm)
	require.NotNil(t, key.EC2)
	assert.Nil(t, key.RSA)
}

func TestParseCOSEPublicKeyRSA(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	raw, err := cbor.Marshal(map[int]interface{}{
		1:  3,      // kty: RSA
		3:  -257,   // alg: RS256
		-1: priv.N.Bytes(),
		-2: []byte{0x01, 0x00, 0x01},
	})
	require.NoError(t, err)

	key, err := ParseCOSEPublicKey(raw)
	require.NoError(t, err)
	assert.Equal(t, webauthncose.AlgRS256, key.Algorithm)
	require.NotNil(t, key.RSA)
	assert.Equal(t, 65537, key.RSA.E)

	message := []byte("authdata-plus-client-data-hash")
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	require.NoError(t, err)

	assert.NoError(t, key.Verify(message, sig))
	assert.ErrorIs(t, key.Verify([]byte("different message"), sig), ErrSignatureInvalid)
}

func TestParseCOSEPublicKeyRejected(t *testing.T) {
	okp, err := cbor.Marshal(map[int]interface{}{
		1: 1, 3: -8, // kty: OKP, alg: EdDSA
	})
	require.NoError(t, err)

	es384OnP256, err := cbor.Marshal(map[int]interface{}{
		1: 2, 3: -35, -1: 1, -2: make([]byte, 32), -3: make([]byte, 32),
	})
	require.NoError(t, err)

	badCurve, err := cbor.Marshal(map[int]interface{}{
		1: 2, 3: -7, -1: 2, -2: make([]byte, 32), -3: make([]byte, 32),
	})
	require.NoError(t, err)

	offCurve, err := cbor.Marshal(map[int]interface{}{
		1: 2, 3: -7, -1: 1, -2: make([]byte, 32), -3: make([]byte, 32),
	})
	require.NoError(t, err)

	shortCoords, err := cbor.Marshal(map[int]interface{}{
		1: 2, 3: -7, -1: 1, -2: make([]byte, 16), -3: make([]byte, 32),
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"not cbor", []byte{0xff, 0xff}},
		{"OKP key type", okp},
		{"ES384 on EC2", es384OnP256},
		{"unsupported curve", badCurve},
		{"point not on curve", offCurve},
		{"short coordinates", shortCoords},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCOSEPublicKey(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAttestationParse)
		})
	}
}

func TestVerifyAssertionSignature(t *testing.T) {
	mock, err := NewMockAuthenticator("example.com")
	require.NoError(t, err)

	pubKey, err := mock.PublicKeyBytes()
	require.NoError(t, err)

	resp, err := mock.Authenticate([]byte("challenge"), nil, "https://example.com")
	require.NoError(t, err)

	authData := decodeB64(t, resp.Response.AuthenticatorData)
	clientDataJSON := decodeB64(t, resp.Response.ClientDataJSON)
	sig := decodeB64(t, resp.Response.Signature)

	assert.NoError(t, VerifyAssertionSignature(pubKey, authData, clientDataJSON, sig))

	// Any bit flip in the signed material must fail verification.
	tampered := append([]byte{}, authData...)
	tampered[0] ^= 0x01
	assert.ErrorIs(t, VerifyAssertionSignature(pubKey, tampered, clientDataJSON, sig), ErrSignatureInvalid)

	tamperedCD := append([]byte{}, clientDataJSON...)
	tamperedCD[0] ^= 0x01
	assert.ErrorIs(t, VerifyAssertionSignature(pubKey, authData, tamperedCD, sig), ErrSignatureInvalid)

	otherMock, err := NewMockAuthenticator("example.com")
	require.NoError(t, err)
	otherKey, err := otherMock.PublicKeyBytes()
	require.NoError(t, err)
	assert.ErrorIs(t, VerifyAssertionSignature(otherKey, authData, clientDataJSON, sig), ErrSignatureInvalid)
}

func TestVerifyCounter(t *testing.T) {
	tests := []struct {
		name     string
		stored   uint32
		reported uint32
		wantErr  error
	}{
		{"strictly increasing", 5, 6, nil},
		{"large jump", 5, 1000, nil},
		{"first use from zero", 0, 1, nil},
		{"both zero skips check", 0, 0, nil},
		{"equal counters", 7, 7, ErrCounterReplay},
		{"reported lower", 7, 3, ErrCounterReplay},
		{"reported zero after nonzero", 7, 0, ErrCounterReplay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyCounter(tt.stored, tt.reported)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
