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
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Authenticator data flag bits.
const (
	FlagUserPresent        byte = 0x01 // UP
	FlagUserVerified       byte = 0x04 // UV
	FlagBackupEligible     byte = 0x08 // BE
	FlagBackupState        byte = 0x10 // BS
	FlagAttestedCredential byte = 0x40 // AT
	FlagExtensionData      byte = 0x80 // ED
)

// minAuthDataLength is rpIdHash (32) + flags (1) + signCount (4).
const minAuthDataLength = 37

// AttestedCredentialData is the credential block present in registration
// authenticator data (AT flag set).
type AttestedCredentialData struct {
	AAGUID       []byte // 16 bytes, authenticator model; may be all zeros
	CredentialID []byte
	PublicKey    []byte // COSE key, raw CBOR bytes
}

// AuthenticatorData is the parsed binary authenticator data structure.
type AuthenticatorData struct {
	RPIDHash   []byte // SHA-256 of the RP ID
	Flags      byte
	SignCount  uint32
	Attested   *AttestedCredentialData // nil unless AT flag set
	Extensions []byte                  // raw CBOR, nil unless ED flag set
}

// UserPresent reports whether the UP flag is set.
func (a *AuthenticatorData) UserPresent() bool {
	return a.Flags&FlagUserPresent != 0
}

// UserVerified reports whether the UV flag is set.
func (a *AuthenticatorData) UserVerified() bool {
	return a.Flags&FlagUserVerified != 0
}

// BackupEligible reports whether the BE flag is set.
func (a *AuthenticatorData) BackupEligible() bool {
	return a.Flags&FlagBackupEligible != 0
}

// BackupState reports whether the BS flag is set.
func (a *AuthenticatorData) BackupState() bool {
	return a.Flags&FlagBackupState != 0
}

// ParseAuthenticatorData decodes the binary authenticator data layout:
//
//	rpIdHash[32] || flags[1] || signCount[4, big-endian]
//	|| attestedCredentialData (if AT: aaguid[16] || credIdLen[2, BE]
//	   || credId[credIdLen] || cosePublicKey[CBOR])
//	|| extensions (if ED: CBOR map)
//
// The COSE public key has no length prefix; its end is found by decoding
// exactly one CBOR item.
func ParseAuthenticatorData(raw []byte) (*AuthenticatorData, error) {
	if len(raw) < minAuthDataLength {
		return nil, fmt.Errorf("%w: authenticator data too short (%d bytes)", ErrAttestationParse, len(raw))
	}

	ad := &AuthenticatorData{
		RPIDHash:  raw[:32],
		Flags:     raw[32],
		SignCount: binary.BigEndian.Uint32(raw[33:37]),
	}
	rest := raw[37:]

	if ad.Flags&FlagAttestedCredential != 0 {
		attested, n, err := parseAttestedCredentialData(rest)
		if err != nil {
			return nil, err
		}
		ad.Attested = attested
		rest = rest[n:]
	}

	if ad.Flags&FlagExtensionData != 0 {
		if len(rest) == 0 {
			return nil, fmt.Errorf("%w: ED flag set but no extension data", ErrAttestationParse)
		}
		ad.Extensions = rest
		rest = nil
	}

	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after authenticator data", ErrAttestationParse, len(rest))
	}

	return ad, nil
}

// parseAttestedCredentialData returns the attested credential block and the
// number of bytes it occupied.
func parseAttestedCredentialData(raw []byte) (*AttestedCredentialData, int, error) {
	// aaguid[16] + credIdLen[2]
	if len(raw) < 18 {
		return nil, 0, fmt.Errorf("%w: attested credential data too short", ErrAttestationParse)
	}

	aaguid := raw[:16]
	credIDLen := int(binary.BigEndian.Uint16(raw[16:18]))
	if len(raw) < 18+credIDLen {
		return nil, 0, fmt.Errorf("%w: credential ID truncated", ErrAttestationParse)
	}
	if credIDLen == 0 {
		return nil, 0, fmt.Errorf("%w: empty credential ID", ErrAttestationParse)
	}
	credID := raw[18 : 18+credIDLen]

	keyStart := 18 + credIDLen
	keyLen, err := cborItemLength(raw[keyStart:])
	if err != nil {
		return nil, 0, fmt.Errorf("%w: COSE public key: %v", ErrAttestationParse, err)
	}

	return &AttestedCredentialData{
		AAGUID:       aaguid,
		CredentialID: credID,
		PublicKey:    raw[keyStart : keyStart+keyLen],
	}, keyStart + keyLen, nil
}

// cborItemLength returns the encoded length of the first CBOR item in raw.
func cborItemLength(raw []byte) (int, error) {
	dec := cbor.NewDecoder(bytes.NewReader(raw))
	var item cbor.RawMessage
	if err := dec.Decode(&item); err != nil {
		return 0, err
	}
	return dec.NumBytesRead(), nil
}

// VerifyRPIDHash checks the authenticator data was produced for the given
// relying party.
func (a *AuthenticatorData) VerifyRPIDHash(rpID string) error {
	want := sha256.Sum256([]byte(rpID))
	if !bytes.Equal(a.RPIDHash, want[:]) {
		return fmt.Errorf("%w: RP ID hash mismatch", ErrOriginMismatch)
	}
	return nil
}
