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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// COSE key type values.
const (
	coseKeyTypeEC2 = 2
	coseKeyTypeRSA = 3
)

// COSE curve values for EC2 keys.
const coseCurveP256 = 1

// coseKeyHeader carries the fields common to all COSE key types.
type coseKeyHeader struct {
	KeyType   int64 `cbor:"1,keyasint"`
	Algorithm int64 `cbor:"3,keyasint"`
}

// coseEC2Key is an elliptic curve key in COSE_Key form.
type coseEC2Key struct {
	Curve int64  `cbor:"-1,keyasint"`
	X     []byte `cbor:"-2,keyasint"`
	Y     []byte `cbor:"-3,keyasint"`
}

// coseRSAKey is an RSA key in COSE_Key form.
type coseRSAKey struct {
	Modulus  []byte `cbor:"-1,keyasint"`
	Exponent []byte `cbor:"-2,keyasint"`
}

// PublicKey is a credential public key decoded from COSE form, ready for
// signature verification.
type PublicKey struct {
	Algorithm webauthncose.COSEAlgorithmIdentifier
	EC2       *ecdsa.PublicKey
	RSA       *rsa.PublicKey
}

// ParseCOSEPublicKey decodes a COSE_Key structure. Supported combinations
// are EC2/P-256 with ES256 and RSA with RS256; anything else is rejected so
// unverifiable credentials are never stored.
func ParseCOSEPublicKey(raw []byte) (*PublicKey, error) {
	var header coseKeyHeader
	if err := cbor.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("%w: COSE key: %v", ErrAttestationParse, err)
	}

	alg := webauthncose.COSEAlgorithmIdentifier(header.Algorithm)

	switch header.KeyType {
	case coseKeyTypeEC2:
		if alg != webauthncose.AlgES256 {
			return nil, fmt.Errorf("%w: unsupported EC2 algorithm %d", ErrAttestationParse, header.Algorithm)
		}
		var key coseEC2Key
		if err := cbor.Unmarshal(raw, &key); err != nil {
			return nil, fmt.Errorf("%w: EC2 key: %v", ErrAttestationParse, err)
		}
		if key.Curve != coseCurveP256 {
			return nil, fmt.Errorf("%w: unsupported curve %d", ErrAttestationParse, key.Curve)
		}
		if len(key.X) != 32 || len(key.Y) != 32 {
			return nil, fmt.Errorf("%w: EC2 coordinates must be 32 bytes", ErrAttestationParse)
		}
		pub := &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(key.X),
			Y:     new(big.Int).SetBytes(key.Y),
		}
		if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
			return nil, fmt.Errorf("%w: point not on curve", ErrAttestationParse)
		}
		return &PublicKey{Algorithm: alg, EC2: pub}, nil

	case coseKeyTypeRSA:
		if alg != webauthncose.AlgRS256 {
			return nil, fmt.Errorf("%w: unsupported RSA algorithm %d", ErrAttestationParse, header.Algorithm)
		}
		var key coseRSAKey
		if err := cbor.Unmarshal(raw, &key); err != nil {
			return nil, fmt.Errorf("%w: RSA key: %v", ErrAttestationParse, err)
		}
		if len(key.Modulus) == 0 || len(key.Exponent) == 0 {
			return nil, fmt.Errorf("%w: RSA key missing modulus or exponent", ErrAttestationParse)
		}
		e := new(big.Int).SetBytes(key.Exponent)
		if !e.IsInt64() || e.Int64() < 3 {
			return nil, fmt.Errorf("%w: invalid RSA exponent", ErrAttestationParse)
		}
		return &PublicKey{
			Algorithm: alg,
			RSA: &rsa.PublicKey{
				N: new(big.Int).SetBytes(key.Modulus),
				E: int(e.Int64()),
			},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported key type %d", ErrAttestationParse, header.KeyType)
	}
}

// Verify checks sig over message with the credential's algorithm. The
// message is hashed with SHA-256; ES256 signatures are ASN.1 DER encoded,
// RS256 signatures are PKCS#1 v1.5.
func (k *PublicKey) Verify(message, sig []byte) error {
	digest := sha256.Sum256(message)

	switch k.Algorithm {
	case webauthncose.AlgES256:
		if k.EC2 == nil {
			return NewError("verify signature", ErrNotConfigured)
		}
		if !ecdsa.VerifyASN1(k.EC2, digest[:], sig) {
			return ErrSignatureInvalid
		}
		return nil
	case webauthncose.AlgRS256:
		if k.RSA == nil {
			return NewError("verify signature", ErrNotConfigured)
		}
		if err := rsa.VerifyPKCS1v15(k.RSA, crypto.SHA256, digest[:], sig); err != nil {
			return ErrSignatureInvalid
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported algorithm %d", ErrSignatureInvalid, k.Algorithm)
	}
}
