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
	"crypto/sha256"
	"fmt"
)

// VerifyAssertionSignature checks an assertion signature. The signed
// message is authData || SHA-256(clientDataJSON), fixed by the WebAuthn
// spec.
func VerifyAssertionSignature(publicKeyCOSE, authData, clientDataJSON, sig []byte) error {
	key, err := ParseCOSEPublicKey(publicKeyCOSE)
	if err != nil {
		return err
	}

	clientDataHash := sha256.Sum256(clientDataJSON)
	message := make([]byte, 0, len(authData)+len(clientDataHash))
	message = append(message, authData...)
	message = append(message, clientDataHash[:]...)

	return key.Verify(message, sig)
}

// VerifyCounter enforces signature counter monotonicity. An authenticator
// that implements counters must report a value strictly greater than the
// stored one; a stale or equal value means the credential private key may
// exist on more than one device, and the assertion is rejected.
//
// Authenticators that do not implement counters always report zero. When
// both the stored and reported values are zero the check is skipped, since
// there is no signal to compare.
func VerifyCounter(stored, reported uint32) error {
	if stored == 0 && reported == 0 {
		return nil
	}
	if reported <= stored {
		return fmt.Errorf("%w: stored=%d reported=%d", ErrCounterReplay, stored, reported)
	}
	return nil
}
