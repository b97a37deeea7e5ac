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
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// AttestationObject is the CBOR map an authenticator returns at
// registration. The attestation statement is carried through undecoded:
// attestation chain trust is not evaluated, only the authenticator data and
// the credential public key inside it.
type AttestationObject struct {
	Format    string          `cbor:"fmt"`
	AuthData  []byte          `cbor:"authData"`
	Statement cbor.RawMessage `cbor:"attStmt"`
}

// ParseAttestationObject decodes the CBOR attestation object and the
// authenticator data inside it. Registration responses must carry attested
// credential data, so a missing AT flag is an error here.
func ParseAttestationObject(raw []byte) (*AttestationObject, *AuthenticatorData, error) {
	var obj AttestationObject
	if err := cbor.Unmarshal(raw, &obj); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAttestationParse, err)
	}
	if len(obj.AuthData) == 0 {
		return nil, nil, fmt.Errorf("%w: missing authData", ErrAttestationParse)
	}

	authData, err := ParseAuthenticatorData(obj.AuthData)
	if err != nil {
		return nil, nil, err
	}
	if authData.Attested == nil {
		return nil, nil, fmt.Errorf("%w: no attested credential data", ErrAttestationParse)
	}

	return &obj, authData, nil
}
