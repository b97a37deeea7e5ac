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
	"encoding/json"
	"fmt"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
)

// Client data type values fixed by the WebAuthn spec.
const (
	clientDataTypeCreate = "webauthn.create"
	clientDataTypeGet    = "webauthn.get"
)

// CollectedClientData is the JSON document the browser signs over during a
// ceremony. Only the fields this package verifies are decoded; unknown
// fields are ignored.
type CollectedClientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	CrossOrigin bool   `json:"crossOrigin,omitempty"`
}

// ParseClientData decodes the raw clientDataJSON bytes.
func ParseClientData(raw []byte) (*CollectedClientData, error) {
	var cd CollectedClientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientDataParse, err)
	}
	if cd.Type == "" || cd.Challenge == "" || cd.Origin == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrClientDataParse)
	}
	return &cd, nil
}

// VerifyClientData checks the client data against the expected ceremony,
// challenge, and allowed origins. The challenge comparison is done on the
// decoded bytes so encoding padding differences cannot cause a mismatch.
func VerifyClientData(cd *CollectedClientData, expectedType string, expectedChallenge []byte, cfg *Config) error {
	if cd.Type != expectedType {
		return fmt.Errorf("%w: got %q, want %q", ErrTypeMismatch, cd.Type, expectedType)
	}

	got, err := encoding.DecodeBase64URL(cd.Challenge)
	if err != nil {
		return fmt.Errorf("%w: challenge not base64url", ErrClientDataParse)
	}
	if !bytes.Equal(got, expectedChallenge) {
		return NewError("verify client data", ErrChallengeInvalid)
	}

	if !cfg.AllowsOrigin(cd.Origin) {
		return fmt.Errorf("%w: %s", ErrOriginMismatch, cd.Origin)
	}

	return nil
}
