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

package encoding

import (
	"encoding/base64"
	"strings"
)

// EncodeBase64URL encodes bytes as unpadded base64url, the encoding used for
// all binary fields on the WebAuthn wire (credential IDs, challenges,
// signatures, public keys).
func EncodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL decodes an unpadded base64url string. Padded input is
// accepted for interoperability with clients that emit standard base64url.
func DecodeBase64URL(s string) ([]byte, error) {
	trimmed := strings.TrimRight(s, "=")
	if !IsValidBase64URL(trimmed) {
		return nil, &FormatError{
			Encoding: "base64url",
			Input:    s,
			Reason:   "character outside base64url alphabet",
		}
	}
	data, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, &FormatError{
			Encoding: "base64url",
			Input:    s,
			Reason:   err.Error(),
		}
	}
	return data, nil
}

// IsValidBase64URL reports whether s contains only unpadded base64url
// characters and has a decodable length. An empty string is valid and
// decodes to zero bytes.
func IsValidBase64URL(s string) bool {
	// A single trailing character can never complete a base64 quantum.
	if len(s)%4 == 1 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
