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
	"encoding/hex"
	"strings"
)

// byteaPrefix is the Postgres hex-format BYTEA literal prefix.
const byteaPrefix = `\x`

// EncodeBytea encodes bytes as a Postgres BYTEA hex literal
// (backslash-x followed by lowercase hex).
func EncodeBytea(data []byte) string {
	return byteaPrefix + hex.EncodeToString(data)
}

// DecodeBytea decodes a Postgres BYTEA hex literal. Uppercase hex digits are
// accepted; the prefix is required.
func DecodeBytea(s string) ([]byte, error) {
	if !strings.HasPrefix(s, byteaPrefix) {
		return nil, &FormatError{
			Encoding: "bytea",
			Input:    s,
			Reason:   `missing \x prefix`,
		}
	}
	data, err := hex.DecodeString(s[len(byteaPrefix):])
	if err != nil {
		return nil, &FormatError{
			Encoding: "bytea",
			Input:    s,
			Reason:   err.Error(),
		}
	}
	return data, nil
}

// IsValidBytea reports whether s is a well-formed BYTEA hex literal.
func IsValidBytea(s string) bool {
	if !strings.HasPrefix(s, byteaPrefix) {
		return false
	}
	body := s[len(byteaPrefix):]
	if len(body)%2 != 0 {
		return false
	}
	for _, c := range body {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
