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
	"errors"
	"fmt"
)

var (
	// ErrInvalidData is returned when data is nil, empty, or malformed.
	// All FormatError values match it via errors.Is.
	ErrInvalidData = errors.New("encoding: invalid data")
)

// FormatError describes a decoding failure. Decoders return it instead of
// silently truncating or panicking on malformed input.
type FormatError struct {
	Encoding string // "base64url" or "bytea"
	Input    string
	Reason   string
}

// Error returns the error message.
func (e *FormatError) Error() string {
	return fmt.Sprintf("encoding: invalid %s input %q: %s", e.Encoding, truncate(e.Input, 32), e.Reason)
}

// Is reports whether the target error matches.
func (e *FormatError) Is(target error) bool {
	return target == ErrInvalidData
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
