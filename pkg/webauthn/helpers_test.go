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

	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
)

func decodeB64(t *testing.T, s string) []byte {
	t.Helper()
	b, err := encoding.DecodeBase64URL(s)
	require.NoError(t, err)
	return b
}
