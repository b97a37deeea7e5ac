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

// Package http provides composable HTTP handlers for passkey registration,
// authentication, and credential management.
//
// All binary fields on the wire (credential IDs, signatures, public keys,
// challenges) are unpadded base64url strings. Failure responses carry a
// generic user-facing message; the precise failure reason is logged and
// exported as a metric but never sent to the client.
//
// Ceremony endpoints are refused with 403 on hosts outside the relying
// party's registrable domain (preview and staging deployments), since
// credentials minted there would be unusable in production.
package http
