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

// Package encoding provides the binary-format conversions used throughout
// go-passkey: unpadded base64url (the WebAuthn wire encoding), Postgres
// BYTEA hex literals (the storage encoding), and the validation predicates
// for origins and relying-party identifiers.
//
// All converters are pure functions with exact round-trips: for any byte
// sequence b, Decode(Encode(b)) == b. Decoders fail with *FormatError on
// malformed input; encoders never fail.
package encoding
