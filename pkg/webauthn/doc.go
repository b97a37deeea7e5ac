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

// Package webauthn implements server-side WebAuthn (passkey) registration
// and authentication that can be used as a library in any Go application.
//
// The verification engine is self-contained: client data checks, CBOR
// attestation parsing, COSE public key decoding, assertion signature
// verification (ES256 and RS256), and signature counter monotonicity for
// clone detection. Challenges are single-use with a TTL; stores enforce
// atomic consumption so a challenge can never verify twice, even under
// concurrent requests.
//
// # Architecture
//
// The package is designed with a layered architecture:
//
//  1. Service layer (Service) - registration and authentication ceremonies
//  2. Storage layer (ChallengeStore, CredentialStore, UserStore) - pluggable persistence
//  3. HTTP layer (pkg/webauthn/http) - composable HTTP handlers
//
// # Usage
//
// Basic usage with in-memory storage (for development):
//
//	svc, err := webauthn.NewService(webauthn.ServiceParams{
//	    Config: &webauthn.Config{
//	        RPID:          "localhost",
//	        RPDisplayName: "My App",
//	        RPOrigins:     []string{"http://localhost:3000"},
//	        Environment:   webauthn.EnvDevelopment,
//	    },
//	    ChallengeStore:  webauthn.NewMemoryChallengeStore(),
//	    CredentialStore: webauthn.NewMemoryCredentialStore(),
//	    UserStore:       webauthn.NewMemoryUserStore(),
//	})
//
// For production, implement the storage interfaces with your database;
// pkg/storage/gormstore provides a GORM-backed implementation.
//
// # WebAuthn Specification Compliance
//
// This implementation follows the W3C Web Authentication specification:
//   - https://www.w3.org/TR/webauthn-2/
//   - https://www.w3.org/TR/webauthn-3/
//
// Attestation statements are accepted but not chain-verified; the
// conveyance preference defaults to "none".
package webauthn
