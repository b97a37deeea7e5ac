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

// Package rest assembles the passkey REST server: storage driver selection,
// the passkey service, session minting, the chi router with logging,
// recovery, metrics, and rate limiting middleware, and the background
// sweeper that purges expired challenges.
//
// The passkey API is mounted under /passkey; /healthz and the Prometheus
// endpoint sit outside the rate limiter.
package rest
