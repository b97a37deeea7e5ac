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

// Package gormstore persists passkey users, credentials, and challenges
// with GORM. It targets Postgres in production; tests run against an
// in-memory SQLite database through the same code paths.
//
// The security-sensitive writes never read-modify-write. Challenge
// consumption and sign counter advancement are single conditional UPDATE
// statements, so two concurrent ceremonies racing on the same row resolve
// in the database and exactly one wins.
package gormstore
