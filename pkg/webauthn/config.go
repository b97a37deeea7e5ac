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
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
)

// Environment identifies the deployment tier. Passkeys are bound to the
// relying party's registrable domain, so preview and staging hosts (which
// serve from throwaway domains) must not mint credentials.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvPreview     Environment = "preview"
	EnvProduction  Environment = "production"
)

// Config configures the passkey relying party. It is read-only after
// service construction.
type Config struct {
	// RPID is the Relying Party identifier, the registrable domain.
	// Example: "example.com"
	RPID string `yaml:"id" json:"id" mapstructure:"id"`

	// RPDisplayName is the human-readable name of the Relying Party.
	RPDisplayName string `yaml:"display_name" json:"display_name" mapstructure:"display_name"`

	// RPOrigins are the exact origins allowed for passkey ceremonies.
	// Example: []string{"https://example.com", "https://www.example.com"}
	RPOrigins []string `yaml:"origins" json:"origins" mapstructure:"origins"`

	// Environment is the deployment tier. Development additionally allows
	// localhost origins; preview refuses passkey ceremonies entirely.
	// Default: "production"
	Environment Environment `yaml:"environment" json:"environment" mapstructure:"environment"`

	// ChallengeTTL is how long an issued challenge stays valid.
	// Default: 5 minutes
	ChallengeTTL time.Duration `yaml:"challenge_ttl" json:"challenge_ttl" mapstructure:"challenge_ttl"`

	// CeremonyTimeout is the timeout hint sent to the client authenticator.
	// Default: 60 seconds
	CeremonyTimeout time.Duration `yaml:"ceremony_timeout" json:"ceremony_timeout" mapstructure:"ceremony_timeout"`

	// UserVerification specifies the user verification requirement.
	// Options: "required", "preferred", "discouraged"
	// Default: "preferred"
	UserVerification string `yaml:"user_verification" json:"user_verification" mapstructure:"user_verification"`

	// AttestationPreference specifies the attestation conveyance preference.
	// Only "none" is verified; attestation chain trust is out of scope.
	// Options: "none", "indirect", "direct"
	// Default: "none"
	AttestationPreference string `yaml:"attestation" json:"attestation" mapstructure:"attestation"`

	// ResidentKeyRequirement specifies whether to require discoverable
	// credentials (passkeys that allow usernameless sign-in).
	// Options: "required", "preferred", "discouraged"
	// Default: "preferred"
	ResidentKeyRequirement string `yaml:"resident_key" json:"resident_key" mapstructure:"resident_key"`

	// AuthenticatorAttachment limits the type of authenticators allowed.
	// Options: "platform", "cross-platform", "" (any)
	// Default: "" (any)
	AuthenticatorAttachment string `yaml:"authenticator_attachment" json:"authenticator_attachment" mapstructure:"authenticator_attachment"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug" json:"debug" mapstructure:"debug"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("RPID is required")
	}
	if !encoding.IsValidRPID(c.RPID) {
		return fmt.Errorf("invalid RPID: %s", c.RPID)
	}
	if c.RPDisplayName == "" {
		return fmt.Errorf("RPDisplayName is required")
	}
	if len(c.RPOrigins) == 0 {
		return fmt.Errorf("at least one RPOrigin is required")
	}
	for _, origin := range c.RPOrigins {
		if !encoding.IsValidOrigin(origin) {
			return fmt.Errorf("invalid origin: %s", origin)
		}
	}

	switch c.Environment {
	case "", EnvDevelopment, EnvPreview, EnvProduction:
		// Valid
	default:
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	switch c.UserVerification {
	case "", "required", "preferred", "discouraged":
		// Valid
	default:
		return fmt.Errorf("invalid user verification: %s", c.UserVerification)
	}

	switch c.AttestationPreference {
	case "", "none", "indirect", "direct":
		// Valid
	default:
		return fmt.Errorf("invalid attestation preference: %s", c.AttestationPreference)
	}

	switch c.ResidentKeyRequirement {
	case "", "required", "preferred", "discouraged":
		// Valid
	default:
		return fmt.Errorf("invalid resident key requirement: %s", c.ResidentKeyRequirement)
	}

	switch c.AuthenticatorAttachment {
	case "", "platform", "cross-platform":
		// Valid
	default:
		return fmt.Errorf("invalid authenticator attachment: %s", c.AuthenticatorAttachment)
	}

	return nil
}

// SetDefaults sets default values for unset configuration fields.
func (c *Config) SetDefaults() {
	if c.Environment == "" {
		c.Environment = EnvProduction
	}
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = 5 * time.Minute
	}
	if c.CeremonyTimeout == 0 {
		c.CeremonyTimeout = 60 * time.Second
	}
	if c.UserVerification == "" {
		c.UserVerification = "preferred"
	}
	if c.AttestationPreference == "" {
		c.AttestationPreference = "none"
	}
	if c.ResidentKeyRequirement == "" {
		c.ResidentKeyRequirement = "preferred"
	}
}

// AllowsOrigin reports whether a client data origin is acceptable. Origins
// must match an entry in RPOrigins exactly; in development, localhost
// origins are also accepted so the flows work against a local server.
func (c *Config) AllowsOrigin(origin string) bool {
	for _, allowed := range c.RPOrigins {
		if origin == allowed {
			return true
		}
	}
	if c.Environment == EnvDevelopment && isLocalOrigin(origin) {
		return true
	}
	return false
}

// CheckHost decides whether passkey ceremonies may be served for the inbound
// host header. Preview and staging deployments serve from hosts outside the
// relying party's registrable domain; credentials minted there would be
// unusable in production, so the whole surface is refused up front.
func (c *Config) CheckHost(host string) error {
	hostname := stripPort(host)

	if hostname == c.RPID || strings.HasSuffix(hostname, "."+c.RPID) {
		return nil
	}
	if isLocalHostname(hostname) {
		if c.Environment == EnvDevelopment {
			return nil
		}
		return ErrPasskeysUnavailable
	}
	if c.Environment == EnvPreview || isPreviewHostname(hostname) {
		return ErrPasskeysUnavailable
	}
	return ErrPasskeysUnavailable
}

// isPreviewHostname matches hosts that belong to ephemeral deployments.
func isPreviewHostname(hostname string) bool {
	if strings.HasSuffix(hostname, ".vercel.app") {
		return true
	}
	for _, label := range strings.Split(hostname, ".") {
		if label == "staging" || strings.HasPrefix(label, "preview-") {
			return true
		}
	}
	return false
}

func isLocalOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return isLocalHostname(u.Hostname())
}

func isLocalHostname(hostname string) bool {
	return hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
