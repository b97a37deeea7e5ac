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

// Package client provides a typed HTTP client for the passkey REST API.
// It covers the full ceremony surface (registration and authentication
// options/verify) plus credential management, and maps the server's error
// responses onto *APIError values callers can inspect.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
	"github.com/jeremyhahn/go-passkey/pkg/webauthn"
	passkeyhttp "github.com/jeremyhahn/go-passkey/pkg/webauthn/http"
)

// DefaultBasePath is where the server mounts the ceremony routes.
const DefaultBasePath = "/passkey"

var (
	// ErrConnectionFailed is returned when the connection to the server fails.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrNotConnected is returned when trying to use a client that is not connected.
	ErrNotConnected = errors.New("client not connected")
)

// APIError is an error response returned by the passkey server.
type APIError struct {
	// StatusCode is the HTTP status the server responded with.
	StatusCode int

	// Code is the machine-readable error code, e.g. "authentication_failed".
	Code string

	// Message is the user-facing message.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("passkey server error (status %d, code %s): %s",
		e.StatusCode, e.Code, e.Message)
}

// Config configures the passkey client.
type Config struct {
	// Address is the server address: http://host:port or https://host:port.
	// A bare host:port is prefixed based on TLSEnabled.
	Address string

	// BasePath is the path the passkey routes are mounted at
	// (default: /passkey).
	BasePath string

	// TLSEnabled enables TLS when Address carries no scheme.
	TLSEnabled bool

	// TLSInsecureSkipVerify skips TLS certificate verification (not recommended).
	TLSInsecureSkipVerify bool

	// TLSCertFile is the path to the client certificate file (for mTLS).
	TLSCertFile string

	// TLSKeyFile is the path to the client key file (for mTLS).
	TLSKeyFile string

	// TLSCAFile is the path to the CA certificate file.
	TLSCAFile string

	// BearerToken is sent as an Authorization header when set.
	BearerToken string

	// Headers are additional HTTP headers to include in requests.
	Headers map[string]string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// Client communicates with a passkey server over HTTP.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
	basePath   string
	connected  bool
}

// New creates a new passkey client with the specified configuration.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("client address is required")
	}

	baseURL := cfg.Address
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		if cfg.TLSEnabled {
			baseURL = "https://" + baseURL
		} else {
			baseURL = "http://" + baseURL
		}
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	basePath = "/" + strings.Trim(basePath, "/")

	return &Client{
		config:   cfg,
		baseURL:  baseURL,
		basePath: basePath,
	}, nil
}

// Connect builds the HTTP transport and verifies the server is reachable
// with a health check.
func (c *Client) Connect(ctx context.Context) error {
	var tlsConfig *tls.Config
	if strings.HasPrefix(c.baseURL, "https://") {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: c.config.TLSInsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		}

		if c.config.TLSCAFile != "" {
			caCert, err := os.ReadFile(c.config.TLSCAFile)
			if err != nil {
				return fmt.Errorf("failed to read CA certificate: %w", err)
			}
			caCertPool := x509.NewCertPool()
			if !caCertPool.AppendCertsFromPEM(caCert) {
				return fmt.Errorf("failed to parse CA certificate")
			}
			tlsConfig.RootCAs = caCertPool
		}

		if c.config.TLSCertFile != "" && c.config.TLSKeyFile != "" {
			cert, err := tls.LoadX509KeyPair(c.config.TLSCertFile, c.config.TLSKeyFile)
			if err != nil {
				return fmt.Errorf("failed to load client certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
	}

	timeout := c.config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c.httpClient = &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
		Timeout:   timeout,
	}

	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c.connected = true
	return nil
}

// Close closes the client's idle connections.
func (c *Client) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	c.connected = false
	return nil
}

// Health checks server liveness via /healthz.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}

// RegisterOptions starts a registration ceremony and returns the credential
// creation options to hand to navigator.credentials.create().
func (c *Client) RegisterOptions(ctx context.Context, username, displayName string) (*webauthn.CreationOptions, error) {
	req := passkeyhttp.RegisterOptionsRequest{
		Username:    username,
		DisplayName: displayName,
	}
	body, err := c.doRequest(ctx, http.MethodPost, c.basePath+"/register/options", nil, req)
	if err != nil {
		return nil, err
	}

	var options webauthn.CreationOptions
	if err := json.Unmarshal(body, &options); err != nil {
		return nil, fmt.Errorf("failed to decode creation options: %w", err)
	}
	return &options, nil
}

// RegisterVerify finishes a registration ceremony with the authenticator's
// attestation response and returns the stored credential summary.
func (c *Client) RegisterVerify(ctx context.Context, credential *webauthn.RegistrationResponse, label string) (*passkeyhttp.CredentialSummary, error) {
	if credential == nil {
		return nil, fmt.Errorf("credential is required")
	}
	req := passkeyhttp.RegisterVerifyRequest{
		Credential: *credential,
		Label:      label,
	}
	body, err := c.doRequest(ctx, http.MethodPost, c.basePath+"/register/verify", nil, req)
	if err != nil {
		return nil, err
	}

	var summary passkeyhttp.CredentialSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode credential summary: %w", err)
	}
	return &summary, nil
}

// AuthenticateOptions starts an authentication ceremony. An empty username
// selects the discoverable credential (usernameless) flow.
func (c *Client) AuthenticateOptions(ctx context.Context, username string) (*webauthn.RequestOptions, error) {
	req := passkeyhttp.AuthenticateOptionsRequest{Username: username}
	body, err := c.doRequest(ctx, http.MethodPost, c.basePath+"/authenticate/options", nil, req)
	if err != nil {
		return nil, err
	}

	var options webauthn.RequestOptions
	if err := json.Unmarshal(body, &options); err != nil {
		return nil, fmt.Errorf("failed to decode request options: %w", err)
	}
	return &options, nil
}

// AuthenticateVerify finishes an authentication ceremony with the
// authenticator's assertion response.
func (c *Client) AuthenticateVerify(ctx context.Context, assertion *webauthn.AuthenticationResponse) (*passkeyhttp.AuthResponse, error) {
	if assertion == nil {
		return nil, fmt.Errorf("assertion is required")
	}
	body, err := c.doRequest(ctx, http.MethodPost, c.basePath+"/authenticate/verify", nil, assertion)
	if err != nil {
		return nil, err
	}

	var auth passkeyhttp.AuthResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	return &auth, nil
}

// Credentials lists the credentials registered for the given user handle.
func (c *Client) Credentials(ctx context.Context, userID []byte) ([]passkeyhttp.CredentialSummary, error) {
	headers := map[string]string{
		passkeyhttp.HeaderUserID: encoding.EncodeBase64URL(userID),
	}
	body, err := c.doRequest(ctx, http.MethodGet, c.basePath+"/credentials", headers, nil)
	if err != nil {
		return nil, err
	}

	var summaries []passkeyhttp.CredentialSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return summaries, nil
}

// RenameCredential updates the user-visible label of a credential.
func (c *Client) RenameCredential(ctx context.Context, userID, credentialID []byte, label string) error {
	headers := map[string]string{
		passkeyhttp.HeaderUserID: encoding.EncodeBase64URL(userID),
	}
	path := c.basePath + "/credentials/" + encoding.EncodeBase64URL(credentialID)
	_, err := c.doRequest(ctx, http.MethodPatch, path, headers,
		passkeyhttp.RenameCredentialRequest{Label: label})
	return err
}

// DeleteCredential removes a credential owned by the given user.
func (c *Client) DeleteCredential(ctx context.Context, userID, credentialID []byte) error {
	headers := map[string]string{
		passkeyhttp.HeaderUserID: encoding.EncodeBase64URL(userID),
	}
	path := c.basePath + "/credentials/" + encoding.EncodeBase64URL(credentialID)
	_, err := c.doRequest(ctx, http.MethodDelete, path, headers, nil)
	return err
}

// CapabilitiesResponse reports what the server's relying party supports.
type CapabilitiesResponse struct {
	Available bool `json:"available"`
	webauthn.Capabilities
}

// Capabilities queries relying party capabilities so callers can
// feature-gate passkey UI.
func (c *Client) Capabilities(ctx context.Context) (*CapabilitiesResponse, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.basePath+"/capabilities", nil, nil)
	if err != nil {
		return nil, err
	}

	var caps CapabilitiesResponse
	if err := json.Unmarshal(body, &caps); err != nil {
		return nil, fmt.Errorf("failed to decode capabilities: %w", err)
	}
	return &caps, nil
}

// doRequest performs an HTTP request against the passkey server and maps
// error responses onto *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, headers map[string]string, body interface{}) ([]byte, error) {
	if c.httpClient == nil {
		return nil, ErrNotConnected
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.BearerToken)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp passkeyhttp.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			apiErr.Code = errResp.Error
			apiErr.Message = errResp.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return nil, apiErr
	}

	return respBody, nil
}
