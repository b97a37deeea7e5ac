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

package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
	"github.com/jeremyhahn/go-passkey/pkg/webauthn"
)

const (
	testRPID   = "example.com"
	testOrigin = "https://example.com"
)

func newTestRouter(t *testing.T) (chi.Router, *webauthn.Service) {
	t.Helper()

	svc, err := webauthn.NewService(webauthn.ServiceParams{
		Config: &webauthn.Config{
			RPID:          testRPID,
			RPDisplayName: "Example",
			RPOrigins:     []string{testOrigin},
		},
		ChallengeStore:  webauthn.NewMemoryChallengeStore(),
		CredentialStore: webauthn.NewMemoryCredentialStore(),
		UserStore:       webauthn.NewMemoryUserStore(),
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	MountChi(r, NewHandler(svc))
	return r, svc
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, "https://"+testRPID+path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// registerViaHTTP runs the full registration ceremony through the HTTP
// handlers and returns the authenticator and the stored credential summary.
func registerViaHTTP(t *testing.T, router http.Handler, username string) (*webauthn.MockAuthenticator, CredentialSummary, string) {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/register/options", RegisterOptionsRequest{Username: username})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	opts := decode[webauthn.CreationOptions](t, rec)

	mock, err := webauthn.NewMockAuthenticator(testRPID)
	require.NoError(t, err)

	challenge, err := encoding.DecodeBase64URL(opts.Challenge)
	require.NoError(t, err)
	resp, err := mock.Register(challenge, testOrigin)
	require.NoError(t, err)

	rec = doJSON(t, router, http.MethodPost, "/register/verify", RegisterVerifyRequest{Credential: *resp, Label: "Test key"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return mock, decode[CredentialSummary](t, rec), opts.User.ID
}

func TestRegisterEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/register/options", RegisterOptionsRequest{Username: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	opts := decode[webauthn.CreationOptions](t, rec)
	assert.Equal(t, testRPID, opts.RelyingParty.ID)
	assert.NotEmpty(t, opts.Challenge)

	mock, err := webauthn.NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	challenge, err := encoding.DecodeBase64URL(opts.Challenge)
	require.NoError(t, err)
	resp, err := mock.Register(challenge, testOrigin)
	require.NoError(t, err)

	rec = doJSON(t, router, http.MethodPost, "/register/verify", RegisterVerifyRequest{Credential: *resp, Label: "MacBook"})
	require.Equal(t, http.StatusCreated, rec.Code)
	summary := decode[CredentialSummary](t, rec)
	assert.Equal(t, encoding.EncodeBase64URL(mock.CredentialID), summary.ID)
	assert.Equal(t, "MacBook", summary.Label)
}

func TestRegisterOptionsValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/register/options", RegisterOptionsRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, ErrorCodeInvalidRequest, errResp.Error)
}

func TestRegisterVerifyGenericFailureMessage(t *testing.T) {
	router, _ := newTestRouter(t)

	// A credential carrying a challenge that was never issued must yield
	// the generic registration message, never the authentication one and
	// never internal detail.
	rec := doJSON(t, router, http.MethodPost, "/register/verify", RegisterVerifyRequest{
		Credential: webauthn.RegistrationResponse{
			RawID: "AAAA",
			Response: webauthn.AuthenticatorAttestationResponse{
				ClientDataJSON:    encoding.EncodeBase64URL([]byte(`{"type":"webauthn.create","challenge":"AAAA","origin":"https://example.com"}`)),
				AttestationObject: "AAAA",
			},
		},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, webauthn.MsgRegistrationFailed, errResp.Message)
	assert.NotContains(t, errResp.Message, "challenge")

	// Malformed client data during registration also reports the
	// registration message.
	rec = doJSON(t, router, http.MethodPost, "/register/verify", RegisterVerifyRequest{
		Credential: webauthn.RegistrationResponse{
			RawID: "AAAA",
			Response: webauthn.AuthenticatorAttestationResponse{
				ClientDataJSON:    encoding.EncodeBase64URL([]byte(`not json`)),
				AttestationObject: "AAAA",
			},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errResp = decode[ErrorResponse](t, rec)
	assert.Equal(t, webauthn.MsgRegistrationFailed, errResp.Message)
}

func TestAuthenticateEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	mock, _, userID := registerViaHTTP(t, router, "alice@example.com")

	rec := doJSON(t, router, http.MethodPost, "/authenticate/options", AuthenticateOptionsRequest{Username: "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	opts := decode[webauthn.RequestOptions](t, rec)
	assert.Equal(t, testRPID, opts.RPID)
	require.Len(t, opts.AllowCredentials, 1)

	challenge, err := encoding.DecodeBase64URL(opts.Challenge)
	require.NoError(t, err)
	handle, err := encoding.DecodeBase64URL(userID)
	require.NoError(t, err)
	resp, err := mock.Authenticate(challenge, handle, testOrigin)
	require.NoError(t, err)

	rec = doJSON(t, router, http.MethodPost, "/authenticate/verify", resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	auth := decode[AuthResponse](t, rec)
	assert.Equal(t, "alice@example.com", auth.Username)
	assert.Equal(t, userID, auth.UserID)

	// Replay of the same assertion is rejected with the generic message.
	rec = doJSON(t, router, http.MethodPost, "/authenticate/verify", resp)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, ErrorCodeAuthenticationFailed, errResp.Error)
	assert.Equal(t, webauthn.MsgAuthenticationFailed, errResp.Message)
}

func TestAuthenticateOptionsUsernameless(t *testing.T) {
	router, _ := newTestRouter(t)
	registerViaHTTP(t, router, "alice@example.com")

	// Empty body selects the discoverable credential flow.
	req := httptest.NewRequest(http.MethodPost, "https://"+testRPID+"/authenticate/options", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	opts := decode[webauthn.RequestOptions](t, rec)
	assert.Empty(t, opts.AllowCredentials)
}

func TestAuthenticateOptionsNoPasskey(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/authenticate/options", AuthenticateOptionsRequest{Username: "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, webauthn.MsgNoPasskey, errResp.Message)
}

func TestCredentialManagementEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	_, summary, userID := registerViaHTTP(t, router, "alice@example.com")

	list := func() []CredentialSummary {
		req := httptest.NewRequest(http.MethodGet, "https://"+testRPID+"/credentials", nil)
		req.Header.Set(HeaderUserID, userID)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		return decode[[]CredentialSummary](t, rec)
	}

	creds := list()
	require.Len(t, creds, 1)
	assert.Equal(t, summary.ID, creds[0].ID)

	// Rename
	raw, err := json.Marshal(RenameCredentialRequest{Label: "YubiKey"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPatch, "https://"+testRPID+"/credentials/"+summary.ID, bytes.NewReader(raw))
	req.Header.Set(HeaderUserID, userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "YubiKey", list()[0].Label)

	// Delete requires ownership.
	req = httptest.NewRequest(http.MethodDelete, "https://"+testRPID+"/credentials/"+summary.ID, nil)
	req.Header.Set(HeaderUserID, encoding.EncodeBase64URL([]byte("someone-else")))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "https://"+testRPID+"/credentials/"+summary.ID, nil)
	req.Header.Set(HeaderUserID, userID)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, list())
}

func TestCredentialsRequireUserHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "https://"+testRPID+"/credentials", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCapabilities(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "https://"+testRPID+"/capabilities", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var caps struct {
		Available               bool `json:"available"`
		PlatformAuthenticator   bool `json:"platform_authenticator"`
		DiscoverableCredentials bool `json:"discoverable_credentials"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &caps))
	assert.True(t, caps.Available)
	assert.True(t, caps.PlatformAuthenticator)
}

func TestPreviewHostRefused(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "https://myapp-git-branch.vercel.app/register/options",
		bytes.NewReader([]byte(`{"username":"alice@example.com"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, ErrorCodeUnavailable, errResp.Error)
	assert.Equal(t, webauthn.MsgPasskeysUnavailable, errResp.Message)

	// Capabilities reports unavailable instead of erroring.
	req = httptest.NewRequest(http.MethodGet, "https://myapp-git-branch.vercel.app/capabilities", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var caps struct {
		Available bool `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &caps))
	assert.False(t, caps.Available)
}
