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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jeremyhahn/go-passkey/pkg/encoding"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/webauthn"
)

// Handler provides HTTP handlers for passkey ceremonies and credential
// management. These handlers can be mounted on any HTTP router.
type Handler struct {
	service *webauthn.Service
	logger  *slog.Logger
}

// NewHandler creates a new passkey HTTP handler.
func NewHandler(service *webauthn.Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// checkHost refuses ceremony endpoints on hosts where credentials would be
// bound to the wrong relying party (preview and staging deployments).
func (h *Handler) checkHost(w http.ResponseWriter, r *http.Request) bool {
	if err := h.service.Config().CheckHost(r.Host); err != nil {
		h.logger.Warn("passkeys unavailable for host", "host", r.Host)
		h.writeError(w, http.StatusForbidden, ErrorCodeUnavailable, webauthn.MsgPasskeysUnavailable)
		return false
	}
	return true
}

// RegisterOptions handles POST /register/options
//
// Request body:
//
//	{
//	    "username": "user@example.com",
//	    "display_name": "User Name" // optional
//	}
//
// Response: credential creation options for navigator.credentials.create()
func (h *Handler) RegisterOptions(w http.ResponseWriter, r *http.Request) {
	if !h.checkHost(w, r) {
		return
	}

	var req RegisterOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "username is required")
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	options, err := h.service.BeginRegistration(r.Context(), req.Username, displayName)
	if err != nil {
		h.handleServiceError(w, r, "registration", err)
		return
	}

	h.writeJSON(w, http.StatusOK, options)
}

// RegisterVerify handles POST /register/verify
//
// Request body: attestation response from the authenticator plus an
// optional label.
// Response: summary of the stored credential.
func (h *Handler) RegisterVerify(w http.ResponseWriter, r *http.Request) {
	if !h.checkHost(w, r) {
		return
	}

	var req RegisterVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}

	start := time.Now()
	cred, err := h.service.FinishRegistration(r.Context(), &req.Credential, req.Label)
	duration := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StatusError, duration)
		h.handleServiceError(w, r, "registration", err)
		return
	}
	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StatusSuccess, duration)

	h.logger.Info("credential registered",
		"credential_id", encoding.EncodeBase64URL(cred.ID),
		"transports", cred.Transports,
		"backup_eligible", cred.BackupEligible)

	h.writeJSON(w, http.StatusCreated, summarize(cred))
}

// AuthenticateOptions handles POST /authenticate/options
//
// Request body (optional):
//
//	{
//	    "username": "user@example.com" // omit for usernameless flow
//	}
//
// Response: credential request options for navigator.credentials.get()
func (h *Handler) AuthenticateOptions(w http.ResponseWriter, r *http.Request) {
	if !h.checkHost(w, r) {
		return
	}

	var req AuthenticateOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Empty body selects the discoverable credentials flow.
		req = AuthenticateOptionsRequest{}
	}

	options, err := h.service.BeginAuthentication(r.Context(), req.Username)
	if err != nil {
		h.handleServiceError(w, r, "authentication", err)
		return
	}

	h.writeJSON(w, http.StatusOK, options)
}

// AuthenticateVerify handles POST /authenticate/verify
//
// Request body: assertion response from the authenticator.
// Response: AuthResponse with the user and minted session tokens.
func (h *Handler) AuthenticateVerify(w http.ResponseWriter, r *http.Request) {
	if !h.checkHost(w, r) {
		return
	}

	var req webauthn.AuthenticationResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}

	start := time.Now()
	user, tokens, err := h.service.FinishAuthentication(r.Context(), &req)
	duration := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.StatusError, duration)
		h.handleServiceError(w, r, "authentication", err)
		return
	}
	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.StatusSuccess, duration)

	h.writeJSON(w, http.StatusOK, AuthResponse{
		UserID:   encoding.EncodeBase64URL(user.UserHandle()),
		Username: user.Username(),
		Tokens:   tokens,
	})
}

// ListCredentials handles GET /credentials
//
// Header: X-User-Id (base64url user handle)
// Response: array of credential summaries.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	creds, err := h.service.Credentials(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, "credentials", err)
		return
	}

	summaries := make([]CredentialSummary, 0, len(creds))
	for _, cred := range creds {
		summaries = append(summaries, summarize(cred))
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

// DeleteCredential handles DELETE /credentials/{id}
//
// Header: X-User-Id (base64url user handle)
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	credID, err := encoding.DecodeBase64URL(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid credential ID encoding")
		return
	}

	if err := h.service.DeleteCredential(r.Context(), credID, userID); err != nil {
		h.handleServiceError(w, r, "credentials", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameCredential handles PATCH /credentials/{id}
//
// Header: X-User-Id (base64url user handle)
// Request body: {"label": "New name"}
func (h *Handler) RenameCredential(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	credID, err := encoding.DecodeBase64URL(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid credential ID encoding")
		return
	}

	var req RenameCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Label == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "label is required")
		return
	}

	if err := h.service.RenameCredential(r.Context(), credID, userID, req.Label); err != nil {
		h.handleServiceError(w, r, "credentials", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Capabilities handles GET /capabilities
//
// Response: what the configured relying party supports, so clients can
// feature-gate passkey UI without probing the authenticator.
func (h *Handler) Capabilities(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Config().CheckHost(r.Host); err != nil {
		// Report unavailability rather than erroring; clients use this to
		// hide passkey UI on preview deployments.
		h.writeJSON(w, http.StatusOK, map[string]bool{"available": false})
		return
	}
	caps := h.service.Capabilities()
	h.writeJSON(w, http.StatusOK, struct {
		Available bool `json:"available"`
		webauthn.Capabilities
	}{true, caps})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "user ID header is required")
		return nil, false
	}
	userID, err := encoding.DecodeBase64URL(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid user ID encoding")
		return nil, false
	}
	return userID, true
}

// handleServiceError maps service errors to HTTP responses. The response
// body carries only the generic user-facing message; the precise reason is
// logged and counted server-side.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, ceremony string, err error) {
	reason := webauthn.Reason(err)
	h.logger.Warn("passkey operation failed",
		"ceremony", ceremony,
		"reason", reason,
		"path", r.URL.Path,
		"error", err)

	if webauthn.IsSecurityEvent(err) {
		h.logger.Error("passkey security event", "ceremony", ceremony, "reason", reason)
		metrics.RecordSecurityEvent(reason)
	}
	metrics.RecordVerifyFailure(ceremony, reason)

	msg := webauthn.UserMessage(ceremony, err)
	switch {
	case errors.Is(err, webauthn.ErrPasskeysUnavailable):
		h.writeError(w, http.StatusForbidden, ErrorCodeUnavailable, msg)
	case errors.Is(err, webauthn.ErrNoCredentials), errors.Is(err, webauthn.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, ErrorCodeNoCredentials, msg)
	case errors.Is(err, webauthn.ErrCredentialNotFound):
		h.writeError(w, http.StatusNotFound, ErrorCodeNotFound, msg)
	case errors.Is(err, webauthn.ErrCredentialExists), errors.Is(err, webauthn.ErrUserExists):
		h.writeError(w, http.StatusConflict, ErrorCodeRegistrationFailed, msg)
	case errors.Is(err, webauthn.ErrClientDataParse), errors.Is(err, webauthn.ErrAttestationParse):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, msg)
	case errors.Is(err, webauthn.ErrChallengeInvalid),
		errors.Is(err, webauthn.ErrOriginMismatch),
		errors.Is(err, webauthn.ErrTypeMismatch),
		errors.Is(err, webauthn.ErrSignatureInvalid),
		errors.Is(err, webauthn.ErrCounterReplay):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeAuthenticationFailed, msg)
	default:
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, msg)
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
