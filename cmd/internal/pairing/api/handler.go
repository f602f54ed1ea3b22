// Package pairingapi binds the pairing and signing-request operations to
// HTTP JSON endpoints.
//
// Caller identity arrives in the X-Tether-Actor header; verification happens
// upstream and is out of scope here. Signer-only operations are checked
// against the session's signer identity.
package pairingapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tether/cmd/internal/pairing"
)

const maxBodyBytes = 256 << 10 // 256 KiB

// actorHeader carries the upstream-verified caller identity.
const actorHeader = "X-Tether-Actor"

// Handler wires HTTP pairing endpoints to the pairing Service.
type Handler struct {
	log *slog.Logger
	svc *pairing.Service
}

// NewHandler constructs a pairing API handler.
func NewHandler(log *slog.Logger, svc *pairing.Service) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc}
}

// Register wires pairing routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/pairing/create", h.handleCreatePairing)
	mux.HandleFunc("/pairing/connect", h.handleConnect)
	mux.HandleFunc("/pairing/status", h.handleStatus)
	mux.HandleFunc("/pairing/disconnect", h.handleDisconnect)
	mux.HandleFunc("/pairing/requests", h.handleCreateRequest)
	mux.HandleFunc("/pairing/requests/pending", h.handleListPending)
	mux.HandleFunc("/pairing/requests/respond", h.handleRespond)
	mux.HandleFunc("/pairing/requests/wait", h.handleWait)
}

func (h *Handler) handleCreatePairing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	actor := strings.TrimSpace(r.Header.Get(actorHeader))
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor identity")
		return
	}

	var req createPairingRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	info, err := h.svc.CreatePairing(r.Context(), actor, req.DeviceInfo)
	if err != nil {
		h.writePairingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createPairingResponse{
		PairCode:  info.PairCode,
		SessionID: info.SessionID,
		ExpiresIn: int64(info.ExpiresIn / time.Second),
	})
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}

	var req connectRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if strings.TrimSpace(req.PairCode) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing pair_code")
		return
	}

	res, err := h.svc.Connect(r.Context(), req.PairCode, req.DeviceInfo)
	if err != nil {
		h.writePairingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, connectResponse{
		SessionID: res.SessionID,
		SignerInfo: signerInfo{
			Identity: res.SignerIdentity,
			Device:   res.SignerDevice,
		},
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing session_id")
		return
	}

	// Unknown sessions yield connected=false, indistinguishable from a
	// disconnected one.
	st := h.svc.Status(sessionID)
	writeJSON(w, http.StatusOK, statusResponse{
		SessionID:       st.SessionID,
		Connected:       st.Connected,
		ExpiresAt:       st.ExpiresAt,
		LastActivityAt:  st.LastActivityAt,
		PendingRequests: st.PendingRequests,
	})
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}

	var req disconnectRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	// Idempotent: disconnecting an unknown session is still an ack.
	h.svc.Disconnect(r.Context(), strings.TrimSpace(req.SessionID))
	writeJSON(w, http.StatusOK, ackResponse{OK: true})
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}

	var req createRequestRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Type) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing session_id or type")
		return
	}

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	id, err := h.svc.CreateRequest(r.Context(), req.SessionID, req.Type, req.Payload, timeout)
	if err != nil {
		h.writePairingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createRequestResponse{RequestID: id})
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing session_id")
		return
	}
	if err := h.requireSigner(r, sessionID); err != nil {
		h.writePairingError(w, err)
		return
	}

	views, err := h.svc.ListPending(r.Context(), sessionID)
	if err != nil {
		h.writePairingError(w, err)
		return
	}

	out := pendingResponse{Requests: make([]pendingRequest, 0, len(views))}
	for _, v := range views {
		out.Requests = append(out.Requests, pendingRequest{
			RequestID:     v.RequestID,
			Type:          v.Type,
			Payload:       v.Payload,
			CreatedAt:     v.CreatedAt,
			ExpiresAt:     v.ExpiresAt,
			RequesterInfo: v.RequesterInfo,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}

	var req respondRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.RequestID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing session_id or request_id")
		return
	}
	if err := h.requireSigner(r, req.SessionID); err != nil {
		h.writePairingError(w, err)
		return
	}

	if _, err := h.svc.Respond(r.Context(), req.SessionID, req.RequestID, req.Response, req.Error); err != nil {
		h.writePairingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{OK: true})
}

func (h *Handler) handleWait(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}

	var req waitRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if strings.TrimSpace(req.RequestID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing request_id")
		return
	}

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	view, err := h.svc.WaitForResult(r.Context(), req.RequestID, timeout)
	if err != nil {
		h.writePairingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, requestResult{
		RequestID:   view.RequestID,
		Status:      string(view.Status),
		Response:    view.Response,
		Error:       view.Error,
		CompletedAt: view.CompletedAt,
	})
}

// requireSigner checks that the caller's verified identity matches the
// session's signer.
func (h *Handler) requireSigner(r *http.Request, sessionID string) error {
	actor := strings.TrimSpace(r.Header.Get(actorHeader))
	if actor == "" {
		return pairing.ErrUnauthorized
	}
	st := h.svc.Status(sessionID)
	if st.SignerIdentity == "" {
		return pairing.ErrInvalidSession
	}
	if st.SignerIdentity != actor {
		return pairing.ErrUnauthorized
	}
	return nil
}

// writePairingError maps registry errors onto HTTP statuses and stable codes.
func (h *Handler) writePairingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pairing.ErrInvalidOrExpiredCode):
		writeError(w, http.StatusBadRequest, "invalid_or_expired_code", err.Error())
	case errors.Is(err, pairing.ErrAlreadyConnected):
		writeError(w, http.StatusConflict, "already_connected", err.Error())
	case errors.Is(err, pairing.ErrInvalidSession):
		writeError(w, http.StatusNotFound, "invalid_session", err.Error())
	case errors.Is(err, pairing.ErrSessionExpired):
		writeError(w, http.StatusGone, "session_expired", err.Error())
	case errors.Is(err, pairing.ErrNoDeviceConnected):
		writeError(w, http.StatusConflict, "no_device_connected", err.Error())
	case errors.Is(err, pairing.ErrInvalidRequest):
		writeError(w, http.StatusNotFound, "invalid_request", err.Error())
	case errors.Is(err, pairing.ErrRequestNotOwned):
		writeError(w, http.StatusForbidden, "request_not_owned", err.Error())
	case errors.Is(err, pairing.ErrRequestNotPending):
		writeError(w, http.StatusConflict, "request_not_pending", err.Error())
	case errors.Is(err, pairing.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error())
	default:
		h.log.Error("pairing.api.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
