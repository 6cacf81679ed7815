package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"festhub-backend/internal/attendance"
	"festhub-backend/internal/middleware"
)

// AttendanceHandler is the HTTP face of the attendance core. It resolves
// the caller from the JWT context and hands explicit IDs to the manager;
// everything user-facing here maps a typed core error to a specific status
// so the UI can tell "already marked present" from "code wrong/expired".
type AttendanceHandler struct {
	manager *attendance.Manager
}

func NewAttendanceHandler(manager *attendance.Manager) *AttendanceHandler {
	return &AttendanceHandler{manager: manager}
}

func (h *AttendanceHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	var req struct {
		Label      string `json:"label"`
		TTLSeconds int    `json:"ttl_seconds"`
		CodeLength int    `json:"code_length"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Label == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "label is required", r))
		return
	}
	if req.TTLSeconds < 0 || req.CodeLength < 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "ttl_seconds and code_length must not be negative", r))
		return
	}
	if req.CodeLength != 0 && (req.CodeLength < attendance.MinCodeLength || req.CodeLength > attendance.MaxCodeLength) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "code_length out of range", r))
		return
	}

	session, err := h.manager.CreateSession(r.Context(), ownerID, req.Label,
		time.Duration(req.TTLSeconds)*time.Second, req.CodeLength)
	if err != nil {
		if errors.Is(err, attendance.ErrCodeSpaceExhausted) {
			writeJSON(w, http.StatusServiceUnavailable, errorResp("CODE_SPACE_EXHAUSTED", "Could not allocate a unique code, try again", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create session", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": session.ID,
		"code":       session.Code,
		"label":      session.Label,
		"expires_at": session.ExpiresAt,
	})
}

func (h *AttendanceHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	sessions, err := h.manager.ListSessions(r.Context(), ownerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list sessions", r))
		return
	}
	if sessions == nil {
		sessions = []*attendance.Session{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *AttendanceHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	session, err := h.manager.GetSession(r.Context(), ownerID, sessionID)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *AttendanceHandler) GetQRPayload(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	payload, err := h.manager.QRPayload(r.Context(), ownerID, sessionID)
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidOrExpiredCode) {
			writeJSON(w, http.StatusGone, errorResp("SESSION_NOT_ACTIVE", "Session is no longer active", r))
			return
		}
		h.writeSessionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"payload": payload})
}

func (h *AttendanceHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	if err := h.manager.CloseSession(r.Context(), ownerID, sessionID); err != nil {
		h.writeSessionError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Redeem accepts either a typed code or a scanned QR payload, exactly one.
func (h *AttendanceHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	attendeeID := middleware.GetUserID(r.Context())

	var req struct {
		Code    string `json:"code"`
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if (req.Code == "") == (req.Payload == "") {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Provide exactly one of code or payload", r))
		return
	}

	now := time.Now().UTC()
	var result *attendance.RedemptionResult
	var err error
	if req.Code != "" {
		result, err = h.manager.RedeemByCode(r.Context(), req.Code, attendeeID, now)
	} else {
		result, err = h.manager.RedeemByPayload(r.Context(), req.Payload, attendeeID, now)
	}

	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrDecode):
			writeJSON(w, http.StatusBadRequest, errorResp("DECODE_ERROR", "Scanned payload could not be read", r))
		case errors.Is(err, attendance.ErrInvalidOrExpiredCode):
			writeJSON(w, http.StatusGone, errorResp("INVALID_OR_EXPIRED_CODE", "Code is invalid or has expired", r))
		default:
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record attendance", r))
		}
		return
	}

	status := http.StatusOK
	if result.Status == attendance.AlreadyRedeemed {
		// Distinct from an invalid code: re-entering will never help.
		status = http.StatusConflict
	}

	writeJSON(w, status, map[string]interface{}{
		"status":      result.Status.String(),
		"session_id":  result.SessionID,
		"label":       result.Label,
		"redeemed_at": result.RedeemedAt,
	})
}

func (h *AttendanceHandler) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, attendance.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
	case errors.Is(err, attendance.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorResp("NOT_OWNER", "You do not own this session", r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
