package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"festhub-backend/internal/attendance"
	"festhub-backend/internal/middleware"
)

func newTestHandler(t *testing.T) *AttendanceHandler {
	t.Helper()
	store := attendance.NewMemoryStore()
	t.Cleanup(store.Stop)
	return NewAttendanceHandler(attendance.NewManager(store, nil))
}

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func createSession(t *testing.T, h *AttendanceHandler, ownerID uuid.UUID, body string) map[string]interface{} {
	t.Helper()
	req := authedRequest(http.MethodPost, "/api/v1/attendance/sessions", body, ownerID)
	rr := httptest.NewRecorder()
	h.CreateSession(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestAttendanceHandler_CreateSession(t *testing.T) {
	h := newTestHandler(t)
	ownerID := uuid.New()

	resp := createSession(t, h, ownerID, `{"label":"Tech Fest Check-in"}`)

	code, _ := resp["code"].(string)
	if len(code) != attendance.DefaultCodeLength {
		t.Errorf("expected %d-digit code, got %q", attendance.DefaultCodeLength, code)
	}
	if resp["label"] != "Tech Fest Check-in" {
		t.Errorf("unexpected label: %v", resp["label"])
	}
	if _, err := uuid.Parse(resp["session_id"].(string)); err != nil {
		t.Errorf("session_id is not a UUID: %v", resp["session_id"])
	}
}

func TestAttendanceHandler_CreateSession_Validation(t *testing.T) {
	h := newTestHandler(t)
	ownerID := uuid.New()

	tests := []struct {
		name string
		body string
	}{
		{"missing label", `{"ttl_seconds":300}`},
		{"negative ttl", `{"label":"x","ttl_seconds":-1}`},
		{"code length too short", `{"label":"x","code_length":3}`},
		{"code length too long", `{"label":"x","code_length":13}`},
		{"malformed body", `{not json`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := authedRequest(http.MethodPost, "/api/v1/attendance/sessions", tc.body, ownerID)
			rr := httptest.NewRecorder()
			h.CreateSession(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
			}
		})
	}
}

func TestAttendanceHandler_Redeem_ByCode(t *testing.T) {
	h := newTestHandler(t)
	ownerID := uuid.New()
	attendeeID := uuid.New()

	resp := createSession(t, h, ownerID, `{"label":"Workshop"}`)
	code := resp["code"].(string)

	body := fmt.Sprintf(`{"code":%q}`, code)
	req := authedRequest(http.MethodPost, "/api/v1/attendance/redemptions", body, attendeeID)
	rr := httptest.NewRecorder()
	h.Redeem(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["status"] != "redeemed" {
		t.Errorf("expected status 'redeemed', got %v", result["status"])
	}
	if result["label"] != "Workshop" {
		t.Errorf("expected label 'Workshop', got %v", result["label"])
	}

	// The same attendee claiming again is a conflict, not an invalid code.
	req = authedRequest(http.MethodPost, "/api/v1/attendance/redemptions", body, attendeeID)
	rr = httptest.NewRecorder()
	h.Redeem(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status %d on repeat, got %d", http.StatusConflict, rr.Code)
	}
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["status"] != "already_redeemed" {
		t.Errorf("expected status 'already_redeemed', got %v", result["status"])
	}
}

func TestAttendanceHandler_Redeem_InvalidCode(t *testing.T) {
	h := newTestHandler(t)

	req := authedRequest(http.MethodPost, "/api/v1/attendance/redemptions", `{"code":"000000"}`, uuid.New())
	rr := httptest.NewRecorder()
	h.Redeem(rr, req)

	if rr.Code != http.StatusGone {
		t.Fatalf("expected status %d, got %d", http.StatusGone, rr.Code)
	}
}

func TestAttendanceHandler_Redeem_InputValidation(t *testing.T) {
	h := newTestHandler(t)
	attendeeID := uuid.New()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"neither code nor payload", `{}`, http.StatusBadRequest},
		{"both code and payload", `{"code":"123456","payload":"fh1:x:1"}`, http.StatusBadRequest},
		{"malformed payload", `{"payload":"not-a-payload"}`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := authedRequest(http.MethodPost, "/api/v1/attendance/redemptions", tc.body, attendeeID)
			rr := httptest.NewRecorder()
			h.Redeem(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestAttendanceHandler_QRPayloadRoundTrip(t *testing.T) {
	h := newTestHandler(t)
	ownerID := uuid.New()
	attendeeID := uuid.New()

	resp := createSession(t, h, ownerID, `{"label":"Seminar"}`)
	sessionID := resp["session_id"].(string)

	req := authedRequest(http.MethodGet, "/api/v1/attendance/sessions/"+sessionID+"/qr", "", ownerID)
	req = withURLParam(req, "id", sessionID)
	rr := httptest.NewRecorder()
	h.GetQRPayload(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var qr map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&qr); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	body := fmt.Sprintf(`{"payload":%q}`, qr["payload"])
	req = authedRequest(http.MethodPost, "/api/v1/attendance/redemptions", body, attendeeID)
	rr = httptest.NewRecorder()
	h.Redeem(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d redeeming scanned payload, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
}

func TestAttendanceHandler_CloseSession(t *testing.T) {
	h := newTestHandler(t)
	ownerID := uuid.New()

	resp := createSession(t, h, ownerID, `{"label":"Closing Ceremony"}`)
	sessionID := resp["session_id"].(string)
	code := resp["code"].(string)

	req := authedRequest(http.MethodPost, "/api/v1/attendance/sessions/"+sessionID+"/close", "", ownerID)
	req = withURLParam(req, "id", sessionID)
	rr := httptest.NewRecorder()
	h.CloseSession(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rr.Code, rr.Body.String())
	}

	// The code stops working immediately.
	body := fmt.Sprintf(`{"code":%q}`, code)
	req = authedRequest(http.MethodPost, "/api/v1/attendance/redemptions", body, uuid.New())
	rr = httptest.NewRecorder()
	h.Redeem(rr, req)

	if rr.Code != http.StatusGone {
		t.Fatalf("expected status %d after close, got %d", http.StatusGone, rr.Code)
	}

	// Closing again is a no-op success.
	req = authedRequest(http.MethodPost, "/api/v1/attendance/sessions/"+sessionID+"/close", "", ownerID)
	req = withURLParam(req, "id", sessionID)
	rr = httptest.NewRecorder()
	h.CloseSession(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected repeat close to return %d, got %d", http.StatusNoContent, rr.Code)
	}
}

func TestAttendanceHandler_OwnershipEnforced(t *testing.T) {
	h := newTestHandler(t)
	ownerID := uuid.New()
	otherID := uuid.New()

	resp := createSession(t, h, ownerID, `{"label":"Private Session"}`)
	sessionID := resp["session_id"].(string)

	req := authedRequest(http.MethodGet, "/api/v1/attendance/sessions/"+sessionID, "", otherID)
	req = withURLParam(req, "id", sessionID)
	rr := httptest.NewRecorder()
	h.GetSession(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d for non-owner, got %d", http.StatusForbidden, rr.Code)
	}

	req = authedRequest(http.MethodPost, "/api/v1/attendance/sessions/"+sessionID+"/close", "", otherID)
	req = withURLParam(req, "id", sessionID)
	rr = httptest.NewRecorder()
	h.CloseSession(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d closing someone else's session, got %d", http.StatusForbidden, rr.Code)
	}
}

func TestAttendanceHandler_GetSession_ShowsRedemptions(t *testing.T) {
	h := newTestHandler(t)
	ownerID := uuid.New()

	resp := createSession(t, h, ownerID, `{"label":"Roll Call"}`)
	sessionID := resp["session_id"].(string)
	code := resp["code"].(string)

	for i := 0; i < 3; i++ {
		body := fmt.Sprintf(`{"code":%q}`, code)
		req := authedRequest(http.MethodPost, "/api/v1/attendance/redemptions", body, uuid.New())
		rr := httptest.NewRecorder()
		h.Redeem(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("attendee %d: expected status %d, got %d", i, http.StatusOK, rr.Code)
		}
	}

	req := authedRequest(http.MethodGet, "/api/v1/attendance/sessions/"+sessionID, "", ownerID)
	req = withURLParam(req, "id", sessionID)
	rr := httptest.NewRecorder()
	h.GetSession(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var got struct {
		Session struct {
			Redemptions []struct {
				AttendeeID string    `json:"attendee_id"`
				RedeemedAt time.Time `json:"redeemed_at"`
			} `json:"redemptions"`
		} `json:"session"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got.Session.Redemptions) != 3 {
		t.Errorf("expected 3 redemptions, got %d", len(got.Session.Redemptions))
	}
}

func TestAttendanceHandler_ListSessions_EmptyIsArray(t *testing.T) {
	h := newTestHandler(t)

	req := authedRequest(http.MethodGet, "/api/v1/attendance/sessions", "", uuid.New())
	rr := httptest.NewRecorder()
	h.ListSessions(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"sessions":[]`) {
		t.Errorf("expected empty sessions array, got %s", rr.Body.String())
	}
}
