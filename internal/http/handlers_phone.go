package httpx

import (
	"net/http"

	"github.com/sudheendra1210/Citycycle/internal/ports"
)

type sendOTPRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// SendPhoneOTP starts the custom phone sign-in.
// POST /auth/phone/send-otp.
func (h *AuthHandlers) SendPhoneOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.Bridge.StartPhoneVerification(r.Context(), req.Phone, req.Name); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// VerifyPhoneOTP completes the custom phone sign-in and returns the verified user.
// POST /auth/phone/verify-otp.
func (h *AuthHandlers) VerifyPhoneOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	user, err := h.Bridge.CompletePhoneVerification(r.Context(), req.Phone, req.Code)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"user":          user,
		"needs_profile": user.NeedsProfile(),
	})
}

// RequestHostedOTP texts a code to verify a phone number under the current session.
// POST /auth/hosted/request-otp.
func (h *AuthHandlers) RequestHostedOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.Bridge.RequestHostedVerification(r.Context(), req.Phone); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// VerifyHostedOTP checks a code under the current session.
// POST /auth/hosted/verify-otp.
func (h *AuthHandlers) VerifyHostedOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.Bridge.VerifyHostedVerification(r.Context(), req.Phone, req.Code)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// UpdateProfile applies partial profile fields and returns the refreshed snapshot.
// PATCH /auth/profile.
func (h *AuthHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd ports.ProfileUpdate
	if !DecodeJSON(w, r, &upd) {
		return
	}
	snap, err := h.Bridge.UpdateProfile(r.Context(), upd)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}
