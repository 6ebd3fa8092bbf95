package api

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/nerrad567/doorlock-core/internal/signature"
)

// registerLockRequest is sent by lock firmware on boot.
type registerLockRequest struct {
	MAC         string `json:"MAC"`
	BLE         string `json:"BLE"`
	Certificate string `json:"certificate"`
}

// handleRegisterLock upserts the calling lock, recording its source address.
func (s *Server) handleRegisterLock(w http.ResponseWriter, r *http.Request) {
	var req registerLockRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgMissingArguments)
		return
	}
	if req.MAC == "" || req.BLE == "" || req.Certificate == "" {
		writeFailure(w, http.StatusBadRequest, msgMissingArguments)
		return
	}

	if _, err := s.locks.Register(r.Context(), req.MAC, req.BLE, req.Certificate, remoteHost(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, nil)
}

// handleCheckIn refreshes a registered lock's address.
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MAC string `json:"MAC"`
	}
	if err := decodeBody(r, &req); err != nil || req.MAC == "" {
		writeFailure(w, http.StatusBadRequest, msgMissingMAC)
		return
	}

	if err := s.locks.CheckIn(r.Context(), req.MAC, remoteHost(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, nil)
}

// handleRegistrationStatus reports 0 (unregistered), 1 (registered) or
// 2 (registered with at least one authorization).
func (s *Server) handleRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	mac := r.URL.Query().Get("MAC")
	if mac == "" {
		writeFailure(w, http.StatusBadRequest, msgMissingMAC)
		return
	}

	status, err := s.locks.Status(r.Context(), mac)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"status": int(status)})
}

// handleRegisterInvite creates an invite from a lock-signed request.
func (s *Server) handleRegisterInvite(w http.ResponseWriter, r *http.Request) {
	var env signature.Envelope
	if err := decodeBody(r, &env); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidData)
		return
	}

	code, err := s.invites.Create(r.Context(), env)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"inviteID": code})
}

// handleRequestAuthorization answers a lock's signed query for a phone's
// authorization. data is null when the phone holds none.
func (s *Server) handleRequestAuthorization(w http.ResponseWriter, r *http.Request) {
	var env signature.Envelope
	if err := decodeBody(r, &env); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidData)
		return
	}

	a, err := s.access.Lookup(r.Context(), env)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"data": a})
}

// handleGetCertificate returns the certificate a lock registered with, so
// apps can verify what the lock signs.
func (s *Server) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	mac := r.URL.Query().Get("smart_lock_mac")
	if mac == "" {
		writeFailure(w, http.StatusBadRequest, msgNoSmartLockMAC)
		return
	}

	cert, err := s.locks.GetCertificate(r.Context(), mac)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cert == "" {
		writeFailure(w, http.StatusBadRequest, msgInvalidMAC)
		return
	}
	writeSuccess(w, map[string]any{"certificate": cert})
}

// handleGetLockByBLE resolves a scanned BLE address to the lock's MAC.
func (s *Server) handleGetLockByBLE(w http.ResponseWriter, r *http.Request) {
	ble := r.URL.Query().Get("BLE")
	if ble == "" {
		writeFailure(w, http.StatusBadRequest, msgMissingArguments)
		return
	}

	l, err := s.locks.FindByBLE(r.Context(), ble)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if l == nil {
		writeFailure(w, http.StatusNotFound, msgLockNotFound)
		return
	}
	writeSuccess(w, map[string]any{"MAC": l.MAC, "BLE": l.BLE})
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return http.ErrBodyNotAllowed
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// remoteHost returns the host part of the peer address.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
