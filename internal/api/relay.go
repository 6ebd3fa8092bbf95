package api

import (
	"net/http"

	"github.com/nerrad567/doorlock-core/internal/relay"
)

// commandRequest forwards an opaque command to a lock.
type commandRequest struct {
	SmartLockMAC string `json:"smart_lock_MAC"`
	Command      string `json:"command"`
	CloseAfter   bool   `json:"close_after"`
}

// handleSendCommand relays the command over the caller's session with the
// lock and returns the lock's reply verbatim.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.SmartLockMAC == "" {
		writeFailure(w, http.StatusBadRequest, msgNoSmartLockMAC)
		return
	}
	if req.Command == "" {
		writeFailure(w, http.StatusBadRequest, msgNoCommand)
		return
	}
	if s.relay == nil {
		s.writeError(w, r, relay.ErrLockUnreachable)
		return
	}

	reply, err := s.relay.Send(r.Context(), identity(r).UserID, req.SmartLockMAC, []byte(req.Command), req.CloseAfter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"data": string(reply)})
}

// handleCloseSession ends the caller's session with a lock.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.SmartLockMAC == "" {
		writeFailure(w, http.StatusBadRequest, msgNoSmartLockMAC)
		return
	}

	if s.relay != nil {
		if err := s.relay.Close(identity(r).UserID, req.SmartLockMAC); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeSuccess(w, nil)
}
