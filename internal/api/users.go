package api

import (
	"encoding/hex"
	"net/http"

	"github.com/nerrad567/doorlock-core/internal/account"
	"github.com/nerrad567/doorlock-core/internal/auth"
	"github.com/nerrad567/doorlock-core/internal/invite"
)

// inviteIDLength is the length of a stored invite id.
const inviteIDLength = 32

// userRequest carries the fields shared by user endpoints.
type userRequest struct {
	PhoneID   string `json:"phone_id"`
	InviteID  string `json:"invite_id"`
	LockID    string `json:"lock_id"`
	MasterKey string `json:"master_key_encrypted_lock"`
}

// identity returns the caller set by identityMiddleware.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

// inviteIDFrom accepts either a stored invite id or the code handed to the
// user, which embeds it.
func inviteIDFrom(s string) string {
	if len(s) == inviteIDLength {
		if _, err := hex.DecodeString(s); err == nil {
			return s
		}
	}
	id, _, _, err := invite.ParseCode(s)
	if err != nil {
		return s
	}
	return id
}

func (s *Server) handleRegisterPhoneID(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.PhoneID == "" {
		writeFailure(w, http.StatusForbidden, msgNoPhoneID)
		return
	}

	if err := s.accounts.RegisterPhoneID(r.Context(), identity(r).UserID, req.PhoneID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, nil)
}

// handleRedeemInvite consumes an invite and grants the caller's phone access.
func (s *Server) handleRedeemInvite(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.InviteID == "" {
		writeFailure(w, http.StatusBadRequest, msgNoInviteID)
		return
	}

	_, err := s.invites.Redeem(r.Context(), identity(r), inviteIDFrom(req.InviteID), req.PhoneID, req.MasterKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, nil)
}

// handleSaveUserInvite parks an invite on one of the caller's locks, to be
// redeemed once the phone has the lock's master key.
func (s *Server) handleSaveUserInvite(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.InviteID == "" {
		writeFailure(w, http.StatusBadRequest, msgNoInviteID)
		return
	}
	if req.LockID == "" {
		writeFailure(w, http.StatusBadRequest, msgNoLockID)
		return
	}

	if err := s.invites.SaveForLater(r.Context(), identity(r), req.LockID, inviteIDFrom(req.InviteID)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleCheckUserInvite(w http.ResponseWriter, r *http.Request) {
	lockID := r.URL.Query().Get("lock_id")
	if lockID == "" {
		writeFailure(w, http.StatusBadRequest, msgNoLockID)
		return
	}

	got, err := s.invites.HasSaved(r.Context(), identity(r), lockID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"got_invite": got})
}

func (s *Server) handleRedeemUserInvite(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	switch {
	case req.PhoneID == "":
		writeFailure(w, http.StatusForbidden, msgNoPhoneID)
		return
	case req.LockID == "":
		writeFailure(w, http.StatusBadRequest, msgNoLockID)
		return
	case req.MasterKey == "":
		writeFailure(w, http.StatusForbidden, msgNoMasterKey)
		return
	}

	if _, err := s.invites.RedeemSaved(r.Context(), identity(r), req.LockID, req.PhoneID, req.MasterKey); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleGetUserLocks(w http.ResponseWriter, r *http.Request) {
	locks, err := s.accounts.Locks(r.Context(), identity(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"locks": locks})
}

// handleSetUserLock adds or replaces one lock in the caller's account.
func (s *Server) handleSetUserLock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lock *account.UserLock `json:"lock"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.Lock == nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidLock)
		return
	}

	if err := s.accounts.SaveLock(r.Context(), identity(r).UserID, *req.Lock); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, nil)
}

// handleDeleteUserLock removes a lock from the caller's account and revokes
// the access of every phone they registered.
func (s *Server) handleDeleteUserLock(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.LockID == "" {
		writeFailure(w, http.StatusBadRequest, msgNoLockID)
		return
	}

	if err := s.accounts.RemoveLock(r.Context(), identity(r).UserID, req.LockID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, nil)
}
