package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/doorlock-core/internal/access"
	"github.com/nerrad567/doorlock-core/internal/account"
	"github.com/nerrad567/doorlock-core/internal/auth"
	"github.com/nerrad567/doorlock-core/internal/invite"
	"github.com/nerrad567/doorlock-core/internal/lock"
	"github.com/nerrad567/doorlock-core/internal/relay"
	"github.com/nerrad567/doorlock-core/internal/signature"
)

// Failure is the body of an unsuccessful response.
type Failure struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// Messages returned to clients. Existing clients match on some of these.
const (
	msgNoIDToken        = "No Id Token"
	msgInvalidIDToken   = "Invalid Id Token"
	msgNoPhoneID        = "No Phone Id"
	msgInvalidPhoneID   = "Invalid Phone Id!"
	msgMissingArguments = "Missing arguments."
	msgMissingMAC       = "Missing argument MAC."
	msgNoSmartLockMAC   = "No smart_lock_mac"
	msgInvalidMAC       = "Invalid smart_lock_mac"
	msgNotSigned        = "Message not signed"
	msgInvalidData      = "Invalid data"
	msgInvalidSignature = "Invalid signature"
	msgBadCertificate   = "Invalid lock certificate"
	msgNoInviteID       = "No invite id"
	msgInvalidInvite    = "Invalid invite"
	msgInviteExpired    = "Invite expired"
	msgUserLocked       = "No permissions. This invite is user locked!"
	msgNoLockID         = "No lock id"
	msgNoMasterKey      = "No Master Key"
	msgNoSavedInvite    = "Can't get user saved invite."
	msgLockNotFound     = "Lock not registered"
	msgLockUnreachable  = "Lock unreachable"
	msgRelayFailed      = "Lock did not respond"
	msgShuttingDown     = "Service shutting down"
	msgInvalidLock      = "Invalid lock"
	msgNoCommand        = "No command"
	msgInvalidBody      = "Invalid request body"
	msgInternal         = "Internal server error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeSuccess writes {"success": true} merged with fields.
func writeSuccess(w http.ResponseWriter, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

// writeFailure writes an application failure. The HTTP status stays 200.
func writeFailure(w http.ResponseWriter, code int, message string) {
	writeJSON(w, http.StatusOK, Failure{Code: code, Message: message})
}

// writeError maps a service error to its failure response. Errors with no
// client-facing meaning are logged and reported as internal.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := classify(err)
	if code == http.StatusInternalServerError && msg == msgInternal {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	}
	writeFailure(w, code, msg)
}

// classify maps a sentinel error to a code and message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return http.StatusForbidden, msgNoIDToken
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusForbidden, msgInvalidIDToken

	case errors.Is(err, signature.ErrNotSigned):
		return http.StatusForbidden, msgNotSigned
	case errors.Is(err, signature.ErrInvalidData):
		return http.StatusBadRequest, msgInvalidData
	case errors.Is(err, signature.ErrInvalidSignature):
		return http.StatusForbidden, msgInvalidSignature
	case errors.Is(err, signature.ErrCertificate):
		return http.StatusInternalServerError, msgBadCertificate

	case errors.Is(err, invite.ErrInvalidInvite), errors.Is(err, invite.ErrInvalidCode):
		return http.StatusBadRequest, msgInvalidInvite
	case errors.Is(err, invite.ErrInviteExpired):
		return http.StatusBadRequest, msgInviteExpired
	case errors.Is(err, invite.ErrForbidden):
		return http.StatusForbidden, msgUserLocked
	case errors.Is(err, invite.ErrInvalidPrincipal), errors.Is(err, account.ErrInvalidPhoneID):
		return http.StatusForbidden, msgInvalidPhoneID
	case errors.Is(err, invite.ErrNoPendingInvite):
		return http.StatusInternalServerError, msgNoSavedInvite

	case errors.Is(err, access.ErrValidation), errors.Is(err, access.ErrUnknownType):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, lock.ErrLockNotFound), errors.Is(err, relay.ErrLockUnregistered):
		return http.StatusNotFound, msgLockNotFound
	case errors.Is(err, lock.ErrInvalidLock), errors.Is(err, account.ErrInvalidLock):
		return http.StatusBadRequest, msgInvalidLock
	case errors.Is(err, relay.ErrLockUnreachable):
		return http.StatusBadGateway, msgLockUnreachable
	case errors.Is(err, relay.ErrRelay):
		return http.StatusGatewayTimeout, msgRelayFailed
	case errors.Is(err, relay.ErrPoolClosed):
		return http.StatusServiceUnavailable, msgShuttingDown
	}
	return http.StatusInternalServerError, msgInternal
}
