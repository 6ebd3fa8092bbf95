package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/", s.handlePing)

	// Lock endpoints (called by lock firmware)
	r.Post("/register-door-lock", s.handleRegisterLock)
	r.Post("/check-in", s.handleCheckIn)
	r.Get("/check-lock-registration-status", s.handleRegistrationStatus)
	r.Post("/register-invite", s.handleRegisterInvite)
	r.Post("/request-authorization", s.handleRequestAuthorization)

	// User endpoints (identity token required)
	r.Group(func(r chi.Router) {
		r.Use(s.identityMiddleware)

		r.Get("/get-door-certificate", s.handleGetCertificate)
		r.Get("/get-lock-by-ble", s.handleGetLockByBLE)
		r.Post("/register-phone-id", s.handleRegisterPhoneID)

		r.Post("/redeem-invite", s.handleRedeemInvite)
		r.Post("/save-user-invite", s.handleSaveUserInvite)
		r.Get("/check-user-invite", s.handleCheckUserInvite)
		r.Post("/redeem-user-invite", s.handleRedeemUserInvite)

		r.Get("/get-user-locks", s.handleGetUserLocks)
		r.Post("/set-user-locks", s.handleSetUserLock)
		r.Post("/delete-user-lock", s.handleDeleteUserLock)

		r.Post("/send-command", s.handleSendCommand)
		r.Post("/close-session", s.handleCloseSession)
	})

	return r
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, nil)
}
