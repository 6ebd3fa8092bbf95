package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/doorlock-core/internal/access"
	"github.com/nerrad567/doorlock-core/internal/account"
	"github.com/nerrad567/doorlock-core/internal/auth"
	"github.com/nerrad567/doorlock-core/internal/infrastructure/config"
	"github.com/nerrad567/doorlock-core/internal/infrastructure/logging"
	"github.com/nerrad567/doorlock-core/internal/invite"
	"github.com/nerrad567/doorlock-core/internal/lock"
	"github.com/nerrad567/doorlock-core/internal/relay"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Verifier auth.Verifier
	Locks    *lock.Registry
	Access   *access.Directory
	Invites  *invite.Service
	Accounts *account.Service
	Relay    *relay.Pool // optional: relay endpoints report the lock as unreachable without it
}

// Server is the HTTP API server.
//
// The server is created with New() and started with Start().
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	verifier auth.Verifier
	locks    *lock.Registry
	access   *access.Directory
	invites  *invite.Service
	accounts *account.Service
	relay    *relay.Pool
	server   *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Verifier == nil:
		return nil, fmt.Errorf("identity verifier is required")
	case deps.Locks == nil:
		return nil, fmt.Errorf("lock registry is required")
	case deps.Access == nil:
		return nil, fmt.Errorf("authorization directory is required")
	case deps.Invites == nil:
		return nil, fmt.Errorf("invite service is required")
	case deps.Accounts == nil:
		return nil, fmt.Errorf("account service is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		verifier: deps.Verifier,
		locks:    deps.Locks,
		access:   deps.Access,
		invites:  deps.Invites,
		accounts: deps.Accounts,
		relay:    deps.Relay,
	}, nil
}

// Handler returns the router. Exposed for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
