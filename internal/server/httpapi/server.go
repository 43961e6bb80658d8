// Package httpapi serves the public HTTP/JSON contract: the authentication
// endpoints and the user-management API behind bearer-token verification.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/simpleauth/internal/logging"
	"github.com/dmitrijs2005/simpleauth/internal/server/models"
	"github.com/dmitrijs2005/simpleauth/internal/server/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthService is the slice of the authentication service the API needs.
type AuthService interface {
	Login(ctx context.Context, login string, password string) (*services.AccessTokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AccessTokenResponse, error)
}

// UserService is the slice of the user-management service the API needs.
type UserService interface {
	GetAll(ctx context.Context) ([]*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Search(ctx context.Context, term string) ([]*models.User, error)
	Create(ctx context.Context, m *services.UserCreateModel) (*models.User, error)
	Update(ctx context.Context, m *services.UserUpdateModel) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

const maxBodyBytes = 1 << 20 // 1 MiB

// Server wires handlers, middleware, and the underlying http.Server.
type Server struct {
	address   string
	logger    logging.Logger
	auth      AuthService
	users     UserService
	jwtSecret []byte

	srv *http.Server
}

// NewServer constructs the HTTP server for the given services. The JWT
// secret is used only to verify access tokens on protected routes.
func NewServer(address string, l logging.Logger, as AuthService, us UserService, secretKey string) *Server {
	s := &Server{
		address:   address,
		logger:    l.With("module", "http_server"),
		auth:      as,
		users:     us,
		jwtSecret: []byte(secretKey),
	}
	s.srv = &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// routes assembles the mux and the middleware chain.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/refreshtoken", s.handleRefreshToken)

	mux.Handle("GET /api/users", s.requireAuth(http.HandlerFunc(s.handleGetAllUsers)))
	mux.Handle("GET /api/users/search", s.requireAuth(http.HandlerFunc(s.handleSearchUsers)))
	mux.Handle("POST /api/users", s.requireAuth(http.HandlerFunc(s.handleCreateUser)))
	mux.Handle("GET /api/users/{id}", s.requireAuth(http.HandlerFunc(s.handleGetUser)))
	mux.Handle("PUT /api/users/{id}", s.requireAuth(http.HandlerFunc(s.handleUpdateUser)))
	mux.Handle("DELETE /api/users/{id}", s.requireAuth(http.HandlerFunc(s.handleDeleteUser)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = maxBody(h, maxBodyBytes)
	h = measureRequests(h)
	h = rateLimit(h, 20, 10)
	h = s.logRequests(h)
	return h
}

// Run starts serving and blocks until ctx is canceled, then shuts the
// server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
