// Package httpserver exposes the cellar HTTP JSON API.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/and161185/winecellar/internal/auth"
	"github.com/and161185/winecellar/internal/errs"
	"github.com/and161185/winecellar/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires services into HTTP handlers.
type Server struct {
	auth    service.AuthService
	cellar  service.CellarService
	guard   *Guard
	db      Pinger
	metrics *Metrics
	log     *zap.Logger
	version string
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithPinger makes /healthz check the database.
func WithPinger(p Pinger) Option { return func(s *Server) { s.db = p } }

// WithVersion sets the version reported by GET /.
func WithVersion(v string) Option { return func(s *Server) { s.version = v } }

// New constructs an HTTP server with injected services.
func New(a service.AuthService, c service.CellarService, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{auth: a, cellar: c, guard: NewGuard(a, log), log: log, version: "dev"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed API wrapped in request id, logging and recovery.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()
	h = Recover(s.log)(h)
	h = Logging(s.log)(h)
	return RequestID(h)
}

// Router registers every route with the scopes it requires.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/", s.welcome).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)

	g := s.guard
	users := r.PathPrefix("/users").Subrouter()
	users.HandleFunc("/token", s.login).Methods(http.MethodPost)
	s.handle(users, http.MethodPost, "/extendedtoken", s.extendedToken, g.RequireActive(auth.ScopeUsersWrite))
	s.handle(users, http.MethodPost, "/add", s.addUser, g.RequireActive(auth.ScopeUsersWrite))
	s.handle(users, http.MethodGet, "/me", s.me, g.RequireActive())
	s.handle(users, http.MethodGet, "", s.listUsers, g.RequireActive(auth.ScopeUsersRead))
	s.handle(users, http.MethodGet, "/", s.listUsers, g.RequireActive(auth.ScopeUsersRead))
	s.handle(users, http.MethodPut, "/{username}", s.updateUser, g.RequireActive(auth.ScopeUsersWrite))
	s.handle(users, http.MethodDelete, "/{username}", s.deleteUser, g.RequireActive(auth.ScopeUsersWrite))

	read := g.RequireActive(auth.ScopeCellarRead)
	write := g.RequireActive(auth.ScopeCellarRead, auth.ScopeCellarWrite)

	cellar := r.PathPrefix("/cellar").Subrouter()
	s.handle(cellar, http.MethodPost, "/storages/add", s.addStorage, write)
	s.handle(cellar, http.MethodDelete, "/storages/{id:[0-9]+}", s.deleteStorage, write)
	s.handle(cellar, http.MethodPost, "/bottles/add", s.addBottles, write)
	s.handle(cellar, http.MethodPost, "/bottles/consume", s.consume, write)
	s.handle(cellar, http.MethodPost, "/bottles/transfer", s.transfer, write)
	s.handle(cellar, http.MethodPost, "/ratings/add", s.addRating, write)
	s.handle(cellar, http.MethodDelete, "/ratings/{id:[0-9]+}", s.deleteRating, write)

	views := r.PathPrefix("/cellar_views").Subrouter()
	s.handle(views, http.MethodGet, "/owners", s.viewOwners, read)
	s.handle(views, http.MethodGet, "/storages", s.viewStorages, read)
	s.handle(views, http.MethodGet, "/ratings/mine", s.viewMyRatings, read)
	s.handle(views, http.MethodGet, "/ratings", s.viewRatings, read)
	s.handle(views, http.MethodGet, "/bottles", s.viewBottles, read)
	s.handle(views, http.MethodGet, "/drinkable", s.viewDrinkable, read)
	return r
}

func (s *Server) handle(r *mux.Router, method, path string, h http.HandlerFunc, guard mux.MiddlewareFunc) {
	r.Handle(path, guard(h)).Methods(method)
}

func (s *Server) welcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the cellar API",
		"version": s.version,
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeDetail(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad id: %w", errs.ErrValidation)
	}
	return id, nil
}

// queryInt64 returns nil when the parameter is absent.
func queryInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer: %w", name, errs.ErrValidation)
	}
	return &v, nil
}
