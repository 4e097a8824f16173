package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/siprouted/siprouted/internal/api/middleware"
	"github.com/siprouted/siprouted/internal/config"
	"github.com/siprouted/siprouted/internal/database"
	"github.com/siprouted/siprouted/internal/metrics"
	"github.com/siprouted/siprouted/internal/normalize"
	"github.com/siprouted/siprouted/internal/routing"
)

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router  *chi.Mux
	cfg     *config.Config
	repos   *database.Repositories
	matcher *routing.Matcher
	index   *normalize.PrefixIndex
	rm      *metrics.RoutingMetrics
	logger  *slog.Logger

	metricsHandler http.Handler
	authLimiter    *middleware.IPRateLimiter
	jwtSecret      []byte
}

// NewServer creates the HTTP handler with all routes mounted. jwtSecret may
// be nil, which leaves the administrative surface unauthenticated.
func NewServer(
	cfg *config.Config,
	repos *database.Repositories,
	matcher *routing.Matcher,
	index *normalize.PrefixIndex,
	rm *metrics.RoutingMetrics,
	metricsHandler http.Handler,
	jwtSecret []byte,
	logger *slog.Logger,
) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		cfg:            cfg,
		repos:          repos,
		matcher:        matcher,
		index:          index,
		rm:             rm,
		logger:         logger,
		metricsHandler: metricsHandler,
		authLimiter:    middleware.NewIPRateLimiter(middleware.AuthRateLimitConfig()),
		jwtSecret:      jwtSecret,
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	s.authLimiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimw.Recoverer)

	// Signaling-proxy surface. Unauthenticated: the proxy sits on the same
	// trusted segment and call setup cannot afford a token round trip.
	r.Post("/kamailio/routing", s.handleRouting)

	// Liveness for Consul and operators.
	r.Get("/status", s.handleStatus)

	// Prometheus scrape endpoint.
	r.Method(http.MethodGet, "/metrics", s.metricsHandler)

	// Admin token endpoint, rate limited per client IP.
	r.With(s.authLimiter.Middleware).Post("/auth/token", s.handleToken)

	// Administrative CRUD surface.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAdminAuth(s.jwtSecret))

		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", s.handleListTenants)
			r.Post("/", s.handleCreateTenant)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTenant)
				r.Put("/", s.handleUpdateTenant)
				r.Delete("/", s.handleDeleteTenant)
			})
		})

		r.Route("/domains", func(r chi.Router) {
			r.Get("/", s.handleListDomains)
			r.Post("/", s.handleCreateDomain)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDomain)
				r.Put("/", s.handleUpdateDomain)
				r.Delete("/", s.handleDeleteDomain)
			})
		})

		r.Route("/ipbx", func(r chi.Router) {
			r.Get("/", s.handleListIPBX)
			r.Post("/", s.handleCreateIPBX)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetIPBX)
				r.Put("/", s.handleUpdateIPBX)
				r.Delete("/", s.handleDeleteIPBX)
			})
		})

		r.Route("/carriers", func(r chi.Router) {
			r.Get("/", s.handleListCarriers)
			r.Post("/", s.handleCreateCarrier)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCarrier)
				r.Put("/", s.handleUpdateCarrier)
				r.Delete("/", s.handleDeleteCarrier)
			})
		})

		r.Route("/carrier-trunks", func(r chi.Router) {
			r.Get("/", s.handleListCarrierTrunks)
			r.Post("/", s.handleCreateCarrierTrunk)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCarrierTrunk)
				r.Put("/", s.handleUpdateCarrierTrunk)
				r.Delete("/", s.handleDeleteCarrierTrunk)
			})
		})

		r.Route("/dids", func(r chi.Router) {
			r.Get("/", s.handleListDIDs)
			r.Post("/", s.handleCreateDID)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDID)
				r.Put("/", s.handleUpdateDID)
				r.Delete("/", s.handleDeleteDID)
			})
		})

		r.Route("/normalization-profiles", func(r chi.Router) {
			r.Get("/", s.handleListProfiles)
			r.Post("/", s.handleCreateProfile)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProfile)
				r.Put("/", s.handleUpdateProfile)
				r.Delete("/", s.handleDeleteProfile)
			})
		})

		r.Route("/normalization-rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRule)
				r.Put("/", s.handleUpdateRule)
				r.Delete("/", s.handleDeleteRule)
			})
		})
	})
}

// handleStatus reports liveness. Consul polls this endpoint.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
