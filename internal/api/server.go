package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/outpost-sh/outpost/internal/auth"
	"github.com/outpost-sh/outpost/internal/events"
	"github.com/outpost-sh/outpost/internal/instance"
	"github.com/outpost-sh/outpost/internal/ports"
	"github.com/outpost-sh/outpost/internal/registry"
	"github.com/outpost-sh/outpost/internal/store"
)

// Server is the management API. It owns no instance state itself; it drives
// the registry, port allocator and event bus on behalf of requests.
type Server struct {
	router       *chi.Mux
	gate         *auth.Gate
	users        store.Store
	registry     *registry.Registry
	ports        *ports.Allocator
	bus          *events.Bus
	factory      instance.Factory
	instancesDir string
	corsOrigins  []string
}

func NewServer(gate *auth.Gate, users store.Store, reg *registry.Registry, alloc *ports.Allocator, bus *events.Bus, factory instance.Factory, instancesDir string, corsOrigins []string) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		gate:         gate,
		users:        users,
		registry:     reg,
		ports:        alloc,
		bus:          bus,
		factory:      factory,
		instancesDir: instancesDir,
		corsOrigins:  corsOrigins,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.Post("/login", s.login)

	s.router.Group(func(r chi.Router) {
		r.Use(s.gate.Middleware)

		r.Get("/instance/list", s.listInstances)
		r.Post("/instance/minecraft", s.createMinecraftInstance)
		r.Route("/instance/{uuid}", func(r chi.Router) {
			r.Delete("/", s.deleteInstance)
			r.Get("/info", s.getInstanceInfo)
			r.Post("/start", s.startInstance)
			r.Post("/stop", s.stopInstance)
			r.Get("/players", s.getPlayerList)
			r.Get("/players/count", s.getPlayerCount)
			r.Get("/players/max", s.getMaxPlayerCount)
			r.Put("/players/max", s.setMaxPlayerCount)
		})

		r.Get("/events/stream", s.streamEvents)
	})
}
