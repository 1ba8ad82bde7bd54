// Package rest is the thin REST adapter (A4) spec 6.1 describes: JSON in,
// JSON out, mapping straight onto the C2 repository calls. It holds no
// business logic of its own -- validation and authorization live in
// internal/domain and internal/authz, invoked the same way a CLI front end
// would invoke them.
package rest

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/flexcp/flexcp/internal/propagator"
	"github.com/flexcp/flexcp/internal/repo"
	"github.com/flexcp/flexcp/internal/telemetry"
)

// Deps is every collaborator the REST layer calls into.
type Deps struct {
	Clusters     *repo.ClusterRepo
	RouteConfigs *repo.RouteConfigRepo
	Listeners    *repo.ListenerRepo
	Filters      *repo.FilterRepo
	Dataplanes   *repo.DataplaneRepo
	Audit        *repo.AuditRepo
	Propagator   *propagator.Propagator
	JWTKeyFunc   jwt.Keyfunc
	Metrics      *telemetry.Recorder
}

// New builds the router. Grounded on the teacher's admin HTTP mux
// (cmd/flexds/main.go's promhttp/healthz ServeMux), generalized from a
// two-route admin mux to a resource-per-route API using the corpus's
// chi router (other_examples/manifests/yth01-kgateway go.mod).
func New(d Deps) *chi.Mux {
	if d.Metrics == nil {
		d.Metrics = telemetry.NewNoop()
	}
	h := &handlers{Deps: d}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.healthz)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/auth/login", h.login)
		api.Post("/tokens", h.issueToken)

		api.Group(func(authed chi.Router) {
			authed.Use(requireAuth(d.JWTKeyFunc))

			authed.Route("/clusters", func(rt chi.Router) {
				rt.Get("/", h.listClusters)
				rt.Post("/", h.createCluster)
				rt.Get("/{name}", h.getCluster)
				rt.Put("/{name}", h.updateCluster)
				rt.Delete("/{name}", h.deleteCluster)
			})

			authed.Route("/route-configs", func(rt chi.Router) {
				rt.Get("/", h.listRouteConfigs)
				rt.Post("/", h.createRouteConfig)
				rt.Get("/{name}", h.getRouteConfig)
				rt.Put("/{name}", h.updateRouteConfig)
				rt.Delete("/{name}", h.deleteRouteConfig)
				rt.Get("/{name}/virtual-hosts", h.listVirtualHosts)
			})

			authed.Route("/listeners", func(rt chi.Router) {
				rt.Get("/", h.listListeners)
				rt.Post("/", h.createListener)
				rt.Get("/{name}", h.getListener)
				rt.Put("/{name}", h.updateListener)
				rt.Delete("/{name}", h.deleteListener)
				rt.Post("/{name}/drain", h.drainListener)
			})

			authed.Route("/filters", func(rt chi.Router) {
				rt.Get("/", h.listFilters)
				rt.Post("/", h.createFilter)
				rt.Get("/{id}", h.getFilter)
				rt.Put("/{id}", h.updateFilter)
				rt.Delete("/{id}", h.deleteFilter)
				rt.Post("/{id}/installations", h.attachFilter)
			})

			authed.Route("/dataplanes", func(rt chi.Router) {
				rt.Get("/", h.listDataplanes)
				rt.Post("/", h.createDataplane)
				rt.Put("/{id}", h.updateDataplane)
				rt.Delete("/{id}", h.deleteDataplane)
			})

			authed.Post("/openapi/import", h.importOpenAPI)
			authed.Post("/admin/teams", h.createTeam)
		})
	})

	return r
}

type handlers struct {
	Deps
}
