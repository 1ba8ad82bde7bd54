package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flexcp/flexcp/internal/apierr"
	"github.com/flexcp/flexcp/internal/domain"
	"github.com/flexcp/flexcp/internal/repo"
)

type routeConfigBody struct {
	Name           string                 `json:"name"`
	Team           string                 `json:"team"`
	DefaultCluster string                 `json:"default_cluster"`
	VirtualHosts   []virtualHostBody      `json:"virtual_hosts"`
}

type virtualHostBody struct {
	Name      string      `json:"name"`
	Domains   []string    `json:"domains"`
	RuleOrder int         `json:"rule_order"`
	Routes    []routeBody `json:"routes"`
}

type routeBody struct {
	Name        string                     `json:"name"`
	Match       domain.PathMatch           `json:"match"`
	Headers     []domain.HeaderMatcher     `json:"headers"`
	QueryParams []domain.QueryParamMatcher `json:"query_params"`
	Action      domain.RouteAction         `json:"action"`
	RuleOrder   int                        `json:"rule_order"`
}

func (h *handlers) listRouteConfigs(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	page, err := paginationFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rcs, err := h.RouteConfigs.List(r.Context(), allowedTeams(ac), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rcs)
}

func (h *handlers) getRouteConfig(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	rc, err := h.RouteConfigs.GetByName(r.Context(), chi.URLParam(r, "name"), allowedTeams(ac))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (h *handlers) listVirtualHosts(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	rc, err := h.RouteConfigs.GetByName(r.Context(), chi.URLParam(r, "name"), allowedTeams(ac))
	if err != nil {
		writeError(w, err)
		return
	}
	vhosts, err := h.RouteConfigs.ListVirtualHosts(r.Context(), rc.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vhosts)
}

// createRouteConfig builds the whole RouteConfig/VirtualHost/Route tree
// from one payload and persists it in a single transaction (spec 4.2),
// mirroring the body shape an OpenAPI import would also produce.
func (h *handlers) createRouteConfig(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	var body routeConfigBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	team, err := domain.ParseTeamID(body.Team)
	if err != nil {
		writeError(w, apierr.Validation("team", "must be a valid team id"))
		return
	}
	if err := h.requireWriteAccess(ac, "route_config", "create", body.Team); err != nil {
		writeError(w, err)
		return
	}

	clusterExists := body.DefaultCluster == ""
	if body.DefaultCluster != "" {
		if _, err := h.Clusters.GetByName(r.Context(), body.DefaultCluster, allowedTeams(ac)); err == nil {
			clusterExists = true
		}
	}
	rc, err := domain.NewRouteConfig(body.Name, team, body.DefaultCluster, nil, clusterExists)
	if err != nil {
		writeError(w, err)
		return
	}

	vhostInputs := make([]repo.VirtualHostInput, 0, len(body.VirtualHosts))
	for _, vb := range body.VirtualHosts {
		vh, err := domain.NewVirtualHost(domain.VirtualHostID{}, vb.Name, vb.Domains, vb.RuleOrder)
		if err != nil {
			writeError(w, err)
			return
		}
		routes := make([]domain.Route, 0, len(vb.Routes))
		for _, rb := range vb.Routes {
			rt, err := domain.NewRoute(domain.VirtualHostID{}, rb.Name, rb.Match, rb.Headers, rb.QueryParams, rb.Action, rb.RuleOrder)
			if err != nil {
				writeError(w, err)
				return
			}
			routes = append(routes, rt)
		}
		vhostInputs = append(vhostInputs, repo.VirtualHostInput{VH: vh, Routes: routes})
	}

	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.RouteConfigs.Create(r.Context(), principal, rc, vhostInputs)
	h.recordWrite("route_config", err)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Propagator != nil {
		_ = h.Propagator.OnTeamResourceChanged(r.Context(), team)
	}
	writeJSON(w, http.StatusCreated, out)
}

// updateRouteConfig replaces a RouteConfig's default cluster and its whole
// VirtualHost/Route tree in one call, mirroring createRouteConfig's body
// shape (spec 4.2's per-entity update contract).
func (h *handlers) updateRouteConfig(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	existing, err := h.RouteConfigs.GetByName(r.Context(), chi.URLParam(r, "name"), allowedTeams(ac))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireWriteAccess(ac, "route_config", "update", existing.Team.String()); err != nil {
		writeError(w, err)
		return
	}

	var body routeConfigBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	clusterExists := body.DefaultCluster == ""
	if body.DefaultCluster != "" {
		if _, err := h.Clusters.GetByName(r.Context(), body.DefaultCluster, allowedTeams(ac)); err == nil {
			clusterExists = true
		}
	}
	rc, err := domain.NewRouteConfig(existing.Name, existing.Team, body.DefaultCluster, existing.ImportID, clusterExists)
	if err != nil {
		writeError(w, err)
		return
	}

	vhostInputs := make([]repo.VirtualHostInput, 0, len(body.VirtualHosts))
	for _, vb := range body.VirtualHosts {
		vh, err := domain.NewVirtualHost(existing.ID, vb.Name, vb.Domains, vb.RuleOrder)
		if err != nil {
			writeError(w, err)
			return
		}
		routes := make([]domain.Route, 0, len(vb.Routes))
		for _, rb := range vb.Routes {
			rt, err := domain.NewRoute(domain.VirtualHostID{}, rb.Name, rb.Match, rb.Headers, rb.QueryParams, rb.Action, rb.RuleOrder)
			if err != nil {
				writeError(w, err)
				return
			}
			routes = append(routes, rt)
		}
		vhostInputs = append(vhostInputs, repo.VirtualHostInput{VH: vh, Routes: routes})
	}

	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.RouteConfigs.Update(r.Context(), principal, existing.ID, rc.DefaultCluster, vhostInputs)
	h.recordWrite("route_config", err)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Propagator != nil {
		_ = h.Propagator.OnTeamResourceChanged(r.Context(), existing.Team)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) deleteRouteConfig(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	existing, err := h.RouteConfigs.GetByName(r.Context(), chi.URLParam(r, "name"), allowedTeams(ac))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireWriteAccess(ac, "route_config", "delete", existing.Team.String()); err != nil {
		writeError(w, err)
		return
	}
	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	err = h.RouteConfigs.Delete(r.Context(), principal, existing.ID)
	h.recordWrite("route_config", err)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Propagator != nil {
		_ = h.Propagator.OnTeamResourceChanged(r.Context(), existing.Team)
	}
	writeJSON(w, http.StatusNoContent, nil)
}
