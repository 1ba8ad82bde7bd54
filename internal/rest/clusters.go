package rest

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flexcp/flexcp/internal/apierr"
	"github.com/flexcp/flexcp/internal/domain"
	"github.com/flexcp/flexcp/internal/repo"
)

type clusterBody struct {
	Name        string              `json:"name"`
	ServiceName string              `json:"service_name"`
	Team        string              `json:"team"`
	Source      string              `json:"source"`
	Config      domain.ClusterConfig `json:"config"`
}

// paginationFrom parses limit/offset query params, rejecting an explicit
// "?limit=0" (spec 8: "limit = 0 rejected") rather than silently treating
// it the same as an absent limit -- that distinction is lost by the time
// an int reaches repo.ClampPagination, so it has to be made here.
func paginationFrom(r *http.Request) (repo.Pagination, error) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return repo.Pagination{}, apierr.Validation("limit", "must be an integer")
		}
		if parsed == 0 {
			return repo.Pagination{}, apierr.Validation("limit", "must not be 0")
		}
		limit = parsed
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	return repo.ClampPagination(limit, offset), nil
}

func (h *handlers) listClusters(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	page, err := paginationFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	clusters, err := h.Clusters.List(r.Context(), allowedTeams(ac), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clusters)
}

func (h *handlers) getCluster(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	c, err := h.Clusters.GetByName(r.Context(), chi.URLParam(r, "name"), allowedTeams(ac))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) createCluster(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	var body clusterBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	team, err := domain.ParseTeamID(body.Team)
	if err != nil {
		writeError(w, apierr.Validation("team", "must be a valid team id"))
		return
	}
	if err := h.requireWriteAccess(ac, "cluster", "create", body.Team); err != nil {
		writeError(w, err)
		return
	}

	c, err := domain.NewCluster(body.Name, body.ServiceName, team, body.Config, domain.ClusterSource(body.Source))
	if err != nil {
		writeError(w, err)
		return
	}

	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Clusters.Create(r.Context(), principal, c)
	h.recordWrite("cluster", err)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Propagator != nil {
		_ = h.Propagator.OnTeamResourceChanged(r.Context(), team)
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *handlers) updateCluster(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	existing, err := h.Clusters.GetByName(r.Context(), chi.URLParam(r, "name"), allowedTeams(ac))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireWriteAccess(ac, "cluster", "update", existing.Team.String()); err != nil {
		writeError(w, err)
		return
	}

	var body clusterBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := domain.ValidateName("service_name", body.ServiceName); err != nil {
		writeError(w, err)
		return
	}

	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Clusters.Update(r.Context(), principal, existing.ID, body.ServiceName, body.Config)
	h.recordWrite("cluster", err)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Propagator != nil {
		_ = h.Propagator.OnTeamResourceChanged(r.Context(), existing.Team)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) deleteCluster(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	existing, err := h.Clusters.GetByName(r.Context(), chi.URLParam(r, "name"), allowedTeams(ac))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireWriteAccess(ac, "cluster", "delete", existing.Team.String()); err != nil {
		writeError(w, err)
		return
	}
	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	err = h.Clusters.Delete(r.Context(), principal, existing.ID)
	h.recordWrite("cluster", err)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Propagator != nil {
		_ = h.Propagator.OnTeamResourceChanged(r.Context(), existing.Team)
	}
	writeJSON(w, http.StatusNoContent, nil)
}
