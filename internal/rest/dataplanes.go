package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flexcp/flexcp/internal/apierr"
	"github.com/flexcp/flexcp/internal/domain"
)

type dataplaneBody struct {
	Name string `json:"name"`
	Team string `json:"team"`
}

type dataplaneUpdateBody struct {
	GatewayHost string `json:"gateway_host"`
	Description string `json:"description"`
}

func (h *handlers) listDataplanes(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	page, err := paginationFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	dps, err := h.Dataplanes.List(r.Context(), allowedTeams(ac), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dps)
}

func (h *handlers) createDataplane(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	var body dataplaneBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	team, err := domain.ParseTeamID(body.Team)
	if err != nil {
		writeError(w, apierr.Validation("team", "must be a valid team id"))
		return
	}
	if err := h.requireWriteAccess(ac, "dataplane", "create", body.Team); err != nil {
		writeError(w, err)
		return
	}

	dp, err := domain.NewDataplane(body.Name, team)
	if err != nil {
		writeError(w, err)
		return
	}

	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Dataplanes.Create(r.Context(), principal, dp)
	h.recordWrite("dataplane", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// deleteDataplane requires admin:all rather than a per-team check: unlike
// every other resource, DataplaneRepo has no GetByID (only GetByName), so
// there is no cheap way to learn the owning team from a bare id before
// deciding access the way the other handlers do. updateDataplane below
// shares the same constraint and the same fix.
func (h *handlers) deleteDataplane(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	if err := h.requireWriteAccess(ac, "dataplane", "delete_any", ""); err != nil {
		writeError(w, apierr.Forbidden("deleting a dataplane by id requires admin:all"))
		return
	}
	id, err := domain.ParseDataplaneID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierr.Validation("id", "must be a valid dataplane id"))
		return
	}

	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	err = h.Dataplanes.Delete(r.Context(), principal, id)
	h.recordWrite("dataplane", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// updateDataplane requires admin:all for the same reason deleteDataplane
// does: there is no GetByID to learn the owning team from a bare id first.
// Only GatewayHost/Description change (original_source's
// internal_api/dataplanes.rs update()); Name/Team are immutable since
// they're the node-key identity xDS resolution keys off of.
func (h *handlers) updateDataplane(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	if err := h.requireWriteAccess(ac, "dataplane", "update_any", ""); err != nil {
		writeError(w, apierr.Forbidden("updating a dataplane by id requires admin:all"))
		return
	}
	id, err := domain.ParseDataplaneID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierr.Validation("id", "must be a valid dataplane id"))
		return
	}
	var body dataplaneUpdateBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Dataplanes.Update(r.Context(), principal, id, body.GatewayHost, body.Description)
	h.recordWrite("dataplane", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
