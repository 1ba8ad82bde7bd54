package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flexcp/flexcp/internal/apierr"
	"github.com/flexcp/flexcp/internal/domain"
)

type filterBody struct {
	Name   string          `json:"name"`
	Team   string          `json:"team"`
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

type installationBody struct {
	ListenerName string `json:"listenerName"`
	Order        int    `json:"order"`
}

func (h *handlers) listFilters(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	page, err := paginationFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	fs, err := h.Filters.List(r.Context(), allowedTeams(ac), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

func (h *handlers) getFilter(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	id, err := domain.ParseFilterID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierr.Validation("id", "must be a valid filter id"))
		return
	}
	f, err := h.Filters.GetByID(r.Context(), id, allowedTeams(ac))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handlers) createFilter(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	var body filterBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	team, err := domain.ParseTeamID(body.Team)
	if err != nil {
		writeError(w, apierr.Validation("team", "must be a valid team id"))
		return
	}
	if err := h.requireWriteAccess(ac, "filter", "create", body.Team); err != nil {
		writeError(w, err)
		return
	}

	f, err := domain.NewFilter(body.Name, team, domain.FilterType(body.Type), body.Config)
	if err != nil {
		writeError(w, err)
		return
	}

	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Filters.Create(r.Context(), principal, f)
	h.recordWrite("filter", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *handlers) updateFilter(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	id, err := domain.ParseFilterID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierr.Validation("id", "must be a valid filter id"))
		return
	}
	existing, err := h.Filters.GetByID(r.Context(), id, allowedTeams(ac))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireWriteAccess(ac, "filter", "update", existing.Team.String()); err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Config json.RawMessage `json:"config"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := domain.ValidateFilterConfig(existing.Type, body.Config); err != nil {
		writeError(w, err)
		return
	}

	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Filters.Update(r.Context(), principal, id, body.Config)
	h.recordWrite("filter", err)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.Propagator != nil {
		_ = h.Propagator.OnTeamResourceChanged(r.Context(), existing.Team)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) deleteFilter(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	id, err := domain.ParseFilterID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierr.Validation("id", "must be a valid filter id"))
		return
	}
	existing, err := h.Filters.GetByID(r.Context(), id, allowedTeams(ac))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireWriteAccess(ac, "filter", "delete", existing.Team.String()); err != nil {
		writeError(w, err)
		return
	}
	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	err = h.Filters.Delete(r.Context(), principal, id)
	h.recordWrite("filter", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// attachFilter installs a Filter into a Listener's HCM filter chain at a
// given order (spec 6.1: "attach to a listener, {listenerName, order}").
func (h *handlers) attachFilter(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	id, err := domain.ParseFilterID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierr.Validation("id", "must be a valid filter id"))
		return
	}
	filter, err := h.Filters.GetByID(r.Context(), id, allowedTeams(ac))
	if err != nil {
		writeError(w, err)
		return
	}

	var body installationBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	listener, err := h.listenerByName(r.Context(), body.ListenerName, ac)
	if err != nil {
		writeError(w, err)
		return
	}
	if listener.Team != filter.Team {
		writeError(w, apierr.Validation("listenerName", "listener must belong to the same team as the filter"))
		return
	}
	if err := h.requireWriteAccess(ac, "filter", "attach", filter.Team.String()); err != nil {
		writeError(w, err)
		return
	}

	principal, err := principalID(ac)
	if err != nil {
		writeError(w, err)
		return
	}
	err = h.Filters.Attach(r.Context(), principal, id, listener.ID, body.Order)
	h.recordWrite("filter_attachment", err)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Propagator != nil {
		_ = h.Propagator.OnTeamResourceChanged(r.Context(), filter.Team)
	}
	writeJSON(w, http.StatusCreated, nil)
}
