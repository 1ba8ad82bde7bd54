package rest

import "net/http"

// login, issueToken, and createTeam are the external collaborator surfaces
// spec 1 calls out explicitly: "session/password management, the OpenAPI
// importer itself, and the eventual notification/alerting layer are all
// external collaborators; the core only specifies the contract shape."
// These stubs exist so the route table in spec 6.1 has somewhere to land;
// a real deployment fronts them with its own identity provider.

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, errBody{Error: "login is handled by the deployment's identity provider"})
}

func (h *handlers) issueToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, errBody{Error: "token issuance is handled by the deployment's identity provider"})
}

func (h *handlers) createTeam(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	if err := h.requireWriteAccess(ac, "team", "create", ""); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNotImplemented, errBody{Error: "team/org provisioning is out of scope for the core (spec 1)"})
}

func (h *handlers) importOpenAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, errBody{Error: "the OpenAPI importer is an external collaborator (spec 1); the core only records RecordImport once it runs"})
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
