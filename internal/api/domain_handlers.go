package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siprouted/siprouted/internal/database/models"
)

// domainRequest is the JSON request body for creating/updating a domain.
type domainRequest struct {
	Domain   string `json:"domain"`
	TenantID int64  `json:"tenant_id"`
}

// domainResponse is the JSON response for a single domain.
type domainResponse struct {
	ID        int64  `json:"id"`
	Domain    string `json:"domain"`
	TenantID  int64  `json:"tenant_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toDomainResponse(d *models.Domain) domainResponse {
	return domainResponse{
		ID:        d.ID,
		Domain:    d.Domain,
		TenantID:  d.TenantID,
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
		UpdatedAt: d.UpdatedAt.Format(time.RFC3339),
	}
}

func validateDomainRequest(req domainRequest) string {
	if errMsg := validateDomain(req.Domain); errMsg != "" {
		return errMsg
	}
	if req.TenantID < 1 {
		return "tenant_id is required"
	}
	return ""
}

// handleListDomains returns domains with pagination.
func (s *Server) handleListDomains(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	domains, err := s.repos.Domains.List(r.Context(), pg.Offset, pg.Limit)
	if err != nil {
		slog.Error("list domains: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total, err := s.repos.Domains.Count(r.Context())
	if err != nil {
		slog.Error("list domains: failed to count", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]domainResponse, len(domains))
	for i := range domains {
		items[i] = toDomainResponse(&domains[i])
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}

// handleCreateDomain creates a new domain. Domain names are unique across
// the whole system, not per tenant.
func (s *Server) handleCreateDomain(w http.ResponseWriter, r *http.Request) {
	var req domainRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateDomainRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	tenant, err := s.repos.Tenants.GetByID(r.Context(), req.TenantID)
	if err != nil {
		slog.Error("create domain: failed to query tenant", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tenant == nil {
		writeError(w, http.StatusBadRequest, "tenant not found")
		return
	}

	existing, err := s.repos.Domains.GetByDomain(r.Context(), req.Domain)
	if err != nil {
		slog.Error("create domain: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "domain already in use")
		return
	}

	domain := &models.Domain{Domain: req.Domain, TenantID: req.TenantID}
	if err := s.repos.Domains.Create(r.Context(), domain); err != nil {
		slog.Error("create domain: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.repos.Domains.GetByID(r.Context(), domain.ID)
	if err != nil || created == nil {
		slog.Error("create domain: failed to re-fetch", "error", err, "domain_id", domain.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("domain created", "domain_id", created.ID, "domain", created.Domain, "tenant_id", created.TenantID)
	writeJSON(w, http.StatusCreated, toDomainResponse(created))
}

// handleGetDomain returns a single domain by ID.
func (s *Server) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid domain id")
		return
	}

	domain, err := s.repos.Domains.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("get domain: failed to query", "error", err, "domain_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if domain == nil {
		writeError(w, http.StatusNotFound, "domain not found")
		return
	}

	writeJSON(w, http.StatusOK, toDomainResponse(domain))
}

// handleUpdateDomain updates an existing domain.
func (s *Server) handleUpdateDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid domain id")
		return
	}

	existing, err := s.repos.Domains.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("update domain: failed to query", "error", err, "domain_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "domain not found")
		return
	}

	var req domainRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateDomainRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if req.Domain != existing.Domain {
		other, err := s.repos.Domains.GetByDomain(r.Context(), req.Domain)
		if err != nil {
			slog.Error("update domain: failed to query", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if other != nil {
			writeError(w, http.StatusConflict, "domain already in use")
			return
		}
	}

	existing.Domain = req.Domain
	existing.TenantID = req.TenantID
	if err := s.repos.Domains.Update(r.Context(), existing); err != nil {
		slog.Error("update domain: failed to update", "error", err, "domain_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	updated, err := s.repos.Domains.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		slog.Error("update domain: failed to re-fetch", "error", err, "domain_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toDomainResponse(updated))
}

// handleDeleteDomain deletes a domain.
func (s *Server) handleDeleteDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid domain id")
		return
	}

	if err := s.repos.Domains.Delete(r.Context(), id); err != nil {
		slog.Error("delete domain: failed to delete", "error", err, "domain_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("domain deleted", "domain_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
