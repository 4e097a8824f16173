package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siprouted/siprouted/internal/database/models"
)

// tenantRequest is the JSON request body for creating/updating a tenant.
type tenantRequest struct {
	Name string `json:"name"`
}

// tenantResponse is the JSON response for a single tenant.
type tenantResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toTenantResponse(t *models.Tenant) tenantResponse {
	return tenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
		UpdatedAt: t.UpdatedAt.Format(time.RFC3339),
	}
}

func validateTenantRequest(req tenantRequest) string {
	return validateRequiredStringLen("name", req.Name, maxNameLen)
}

// handleListTenants returns tenants with pagination.
func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	tenants, err := s.repos.Tenants.List(r.Context(), pg.Offset, pg.Limit)
	if err != nil {
		slog.Error("list tenants: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total, err := s.repos.Tenants.Count(r.Context())
	if err != nil {
		slog.Error("list tenants: failed to count", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]tenantResponse, len(tenants))
	for i := range tenants {
		items[i] = toTenantResponse(&tenants[i])
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}

// handleCreateTenant creates a new tenant.
func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateTenantRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	existing, err := s.repos.Tenants.GetByName(r.Context(), req.Name)
	if err != nil {
		slog.Error("create tenant: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "tenant name already in use")
		return
	}

	tenant := &models.Tenant{Name: req.Name}
	if err := s.repos.Tenants.Create(r.Context(), tenant); err != nil {
		slog.Error("create tenant: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.repos.Tenants.GetByID(r.Context(), tenant.ID)
	if err != nil || created == nil {
		slog.Error("create tenant: failed to re-fetch", "error", err, "tenant_id", tenant.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("tenant created", "tenant_id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, toTenantResponse(created))
}

// handleGetTenant returns a single tenant by ID.
func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	tenant, err := s.repos.Tenants.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("get tenant: failed to query", "error", err, "tenant_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

// handleUpdateTenant updates an existing tenant.
func (s *Server) handleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	existing, err := s.repos.Tenants.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("update tenant: failed to query", "error", err, "tenant_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	var req tenantRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateTenantRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	existing.Name = req.Name
	if err := s.repos.Tenants.Update(r.Context(), existing); err != nil {
		slog.Error("update tenant: failed to update", "error", err, "tenant_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	updated, err := s.repos.Tenants.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		slog.Error("update tenant: failed to re-fetch", "error", err, "tenant_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(updated))
}

// handleDeleteTenant deletes a tenant.
func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	if err := s.repos.Tenants.Delete(r.Context(), id); err != nil {
		slog.Error("delete tenant: failed to delete", "error", err, "tenant_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("tenant deleted", "tenant_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
