package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siprouted/siprouted/internal/database/models"
)

// carrierRequest is the JSON request body for creating/updating a carrier.
type carrierRequest struct {
	Name     string `json:"name"`
	TenantID int64  `json:"tenant_id"`
}

// carrierResponse is the JSON response for a single carrier.
type carrierResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	TenantID  int64  `json:"tenant_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toCarrierResponse(c *models.Carrier) carrierResponse {
	return carrierResponse{
		ID:        c.ID,
		Name:      c.Name,
		TenantID:  c.TenantID,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func validateCarrierRequest(req carrierRequest) string {
	if errMsg := validateRequiredStringLen("name", req.Name, maxNameLen); errMsg != "" {
		return errMsg
	}
	if req.TenantID < 1 {
		return "tenant_id is required"
	}
	return ""
}

// handleListCarriers returns carriers with pagination.
func (s *Server) handleListCarriers(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	carriers, err := s.repos.Carriers.List(r.Context(), pg.Offset, pg.Limit)
	if err != nil {
		slog.Error("list carriers: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total, err := s.repos.Carriers.Count(r.Context())
	if err != nil {
		slog.Error("list carriers: failed to count", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]carrierResponse, len(carriers))
	for i := range carriers {
		items[i] = toCarrierResponse(&carriers[i])
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}

// handleCreateCarrier creates a new carrier.
func (s *Server) handleCreateCarrier(w http.ResponseWriter, r *http.Request) {
	var req carrierRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateCarrierRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	tenant, err := s.repos.Tenants.GetByID(r.Context(), req.TenantID)
	if err != nil {
		slog.Error("create carrier: failed to query tenant", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tenant == nil {
		writeError(w, http.StatusBadRequest, "tenant not found")
		return
	}

	carrier := &models.Carrier{Name: req.Name, TenantID: req.TenantID}
	if err := s.repos.Carriers.Create(r.Context(), carrier); err != nil {
		slog.Error("create carrier: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.repos.Carriers.GetByID(r.Context(), carrier.ID)
	if err != nil || created == nil {
		slog.Error("create carrier: failed to re-fetch", "error", err, "carrier_id", carrier.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("carrier created", "carrier_id", created.ID, "name", created.Name, "tenant_id", created.TenantID)
	writeJSON(w, http.StatusCreated, toCarrierResponse(created))
}

// handleGetCarrier returns a single carrier by ID.
func (s *Server) handleGetCarrier(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid carrier id")
		return
	}

	carrier, err := s.repos.Carriers.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("get carrier: failed to query", "error", err, "carrier_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if carrier == nil {
		writeError(w, http.StatusNotFound, "carrier not found")
		return
	}

	writeJSON(w, http.StatusOK, toCarrierResponse(carrier))
}

// handleUpdateCarrier updates an existing carrier.
func (s *Server) handleUpdateCarrier(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid carrier id")
		return
	}

	existing, err := s.repos.Carriers.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("update carrier: failed to query", "error", err, "carrier_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "carrier not found")
		return
	}

	var req carrierRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateCarrierRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	existing.Name = req.Name
	existing.TenantID = req.TenantID
	if err := s.repos.Carriers.Update(r.Context(), existing); err != nil {
		slog.Error("update carrier: failed to update", "error", err, "carrier_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	updated, err := s.repos.Carriers.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		slog.Error("update carrier: failed to re-fetch", "error", err, "carrier_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toCarrierResponse(updated))
}

// handleDeleteCarrier deletes a carrier.
func (s *Server) handleDeleteCarrier(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid carrier id")
		return
	}

	if err := s.repos.Carriers.Delete(r.Context(), id); err != nil {
		slog.Error("delete carrier: failed to delete", "error", err, "carrier_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("carrier deleted", "carrier_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
