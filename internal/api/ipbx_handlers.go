package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siprouted/siprouted/internal/database/models"
)

// ipbxRequest is the JSON request body for creating/updating an IPBX.
type ipbxRequest struct {
	TenantID               int64  `json:"tenant_id"`
	DomainID               *int64 `json:"domain_id"`
	Customer               int64  `json:"customer"`
	IPFqdn                 string `json:"ip_fqdn"`
	Port                   int    `json:"port"`
	Registered             *bool  `json:"registered"`
	Username               string `json:"username"`
	Password               string `json:"password"`
	PasswordHA1            string `json:"password_ha1"`
	PasswordHA1B           string `json:"password_ha1b"`
	NormalizationProfileID *int64 `json:"normalization_profile_id"`
}

// ipbxResponse is the JSON response for a single IPBX. Credentials are never
// returned.
type ipbxResponse struct {
	ID                     int64  `json:"id"`
	TenantID               int64  `json:"tenant_id"`
	DomainID               *int64 `json:"domain_id"`
	Customer               int64  `json:"customer"`
	IPFqdn                 string `json:"ip_fqdn"`
	Port                   int    `json:"port"`
	Registered             bool   `json:"registered"`
	Username               string `json:"username"`
	NormalizationProfileID *int64 `json:"normalization_profile_id"`
	CreatedAt              string `json:"created_at"`
	UpdatedAt              string `json:"updated_at"`
}

func toIPBXResponse(p *models.IPBX) ipbxResponse {
	return ipbxResponse{
		ID:                     p.ID,
		TenantID:               p.TenantID,
		DomainID:               p.DomainID,
		Customer:               p.Customer,
		IPFqdn:                 p.IPFqdn,
		Port:                   p.Port,
		Registered:             p.Registered,
		Username:               p.Username,
		NormalizationProfileID: p.NormalizationProfileID,
		CreatedAt:              p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:              p.UpdatedAt.Format(time.RFC3339),
	}
}

func validateIPBXRequest(req ipbxRequest) string {
	if req.TenantID < 1 {
		return "tenant_id is required"
	}
	if errMsg := validateRequiredStringLen("ip_fqdn", req.IPFqdn, maxHostLen); errMsg != "" {
		return errMsg
	}
	if req.Port < 0 || req.Port > 65535 {
		return "invalid port"
	}
	if errMsg := validateStringLen("username", req.Username, maxNameLen); errMsg != "" {
		return errMsg
	}
	return ""
}

// checkIPBXReferences verifies that the referenced domain and normalization
// profile exist and that a referenced domain belongs to the same tenant.
func (s *Server) checkIPBXReferences(r *http.Request, req ipbxRequest) (string, error) {
	if req.DomainID != nil {
		domain, err := s.repos.Domains.GetByID(r.Context(), *req.DomainID)
		if err != nil {
			return "", err
		}
		if domain == nil {
			return "domain not found", nil
		}
		if domain.TenantID != req.TenantID {
			return "domain belongs to another tenant", nil
		}
	}
	if req.NormalizationProfileID != nil {
		profile, err := s.repos.Profiles.GetByID(r.Context(), *req.NormalizationProfileID)
		if err != nil {
			return "", err
		}
		if profile == nil {
			return "normalization profile not found", nil
		}
	}
	return "", nil
}

// handleListIPBX returns IPBX endpoints with pagination.
func (s *Server) handleListIPBX(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	rows, err := s.repos.IPBX.List(r.Context(), pg.Offset, pg.Limit)
	if err != nil {
		slog.Error("list ipbx: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total, err := s.repos.IPBX.Count(r.Context())
	if err != nil {
		slog.Error("list ipbx: failed to count", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]ipbxResponse, len(rows))
	for i := range rows {
		items[i] = toIPBXResponse(&rows[i])
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}

// handleCreateIPBX creates a new IPBX endpoint.
func (s *Server) handleCreateIPBX(w http.ResponseWriter, r *http.Request) {
	var req ipbxRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateIPBXRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	refMsg, err := s.checkIPBXReferences(r, req)
	if err != nil {
		slog.Error("create ipbx: failed to query references", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if refMsg != "" {
		writeError(w, http.StatusBadRequest, refMsg)
		return
	}

	registered := false
	if req.Registered != nil {
		registered = *req.Registered
	}

	ipbx := &models.IPBX{
		TenantID:               req.TenantID,
		DomainID:               req.DomainID,
		Customer:               req.Customer,
		IPFqdn:                 req.IPFqdn,
		Port:                   req.Port,
		Registered:             registered,
		Username:               req.Username,
		Password:               req.Password,
		PasswordHA1:            req.PasswordHA1,
		PasswordHA1B:           req.PasswordHA1B,
		NormalizationProfileID: req.NormalizationProfileID,
	}
	if ipbx.Port == 0 {
		ipbx.Port = 5060
	}

	if err := s.repos.IPBX.Create(r.Context(), ipbx); err != nil {
		slog.Error("create ipbx: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.repos.IPBX.GetByID(r.Context(), ipbx.ID)
	if err != nil || created == nil {
		slog.Error("create ipbx: failed to re-fetch", "error", err, "ipbx_id", ipbx.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("ipbx created", "ipbx_id", created.ID, "ip_fqdn", created.IPFqdn, "tenant_id", created.TenantID)
	writeJSON(w, http.StatusCreated, toIPBXResponse(created))
}

// handleGetIPBX returns a single IPBX by ID.
func (s *Server) handleGetIPBX(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ipbx id")
		return
	}

	ipbx, err := s.repos.IPBX.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("get ipbx: failed to query", "error", err, "ipbx_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ipbx == nil {
		writeError(w, http.StatusNotFound, "ipbx not found")
		return
	}

	writeJSON(w, http.StatusOK, toIPBXResponse(ipbx))
}

// handleUpdateIPBX updates an existing IPBX. Credential fields keep their
// stored value when the request leaves them empty.
func (s *Server) handleUpdateIPBX(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ipbx id")
		return
	}

	existing, err := s.repos.IPBX.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("update ipbx: failed to query", "error", err, "ipbx_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "ipbx not found")
		return
	}

	var req ipbxRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateIPBXRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	refMsg, err := s.checkIPBXReferences(r, req)
	if err != nil {
		slog.Error("update ipbx: failed to query references", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if refMsg != "" {
		writeError(w, http.StatusBadRequest, refMsg)
		return
	}

	existing.TenantID = req.TenantID
	existing.DomainID = req.DomainID
	existing.Customer = req.Customer
	existing.IPFqdn = req.IPFqdn
	existing.NormalizationProfileID = req.NormalizationProfileID
	existing.Username = req.Username
	if req.Port != 0 {
		existing.Port = req.Port
	}
	if req.Registered != nil {
		existing.Registered = *req.Registered
	}
	if req.Password != "" {
		existing.Password = req.Password
	}
	if req.PasswordHA1 != "" {
		existing.PasswordHA1 = req.PasswordHA1
	}
	if req.PasswordHA1B != "" {
		existing.PasswordHA1B = req.PasswordHA1B
	}

	if err := s.repos.IPBX.Update(r.Context(), existing); err != nil {
		slog.Error("update ipbx: failed to update", "error", err, "ipbx_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	updated, err := s.repos.IPBX.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		slog.Error("update ipbx: failed to re-fetch", "error", err, "ipbx_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toIPBXResponse(updated))
}

// handleDeleteIPBX deletes an IPBX.
func (s *Server) handleDeleteIPBX(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ipbx id")
		return
	}

	if err := s.repos.IPBX.Delete(r.Context(), id); err != nil {
		slog.Error("delete ipbx: failed to delete", "error", err, "ipbx_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("ipbx deleted", "ipbx_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
