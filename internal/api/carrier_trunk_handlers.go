package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siprouted/siprouted/internal/database/models"
)

// carrierTrunkRequest is the JSON request body for creating/updating a
// carrier trunk.
type carrierTrunkRequest struct {
	CarrierID              int64  `json:"carrier_id"`
	Name                   string `json:"name"`
	SIPProxy               string `json:"sip_proxy"`
	SIPProxyPort           int    `json:"sip_proxy_port"`
	IPAddress              string `json:"ip_address"`
	Registered             *bool  `json:"registered"`
	AuthUsername           string `json:"auth_username"`
	AuthPassword           string `json:"auth_password"`
	Realm                  string `json:"realm"`
	RegistrarProxy         string `json:"registrar_proxy"`
	FromDomain             string `json:"from_domain"`
	ExpireSeconds          int    `json:"expire_seconds"`
	RetrySeconds           int    `json:"retry_seconds"`
	NormalizationProfileID *int64 `json:"normalization_profile_id"`
}

// carrierTrunkResponse is the JSON response for a single carrier trunk.
// The auth password is never returned.
type carrierTrunkResponse struct {
	ID                     int64  `json:"id"`
	CarrierID              int64  `json:"carrier_id"`
	Name                   string `json:"name"`
	SIPProxy               string `json:"sip_proxy"`
	SIPProxyPort           int    `json:"sip_proxy_port"`
	IPAddress              string `json:"ip_address"`
	Registered             bool   `json:"registered"`
	AuthUsername           string `json:"auth_username"`
	Realm                  string `json:"realm"`
	RegistrarProxy         string `json:"registrar_proxy"`
	FromDomain             string `json:"from_domain"`
	ExpireSeconds          int    `json:"expire_seconds"`
	RetrySeconds           int    `json:"retry_seconds"`
	NormalizationProfileID *int64 `json:"normalization_profile_id"`
	CreatedAt              string `json:"created_at"`
	UpdatedAt              string `json:"updated_at"`
}

func toCarrierTrunkResponse(t *models.CarrierTrunk) carrierTrunkResponse {
	return carrierTrunkResponse{
		ID:                     t.ID,
		CarrierID:              t.CarrierID,
		Name:                   t.Name,
		SIPProxy:               t.SIPProxy,
		SIPProxyPort:           t.SIPProxyPort,
		IPAddress:              t.IPAddress,
		Registered:             t.Registered,
		AuthUsername:           t.AuthUsername,
		Realm:                  t.Realm,
		RegistrarProxy:         t.RegistrarProxy,
		FromDomain:             t.FromDomain,
		ExpireSeconds:          t.ExpireSeconds,
		RetrySeconds:           t.RetrySeconds,
		NormalizationProfileID: t.NormalizationProfileID,
		CreatedAt:              t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:              t.UpdatedAt.Format(time.RFC3339),
	}
}

func validateCarrierTrunkRequest(req carrierTrunkRequest) string {
	if req.CarrierID < 1 {
		return "carrier_id is required"
	}
	if errMsg := validateRequiredStringLen("name", req.Name, maxNameLen); errMsg != "" {
		return errMsg
	}
	if errMsg := validateRequiredStringLen("sip_proxy", req.SIPProxy, maxHostLen); errMsg != "" {
		return errMsg
	}
	if req.SIPProxyPort < 0 || req.SIPProxyPort > 65535 {
		return "invalid sip_proxy_port"
	}
	return ""
}

// checkCarrierTrunkReferences verifies that the referenced carrier and
// normalization profile exist.
func (s *Server) checkCarrierTrunkReferences(r *http.Request, req carrierTrunkRequest) (string, error) {
	carrier, err := s.repos.Carriers.GetByID(r.Context(), req.CarrierID)
	if err != nil {
		return "", err
	}
	if carrier == nil {
		return "carrier not found", nil
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

// handleListCarrierTrunks returns carrier trunks with pagination.
func (s *Server) handleListCarrierTrunks(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	trunks, err := s.repos.CarrierTrunks.List(r.Context(), pg.Offset, pg.Limit)
	if err != nil {
		slog.Error("list carrier trunks: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total, err := s.repos.CarrierTrunks.Count(r.Context())
	if err != nil {
		slog.Error("list carrier trunks: failed to count", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]carrierTrunkResponse, len(trunks))
	for i := range trunks {
		items[i] = toCarrierTrunkResponse(&trunks[i])
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}

// handleCreateCarrierTrunk creates a new carrier trunk.
func (s *Server) handleCreateCarrierTrunk(w http.ResponseWriter, r *http.Request) {
	var req carrierTrunkRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateCarrierTrunkRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	refMsg, err := s.checkCarrierTrunkReferences(r, req)
	if err != nil {
		slog.Error("create carrier trunk: failed to query references", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if refMsg != "" {
		writeError(w, http.StatusBadRequest, refMsg)
		return
	}

	existing, err := s.repos.CarrierTrunks.GetByName(r.Context(), req.Name)
	if err != nil {
		slog.Error("create carrier trunk: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "carrier trunk name already in use")
		return
	}

	registered := false
	if req.Registered != nil {
		registered = *req.Registered
	}

	trunk := &models.CarrierTrunk{
		CarrierID:              req.CarrierID,
		Name:                   req.Name,
		SIPProxy:               req.SIPProxy,
		SIPProxyPort:           req.SIPProxyPort,
		IPAddress:              req.IPAddress,
		Registered:             registered,
		AuthUsername:           req.AuthUsername,
		AuthPassword:           req.AuthPassword,
		Realm:                  req.Realm,
		RegistrarProxy:         req.RegistrarProxy,
		FromDomain:             req.FromDomain,
		ExpireSeconds:          req.ExpireSeconds,
		RetrySeconds:           req.RetrySeconds,
		NormalizationProfileID: req.NormalizationProfileID,
	}
	if trunk.SIPProxyPort == 0 {
		trunk.SIPProxyPort = 5060
	}

	if err := s.repos.CarrierTrunks.Create(r.Context(), trunk); err != nil {
		slog.Error("create carrier trunk: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.repos.CarrierTrunks.GetByID(r.Context(), trunk.ID)
	if err != nil || created == nil {
		slog.Error("create carrier trunk: failed to re-fetch", "error", err, "carrier_trunk_id", trunk.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("carrier trunk created", "carrier_trunk_id", created.ID, "name", created.Name, "carrier_id", created.CarrierID)
	writeJSON(w, http.StatusCreated, toCarrierTrunkResponse(created))
}

// handleGetCarrierTrunk returns a single carrier trunk by ID.
func (s *Server) handleGetCarrierTrunk(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid carrier trunk id")
		return
	}

	trunk, err := s.repos.CarrierTrunks.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("get carrier trunk: failed to query", "error", err, "carrier_trunk_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if trunk == nil {
		writeError(w, http.StatusNotFound, "carrier trunk not found")
		return
	}

	writeJSON(w, http.StatusOK, toCarrierTrunkResponse(trunk))
}

// handleUpdateCarrierTrunk updates an existing carrier trunk. The auth
// password keeps its stored value when the request leaves it empty.
func (s *Server) handleUpdateCarrierTrunk(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid carrier trunk id")
		return
	}

	existing, err := s.repos.CarrierTrunks.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("update carrier trunk: failed to query", "error", err, "carrier_trunk_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "carrier trunk not found")
		return
	}

	var req carrierTrunkRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateCarrierTrunkRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	refMsg, err := s.checkCarrierTrunkReferences(r, req)
	if err != nil {
		slog.Error("update carrier trunk: failed to query references", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if refMsg != "" {
		writeError(w, http.StatusBadRequest, refMsg)
		return
	}

	if req.Name != existing.Name {
		other, err := s.repos.CarrierTrunks.GetByName(r.Context(), req.Name)
		if err != nil {
			slog.Error("update carrier trunk: failed to query", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if other != nil {
			writeError(w, http.StatusConflict, "carrier trunk name already in use")
			return
		}
	}

	existing.CarrierID = req.CarrierID
	existing.Name = req.Name
	existing.SIPProxy = req.SIPProxy
	existing.IPAddress = req.IPAddress
	existing.AuthUsername = req.AuthUsername
	existing.Realm = req.Realm
	existing.RegistrarProxy = req.RegistrarProxy
	existing.FromDomain = req.FromDomain
	existing.ExpireSeconds = req.ExpireSeconds
	existing.RetrySeconds = req.RetrySeconds
	existing.NormalizationProfileID = req.NormalizationProfileID
	if req.SIPProxyPort != 0 {
		existing.SIPProxyPort = req.SIPProxyPort
	}
	if req.Registered != nil {
		existing.Registered = *req.Registered
	}
	if req.AuthPassword != "" {
		existing.AuthPassword = req.AuthPassword
	}

	if err := s.repos.CarrierTrunks.Update(r.Context(), existing); err != nil {
		slog.Error("update carrier trunk: failed to update", "error", err, "carrier_trunk_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	updated, err := s.repos.CarrierTrunks.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		slog.Error("update carrier trunk: failed to re-fetch", "error", err, "carrier_trunk_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toCarrierTrunkResponse(updated))
}

// handleDeleteCarrierTrunk deletes a carrier trunk.
func (s *Server) handleDeleteCarrierTrunk(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid carrier trunk id")
		return
	}

	if err := s.repos.CarrierTrunks.Delete(r.Context(), id); err != nil {
		slog.Error("delete carrier trunk: failed to delete", "error", err, "carrier_trunk_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("carrier trunk deleted", "carrier_trunk_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
