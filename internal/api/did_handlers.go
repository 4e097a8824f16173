package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siprouted/siprouted/internal/database/models"
	"github.com/siprouted/siprouted/internal/normalize"
)

// didRequest is the JSON request body for creating/updating a DID. The
// literal prefix is derived from the regex server-side, never supplied by
// the client.
type didRequest struct {
	TenantID       int64  `json:"tenant_id"`
	IPBXID         int64  `json:"ipbx_id"`
	CarrierTrunkID int64  `json:"carrier_trunk_id"`
	DIDRegex       string `json:"did_regex"`
}

// didResponse is the JSON response for a single DID.
type didResponse struct {
	ID             int64  `json:"id"`
	TenantID       int64  `json:"tenant_id"`
	IPBXID         int64  `json:"ipbx_id"`
	CarrierTrunkID int64  `json:"carrier_trunk_id"`
	DIDRegex       string `json:"did_regex"`
	DIDPrefix      string `json:"did_prefix"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toDIDResponse(d *models.DID) didResponse {
	return didResponse{
		ID:             d.ID,
		TenantID:       d.TenantID,
		IPBXID:         d.IPBXID,
		CarrierTrunkID: d.CarrierTrunkID,
		DIDRegex:       d.DIDRegex,
		DIDPrefix:      d.DIDPrefix,
		CreatedAt:      d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      d.UpdatedAt.Format(time.RFC3339),
	}
}

func validateDIDRequest(req didRequest) string {
	if req.TenantID < 1 {
		return "tenant_id is required"
	}
	if req.IPBXID < 1 {
		return "ipbx_id is required"
	}
	if req.CarrierTrunkID < 1 {
		return "carrier_trunk_id is required"
	}
	if req.DIDRegex == "" {
		return "did_regex is required"
	}
	return validatePattern("did_regex", req.DIDRegex)
}

// checkDIDReferences verifies that the referenced IPBX and carrier trunk
// exist and belong to the DID's tenant.
func (s *Server) checkDIDReferences(r *http.Request, req didRequest) (string, error) {
	ipbx, err := s.repos.IPBX.GetByID(r.Context(), req.IPBXID)
	if err != nil {
		return "", err
	}
	if ipbx == nil {
		return "ipbx not found", nil
	}
	if ipbx.TenantID != req.TenantID {
		return "ipbx belongs to another tenant", nil
	}
	trunk, err := s.repos.CarrierTrunks.GetByID(r.Context(), req.CarrierTrunkID)
	if err != nil {
		return "", err
	}
	if trunk == nil {
		return "carrier trunk not found", nil
	}
	return "", nil
}

// handleListDIDs returns DIDs with pagination.
func (s *Server) handleListDIDs(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	dids, err := s.repos.DIDs.List(r.Context(), pg.Offset, pg.Limit)
	if err != nil {
		slog.Error("list dids: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total, err := s.repos.DIDs.Count(r.Context())
	if err != nil {
		slog.Error("list dids: failed to count", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]didResponse, len(dids))
	for i := range dids {
		items[i] = toDIDResponse(&dids[i])
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}

// handleCreateDID creates a new DID. DIDPrefix is recomputed from the regex
// so the stored prefix can never disagree with the pattern.
func (s *Server) handleCreateDID(w http.ResponseWriter, r *http.Request) {
	var req didRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateDIDRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	refMsg, err := s.checkDIDReferences(r, req)
	if err != nil {
		slog.Error("create did: failed to query references", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if refMsg != "" {
		writeError(w, http.StatusBadRequest, refMsg)
		return
	}

	did := &models.DID{
		TenantID:       req.TenantID,
		IPBXID:         req.IPBXID,
		CarrierTrunkID: req.CarrierTrunkID,
		DIDRegex:       req.DIDRegex,
		DIDPrefix:      normalize.MatchPrefix(req.DIDRegex),
	}
	if err := s.repos.DIDs.Create(r.Context(), did); err != nil {
		slog.Error("create did: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.repos.DIDs.GetByID(r.Context(), did.ID)
	if err != nil || created == nil {
		slog.Error("create did: failed to re-fetch", "error", err, "did_id", did.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.matcher.InvalidatePatterns()

	slog.Info("did created", "did_id", created.ID, "did_regex", created.DIDRegex, "tenant_id", created.TenantID)
	writeJSON(w, http.StatusCreated, toDIDResponse(created))
}

// handleGetDID returns a single DID by ID.
func (s *Server) handleGetDID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid did id")
		return
	}

	did, err := s.repos.DIDs.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("get did: failed to query", "error", err, "did_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if did == nil {
		writeError(w, http.StatusNotFound, "did not found")
		return
	}

	writeJSON(w, http.StatusOK, toDIDResponse(did))
}

// handleUpdateDID updates an existing DID.
func (s *Server) handleUpdateDID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid did id")
		return
	}

	existing, err := s.repos.DIDs.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("update did: failed to query", "error", err, "did_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "did not found")
		return
	}

	var req didRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateDIDRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	refMsg, err := s.checkDIDReferences(r, req)
	if err != nil {
		slog.Error("update did: failed to query references", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if refMsg != "" {
		writeError(w, http.StatusBadRequest, refMsg)
		return
	}

	existing.TenantID = req.TenantID
	existing.IPBXID = req.IPBXID
	existing.CarrierTrunkID = req.CarrierTrunkID
	existing.DIDRegex = req.DIDRegex
	existing.DIDPrefix = normalize.MatchPrefix(req.DIDRegex)

	if err := s.repos.DIDs.Update(r.Context(), existing); err != nil {
		slog.Error("update did: failed to update", "error", err, "did_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	updated, err := s.repos.DIDs.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		slog.Error("update did: failed to re-fetch", "error", err, "did_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.matcher.InvalidatePatterns()

	writeJSON(w, http.StatusOK, toDIDResponse(updated))
}

// handleDeleteDID deletes a DID.
func (s *Server) handleDeleteDID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid did id")
		return
	}

	if err := s.repos.DIDs.Delete(r.Context(), id); err != nil {
		slog.Error("delete did: failed to delete", "error", err, "did_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.matcher.InvalidatePatterns()

	slog.Info("did deleted", "did_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
