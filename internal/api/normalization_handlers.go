package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siprouted/siprouted/internal/database/models"
	"github.com/siprouted/siprouted/internal/normalize"
)

// profileRequest is the JSON request body for creating/updating a
// normalization profile.
type profileRequest struct {
	TenantID             int64  `json:"tenant_id"`
	Name                 string `json:"name"`
	CountryCode          string `json:"country_code"`
	AreaCode             string `json:"area_code"`
	IntlPrefix           string `json:"intl_prefix"`
	LdPrefix             string `json:"ld_prefix"`
	AlwaysLd             bool   `json:"always_ld"`
	AlwaysIntlPrefixPlus bool   `json:"always_intl_prefix_plus"`
}

// profileResponse is the JSON response for a single normalization profile.
type profileResponse struct {
	ID                   int64  `json:"id"`
	TenantID             int64  `json:"tenant_id"`
	Name                 string `json:"name"`
	CountryCode          string `json:"country_code"`
	AreaCode             string `json:"area_code"`
	IntlPrefix           string `json:"intl_prefix"`
	LdPrefix             string `json:"ld_prefix"`
	AlwaysLd             bool   `json:"always_ld"`
	AlwaysIntlPrefixPlus bool   `json:"always_intl_prefix_plus"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

func toProfileResponse(p *models.NormalizationProfile) profileResponse {
	return profileResponse{
		ID:                   p.ID,
		TenantID:             p.TenantID,
		Name:                 p.Name,
		CountryCode:          p.CountryCode,
		AreaCode:             p.AreaCode,
		IntlPrefix:           p.IntlPrefix,
		LdPrefix:             p.LdPrefix,
		AlwaysLd:             p.AlwaysLd,
		AlwaysIntlPrefixPlus: p.AlwaysIntlPrefixPlus,
		CreatedAt:            p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            p.UpdatedAt.Format(time.RFC3339),
	}
}

func validateProfileRequest(req profileRequest) string {
	if req.TenantID < 1 {
		return "tenant_id is required"
	}
	return validateRequiredStringLen("name", req.Name, maxNameLen)
}

// handleListProfiles returns normalization profiles with pagination.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	profiles, err := s.repos.Profiles.List(r.Context(), pg.Offset, pg.Limit)
	if err != nil {
		slog.Error("list normalization profiles: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total, err := s.repos.Profiles.Count(r.Context())
	if err != nil {
		slog.Error("list normalization profiles: failed to count", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]profileResponse, len(profiles))
	for i := range profiles {
		items[i] = toProfileResponse(&profiles[i])
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}

// handleCreateProfile creates a new normalization profile.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateProfileRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	tenant, err := s.repos.Tenants.GetByID(r.Context(), req.TenantID)
	if err != nil {
		slog.Error("create normalization profile: failed to query tenant", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tenant == nil {
		writeError(w, http.StatusBadRequest, "tenant not found")
		return
	}

	profile := &models.NormalizationProfile{
		TenantID:             req.TenantID,
		Name:                 req.Name,
		CountryCode:          req.CountryCode,
		AreaCode:             req.AreaCode,
		IntlPrefix:           req.IntlPrefix,
		LdPrefix:             req.LdPrefix,
		AlwaysLd:             req.AlwaysLd,
		AlwaysIntlPrefixPlus: req.AlwaysIntlPrefixPlus,
	}
	if err := s.repos.Profiles.Create(r.Context(), profile); err != nil {
		slog.Error("create normalization profile: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.repos.Profiles.GetByID(r.Context(), profile.ID)
	if err != nil || created == nil {
		slog.Error("create normalization profile: failed to re-fetch", "error", err, "profile_id", profile.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("normalization profile created", "profile_id", created.ID, "name", created.Name, "tenant_id", created.TenantID)
	writeJSON(w, http.StatusCreated, toProfileResponse(created))
}

// handleGetProfile returns a single normalization profile by ID.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	profile, err := s.repos.Profiles.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("get normalization profile: failed to query", "error", err, "profile_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "normalization profile not found")
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// handleUpdateProfile updates an existing normalization profile.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	existing, err := s.repos.Profiles.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("update normalization profile: failed to query", "error", err, "profile_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "normalization profile not found")
		return
	}

	var req profileRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateProfileRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	existing.TenantID = req.TenantID
	existing.Name = req.Name
	existing.CountryCode = req.CountryCode
	existing.AreaCode = req.AreaCode
	existing.IntlPrefix = req.IntlPrefix
	existing.LdPrefix = req.LdPrefix
	existing.AlwaysLd = req.AlwaysLd
	existing.AlwaysIntlPrefixPlus = req.AlwaysIntlPrefixPlus

	if err := s.repos.Profiles.Update(r.Context(), existing); err != nil {
		slog.Error("update normalization profile: failed to update", "error", err, "profile_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	updated, err := s.repos.Profiles.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		slog.Error("update normalization profile: failed to re-fetch", "error", err, "profile_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(updated))
}

// handleDeleteProfile deletes a normalization profile and drops any compiled
// rule sets that referenced it.
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	if err := s.repos.Profiles.Delete(r.Context(), id); err != nil {
		slog.Error("delete normalization profile: failed to delete", "error", err, "profile_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.index.Invalidate()

	slog.Info("normalization profile deleted", "profile_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ruleRequest is the JSON request body for creating/updating a normalization
// rule. MatchPrefix is derived from MatchRegex server-side.
type ruleRequest struct {
	ProfileID    int64  `json:"profile_id"`
	RuleType     int    `json:"rule_type"`
	Priority     int    `json:"priority"`
	MatchRegex   string `json:"match_regex"`
	ReplaceRegex string `json:"replace_regex"`
}

// ruleResponse is the JSON response for a single normalization rule.
type ruleResponse struct {
	ID           int64  `json:"id"`
	ProfileID    int64  `json:"profile_id"`
	RuleType     int    `json:"rule_type"`
	Priority     int    `json:"priority"`
	MatchRegex   string `json:"match_regex"`
	MatchPrefix  string `json:"match_prefix"`
	ReplaceRegex string `json:"replace_regex"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func toRuleResponse(rule *models.NormalizationRule) ruleResponse {
	return ruleResponse{
		ID:           rule.ID,
		ProfileID:    rule.ProfileID,
		RuleType:     rule.RuleType,
		Priority:     rule.Priority,
		MatchRegex:   rule.MatchRegex,
		MatchPrefix:  rule.MatchPrefix,
		ReplaceRegex: rule.ReplaceRegex,
		CreatedAt:    rule.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    rule.UpdatedAt.Format(time.RFC3339),
	}
}

func validateRuleRequest(req ruleRequest) string {
	if req.ProfileID < 1 {
		return "profile_id is required"
	}
	if req.RuleType != models.RuleTypeLocalToE164 && req.RuleType != models.RuleTypeE164ToLocal {
		return "invalid rule_type"
	}
	if req.MatchRegex == "" {
		return "match_regex is required"
	}
	if errMsg := validatePattern("match_regex", req.MatchRegex); errMsg != "" {
		return errMsg
	}
	return validateStringLen("replace_regex", req.ReplaceRegex, maxRegexLen)
}

// handleListRules returns normalization rules with pagination.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	rules, err := s.repos.Rules.List(r.Context(), pg.Offset, pg.Limit)
	if err != nil {
		slog.Error("list normalization rules: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total, err := s.repos.Rules.Count(r.Context())
	if err != nil {
		slog.Error("list normalization rules: failed to count", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]ruleResponse, len(rules))
	for i := range rules {
		items[i] = toRuleResponse(&rules[i])
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}

// handleCreateRule creates a new normalization rule. MatchPrefix is
// recomputed from MatchRegex and the compiled rule sets are invalidated so
// routing picks up the new rule.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateRuleRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	profile, err := s.repos.Profiles.GetByID(r.Context(), req.ProfileID)
	if err != nil {
		slog.Error("create normalization rule: failed to query profile", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if profile == nil {
		writeError(w, http.StatusBadRequest, "normalization profile not found")
		return
	}

	rule := &models.NormalizationRule{
		ProfileID:    req.ProfileID,
		RuleType:     req.RuleType,
		Priority:     req.Priority,
		MatchRegex:   req.MatchRegex,
		MatchPrefix:  normalize.MatchPrefix(req.MatchRegex),
		ReplaceRegex: req.ReplaceRegex,
	}
	if err := s.repos.Rules.Create(r.Context(), rule); err != nil {
		slog.Error("create normalization rule: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.index.Invalidate()

	created, err := s.repos.Rules.GetByID(r.Context(), rule.ID)
	if err != nil || created == nil {
		slog.Error("create normalization rule: failed to re-fetch", "error", err, "rule_id", rule.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("normalization rule created", "rule_id", created.ID, "profile_id", created.ProfileID, "rule_type", created.RuleType)
	writeJSON(w, http.StatusCreated, toRuleResponse(created))
}

// handleGetRule returns a single normalization rule by ID.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	rule, err := s.repos.Rules.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("get normalization rule: failed to query", "error", err, "rule_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rule == nil {
		writeError(w, http.StatusNotFound, "normalization rule not found")
		return
	}

	writeJSON(w, http.StatusOK, toRuleResponse(rule))
}

// handleUpdateRule updates an existing normalization rule.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	existing, err := s.repos.Rules.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("update normalization rule: failed to query", "error", err, "rule_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "normalization rule not found")
		return
	}

	var req ruleRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateRuleRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	existing.ProfileID = req.ProfileID
	existing.RuleType = req.RuleType
	existing.Priority = req.Priority
	existing.MatchRegex = req.MatchRegex
	existing.MatchPrefix = normalize.MatchPrefix(req.MatchRegex)
	existing.ReplaceRegex = req.ReplaceRegex

	if err := s.repos.Rules.Update(r.Context(), existing); err != nil {
		slog.Error("update normalization rule: failed to update", "error", err, "rule_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.index.Invalidate()

	updated, err := s.repos.Rules.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		slog.Error("update normalization rule: failed to re-fetch", "error", err, "rule_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toRuleResponse(updated))
}

// handleDeleteRule deletes a normalization rule.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	if err := s.repos.Rules.Delete(r.Context(), id); err != nil {
		slog.Error("delete normalization rule: failed to delete", "error", err, "rule_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.index.Invalidate()

	slog.Info("normalization rule deleted", "rule_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
