package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/siprouted/siprouted/internal/database/models"
)

// normalizationProfileRepo implements NormalizationProfileRepository.
type normalizationProfileRepo struct {
	db *DB
}

// NewNormalizationProfileRepository creates a new NormalizationProfileRepository.
func NewNormalizationProfileRepository(db *DB) NormalizationProfileRepository {
	return &normalizationProfileRepo{db: db}
}

const profileColumns = `id, tenant_id, name, country_code, area_code, intl_prefix,
	 ld_prefix, always_ld, always_intl_prefix_plus, created_at, updated_at`

// Create inserts a new normalization profile.
func (r *normalizationProfileRepo) Create(ctx context.Context, profile *models.NormalizationProfile) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`INSERT INTO normalization_profiles (tenant_id, name, country_code, area_code,
		 intl_prefix, ld_prefix, always_ld, always_intl_prefix_plus, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		profile.TenantID, profile.Name, profile.CountryCode, profile.AreaCode,
		profile.IntlPrefix, profile.LdPrefix, profile.AlwaysLd,
		profile.AlwaysIntlPrefixPlus, now, now,
	).Scan(&profile.ID)
	if err != nil {
		return fmt.Errorf("inserting normalization profile: %w", err)
	}
	profile.CreatedAt = now
	profile.UpdatedAt = now
	return nil
}

// GetByID returns a profile by ID, or nil if not found.
func (r *normalizationProfileRepo) GetByID(ctx context.Context, id int64) (*models.NormalizationProfile, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+profileColumns+` FROM normalization_profiles WHERE id = ?`), id))
}

// GetByName returns a profile by its unique name, or nil if not found.
func (r *normalizationProfileRepo) GetByName(ctx context.Context, name string) (*models.NormalizationProfile, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+profileColumns+` FROM normalization_profiles WHERE name = ?`), name))
}

// List returns profiles ordered by id with pagination.
func (r *normalizationProfileRepo) List(ctx context.Context, offset, limit int) ([]models.NormalizationProfile, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT `+profileColumns+` FROM normalization_profiles ORDER BY id LIMIT ? OFFSET ?`),
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying normalization profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.NormalizationProfile
	for rows.Next() {
		var p models.NormalizationProfile
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.CountryCode, &p.AreaCode,
			&p.IntlPrefix, &p.LdPrefix, &p.AlwaysLd, &p.AlwaysIntlPrefixPlus,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning normalization profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Update modifies an existing profile.
func (r *normalizationProfileRepo) Update(ctx context.Context, profile *models.NormalizationProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE normalization_profiles SET tenant_id = ?, name = ?, country_code = ?,
		 area_code = ?, intl_prefix = ?, ld_prefix = ?, always_ld = ?,
		 always_intl_prefix_plus = ?, updated_at = ? WHERE id = ?`),
		profile.TenantID, profile.Name, profile.CountryCode, profile.AreaCode,
		profile.IntlPrefix, profile.LdPrefix, profile.AlwaysLd,
		profile.AlwaysIntlPrefixPlus, profile.UpdatedAt, profile.ID)
	if err != nil {
		return fmt.Errorf("updating normalization profile: %w", err)
	}
	return nil
}

// Delete removes a profile by ID. Rules cascade.
func (r *normalizationProfileRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM normalization_profiles WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting normalization profile: %w", err)
	}
	return nil
}

// Count returns the total number of profiles.
func (r *normalizationProfileRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM normalization_profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting normalization profiles: %w", err)
	}
	return n, nil
}

func (r *normalizationProfileRepo) scanOne(row *sql.Row) (*models.NormalizationProfile, error) {
	var p models.NormalizationProfile
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.CountryCode, &p.AreaCode,
		&p.IntlPrefix, &p.LdPrefix, &p.AlwaysLd, &p.AlwaysIntlPrefixPlus,
		&p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning normalization profile: %w", err)
	}
	return &p, nil
}

// normalizationRuleRepo implements NormalizationRuleRepository.
type normalizationRuleRepo struct {
	db *DB
}

// NewNormalizationRuleRepository creates a new NormalizationRuleRepository.
func NewNormalizationRuleRepository(db *DB) NormalizationRuleRepository {
	return &normalizationRuleRepo{db: db}
}

const ruleColumns = `id, profile_id, rule_type, priority, match_regex, match_prefix,
	 replace_regex, created_at, updated_at`

// Create inserts a new normalization rule. MatchPrefix must already be
// derived from MatchRegex by the caller.
func (r *normalizationRuleRepo) Create(ctx context.Context, rule *models.NormalizationRule) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`INSERT INTO normalization_rules (profile_id, rule_type, priority, match_regex,
		 match_prefix, replace_regex, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		rule.ProfileID, rule.RuleType, rule.Priority, rule.MatchRegex,
		rule.MatchPrefix, rule.ReplaceRegex, now, now,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("inserting normalization rule: %w", err)
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// GetByID returns a rule by ID, or nil if not found.
func (r *normalizationRuleRepo) GetByID(ctx context.Context, id int64) (*models.NormalizationRule, error) {
	var n models.NormalizationRule
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+ruleColumns+` FROM normalization_rules WHERE id = ?`), id).
		Scan(&n.ID, &n.ProfileID, &n.RuleType, &n.Priority, &n.MatchRegex,
			&n.MatchPrefix, &n.ReplaceRegex, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning normalization rule: %w", err)
	}
	return &n, nil
}

// List returns rules ordered by id with pagination.
func (r *normalizationRuleRepo) List(ctx context.Context, offset, limit int) ([]models.NormalizationRule, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT `+ruleColumns+` FROM normalization_rules ORDER BY id LIMIT ? OFFSET ?`),
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying normalization rules: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// ListByProfileType returns all rules for one (profile, rule type) pair in
// (priority, id) ascending order. The prefix index loads from this query and
// the order must be preserved end to end.
func (r *normalizationRuleRepo) ListByProfileType(ctx context.Context, profileID int64, ruleType int) ([]models.NormalizationRule, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT `+ruleColumns+` FROM normalization_rules
		 WHERE profile_id = ? AND rule_type = ? ORDER BY priority, id`),
		profileID, ruleType)
	if err != nil {
		return nil, fmt.Errorf("querying normalization rules for profile: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// Update modifies an existing rule. MatchPrefix must already be recomputed if
// MatchRegex changed.
func (r *normalizationRuleRepo) Update(ctx context.Context, rule *models.NormalizationRule) error {
	rule.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE normalization_rules SET profile_id = ?, rule_type = ?, priority = ?,
		 match_regex = ?, match_prefix = ?, replace_regex = ?, updated_at = ?
		 WHERE id = ?`),
		rule.ProfileID, rule.RuleType, rule.Priority, rule.MatchRegex,
		rule.MatchPrefix, rule.ReplaceRegex, rule.UpdatedAt, rule.ID)
	if err != nil {
		return fmt.Errorf("updating normalization rule: %w", err)
	}
	return nil
}

// Delete removes a rule by ID.
func (r *normalizationRuleRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM normalization_rules WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting normalization rule: %w", err)
	}
	return nil
}

// Count returns the total number of rules.
func (r *normalizationRuleRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM normalization_rules`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting normalization rules: %w", err)
	}
	return n, nil
}

func (r *normalizationRuleRepo) scanMany(rows *sql.Rows) ([]models.NormalizationRule, error) {
	var rules []models.NormalizationRule
	for rows.Next() {
		var n models.NormalizationRule
		if err := rows.Scan(&n.ID, &n.ProfileID, &n.RuleType, &n.Priority,
			&n.MatchRegex, &n.MatchPrefix, &n.ReplaceRegex, &n.CreatedAt,
			&n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning normalization rule row: %w", err)
		}
		rules = append(rules, n)
	}
	return rules, rows.Err()
}
