package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/siprouted/siprouted/internal/database/models"
)

// ipbxRepo implements IPBXRepository.
type ipbxRepo struct {
	db *DB
}

// NewIPBXRepository creates a new IPBXRepository.
func NewIPBXRepository(db *DB) IPBXRepository {
	return &ipbxRepo{db: db}
}

const ipbxColumns = `id, tenant_id, domain_id, customer, ip_fqdn, port, registered,
	 username, password, password_ha1, password_ha1b, normalization_profile_id,
	 created_at, updated_at`

// Create inserts a new IPBX.
func (r *ipbxRepo) Create(ctx context.Context, ipbx *models.IPBX) error {
	now := time.Now().UTC()
	if ipbx.Port == 0 {
		ipbx.Port = 5060
	}
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`INSERT INTO ipbx (tenant_id, domain_id, customer, ip_fqdn, port, registered,
		 username, password, password_ha1, password_ha1b, normalization_profile_id,
		 created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		ipbx.TenantID, ipbx.DomainID, ipbx.Customer, ipbx.IPFqdn, ipbx.Port,
		ipbx.Registered, ipbx.Username, ipbx.Password, ipbx.PasswordHA1,
		ipbx.PasswordHA1B, ipbx.NormalizationProfileID, now, now,
	).Scan(&ipbx.ID)
	if err != nil {
		return fmt.Errorf("inserting ipbx: %w", err)
	}
	ipbx.CreatedAt = now
	ipbx.UpdatedAt = now
	return nil
}

// GetByID returns an IPBX by ID, or nil if not found.
func (r *ipbxRepo) GetByID(ctx context.Context, id int64) (*models.IPBX, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+ipbxColumns+` FROM ipbx WHERE id = ?`), id))
}

// GetByDomainID returns the IPBX bound to a domain, or nil if none is.
// Ordered by id so the result is stable when several endpoints share a domain.
func (r *ipbxRepo) GetByDomainID(ctx context.Context, domainID int64) (*models.IPBX, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+ipbxColumns+` FROM ipbx WHERE domain_id = ? ORDER BY id LIMIT 1`), domainID))
}

// List returns IPBX endpoints ordered by id with pagination.
func (r *ipbxRepo) List(ctx context.Context, offset, limit int) ([]models.IPBX, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT `+ipbxColumns+` FROM ipbx ORDER BY id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying ipbx: %w", err)
	}
	defer rows.Close()

	var list []models.IPBX
	for rows.Next() {
		var p models.IPBX
		if err := rows.Scan(&p.ID, &p.TenantID, &p.DomainID, &p.Customer, &p.IPFqdn,
			&p.Port, &p.Registered, &p.Username, &p.Password, &p.PasswordHA1,
			&p.PasswordHA1B, &p.NormalizationProfileID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning ipbx row: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Update modifies an existing IPBX.
func (r *ipbxRepo) Update(ctx context.Context, ipbx *models.IPBX) error {
	ipbx.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE ipbx SET tenant_id = ?, domain_id = ?, customer = ?, ip_fqdn = ?,
		 port = ?, registered = ?, username = ?, password = ?, password_ha1 = ?,
		 password_ha1b = ?, normalization_profile_id = ?, updated_at = ?
		 WHERE id = ?`),
		ipbx.TenantID, ipbx.DomainID, ipbx.Customer, ipbx.IPFqdn, ipbx.Port,
		ipbx.Registered, ipbx.Username, ipbx.Password, ipbx.PasswordHA1,
		ipbx.PasswordHA1B, ipbx.NormalizationProfileID, ipbx.UpdatedAt, ipbx.ID)
	if err != nil {
		return fmt.Errorf("updating ipbx: %w", err)
	}
	return nil
}

// Delete removes an IPBX by ID.
func (r *ipbxRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM ipbx WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting ipbx: %w", err)
	}
	return nil
}

// Count returns the total number of IPBX endpoints.
func (r *ipbxRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ipbx`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting ipbx: %w", err)
	}
	return n, nil
}

func (r *ipbxRepo) scanOne(row *sql.Row) (*models.IPBX, error) {
	var p models.IPBX
	err := row.Scan(&p.ID, &p.TenantID, &p.DomainID, &p.Customer, &p.IPFqdn,
		&p.Port, &p.Registered, &p.Username, &p.Password, &p.PasswordHA1,
		&p.PasswordHA1B, &p.NormalizationProfileID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning ipbx: %w", err)
	}
	return &p, nil
}
