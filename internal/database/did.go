package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/siprouted/siprouted/internal/database/models"
)

// didRepo implements DIDRepository.
type didRepo struct {
	db *DB
}

// NewDIDRepository creates a new DIDRepository.
func NewDIDRepository(db *DB) DIDRepository {
	return &didRepo{db: db}
}

const didColumns = `id, tenant_id, ipbx_id, carrier_trunk_id, did_regex, did_prefix,
	 created_at, updated_at`

// Create inserts a new DID.
func (r *didRepo) Create(ctx context.Context, did *models.DID) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`INSERT INTO dids (tenant_id, ipbx_id, carrier_trunk_id, did_regex, did_prefix,
		 created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		did.TenantID, did.IPBXID, did.CarrierTrunkID, did.DIDRegex, did.DIDPrefix,
		now, now,
	).Scan(&did.ID)
	if err != nil {
		return fmt.Errorf("inserting did: %w", err)
	}
	did.CreatedAt = now
	did.UpdatedAt = now
	return nil
}

// GetByID returns a DID by ID, or nil if not found.
func (r *didRepo) GetByID(ctx context.Context, id int64) (*models.DID, error) {
	var d models.DID
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+didColumns+` FROM dids WHERE id = ?`), id).
		Scan(&d.ID, &d.TenantID, &d.IPBXID, &d.CarrierTrunkID, &d.DIDRegex,
			&d.DIDPrefix, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning did: %w", err)
	}
	return &d, nil
}

// List returns DIDs ordered by id with pagination.
func (r *didRepo) List(ctx context.Context, offset, limit int) ([]models.DID, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT `+didColumns+` FROM dids ORDER BY id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying dids: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// ListByPrefixes returns DIDs whose did_prefix is one of the given prefixes,
// ordered by id ascending. The caller still has to match each row's full
// did_regex; the prefix set only prunes the candidates.
func (r *didRepo) ListByPrefixes(ctx context.Context, prefixes []string) ([]models.DID, error) {
	if len(prefixes) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(prefixes))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(prefixes))
	for i, p := range prefixes {
		args[i] = p
	}

	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT `+didColumns+` FROM dids
		 WHERE did_prefix IN (`+placeholders+`) ORDER BY id`), args...)
	if err != nil {
		return nil, fmt.Errorf("querying dids by prefix: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// Update modifies an existing DID.
func (r *didRepo) Update(ctx context.Context, did *models.DID) error {
	did.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE dids SET tenant_id = ?, ipbx_id = ?, carrier_trunk_id = ?,
		 did_regex = ?, did_prefix = ?, updated_at = ? WHERE id = ?`),
		did.TenantID, did.IPBXID, did.CarrierTrunkID, did.DIDRegex, did.DIDPrefix,
		did.UpdatedAt, did.ID)
	if err != nil {
		return fmt.Errorf("updating did: %w", err)
	}
	return nil
}

// Delete removes a DID by ID.
func (r *didRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM dids WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting did: %w", err)
	}
	return nil
}

// Count returns the total number of DIDs.
func (r *didRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dids`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting dids: %w", err)
	}
	return n, nil
}

func (r *didRepo) scanMany(rows *sql.Rows) ([]models.DID, error) {
	var dids []models.DID
	for rows.Next() {
		var d models.DID
		if err := rows.Scan(&d.ID, &d.TenantID, &d.IPBXID, &d.CarrierTrunkID,
			&d.DIDRegex, &d.DIDPrefix, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning did row: %w", err)
		}
		dids = append(dids, d)
	}
	return dids, rows.Err()
}
