package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/siprouted/siprouted/internal/database/models"
)

// carrierTrunkRepo implements CarrierTrunkRepository.
type carrierTrunkRepo struct {
	db *DB
}

// NewCarrierTrunkRepository creates a new CarrierTrunkRepository.
func NewCarrierTrunkRepository(db *DB) CarrierTrunkRepository {
	return &carrierTrunkRepo{db: db}
}

const carrierTrunkColumns = `id, carrier_id, name, sip_proxy, sip_proxy_port, ip_address,
	 registered, auth_username, auth_password, realm, registrar_proxy, from_domain,
	 expire_seconds, retry_seconds, normalization_profile_id, created_at, updated_at`

// Create inserts a new carrier trunk.
func (r *carrierTrunkRepo) Create(ctx context.Context, trunk *models.CarrierTrunk) error {
	now := time.Now().UTC()
	if trunk.SIPProxyPort == 0 {
		trunk.SIPProxyPort = 5060
	}
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`INSERT INTO carrier_trunks (carrier_id, name, sip_proxy, sip_proxy_port,
		 ip_address, registered, auth_username, auth_password, realm, registrar_proxy,
		 from_domain, expire_seconds, retry_seconds, normalization_profile_id,
		 created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		trunk.CarrierID, trunk.Name, trunk.SIPProxy, trunk.SIPProxyPort,
		trunk.IPAddress, trunk.Registered, trunk.AuthUsername, trunk.AuthPassword,
		trunk.Realm, trunk.RegistrarProxy, trunk.FromDomain, trunk.ExpireSeconds,
		trunk.RetrySeconds, trunk.NormalizationProfileID, now, now,
	).Scan(&trunk.ID)
	if err != nil {
		return fmt.Errorf("inserting carrier trunk: %w", err)
	}
	trunk.CreatedAt = now
	trunk.UpdatedAt = now
	return nil
}

// GetByID returns a carrier trunk by ID, or nil if not found.
func (r *carrierTrunkRepo) GetByID(ctx context.Context, id int64) (*models.CarrierTrunk, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+carrierTrunkColumns+` FROM carrier_trunks WHERE id = ?`), id))
}

// GetByName returns a carrier trunk by its unique name, or nil if not found.
func (r *carrierTrunkRepo) GetByName(ctx context.Context, name string) (*models.CarrierTrunk, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+carrierTrunkColumns+` FROM carrier_trunks WHERE name = ?`), name))
}

// List returns carrier trunks ordered by id with pagination.
func (r *carrierTrunkRepo) List(ctx context.Context, offset, limit int) ([]models.CarrierTrunk, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT `+carrierTrunkColumns+` FROM carrier_trunks ORDER BY id LIMIT ? OFFSET ?`),
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying carrier trunks: %w", err)
	}
	defer rows.Close()

	var trunks []models.CarrierTrunk
	for rows.Next() {
		var t models.CarrierTrunk
		if err := rows.Scan(&t.ID, &t.CarrierID, &t.Name, &t.SIPProxy, &t.SIPProxyPort,
			&t.IPAddress, &t.Registered, &t.AuthUsername, &t.AuthPassword, &t.Realm,
			&t.RegistrarProxy, &t.FromDomain, &t.ExpireSeconds, &t.RetrySeconds,
			&t.NormalizationProfileID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning carrier trunk row: %w", err)
		}
		trunks = append(trunks, t)
	}
	return trunks, rows.Err()
}

// Update modifies an existing carrier trunk.
func (r *carrierTrunkRepo) Update(ctx context.Context, trunk *models.CarrierTrunk) error {
	trunk.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE carrier_trunks SET carrier_id = ?, name = ?, sip_proxy = ?,
		 sip_proxy_port = ?, ip_address = ?, registered = ?, auth_username = ?,
		 auth_password = ?, realm = ?, registrar_proxy = ?, from_domain = ?,
		 expire_seconds = ?, retry_seconds = ?, normalization_profile_id = ?,
		 updated_at = ? WHERE id = ?`),
		trunk.CarrierID, trunk.Name, trunk.SIPProxy, trunk.SIPProxyPort,
		trunk.IPAddress, trunk.Registered, trunk.AuthUsername, trunk.AuthPassword,
		trunk.Realm, trunk.RegistrarProxy, trunk.FromDomain, trunk.ExpireSeconds,
		trunk.RetrySeconds, trunk.NormalizationProfileID, trunk.UpdatedAt, trunk.ID)
	if err != nil {
		return fmt.Errorf("updating carrier trunk: %w", err)
	}
	return nil
}

// Delete removes a carrier trunk by ID.
func (r *carrierTrunkRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM carrier_trunks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting carrier trunk: %w", err)
	}
	return nil
}

// Count returns the total number of carrier trunks.
func (r *carrierTrunkRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM carrier_trunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting carrier trunks: %w", err)
	}
	return n, nil
}

func (r *carrierTrunkRepo) scanOne(row *sql.Row) (*models.CarrierTrunk, error) {
	var t models.CarrierTrunk
	err := row.Scan(&t.ID, &t.CarrierID, &t.Name, &t.SIPProxy, &t.SIPProxyPort,
		&t.IPAddress, &t.Registered, &t.AuthUsername, &t.AuthPassword, &t.Realm,
		&t.RegistrarProxy, &t.FromDomain, &t.ExpireSeconds, &t.RetrySeconds,
		&t.NormalizationProfileID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning carrier trunk: %w", err)
	}
	return &t, nil
}
