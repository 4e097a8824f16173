package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/siprouted/siprouted/internal/database/models"
)

// carrierRepo implements CarrierRepository.
type carrierRepo struct {
	db *DB
}

// NewCarrierRepository creates a new CarrierRepository.
func NewCarrierRepository(db *DB) CarrierRepository {
	return &carrierRepo{db: db}
}

// Create inserts a new carrier.
func (r *carrierRepo) Create(ctx context.Context, carrier *models.Carrier) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`INSERT INTO carriers (name, tenant_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?) RETURNING id`),
		carrier.Name, carrier.TenantID, now, now,
	).Scan(&carrier.ID)
	if err != nil {
		return fmt.Errorf("inserting carrier: %w", err)
	}
	carrier.CreatedAt = now
	carrier.UpdatedAt = now
	return nil
}

// GetByID returns a carrier by ID, or nil if not found.
func (r *carrierRepo) GetByID(ctx context.Context, id int64) (*models.Carrier, error) {
	var c models.Carrier
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, name, tenant_id, created_at, updated_at
		 FROM carriers WHERE id = ?`), id).
		Scan(&c.ID, &c.Name, &c.TenantID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning carrier: %w", err)
	}
	return &c, nil
}

// List returns carriers ordered by id with pagination.
func (r *carrierRepo) List(ctx context.Context, offset, limit int) ([]models.Carrier, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT id, name, tenant_id, created_at, updated_at
		 FROM carriers ORDER BY id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying carriers: %w", err)
	}
	defer rows.Close()

	var carriers []models.Carrier
	for rows.Next() {
		var c models.Carrier
		if err := rows.Scan(&c.ID, &c.Name, &c.TenantID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning carrier row: %w", err)
		}
		carriers = append(carriers, c)
	}
	return carriers, rows.Err()
}

// Update modifies an existing carrier.
func (r *carrierRepo) Update(ctx context.Context, carrier *models.Carrier) error {
	carrier.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE carriers SET name = ?, tenant_id = ?, updated_at = ? WHERE id = ?`),
		carrier.Name, carrier.TenantID, carrier.UpdatedAt, carrier.ID)
	if err != nil {
		return fmt.Errorf("updating carrier: %w", err)
	}
	return nil
}

// Delete removes a carrier by ID.
func (r *carrierRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM carriers WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting carrier: %w", err)
	}
	return nil
}

// Count returns the total number of carriers.
func (r *carrierRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM carriers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting carriers: %w", err)
	}
	return n, nil
}
