package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/siprouted/siprouted/internal/database/models"
)

// tenantRepo implements TenantRepository.
type tenantRepo struct {
	db *DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *DB) TenantRepository {
	return &tenantRepo{db: db}
}

// Create inserts a new tenant.
func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`INSERT INTO tenants (name, created_at, updated_at)
		 VALUES (?, ?, ?) RETURNING id`),
		tenant.Name, now, now,
	).Scan(&tenant.ID)
	if err != nil {
		return fmt.Errorf("inserting tenant: %w", err)
	}
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	return nil
}

// GetByID returns a tenant by ID, or nil if not found.
func (r *tenantRepo) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, name, created_at, updated_at FROM tenants WHERE id = ?`), id))
}

// GetByName returns a tenant by its unique name, or nil if not found.
func (r *tenantRepo) GetByName(ctx context.Context, name string) (*models.Tenant, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, name, created_at, updated_at FROM tenants WHERE name = ?`), name))
}

// List returns tenants ordered by id with pagination.
func (r *tenantRepo) List(ctx context.Context, offset, limit int) ([]models.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT id, name, created_at, updated_at FROM tenants
		 ORDER BY id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning tenant row: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// Update modifies an existing tenant.
func (r *tenantRepo) Update(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE tenants SET name = ?, updated_at = ? WHERE id = ?`),
		tenant.Name, tenant.UpdatedAt, tenant.ID)
	if err != nil {
		return fmt.Errorf("updating tenant: %w", err)
	}
	return nil
}

// Delete removes a tenant by ID.
func (r *tenantRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM tenants WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	return nil
}

// Count returns the total number of tenants.
func (r *tenantRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tenants: %w", err)
	}
	return n, nil
}

func (r *tenantRepo) scanOne(row *sql.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tenant: %w", err)
	}
	return &t, nil
}
