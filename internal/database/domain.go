package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/siprouted/siprouted/internal/database/models"
)

// domainRepo implements DomainRepository.
type domainRepo struct {
	db *DB
}

// NewDomainRepository creates a new DomainRepository.
func NewDomainRepository(db *DB) DomainRepository {
	return &domainRepo{db: db}
}

// Create inserts a new domain.
func (r *domainRepo) Create(ctx context.Context, domain *models.Domain) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`INSERT INTO domains (domain, tenant_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?) RETURNING id`),
		domain.Domain, domain.TenantID, now, now,
	).Scan(&domain.ID)
	if err != nil {
		return fmt.Errorf("inserting domain: %w", err)
	}
	domain.CreatedAt = now
	domain.UpdatedAt = now
	return nil
}

// GetByID returns a domain by ID, or nil if not found.
func (r *domainRepo) GetByID(ctx context.Context, id int64) (*models.Domain, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, domain, tenant_id, created_at, updated_at
		 FROM domains WHERE id = ?`), id))
}

// GetByDomain returns a domain by exact string match, or nil if not found.
// This is the lookup the route matcher performs for every inbound call, so it
// is served by the unique index on the domain column.
func (r *domainRepo) GetByDomain(ctx context.Context, domain string) (*models.Domain, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, domain, tenant_id, created_at, updated_at
		 FROM domains WHERE domain = ?`), domain))
}

// List returns domains ordered by id with pagination.
func (r *domainRepo) List(ctx context.Context, offset, limit int) ([]models.Domain, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT id, domain, tenant_id, created_at, updated_at
		 FROM domains ORDER BY id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying domains: %w", err)
	}
	defer rows.Close()

	var domains []models.Domain
	for rows.Next() {
		var d models.Domain
		if err := rows.Scan(&d.ID, &d.Domain, &d.TenantID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning domain row: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// Update modifies an existing domain.
func (r *domainRepo) Update(ctx context.Context, domain *models.Domain) error {
	domain.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE domains SET domain = ?, tenant_id = ?, updated_at = ? WHERE id = ?`),
		domain.Domain, domain.TenantID, domain.UpdatedAt, domain.ID)
	if err != nil {
		return fmt.Errorf("updating domain: %w", err)
	}
	return nil
}

// Delete removes a domain by ID.
func (r *domainRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM domains WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting domain: %w", err)
	}
	return nil
}

// Count returns the total number of domains.
func (r *domainRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM domains`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting domains: %w", err)
	}
	return n, nil
}

func (r *domainRepo) scanOne(row *sql.Row) (*models.Domain, error) {
	var d models.Domain
	err := row.Scan(&d.ID, &d.Domain, &d.TenantID, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning domain: %w", err)
	}
	return &d, nil
}
