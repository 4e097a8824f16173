package cache

import (
	"context"
	"log/slog"

	"github.com/siprouted/siprouted/internal/database"
	"github.com/siprouted/siprouted/internal/database/models"
)

const domainKeyPrefix = "siprouted:domain:"

// Domains decorates a DomainRepository with a redis cache on the hot
// GetByDomain lookup, which the matcher issues for every inbound call.
// Writes go straight to the store and invalidate the whole domain family, so
// a query after a write sees fresh data; the TTL bounds staleness caused by
// writes from other nodes.
type Domains struct {
	database.DomainRepository
	cache  *Client
	logger *slog.Logger
}

// NewDomains wraps repo with the cache.
func NewDomains(repo database.DomainRepository, cache *Client, logger *slog.Logger) *Domains {
	return &Domains{
		DomainRepository: repo,
		cache:            cache,
		logger:           logger.With("subsystem", "domain_cache"),
	}
}

// cachedDomain distinguishes "cached absence" from a cache miss.
type cachedDomain struct {
	Found  bool           `json:"found"`
	Domain *models.Domain `json:"domain,omitempty"`
}

// GetByDomain serves from redis when possible, falling back to the store.
// Negative results are cached too: unknown destination domains are the
// common case on a proxy under scan traffic.
func (d *Domains) GetByDomain(ctx context.Context, domain string) (*models.Domain, error) {
	key := domainKeyPrefix + domain

	var entry cachedDomain
	if hit, _ := d.cache.Get(ctx, key, &entry); hit {
		return entry.Domain, nil
	}

	row, err := d.DomainRepository.GetByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}

	if err := d.cache.Set(ctx, key, cachedDomain{Found: row != nil, Domain: row}); err != nil {
		d.logger.Warn("caching domain lookup failed", "domain", domain, "error", err)
	}
	return row, nil
}

// Create writes through and invalidates.
func (d *Domains) Create(ctx context.Context, domain *models.Domain) error {
	if err := d.DomainRepository.Create(ctx, domain); err != nil {
		return err
	}
	d.invalidate(ctx)
	return nil
}

// Update writes through and invalidates.
func (d *Domains) Update(ctx context.Context, domain *models.Domain) error {
	if err := d.DomainRepository.Update(ctx, domain); err != nil {
		return err
	}
	d.invalidate(ctx)
	return nil
}

// Delete writes through and invalidates.
func (d *Domains) Delete(ctx context.Context, id int64) error {
	if err := d.DomainRepository.Delete(ctx, id); err != nil {
		return err
	}
	d.invalidate(ctx)
	return nil
}

func (d *Domains) invalidate(ctx context.Context) {
	if err := d.cache.DeletePrefix(ctx, domainKeyPrefix); err != nil {
		d.logger.Warn("invalidating domain cache failed", "error", err)
	}
}
