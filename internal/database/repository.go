package database

import (
	"context"

	"github.com/siprouted/siprouted/internal/database/models"
)

// TenantRepository manages tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id int64) (*models.Tenant, error)
	GetByName(ctx context.Context, name string) (*models.Tenant, error)
	List(ctx context.Context, offset, limit int) ([]models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// DomainRepository manages SIP domains.
type DomainRepository interface {
	Create(ctx context.Context, domain *models.Domain) error
	GetByID(ctx context.Context, id int64) (*models.Domain, error)
	GetByDomain(ctx context.Context, domain string) (*models.Domain, error)
	List(ctx context.Context, offset, limit int) ([]models.Domain, error)
	Update(ctx context.Context, domain *models.Domain) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// IPBXRepository manages customer PBX endpoints.
type IPBXRepository interface {
	Create(ctx context.Context, ipbx *models.IPBX) error
	GetByID(ctx context.Context, id int64) (*models.IPBX, error)
	GetByDomainID(ctx context.Context, domainID int64) (*models.IPBX, error)
	List(ctx context.Context, offset, limit int) ([]models.IPBX, error)
	Update(ctx context.Context, ipbx *models.IPBX) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// CarrierRepository manages carriers.
type CarrierRepository interface {
	Create(ctx context.Context, carrier *models.Carrier) error
	GetByID(ctx context.Context, id int64) (*models.Carrier, error)
	List(ctx context.Context, offset, limit int) ([]models.Carrier, error)
	Update(ctx context.Context, carrier *models.Carrier) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// CarrierTrunkRepository manages outbound trunks under carriers.
type CarrierTrunkRepository interface {
	Create(ctx context.Context, trunk *models.CarrierTrunk) error
	GetByID(ctx context.Context, id int64) (*models.CarrierTrunk, error)
	GetByName(ctx context.Context, name string) (*models.CarrierTrunk, error)
	List(ctx context.Context, offset, limit int) ([]models.CarrierTrunk, error)
	Update(ctx context.Context, trunk *models.CarrierTrunk) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// DIDRepository manages DID patterns. ListByPrefixes is the candidate query
// used by the route matcher: rows whose did_prefix is a member of the given
// prefix set, ordered by id ascending so overlapping patterns resolve
// deterministically (lowest id wins).
type DIDRepository interface {
	Create(ctx context.Context, did *models.DID) error
	GetByID(ctx context.Context, id int64) (*models.DID, error)
	List(ctx context.Context, offset, limit int) ([]models.DID, error)
	ListByPrefixes(ctx context.Context, prefixes []string) ([]models.DID, error)
	Update(ctx context.Context, did *models.DID) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// NormalizationProfileRepository manages normalization profiles.
type NormalizationProfileRepository interface {
	Create(ctx context.Context, profile *models.NormalizationProfile) error
	GetByID(ctx context.Context, id int64) (*models.NormalizationProfile, error)
	GetByName(ctx context.Context, name string) (*models.NormalizationProfile, error)
	List(ctx context.Context, offset, limit int) ([]models.NormalizationProfile, error)
	Update(ctx context.Context, profile *models.NormalizationProfile) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// NormalizationRuleRepository manages rewrite rules. ListByProfileType
// returns the rules for one (profile, rule type) pair ordered by
// (priority, id) ascending, which is the rewrite application order.
type NormalizationRuleRepository interface {
	Create(ctx context.Context, rule *models.NormalizationRule) error
	GetByID(ctx context.Context, id int64) (*models.NormalizationRule, error)
	List(ctx context.Context, offset, limit int) ([]models.NormalizationRule, error)
	ListByProfileType(ctx context.Context, profileID int64, ruleType int) ([]models.NormalizationRule, error)
	Update(ctx context.Context, rule *models.NormalizationRule) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// Repositories bundles every repository backed by one DB.
type Repositories struct {
	Tenants       TenantRepository
	Domains       DomainRepository
	IPBX          IPBXRepository
	Carriers      CarrierRepository
	CarrierTrunks CarrierTrunkRepository
	DIDs          DIDRepository
	Profiles      NormalizationProfileRepository
	Rules         NormalizationRuleRepository
}

// NewRepositories builds the full repository set for a DB.
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Tenants:       NewTenantRepository(db),
		Domains:       NewDomainRepository(db),
		IPBX:          NewIPBXRepository(db),
		Carriers:      NewCarrierRepository(db),
		CarrierTrunks: NewCarrierTrunkRepository(db),
		DIDs:          NewDIDRepository(db),
		Profiles:      NewNormalizationProfileRepository(db),
		Rules:         NewNormalizationRuleRepository(db),
	}
}
