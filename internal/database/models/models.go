package models

import "time"

// Tenant is the isolation boundary: it owns domains, DIDs, carriers and
// normalization profiles.
type Tenant struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Domain is a fully-qualified domain bound to exactly one tenant. Domains are
// unique across the whole system, not per tenant.
type Domain struct {
	ID        int64
	Domain    string
	TenantID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IPBX is an on-premise call-handling endpoint. An IPBX reachable by domain
// match must belong to the same tenant as that domain.
type IPBX struct {
	ID                     int64
	TenantID               int64
	DomainID               *int64
	Customer               int64
	IPFqdn                 string
	Port                   int
	Registered             bool
	Username               string
	Password               string
	PasswordHA1            string // digest hash pair, precomputed
	PasswordHA1B           string
	NormalizationProfileID *int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Carrier is a wholesale voice provider scoped to a tenant.
type Carrier struct {
	ID        int64
	Name      string
	TenantID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CarrierTrunk is a specific outbound trunk under a carrier.
type CarrierTrunk struct {
	ID                     int64
	CarrierID              int64
	Name                   string
	SIPProxy               string
	SIPProxyPort           int
	IPAddress              string
	Registered             bool
	AuthUsername           string
	AuthPassword           string
	Realm                  string
	RegistrarProxy         string
	FromDomain             string
	ExpireSeconds          int
	RetrySeconds           int
	NormalizationProfileID *int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// DID maps a dialed-number pattern to a tenant, an IPBX and a carrier trunk.
// DIDPrefix is a precomputed literal prefix of every string DIDRegex can
// match; it prunes candidates but never replaces the full regex check.
type DID struct {
	ID             int64
	TenantID       int64
	IPBXID         int64
	CarrierTrunkID int64
	DIDRegex       string
	DIDPrefix      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NormalizationProfile is a tenant-scoped number-normalization policy.
type NormalizationProfile struct {
	ID                   int64
	TenantID             int64
	Name                 string
	CountryCode          string
	AreaCode             string
	IntlPrefix           string
	LdPrefix             string
	AlwaysLd             bool
	AlwaysIntlPrefixPlus bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Rule types for normalization rules.
const (
	RuleTypeLocalToE164 = 1
	RuleTypeE164ToLocal = 2
)

// NormalizationRule is a single rewrite step inside a profile. Rules within a
// (profile, rule type) pair are totally ordered by (priority, id) ascending;
// that order is the rewrite application order. MatchPrefix is derived from
// MatchRegex and must be recomputed whenever MatchRegex changes.
type NormalizationRule struct {
	ID           int64
	ProfileID    int64
	RuleType     int
	Priority     int
	MatchRegex   string
	MatchPrefix  string
	ReplaceRegex string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
