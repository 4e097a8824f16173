package routing

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/siprouted/siprouted/internal/database"
	"github.com/siprouted/siprouted/internal/database/models"
	"github.com/siprouted/siprouted/internal/normalize"
)

// DecisionKind says which resolver produced a decision.
type DecisionKind int

const (
	// DecisionDomain routes by exact destination-domain match. The user part
	// of the destination URI passes through untouched.
	DecisionDomain DecisionKind = iota
	// DecisionDID routes by DID pattern match on the dialed number.
	DecisionDID
)

// Decision is a positive routing outcome: which tenant owns the call and
// which endpoint receives it.
type Decision struct {
	Kind     DecisionKind
	TenantID int64
	IPBX     *models.IPBX

	// Number is the dialed number to place in the target URI, already
	// translated through the endpoint's normalization profile. Empty for
	// domain decisions.
	Number string

	// DID and CarrierTrunk carry the matched pattern and the outbound trunk
	// context for potential return legs. Set for DID decisions only.
	DID          *models.DID
	CarrierTrunk *models.CarrierTrunk
}

// resolver is one strategy in the match pipeline. A nil, nil return means
// "this branch does not apply"; the next resolver runs. Errors are store
// failures and abort the whole query.
type resolver interface {
	resolve(ctx context.Context, ev *Event) (*Decision, error)
}

// Matcher answers routing queries by running an ordered list of resolver
// strategies, first success wins: domain match first, DID match second. It
// holds no per-call state and is safe for concurrent use; every decision is
// made against a fresh read of the store so configuration changes apply to
// the next call immediately.
type Matcher struct {
	resolvers []resolver
	patterns  *patternCache
	logger    *slog.Logger
}

// NewMatcher wires the domain-then-DID resolution pipeline.
func NewMatcher(repos *database.Repositories, normalizer *normalize.Normalizer, logger *slog.Logger) *Matcher {
	logger = logger.With("subsystem", "matcher")
	patterns := newPatternCache()
	return &Matcher{
		resolvers: []resolver{
			&domainResolver{domains: repos.Domains, ipbx: repos.IPBX, logger: logger},
			&didResolver{
				dids:       repos.DIDs,
				ipbx:       repos.IPBX,
				trunks:     repos.CarrierTrunks,
				profiles:   repos.Profiles,
				normalizer: normalizer,
				patterns:   patterns,
				logger:     logger,
			},
		},
		patterns: patterns,
		logger:   logger,
	}
}

// InvalidatePatterns drops all compiled DID patterns. Called by the
// administrative surface on every DID write so patterns for deleted or
// rewritten rows do not accumulate.
func (m *Matcher) InvalidatePatterns() {
	m.patterns.purge()
}

// Match resolves the event to a Decision. It returns ErrNoMatch when no
// branch matched and wraps store failures in ErrStoreUnavailable.
func (m *Matcher) Match(ctx context.Context, ev *Event) (*Decision, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	for _, r := range m.resolvers {
		decision, err := r.resolve(ctx, ev)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if decision != nil {
			return decision, nil
		}
	}
	return nil, ErrNoMatch
}

// domainResolver matches the host part of the destination URI against
// registered domains and routes to the IPBX bound to the matched domain.
type domainResolver struct {
	domains database.DomainRepository
	ipbx    database.IPBXRepository
	logger  *slog.Logger
}

func (r *domainResolver) resolve(ctx context.Context, ev *Event) (*Decision, error) {
	_, host, err := SplitURI(ev.ToURI)
	if err != nil {
		return nil, nil
	}

	domain, err := r.domains.GetByDomain(ctx, host)
	if err != nil {
		return nil, err
	}
	if domain == nil {
		return nil, nil
	}

	ipbx, err := r.ipbx.GetByDomainID(ctx, domain.ID)
	if err != nil {
		return nil, err
	}
	if ipbx == nil {
		// Domain is registered but has no endpoint; the DID branch still
		// gets its chance.
		r.logger.Debug("domain matched but no ipbx bound", "domain", host, "call_id", ev.CallID)
		return nil, nil
	}

	r.logger.Debug("domain match",
		"call_id", ev.CallID, "domain", host, "ipbx_id", ipbx.ID, "tenant_id", domain.TenantID)

	return &Decision{
		Kind:     DecisionDomain,
		TenantID: domain.TenantID,
		IPBX:     ipbx,
	}, nil
}

// didResolver matches the cleaned dialed number against DID patterns across
// all tenants. Candidates are pruned by prefix-set membership and scanned in
// id order, so overlapping patterns always resolve to the lowest id.
type didResolver struct {
	dids       database.DIDRepository
	ipbx       database.IPBXRepository
	trunks     database.CarrierTrunkRepository
	profiles   database.NormalizationProfileRepository
	normalizer *normalize.Normalizer
	patterns   *patternCache
	logger     *slog.Logger
}

func (r *didResolver) resolve(ctx context.Context, ev *Event) (*Decision, error) {
	user, _, err := SplitURI(ev.ToURI)
	if err != nil {
		return nil, nil
	}

	number := normalize.CleanNumber(user)
	if number == "" {
		return nil, nil
	}

	candidates, err := r.dids.ListByPrefixes(ctx, normalize.PrefixSet(number))
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		did := &candidates[i]

		re, err := r.patterns.get(did.DIDRegex)
		if err != nil {
			// Data-integrity defect in one row must not break the others.
			r.logger.Error("stored did pattern does not compile, skipping",
				"did_id", did.ID, "pattern", did.DIDRegex, "error", err)
			continue
		}
		if !re.MatchString(number) {
			continue
		}

		ipbx, err := r.ipbx.GetByID(ctx, did.IPBXID)
		if err != nil {
			return nil, err
		}
		if ipbx == nil {
			r.logger.Error("did references missing ipbx, skipping",
				"did_id", did.ID, "ipbx_id", did.IPBXID)
			continue
		}

		trunk, err := r.trunks.GetByID(ctx, did.CarrierTrunkID)
		if err != nil {
			return nil, err
		}

		translated, err := r.translateNumber(ctx, number, ipbx)
		if err != nil {
			return nil, err
		}

		r.logger.Debug("did match",
			"call_id", ev.CallID, "did_id", did.ID, "number", number,
			"ipbx_id", ipbx.ID, "tenant_id", did.TenantID)

		return &Decision{
			Kind:         DecisionDID,
			TenantID:     did.TenantID,
			IPBX:         ipbx,
			Number:       translated,
			DID:          did,
			CarrierTrunk: trunk,
		}, nil
	}
	return nil, nil
}

// translateNumber converts the dialed E.164 number to the endpoint's local
// form when the endpoint carries a normalization profile.
func (r *didResolver) translateNumber(ctx context.Context, number string, ipbx *models.IPBX) (string, error) {
	if ipbx.NormalizationProfileID == nil {
		return number, nil
	}
	profile, err := r.profiles.GetByID(ctx, *ipbx.NormalizationProfileID)
	if err != nil {
		return "", err
	}
	return r.normalizer.E164ToLocal(ctx, number, profile)
}

// patternCache caches anchored DID patterns. The same patterns are evaluated
// on every call, so compiling per query would be pure waste on the signaling
// path. Anchoring on both ends means acceptance requires the full dialed
// number to match, not just a prefix of it.
type patternCache struct {
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

func newPatternCache() *patternCache {
	return &patternCache{compiled: make(map[string]*regexp.Regexp)}
}

func (c *patternCache) get(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.compiled[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.compiled[pattern] = re
	c.mu.Unlock()
	return re, nil
}

func (c *patternCache) purge() {
	c.mu.Lock()
	c.compiled = make(map[string]*regexp.Regexp)
	c.mu.Unlock()
}
