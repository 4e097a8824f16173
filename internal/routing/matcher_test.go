package routing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/siprouted/siprouted/internal/database"
	"github.com/siprouted/siprouted/internal/database/models"
	"github.com/siprouted/siprouted/internal/normalize"
)

// In-memory repository fakes. Each serves fixed fixtures and can be forced
// to fail, so the matcher's error mapping is observable without a database.

type fakeDomains struct {
	byName map[string]*models.Domain
	err    error
}

func (f *fakeDomains) Create(ctx context.Context, d *models.Domain) error { return nil }
func (f *fakeDomains) GetByID(ctx context.Context, id int64) (*models.Domain, error) {
	return nil, nil
}
func (f *fakeDomains) GetByDomain(ctx context.Context, domain string) (*models.Domain, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byName[domain], nil
}
func (f *fakeDomains) List(ctx context.Context, offset, limit int) ([]models.Domain, error) {
	return nil, nil
}
func (f *fakeDomains) Update(ctx context.Context, d *models.Domain) error { return nil }
func (f *fakeDomains) Delete(ctx context.Context, id int64) error         { return nil }
func (f *fakeDomains) Count(ctx context.Context) (int64, error)           { return 0, nil }

type fakeIPBX struct {
	byID       map[int64]*models.IPBX
	byDomainID map[int64]*models.IPBX
}

func (f *fakeIPBX) Create(ctx context.Context, p *models.IPBX) error { return nil }
func (f *fakeIPBX) GetByID(ctx context.Context, id int64) (*models.IPBX, error) {
	return f.byID[id], nil
}
func (f *fakeIPBX) GetByDomainID(ctx context.Context, domainID int64) (*models.IPBX, error) {
	return f.byDomainID[domainID], nil
}
func (f *fakeIPBX) List(ctx context.Context, offset, limit int) ([]models.IPBX, error) {
	return nil, nil
}
func (f *fakeIPBX) Update(ctx context.Context, p *models.IPBX) error { return nil }
func (f *fakeIPBX) Delete(ctx context.Context, id int64) error       { return nil }
func (f *fakeIPBX) Count(ctx context.Context) (int64, error)         { return 0, nil }

type fakeTrunks struct {
	byID map[int64]*models.CarrierTrunk
}

func (f *fakeTrunks) Create(ctx context.Context, t *models.CarrierTrunk) error { return nil }
func (f *fakeTrunks) GetByID(ctx context.Context, id int64) (*models.CarrierTrunk, error) {
	return f.byID[id], nil
}
func (f *fakeTrunks) GetByName(ctx context.Context, name string) (*models.CarrierTrunk, error) {
	return nil, nil
}
func (f *fakeTrunks) List(ctx context.Context, offset, limit int) ([]models.CarrierTrunk, error) {
	return nil, nil
}
func (f *fakeTrunks) Update(ctx context.Context, t *models.CarrierTrunk) error { return nil }
func (f *fakeTrunks) Delete(ctx context.Context, id int64) error               { return nil }
func (f *fakeTrunks) Count(ctx context.Context) (int64, error)                 { return 0, nil }

type fakeDIDs struct {
	rows []models.DID
	err  error
}

func (f *fakeDIDs) Create(ctx context.Context, d *models.DID) error { return nil }
func (f *fakeDIDs) GetByID(ctx context.Context, id int64) (*models.DID, error) {
	return nil, nil
}
func (f *fakeDIDs) List(ctx context.Context, offset, limit int) ([]models.DID, error) {
	return nil, nil
}
func (f *fakeDIDs) ListByPrefixes(ctx context.Context, prefixes []string) ([]models.DID, error) {
	if f.err != nil {
		return nil, f.err
	}
	member := make(map[string]bool, len(prefixes))
	for _, p := range prefixes {
		member[p] = true
	}
	// id-ascending, like the real query.
	var out []models.DID
	for _, row := range f.rows {
		if member[row.DIDPrefix] {
			out = append(out, row)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}
func (f *fakeDIDs) Update(ctx context.Context, d *models.DID) error { return nil }
func (f *fakeDIDs) Delete(ctx context.Context, id int64) error      { return nil }
func (f *fakeDIDs) Count(ctx context.Context) (int64, error)        { return 0, nil }

type fakeProfiles struct {
	byID map[int64]*models.NormalizationProfile
}

func (f *fakeProfiles) Create(ctx context.Context, p *models.NormalizationProfile) error { return nil }
func (f *fakeProfiles) GetByID(ctx context.Context, id int64) (*models.NormalizationProfile, error) {
	return f.byID[id], nil
}
func (f *fakeProfiles) GetByName(ctx context.Context, name string) (*models.NormalizationProfile, error) {
	return nil, nil
}
func (f *fakeProfiles) List(ctx context.Context, offset, limit int) ([]models.NormalizationProfile, error) {
	return nil, nil
}
func (f *fakeProfiles) Update(ctx context.Context, p *models.NormalizationProfile) error { return nil }
func (f *fakeProfiles) Delete(ctx context.Context, id int64) error                       { return nil }
func (f *fakeProfiles) Count(ctx context.Context) (int64, error)                         { return 0, nil }

type fakeRules struct {
	rows []models.NormalizationRule
}

func (f *fakeRules) Create(ctx context.Context, r *models.NormalizationRule) error { return nil }
func (f *fakeRules) GetByID(ctx context.Context, id int64) (*models.NormalizationRule, error) {
	return nil, nil
}
func (f *fakeRules) List(ctx context.Context, offset, limit int) ([]models.NormalizationRule, error) {
	return nil, nil
}
func (f *fakeRules) ListByProfileType(ctx context.Context, profileID int64, ruleType int) ([]models.NormalizationRule, error) {
	var out []models.NormalizationRule
	for _, r := range f.rows {
		if r.ProfileID == profileID && r.RuleType == ruleType {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeRules) Update(ctx context.Context, r *models.NormalizationRule) error { return nil }
func (f *fakeRules) Delete(ctx context.Context, id int64) error                    { return nil }
func (f *fakeRules) Count(ctx context.Context) (int64, error)                      { return 0, nil }

// fixture is a small configured system: one tenant with the domain
// mypbx.com, one IPBX behind it, and one DID for Italian mobile numbers.
type fixture struct {
	domains  *fakeDomains
	ipbx     *fakeIPBX
	trunks   *fakeTrunks
	dids     *fakeDIDs
	profiles *fakeProfiles
	rules    *fakeRules
}

func newFixture() *fixture {
	ipbx := &models.IPBX{ID: 1, TenantID: 1, IPFqdn: "mypbx.com", Port: 5060}
	domainID := int64(1)
	ipbx.DomainID = &domainID

	return &fixture{
		domains: &fakeDomains{byName: map[string]*models.Domain{
			"mypbx.com": {ID: 1, Domain: "mypbx.com", TenantID: 1},
		}},
		ipbx: &fakeIPBX{
			byID:       map[int64]*models.IPBX{1: ipbx},
			byDomainID: map[int64]*models.IPBX{1: ipbx},
		},
		trunks: &fakeTrunks{byID: map[int64]*models.CarrierTrunk{
			1: {ID: 1, CarrierID: 1, Name: "carrier1", SIPProxy: "proxy.carrier.example", SIPProxyPort: 5060},
		}},
		dids: &fakeDIDs{rows: []models.DID{
			{ID: 1, TenantID: 1, IPBXID: 1, CarrierTrunkID: 1, DIDRegex: "^39[0-9]+$", DIDPrefix: "39"},
		}},
		profiles: &fakeProfiles{byID: map[int64]*models.NormalizationProfile{}},
		rules:    &fakeRules{},
	}
}

func (f *fixture) matcher() *Matcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repos := &database.Repositories{
		Domains:       f.domains,
		IPBX:          f.ipbx,
		CarrierTrunks: f.trunks,
		DIDs:          f.dids,
		Profiles:      f.profiles,
		Rules:         f.rules,
	}
	normalizer := normalize.NewNormalizer(normalize.NewPrefixIndex(f.rules, logger))
	return NewMatcher(repos, normalizer, logger)
}

func event(toURI string) *Event {
	return &Event{
		Event:    "sip-routing",
		CallID:   "call-1",
		FromName: "alice",
		FromURI:  "sip:alice@example.com",
		ToName:   "bob",
		ToURI:    toURI,
	}
}

func TestMatchByDomain(t *testing.T) {
	m := newFixture().matcher()

	decision, err := m.Match(context.Background(), event("sip:bob@mypbx.com:5060"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Kind != DecisionDomain {
		t.Fatalf("Kind = %v, want DecisionDomain", decision.Kind)
	}
	if decision.TenantID != 1 {
		t.Errorf("TenantID = %d, want 1", decision.TenantID)
	}
	if decision.IPBX == nil || decision.IPBX.IPFqdn != "mypbx.com" {
		t.Errorf("unexpected ipbx: %+v", decision.IPBX)
	}
}

func TestMatchByDID(t *testing.T) {
	m := newFixture().matcher()

	decision, err := m.Match(context.Background(), event("sip:39123456789@unknown.example"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Kind != DecisionDID {
		t.Fatalf("Kind = %v, want DecisionDID", decision.Kind)
	}
	if decision.Number != "39123456789" {
		t.Errorf("Number = %q, want %q", decision.Number, "39123456789")
	}
	if decision.CarrierTrunk == nil || decision.CarrierTrunk.Name != "carrier1" {
		t.Errorf("unexpected trunk: %+v", decision.CarrierTrunk)
	}
}

func TestMatchNoMatch(t *testing.T) {
	m := newFixture().matcher()

	// 36... shares no prefix with the configured DID and the domain is
	// unknown.
	_, err := m.Match(context.Background(), event("sip:36123456789@unknown.example"))
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestMatchDIDRequiresFullMatch(t *testing.T) {
	f := newFixture()
	f.dids.rows[0].DIDRegex = "^3912$"
	f.dids.rows[0].DIDPrefix = "3912"
	m := f.matcher()

	// 39123456789 starts with 3912 but the pattern must cover the whole
	// number.
	_, err := m.Match(context.Background(), event("sip:39123456789@unknown.example"))
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestMatchDIDLowestIDWins(t *testing.T) {
	f := newFixture()
	f.dids.rows = []models.DID{
		{ID: 7, TenantID: 1, IPBXID: 1, CarrierTrunkID: 1, DIDRegex: "^39[0-9]+$", DIDPrefix: "39"},
		{ID: 2, TenantID: 1, IPBXID: 1, CarrierTrunkID: 1, DIDRegex: "^391[0-9]+$", DIDPrefix: "391"},
	}
	m := f.matcher()

	decision, err := m.Match(context.Background(), event("sip:39123456789@unknown.example"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.DID == nil || decision.DID.ID != 2 {
		t.Fatalf("expected did 2 to win, got %+v", decision.DID)
	}
}

func TestMatchDIDSkipsBrokenPattern(t *testing.T) {
	f := newFixture()
	f.dids.rows = append([]models.DID{
		{ID: 1, TenantID: 1, IPBXID: 1, CarrierTrunkID: 1, DIDRegex: "^(39", DIDPrefix: "39"},
	}, models.DID{ID: 2, TenantID: 1, IPBXID: 1, CarrierTrunkID: 1, DIDRegex: "^39[0-9]+$", DIDPrefix: "39"})
	m := f.matcher()

	decision, err := m.Match(context.Background(), event("sip:39123456789@unknown.example"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.DID == nil || decision.DID.ID != 2 {
		t.Fatalf("expected the well-formed did to match, got %+v", decision.DID)
	}
}

func TestMatchDomainWithoutIPBXFallsThrough(t *testing.T) {
	f := newFixture()
	// Keep the domain registered, drop the endpoint binding. The DID branch
	// must still be evaluated.
	f.ipbx.byDomainID = map[int64]*models.IPBX{}
	m := f.matcher()

	decision, err := m.Match(context.Background(), event("sip:39123456789@mypbx.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Kind != DecisionDID {
		t.Fatalf("Kind = %v, want DecisionDID", decision.Kind)
	}
}

func TestMatchDIDTranslatesNumber(t *testing.T) {
	f := newFixture()
	profileID := int64(5)
	f.ipbx.byID[1].NormalizationProfileID = &profileID
	f.profiles.byID[profileID] = &models.NormalizationProfile{ID: profileID, AlwaysIntlPrefixPlus: true}
	f.rules.rows = []models.NormalizationRule{{
		ID: 1, ProfileID: profileID, RuleType: models.RuleTypeE164ToLocal,
		Priority: 1, MatchRegex: "^39", MatchPrefix: "39", ReplaceRegex: "0039",
	}}
	m := f.matcher()

	decision, err := m.Match(context.Background(), event("sip:39123456789@unknown.example"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Number != "+0039123456789" {
		t.Errorf("Number = %q, want %q", decision.Number, "+0039123456789")
	}
}

func TestMatchMalformedEvent(t *testing.T) {
	m := newFixture().matcher()

	_, err := m.Match(context.Background(), &Event{CallID: "call-1"})
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestMatchStoreErrorWrapped(t *testing.T) {
	f := newFixture()
	f.domains.err = errors.New("connection refused")
	m := f.matcher()

	_, err := m.Match(context.Background(), event("sip:bob@mypbx.com"))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestMatchDIDStoreErrorWrapped(t *testing.T) {
	f := newFixture()
	f.dids.err = errors.New("connection refused")
	m := f.matcher()

	_, err := m.Match(context.Background(), event("sip:39123456789@unknown.example"))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestInvalidatePatternsDropsCompiled(t *testing.T) {
	f := newFixture()
	m := f.matcher()

	if _, err := m.Match(context.Background(), event("sip:39123456789@unknown.example")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(m.patterns.compiled); n != 1 {
		t.Fatalf("compiled patterns = %d, want 1", n)
	}

	// Rewriting the row must not leave the old compiled pattern behind.
	f.dids.rows[0].DIDRegex = "^44[0-9]+$"
	f.dids.rows[0].DIDPrefix = "44"
	m.InvalidatePatterns()

	if n := len(m.patterns.compiled); n != 0 {
		t.Fatalf("compiled patterns after invalidate = %d, want 0", n)
	}

	decision, err := m.Match(context.Background(), event("sip:44123456789@unknown.example"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Kind != DecisionDID {
		t.Fatalf("Kind = %v, want DecisionDID", decision.Kind)
	}
	if _, ok := m.patterns.compiled["^44[0-9]+$"]; !ok {
		t.Error("new pattern not cached after rematch")
	}
	if _, ok := m.patterns.compiled["^39[0-9]+$"]; ok {
		t.Error("stale pattern still cached after invalidate")
	}
}
