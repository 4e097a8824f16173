package database

import (
	"context"
	"testing"

	"github.com/siprouted/siprouted/internal/database/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("", t.TempDir())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seed creates a tenant with a domain, an ipbx bound to the domain, and a
// carrier with one trunk. Returns the populated repositories.
func seed(t *testing.T, db *DB) *Repositories {
	t.Helper()
	ctx := context.Background()
	repos := NewRepositories(db)

	tenant := &models.Tenant{Name: "acme"}
	if err := repos.Tenants.Create(ctx, tenant); err != nil {
		t.Fatalf("creating tenant: %v", err)
	}

	domain := &models.Domain{Domain: "mypbx.com", TenantID: tenant.ID}
	if err := repos.Domains.Create(ctx, domain); err != nil {
		t.Fatalf("creating domain: %v", err)
	}

	ipbx := &models.IPBX{TenantID: tenant.ID, DomainID: &domain.ID, IPFqdn: "mypbx.com", Port: 5060}
	if err := repos.IPBX.Create(ctx, ipbx); err != nil {
		t.Fatalf("creating ipbx: %v", err)
	}

	carrier := &models.Carrier{Name: "carrier1", TenantID: tenant.ID}
	if err := repos.Carriers.Create(ctx, carrier); err != nil {
		t.Fatalf("creating carrier: %v", err)
	}

	trunk := &models.CarrierTrunk{
		CarrierID: carrier.ID, Name: "trunk1",
		SIPProxy: "proxy.carrier.example", SIPProxyPort: 5060,
	}
	if err := repos.CarrierTrunks.Create(ctx, trunk); err != nil {
		t.Fatalf("creating carrier trunk: %v", err)
	}

	return repos
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	db, err := Open("", dir)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db.Close()

	// Re-opening the same data directory must find the migrations already
	// applied and succeed.
	db, err = Open("", dir)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	db.Close()
}

func TestRebind(t *testing.T) {
	sqlite := &DB{dialect: DialectSQLite}
	pg := &DB{dialect: DialectPostgres}

	q := `SELECT id FROM dids WHERE did_prefix IN (?,?) AND tenant_id = ?`
	if got := sqlite.rebind(q); got != q {
		t.Errorf("sqlite rebind changed the query: %q", got)
	}
	want := `SELECT id FROM dids WHERE did_prefix IN ($1,$2) AND tenant_id = $3`
	if got := pg.rebind(q); got != want {
		t.Errorf("pg rebind = %q, want %q", got, want)
	}
}

func TestTenantCRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewTenantRepository(db)

	tenant := &models.Tenant{Name: "acme"}
	if err := repo.Create(ctx, tenant); err != nil {
		t.Fatalf("create: %v", err)
	}
	if tenant.ID == 0 {
		t.Fatal("create did not populate the id")
	}

	got, err := repo.GetByName(ctx, "acme")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if got == nil || got.ID != tenant.ID {
		t.Fatalf("get by name returned %+v", got)
	}

	got.Name = "acme-renamed"
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = repo.GetByID(ctx, tenant.ID)
	if err != nil || got == nil || got.Name != "acme-renamed" {
		t.Fatalf("after update, got %+v err %v", got, err)
	}

	n, err := repo.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count = %d, err %v", n, err)
	}

	if err := repo.Delete(ctx, tenant.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = repo.GetByID(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after delete, got %+v", got)
	}
}

func TestDomainGetByDomain(t *testing.T) {
	db := testDB(t)
	repos := seed(t, db)
	ctx := context.Background()

	got, err := repos.Domains.GetByDomain(ctx, "mypbx.com")
	if err != nil {
		t.Fatalf("get by domain: %v", err)
	}
	if got == nil || got.Domain != "mypbx.com" {
		t.Fatalf("got %+v", got)
	}

	missing, err := repos.Domains.GetByDomain(ctx, "nope.example")
	if err != nil {
		t.Fatalf("get by domain: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown domain, got %+v", missing)
	}
}

func TestIPBXGetByDomainID(t *testing.T) {
	db := testDB(t)
	repos := seed(t, db)
	ctx := context.Background()

	domain, err := repos.Domains.GetByDomain(ctx, "mypbx.com")
	if err != nil || domain == nil {
		t.Fatalf("domain lookup failed: %v", err)
	}

	ipbx, err := repos.IPBX.GetByDomainID(ctx, domain.ID)
	if err != nil {
		t.Fatalf("get by domain id: %v", err)
	}
	if ipbx == nil || ipbx.IPFqdn != "mypbx.com" {
		t.Fatalf("got %+v", ipbx)
	}

	missing, err := repos.IPBX.GetByDomainID(ctx, domain.ID+100)
	if err != nil {
		t.Fatalf("get by domain id: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil, got %+v", missing)
	}
}

func TestDIDListByPrefixes(t *testing.T) {
	db := testDB(t)
	repos := seed(t, db)
	ctx := context.Background()

	ipbxes, err := repos.IPBX.List(ctx, 0, 1)
	if err != nil || len(ipbxes) != 1 {
		t.Fatalf("ipbx list failed: %v", err)
	}
	trunk, err := repos.CarrierTrunks.GetByName(ctx, "trunk1")
	if err != nil || trunk == nil {
		t.Fatalf("trunk lookup failed: %v", err)
	}

	for _, d := range []struct{ regex, prefix string }{
		{"^39[0-9]+$", "39"},
		{"^391[0-9]+$", "391"},
		{"^44[0-9]+$", "44"},
	} {
		did := &models.DID{
			TenantID: ipbxes[0].TenantID, IPBXID: ipbxes[0].ID, CarrierTrunkID: trunk.ID,
			DIDRegex: d.regex, DIDPrefix: d.prefix,
		}
		if err := repos.DIDs.Create(ctx, did); err != nil {
			t.Fatalf("creating did: %v", err)
		}
	}

	got, err := repos.DIDs.ListByPrefixes(ctx, []string{"", "3", "39", "391"})
	if err != nil {
		t.Fatalf("list by prefixes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// id-ascending ordering.
	if got[0].DIDPrefix != "39" || got[1].DIDPrefix != "391" {
		t.Errorf("unexpected order: %q, %q", got[0].DIDPrefix, got[1].DIDPrefix)
	}
	if got[0].ID >= got[1].ID {
		t.Errorf("rows not ordered by id: %d, %d", got[0].ID, got[1].ID)
	}

	none, err := repos.DIDs.ListByPrefixes(ctx, nil)
	if err != nil {
		t.Fatalf("list by empty prefixes: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no rows for an empty prefix set, got %d", len(none))
	}
}

func TestNormalizationRuleOrdering(t *testing.T) {
	db := testDB(t)
	repos := seed(t, db)
	ctx := context.Background()

	tenant, err := repos.Tenants.GetByName(ctx, "acme")
	if err != nil || tenant == nil {
		t.Fatalf("tenant lookup failed: %v", err)
	}

	profile := &models.NormalizationProfile{TenantID: tenant.ID, Name: "it-default"}
	if err := repos.Profiles.Create(ctx, profile); err != nil {
		t.Fatalf("creating profile: %v", err)
	}

	// Insert out of priority order; the query must order (priority, id).
	for _, r := range []struct {
		priority int
		match    string
	}{
		{2, "^39"},
		{1, "^0"},
		{1, "^00"},
	} {
		rule := &models.NormalizationRule{
			ProfileID: profile.ID, RuleType: models.RuleTypeLocalToE164,
			Priority: r.priority, MatchRegex: r.match, MatchPrefix: "",
		}
		if err := repos.Rules.Create(ctx, rule); err != nil {
			t.Fatalf("creating rule: %v", err)
		}
	}

	rules, err := repos.Rules.ListByProfileType(ctx, profile.ID, models.RuleTypeLocalToE164)
	if err != nil {
		t.Fatalf("list by profile type: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("len = %d, want 3", len(rules))
	}
	if rules[0].MatchRegex != "^0" || rules[1].MatchRegex != "^00" || rules[2].MatchRegex != "^39" {
		t.Errorf("unexpected order: %q, %q, %q",
			rules[0].MatchRegex, rules[1].MatchRegex, rules[2].MatchRegex)
	}

	// Type filter: no type-2 rules exist.
	other, err := repos.Rules.ListByProfileType(ctx, profile.ID, models.RuleTypeE164ToLocal)
	if err != nil {
		t.Fatalf("list by profile type: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no e164-to-local rules, got %d", len(other))
	}
}

func TestCarrierTrunkGetByName(t *testing.T) {
	db := testDB(t)
	repos := seed(t, db)
	ctx := context.Background()

	trunk, err := repos.CarrierTrunks.GetByName(ctx, "trunk1")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if trunk == nil || trunk.SIPProxy != "proxy.carrier.example" {
		t.Fatalf("got %+v", trunk)
	}

	missing, err := repos.CarrierTrunks.GetByName(ctx, "nope")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil, got %+v", missing)
	}
}

func TestListPagination(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewTenantRepository(db)

	for _, name := range []string{"a", "b", "c", "d"} {
		if err := repo.Create(ctx, &models.Tenant{Name: name}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	page, err := repo.List(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("len = %d, want 2", len(page))
	}
	if page[0].Name != "b" || page[1].Name != "c" {
		t.Errorf("unexpected page: %q, %q", page[0].Name, page[1].Name)
	}
}
