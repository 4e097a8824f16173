package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/siprouted/siprouted/internal/database/models"
)

func testClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := New(Config{Address: mr.Addr(), TTL: time.Minute})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestSetGetDelete(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	type value struct {
		Name string `json:"name"`
	}

	if err := client.Set(ctx, "k1", value{Name: "acme"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got value
	hit, err := client.Get(ctx, "k1", &got)
	if err != nil || !hit {
		t.Fatalf("get: hit=%v err=%v", hit, err)
	}
	if got.Name != "acme" {
		t.Errorf("Name = %q, want %q", got.Name, "acme")
	}

	if err := client.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	hit, err = client.Get(ctx, "k1", &got)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if hit {
		t.Fatal("expected miss after delete")
	}
}

func TestGetMiss(t *testing.T) {
	client, _ := testClient(t)

	var got struct{}
	hit, err := client.Get(context.Background(), "missing", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit {
		t.Fatal("expected miss")
	}
}

func TestGetDegradesOnRedisFailure(t *testing.T) {
	client, mr := testClient(t)
	mr.Close()

	var got struct{}
	hit, err := client.Get(context.Background(), "k1", &got)
	if err != nil {
		t.Fatalf("expected graceful miss, got error: %v", err)
	}
	if hit {
		t.Fatal("expected miss when redis is down")
	}
}

func TestDeletePrefix(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	for _, key := range []string{"siprouted:domain:a.com", "siprouted:domain:b.com", "other:key"} {
		if err := client.Set(ctx, key, 1); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	if err := client.DeletePrefix(ctx, "siprouted:domain:"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}

	var got int
	if hit, _ := client.Get(ctx, "siprouted:domain:a.com", &got); hit {
		t.Error("prefixed key survived")
	}
	if hit, _ := client.Get(ctx, "other:key", &got); !hit {
		t.Error("unrelated key was deleted")
	}
}

// countingDomains counts store hits behind the cache decorator.
type countingDomains struct {
	byName map[string]*models.Domain
	hits   int
}

func (f *countingDomains) Create(ctx context.Context, d *models.Domain) error {
	f.byName[d.Domain] = d
	return nil
}
func (f *countingDomains) GetByID(ctx context.Context, id int64) (*models.Domain, error) {
	return nil, nil
}
func (f *countingDomains) GetByDomain(ctx context.Context, domain string) (*models.Domain, error) {
	f.hits++
	return f.byName[domain], nil
}
func (f *countingDomains) List(ctx context.Context, offset, limit int) ([]models.Domain, error) {
	return nil, nil
}
func (f *countingDomains) Update(ctx context.Context, d *models.Domain) error { return nil }
func (f *countingDomains) Delete(ctx context.Context, id int64) error         { return nil }
func (f *countingDomains) Count(ctx context.Context) (int64, error)           { return 0, nil }

func TestDomainsCachesLookups(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	store := &countingDomains{byName: map[string]*models.Domain{
		"mypbx.com": {ID: 1, Domain: "mypbx.com", TenantID: 1},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	domains := NewDomains(store, client, logger)

	for i := 0; i < 3; i++ {
		got, err := domains.GetByDomain(ctx, "mypbx.com")
		if err != nil {
			t.Fatalf("get by domain: %v", err)
		}
		if got == nil || got.ID != 1 {
			t.Fatalf("got %+v", got)
		}
	}
	if store.hits != 1 {
		t.Errorf("store hits = %d, want 1 (cached)", store.hits)
	}
}

func TestDomainsCachesNegativeLookups(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	store := &countingDomains{byName: map[string]*models.Domain{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	domains := NewDomains(store, client, logger)

	for i := 0; i < 3; i++ {
		got, err := domains.GetByDomain(ctx, "scan.example")
		if err != nil {
			t.Fatalf("get by domain: %v", err)
		}
		if got != nil {
			t.Fatalf("expected nil, got %+v", got)
		}
	}
	if store.hits != 1 {
		t.Errorf("store hits = %d, want 1 (negative result cached)", store.hits)
	}
}

func TestDomainsWriteInvalidates(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	store := &countingDomains{byName: map[string]*models.Domain{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	domains := NewDomains(store, client, logger)

	// Prime a negative entry.
	if _, err := domains.GetByDomain(ctx, "mypbx.com"); err != nil {
		t.Fatalf("get by domain: %v", err)
	}

	// Create the domain; the stale negative entry must be dropped.
	if err := domains.Create(ctx, &models.Domain{ID: 1, Domain: "mypbx.com", TenantID: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := domains.GetByDomain(ctx, "mypbx.com")
	if err != nil {
		t.Fatalf("get by domain: %v", err)
	}
	if got == nil {
		t.Fatal("expected the created domain, got cached absence")
	}
}
