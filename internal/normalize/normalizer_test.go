package normalize

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/siprouted/siprouted/internal/database/models"
)

// fakeRuleRepo serves a fixed rule list and counts loads, so tests can watch
// the index cache and invalidation behavior.
type fakeRuleRepo struct {
	rules []models.NormalizationRule
	err   error
	loads int
}

func (f *fakeRuleRepo) Create(ctx context.Context, rule *models.NormalizationRule) error {
	return nil
}

func (f *fakeRuleRepo) GetByID(ctx context.Context, id int64) (*models.NormalizationRule, error) {
	return nil, nil
}

func (f *fakeRuleRepo) List(ctx context.Context, offset, limit int) ([]models.NormalizationRule, error) {
	return f.rules, nil
}

func (f *fakeRuleRepo) ListByProfileType(ctx context.Context, profileID int64, ruleType int) ([]models.NormalizationRule, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.NormalizationRule
	for _, r := range f.rules {
		if r.ProfileID == profileID && r.RuleType == ruleType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) Update(ctx context.Context, rule *models.NormalizationRule) error {
	return nil
}

func (f *fakeRuleRepo) Delete(ctx context.Context, id int64) error { return nil }

func (f *fakeRuleRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(f.rules)), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rule(id int64, profileID int64, ruleType, priority int, match, replace string) models.NormalizationRule {
	return models.NormalizationRule{
		ID:           id,
		ProfileID:    profileID,
		RuleType:     ruleType,
		Priority:     priority,
		MatchRegex:   match,
		MatchPrefix:  MatchPrefix(match),
		ReplaceRegex: replace,
	}
}

func TestCandidatesOrderedByPriorityThenID(t *testing.T) {
	repo := &fakeRuleRepo{rules: []models.NormalizationRule{
		rule(3, 1, models.RuleTypeLocalToE164, 2, "^0", "39"),
		rule(1, 1, models.RuleTypeLocalToE164, 1, "^00", ""),
		rule(2, 1, models.RuleTypeLocalToE164, 1, "^0([0-9]+)$", "39$1"),
	}}
	ix := NewPrefixIndex(repo, testLogger())

	got, err := ix.Candidates(context.Background(), 1, models.RuleTypeLocalToE164, "0111234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ids []int64
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	want := []int64{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("got ids %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got ids %v, want %v", ids, want)
		}
	}
}

func TestCandidatesPrunesByPrefix(t *testing.T) {
	repo := &fakeRuleRepo{rules: []models.NormalizationRule{
		rule(1, 1, models.RuleTypeLocalToE164, 1, "^39", ""),
		rule(2, 1, models.RuleTypeLocalToE164, 1, "^44", ""),
	}}
	ix := NewPrefixIndex(repo, testLogger())

	got, err := ix.Candidates(context.Background(), 1, models.RuleTypeLocalToE164, "390123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected only rule 1, got %d candidates", len(got))
	}
}

func TestIndexCachesAndInvalidates(t *testing.T) {
	repo := &fakeRuleRepo{rules: []models.NormalizationRule{
		rule(1, 1, models.RuleTypeLocalToE164, 1, "^0", "39"),
	}}
	ix := NewPrefixIndex(repo, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := ix.Candidates(ctx, 1, models.RuleTypeLocalToE164, "0123"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if repo.loads != 1 {
		t.Fatalf("loads = %d, want 1 (cached)", repo.loads)
	}

	ix.Invalidate()
	if _, err := ix.Candidates(ctx, 1, models.RuleTypeLocalToE164, "0123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.loads != 2 {
		t.Fatalf("loads = %d, want 2 (rebuilt after invalidate)", repo.loads)
	}
}

func TestIndexSkipsBrokenRules(t *testing.T) {
	bad := models.NormalizationRule{
		ID: 1, ProfileID: 1, RuleType: models.RuleTypeLocalToE164,
		MatchRegex: "^(unclosed", MatchPrefix: "",
	}
	inconsistent := rule(2, 1, models.RuleTypeLocalToE164, 1, "^39", "")
	inconsistent.MatchPrefix = "44"
	good := rule(3, 1, models.RuleTypeLocalToE164, 1, "^39", "0039")

	repo := &fakeRuleRepo{rules: []models.NormalizationRule{bad, inconsistent, good}}
	ix := NewPrefixIndex(repo, testLogger())

	got, err := ix.Candidates(context.Background(), 1, models.RuleTypeLocalToE164, "390123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected only the well-formed rule, got %d candidates", len(got))
	}
}

func TestIndexPropagatesStoreError(t *testing.T) {
	repo := &fakeRuleRepo{err: errors.New("connection refused")}
	ix := NewPrefixIndex(repo, testLogger())

	if _, err := ix.Candidates(context.Background(), 1, models.RuleTypeLocalToE164, "0123"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestLocalToE164NilProfile(t *testing.T) {
	n := NewNormalizer(NewPrefixIndex(&fakeRuleRepo{}, testLogger()))

	got, err := n.LocalToE164(context.Background(), "+39 011 123", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "39011123" {
		t.Errorf("got %q, want cleaned number unchanged", got)
	}
}

func TestLocalToE164AppliesRulesInOrder(t *testing.T) {
	profile := &models.NormalizationProfile{ID: 1}
	repo := &fakeRuleRepo{rules: []models.NormalizationRule{
		rule(1, 1, models.RuleTypeLocalToE164, 1, "^0([0-9]+)$", "39$1"),
		rule(2, 1, models.RuleTypeLocalToE164, 2, "^39", "0039"),
	}}
	n := NewNormalizer(NewPrefixIndex(repo, testLogger()))

	got, err := n.LocalToE164(context.Background(), "0111234567", profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Rule 1 turns 0111234567 into 39111234567, rule 2 then rewrites the
	// leading 39. Sequential composition, not first match wins.
	if got != "0039111234567" {
		t.Errorf("got %q, want %q", got, "0039111234567")
	}
}

func TestE164ToLocalAlwaysIntlPrefixPlus(t *testing.T) {
	profile := &models.NormalizationProfile{ID: 1, AlwaysIntlPrefixPlus: true}
	repo := &fakeRuleRepo{rules: []models.NormalizationRule{
		rule(1, 1, models.RuleTypeE164ToLocal, 1, "^0039", "39"),
	}}
	n := NewNormalizer(NewPrefixIndex(repo, testLogger()))

	got, err := n.E164ToLocal(context.Background(), "0039111234567", profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "+39111234567" {
		t.Errorf("got %q, want %q", got, "+39111234567")
	}
}

func TestE164ToLocalNoMatchingRules(t *testing.T) {
	profile := &models.NormalizationProfile{ID: 1}
	n := NewNormalizer(NewPrefixIndex(&fakeRuleRepo{}, testLogger()))

	got, err := n.E164ToLocal(context.Background(), "39111234567", profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "39111234567" {
		t.Errorf("got %q, want number unchanged", got)
	}
}
