package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"

	"github.com/siprouted/siprouted/internal/database"
)

// Rule is a compiled rewrite rule held by the prefix index.
type Rule struct {
	ID       int64
	Priority int
	Pattern  *regexp.Regexp
	Replace  string
}

type indexKey struct {
	profileID int64
	ruleType  int
}

// ruleSet holds the compiled rules of one (profile, rule type) pair, bucketed
// by match prefix. Rules inside a bucket keep (priority, id) order.
type ruleSet struct {
	buckets map[string][]*Rule
}

// PrefixIndex is a rebuildable in-memory index over normalization rules. Rule
// sets are loaded lazily per (profile, rule type), compiled once, and served
// from memory until Invalidate is called. Administrative rule writes must
// invalidate the index so a query never sees a stale rule set for longer
// than the write takes to land.
type PrefixIndex struct {
	rules  database.NormalizationRuleRepository
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[indexKey]*ruleSet
}

// NewPrefixIndex creates an empty index backed by the given rule repository.
func NewPrefixIndex(rules database.NormalizationRuleRepository, logger *slog.Logger) *PrefixIndex {
	return &PrefixIndex{
		rules:  rules,
		logger: logger.With("subsystem", "prefix_index"),
		cache:  make(map[indexKey]*ruleSet),
	}
}

// Invalidate drops every cached rule set. Called on any rule or profile write.
func (ix *PrefixIndex) Invalidate() {
	ix.mu.Lock()
	ix.cache = make(map[indexKey]*ruleSet)
	ix.mu.Unlock()
}

// Candidates returns the rules to try for the cleaned number, in
// (priority, id) order: exactly the rules whose match prefix is a member of
// the number's prefix set. Pruning is conservative, never a correctness
// filter: the returned set is a superset of the rules whose full pattern
// matches the number.
func (ix *PrefixIndex) Candidates(ctx context.Context, profileID int64, ruleType int, number string) ([]*Rule, error) {
	set, err := ix.get(ctx, profileID, ruleType)
	if err != nil {
		return nil, err
	}

	var out []*Rule
	for _, prefix := range PrefixSet(number) {
		out = append(out, set.buckets[prefix]...)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (ix *PrefixIndex) get(ctx context.Context, profileID int64, ruleType int) (*ruleSet, error) {
	key := indexKey{profileID: profileID, ruleType: ruleType}

	ix.mu.RLock()
	set, ok := ix.cache[key]
	ix.mu.RUnlock()
	if ok {
		return set, nil
	}

	set, err := ix.build(ctx, profileID, ruleType)
	if err != nil {
		return nil, err
	}

	ix.mu.Lock()
	// Another goroutine may have built the same set meanwhile; last write
	// wins, both are equivalent snapshots.
	ix.cache[key] = set
	ix.mu.Unlock()
	return set, nil
}

// build loads and compiles the rule set for one (profile, rule type) pair.
// Rules with an uncompilable pattern or a match prefix inconsistent with
// their pattern are data-integrity defects: logged and skipped so the rest of
// the set keeps working.
func (ix *PrefixIndex) build(ctx context.Context, profileID int64, ruleType int) (*ruleSet, error) {
	rows, err := ix.rules.ListByProfileType(ctx, profileID, ruleType)
	if err != nil {
		return nil, fmt.Errorf("loading rules for profile %d type %d: %w", profileID, ruleType, err)
	}

	set := &ruleSet{buckets: make(map[string][]*Rule)}
	for _, row := range rows {
		re, err := regexp.Compile(row.MatchRegex)
		if err != nil {
			ix.logger.Error("stored rule pattern does not compile, skipping rule",
				"rule_id", row.ID, "profile_id", profileID, "pattern", row.MatchRegex, "error", err)
			continue
		}
		if want := MatchPrefix(row.MatchRegex); row.MatchPrefix != want {
			ix.logger.Error("stored match prefix inconsistent with pattern, skipping rule",
				"rule_id", row.ID, "profile_id", profileID,
				"stored_prefix", row.MatchPrefix, "derived_prefix", want)
			continue
		}
		set.buckets[row.MatchPrefix] = append(set.buckets[row.MatchPrefix], &Rule{
			ID:       row.ID,
			Priority: row.Priority,
			Pattern:  re,
			Replace:  row.ReplaceRegex,
		})
	}
	return set, nil
}
