package normalize

import (
	"context"

	"github.com/siprouted/siprouted/internal/database/models"
)

// Normalizer converts dialed numbers between local and E.164 form by applying
// a profile's rewrite rules. Rules compose sequentially: each rule rewrites
// the output of the previous one.
type Normalizer struct {
	index *PrefixIndex
}

// NewNormalizer creates a Normalizer on top of a prefix index.
func NewNormalizer(index *PrefixIndex) *Normalizer {
	return &Normalizer{index: index}
}

// LocalToE164 converts a locally formatted number to E.164 using the
// profile's type-1 rules. A nil profile returns the cleaned number unchanged:
// normalization is opt-in per tenant.
func (n *Normalizer) LocalToE164(ctx context.Context, number string, profile *models.NormalizationProfile) (string, error) {
	number = CleanNumber(number)
	if profile == nil {
		return number, nil
	}

	rules, err := n.index.Candidates(ctx, profile.ID, models.RuleTypeLocalToE164, number)
	if err != nil {
		return "", err
	}
	return applyRules(number, rules), nil
}

// E164ToLocal converts an E.164 number to the profile's local form using the
// type-2 rules. When the profile sets AlwaysIntlPrefixPlus the result is
// prefixed with "+".
func (n *Normalizer) E164ToLocal(ctx context.Context, number string, profile *models.NormalizationProfile) (string, error) {
	number = CleanNumber(number)
	if profile == nil {
		return number, nil
	}

	rules, err := n.index.Candidates(ctx, profile.ID, models.RuleTypeE164ToLocal, number)
	if err != nil {
		return "", err
	}
	number = applyRules(number, rules)
	if profile.AlwaysIntlPrefixPlus {
		number = "+" + number
	}
	return number, nil
}

// applyRules runs the candidate rules in order. A rule whose pattern does not
// occur in the current string is a no-op; there is no short-circuit, every
// candidate gets its turn on the running result.
func applyRules(number string, rules []*Rule) string {
	for _, rule := range rules {
		number = rule.Pattern.ReplaceAllString(number, rule.Replace)
	}
	return number
}
