package location

import (
	"fmt"
	"unicode"

	"github.com/jgivc/fetchguard/internal/common"
	"github.com/jgivc/fetchguard/internal/config"
	"github.com/jgivc/fetchguard/internal/entity"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchPolicy decides which names are considered equal. The zero value is exact,
// case-sensitive matching.
type MatchPolicy struct {
	Name string
	key  func(string) string
}

var (
	MatchExact       = MatchPolicy{Name: config.MatchPolicyExact}
	MatchFoldCase    = MatchPolicy{Name: config.MatchPolicyFoldCase, key: foldCase}
	MatchFoldAccents = MatchPolicy{Name: config.MatchPolicyFoldAccents, key: foldAccents}
)

// Key returns the form of name used for comparison.
func (p MatchPolicy) Key(name string) string {
	if p.key == nil {
		return name
	}

	return p.key(name)
}

func foldCase(name string) string {
	// Casers keep state, one per call.
	return cases.Fold().String(name)
}

// foldAccents drops combining marks before folding, so "Doña Ana" matches "dona ana".
func foldAccents(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}

	return foldCase(stripped)
}

func PolicyByName(name string) (MatchPolicy, error) {
	switch name {
	case "", config.MatchPolicyExact:
		return MatchExact, nil
	case config.MatchPolicyFoldCase:
		return MatchFoldCase, nil
	case config.MatchPolicyFoldAccents:
		return MatchFoldAccents, nil
	}

	return MatchPolicy{}, fmt.Errorf("%w: unknown match policy %q", common.ErrConfiguration, name)
}

// Classify uses exact, case-sensitive matching.
func Classify(q entity.LocationQuery, refs *entity.ReferenceSets) entity.ClassificationResult {
	return ClassifyWithPolicy(q, refs, MatchExact)
}

/*
ClassifyWithPolicy checks, in this order:
 1. q in refs.Primary -> Primary;
 2. q in refs.AuxiliaryKnown -> KnownButOutOfScope;
 3. otherwise Unrecognized with the raw text.

Primary wins even if a name is misconfigured into both sets. The returned name is the
canonical name from the set, which differs from the raw text only under a folding policy.
*/
func ClassifyWithPolicy(q entity.LocationQuery, refs *entity.ReferenceSets, policy MatchPolicy) entity.ClassificationResult {
	if refs == nil {
		return entity.Unrecognized(q.RawText)
	}

	if name, ok := lookup(refs.Primary, q.RawText, policy); ok {
		return entity.Primary(name)
	}

	if name, ok := lookup(refs.AuxiliaryKnown, q.RawText, policy); ok {
		return entity.KnownButOutOfScope(name)
	}

	return entity.Unrecognized(q.RawText)
}

// lookup prefers the name as given, then the smallest canonical name with the same key, so
// the answer does not depend on map order.
func lookup(set map[string]struct{}, text string, policy MatchPolicy) (string, bool) {
	if _, exists := set[text]; exists {
		return text, true
	}

	if policy.key == nil {
		return "", false
	}

	key := policy.Key(text)

	var (
		found string
		ok    bool
	)

	for name := range set {
		if policy.Key(name) != key {
			continue
		}

		if !ok || name < found {
			found, ok = name, true
		}
	}

	return found, ok
}
