package entity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jgivc/fetchguard/internal/common"
)

type ClassificationKind int

const (
	KindUnrecognized ClassificationKind = iota
	KindPrimary
	KindKnownButOutOfScope
)

func (k ClassificationKind) String() string {
	return [...]string{"unrecognized", "primary", "known_out_of_scope"}[k]
}

// LocationQuery is a user supplied location name.
type LocationQuery struct {
	RawText string
}

// NewLocationQuery trims surrounding whitespace. No other normalization happens here.
func NewLocationQuery(raw string) (LocationQuery, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return LocationQuery{}, common.ErrEmptyQueryError
	}

	return LocationQuery{RawText: text}, nil
}

// ReferenceSets holds the in-scope names and the names known to exist but out of scope.
// The two sets must not overlap. Loaded once per session, read-only afterwards.
type ReferenceSets struct {
	Primary        map[string]struct{}
	AuxiliaryKnown map[string]struct{}
}

func NewReferenceSets(primary, auxiliary []string) (*ReferenceSets, error) {
	refs := &ReferenceSets{
		Primary:        toSet(primary),
		AuxiliaryKnown: toSet(auxiliary),
	}

	if err := refs.Validate(); err != nil {
		return nil, err
	}

	return refs, nil
}

func (r *ReferenceSets) Validate() error {
	var overlap []string
	for name := range r.Primary {
		if _, exists := r.AuxiliaryKnown[name]; exists {
			overlap = append(overlap, name)
		}
	}

	if len(overlap) > 0 {
		sort.Strings(overlap)

		return fmt.Errorf("%w: %s", common.ErrReferenceSetsOverlapError, strings.Join(overlap, ", "))
	}

	return nil
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}

	return set
}

// ClassificationResult is one of Primary(name), KnownButOutOfScope(name) or
// Unrecognized(raw text).
type ClassificationResult struct {
	Kind ClassificationKind
	Name string
}

func Primary(name string) ClassificationResult {
	return ClassificationResult{Kind: KindPrimary, Name: name}
}

func KnownButOutOfScope(name string) ClassificationResult {
	return ClassificationResult{Kind: KindKnownButOutOfScope, Name: name}
}

func Unrecognized(rawText string) ClassificationResult {
	return ClassificationResult{Kind: KindUnrecognized, Name: rawText}
}

// Figure is an aggregate value reported for a primary location.
type Figure struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type OutcomeCounter struct {
	Kind    string `yaml:"kind" json:"kind"`
	Counter int64  `yaml:"counter" json:"counter"`
}

// LocationReport is a classification together with what the presentation layer needs to
// render it.
type LocationReport struct {
	ID      string
	Query   string
	Result  ClassificationResult
	Figures []Figure
	// FiguresUnavailable is set when the figures query failed, as opposed to returning nothing.
	FiguresUnavailable bool
}
