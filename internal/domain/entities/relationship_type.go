package entities

import (
	"fmt"
	"strings"
	"time"
)

// Kind is a relationship kind from the closed vocabulary.
type Kind string

const (
	KindMother        Kind = "mother"
	KindFather        Kind = "father"
	KindSon           Kind = "son"
	KindDaughter      Kind = "daughter"
	KindBrother       Kind = "brother"
	KindSister        Kind = "sister"
	KindGrandfather   Kind = "grandfather"
	KindGrandmother   Kind = "grandmother"
	KindGrandson      Kind = "grandson"
	KindGranddaughter Kind = "granddaughter"
	KindUncle         Kind = "uncle"
	KindAunt          Kind = "aunt"
	KindNephew        Kind = "nephew"
	KindNiece         Kind = "niece"
	KindCousin        Kind = "cousin"
	KindHusband       Kind = "husband"
	KindWife          Kind = "wife"
	KindFatherInLaw   Kind = "father_in_law"
	KindMotherInLaw   Kind = "mother_in_law"
	KindSonInLaw      Kind = "son_in_law"
	KindDaughterInLaw Kind = "daughter_in_law"
	KindBrotherInLaw  Kind = "brother_in_law"
	KindSisterInLaw   Kind = "sister_in_law"
	KindStepfather    Kind = "stepfather"
	KindStepmother    Kind = "stepmother"
	KindStepson       Kind = "stepson"
	KindStepdaughter  Kind = "stepdaughter"
	KindStepbrother   Kind = "stepbrother"
	KindStepsister    Kind = "stepsister"
)

// DefaultLocale is the locale the catalog is seeded with.
const DefaultLocale = "en_US"

// MaxLocaleLength matches the width of the locale column.
const MaxLocaleLength = 10

// allKinds is ordered as the vocabulary is presented to users.
var allKinds = []Kind{
	KindMother, KindFather, KindSon, KindDaughter, KindBrother, KindSister,
	KindGrandfather, KindGrandmother, KindGrandson, KindGranddaughter,
	KindUncle, KindAunt, KindNephew, KindNiece, KindCousin,
	KindHusband, KindWife,
	KindFatherInLaw, KindMotherInLaw, KindSonInLaw, KindDaughterInLaw,
	KindBrotherInLaw, KindSisterInLaw,
	KindStepfather, KindStepmother, KindStepson, KindStepdaughter,
	KindStepbrother, KindStepsister,
}

var kindSet = func() map[Kind]struct{} {
	m := make(map[Kind]struct{}, len(allKinds))
	for _, k := range allKinds {
		m[k] = struct{}{}
	}
	return m
}()

// Kinds returns a copy of the full vocabulary.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k belongs to the vocabulary.
func (k Kind) Valid() bool {
	_, ok := kindSet[k]
	return ok
}

// ParseKind validates and converts a string to a Kind.
// Input is matched case-insensitively; hyphens and spaces are read as underscores.
func ParseKind(s string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	k := Kind(normalized)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// RelationshipType is a catalog entry: one kind under one locale.
type RelationshipType struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"relationship"`
	Locale    string    `json:"locale"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the kind against the vocabulary and the locale against
// the column width.
func (rt *RelationshipType) Validate() error {
	if !rt.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, rt.Kind)
	}
	if rt.Locale == "" || len(rt.Locale) > MaxLocaleLength {
		return fmt.Errorf("%w: %q (1 to %d characters)", ErrInvalidLocale, rt.Locale, MaxLocaleLength)
	}
	return nil
}

// DefaultRelationshipTypes returns the seed catalog: every kind under DefaultLocale.
func DefaultRelationshipTypes() []RelationshipType {
	types := make([]RelationshipType, len(allKinds))
	for i, k := range allKinds {
		types[i] = RelationshipType{Kind: k, Locale: DefaultLocale}
	}
	return types
}
