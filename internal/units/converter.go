package units

import (
	"errors"
	"fmt"

	"fridgechef/internal/models"
)

var (
	// ErrUnknownUnit is returned for unit symbols the converter has no rule for.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrIncompatibleUnitKind is returned when a conversion would cross unit
	// families without a declared density. Never approximated silently.
	ErrIncompatibleUnitKind = errors.New("incompatible unit kinds")
)

// unitRule maps a unit symbol to its family and the factor to the family's
// canonical unit (grams, milliliters, or pieces).
type unitRule struct {
	Kind   models.UnitKind
	Factor float64
}

var unitRules = map[string]unitRule{
	// Weight units
	"g":  {models.KindMass, 1},
	"kg": {models.KindMass, 1000},
	"mg": {models.KindMass, 0.001},
	"oz": {models.KindMass, 28.3495},
	"lb": {models.KindMass, 453.592},

	// Volume units
	"ml":    {models.KindVolume, 1},
	"l":     {models.KindVolume, 1000},
	"cl":    {models.KindVolume, 10},
	"dl":    {models.KindVolume, 100},
	"fl_oz": {models.KindVolume, 29.5735},
	"cup":   {models.KindVolume, 236.588},
	"tbsp":  {models.KindVolume, 14.7868},
	"tsp":   {models.KindVolume, 4.92892},

	// Count units
	"pc":    {models.KindCount, 1},
	"pcs":   {models.KindCount, 1},
	"piece": {models.KindCount, 1},
	"unit":  {models.KindCount, 1},
	"clove": {models.KindCount, 1},
}

// Converter converts quantities and unit prices between declared units and
// an ingredient's canonical unit.
type Converter struct{}

// NewConverter creates a unit converter.
func NewConverter() *Converter {
	return &Converter{}
}

// factorToCanonical resolves the multiplicative factor from one declared
// unit to the ingredient's canonical unit, crossing mass<->volume only
// when the ingredient declares a density.
func (c *Converter) factorToCanonical(unit string, ref *models.IngredientRef) (float64, error) {
	rule, ok := unitRules[unit]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}

	if rule.Kind == ref.Kind {
		return rule.Factor, nil
	}

	// Count never converts to or from mass/volume.
	if rule.Kind == models.KindCount || ref.Kind == models.KindCount {
		return 0, fmt.Errorf("%w: %s vs %s for ingredient %s", ErrIncompatibleUnitKind, rule.Kind, ref.Kind, ref.IngredientID)
	}

	if ref.DensityGramsPerML <= 0 {
		return 0, fmt.Errorf("%w: %s vs %s for ingredient %s (no density declared)", ErrIncompatibleUnitKind, rule.Kind, ref.Kind, ref.IngredientID)
	}

	if rule.Kind == models.KindMass {
		// grams -> milliliters
		return rule.Factor / ref.DensityGramsPerML, nil
	}
	// milliliters -> grams
	return rule.Factor * ref.DensityGramsPerML, nil
}

// ToCanonical converts a quantity in the given unit to the ingredient's
// canonical unit (grams, milliliters, or pieces).
func (c *Converter) ToCanonical(quantity float64, unit string, ref *models.IngredientRef) (float64, error) {
	factor, err := c.factorToCanonical(unit, ref)
	if err != nil {
		return 0, err
	}
	return quantity * factor, nil
}

// CanonicalScale converts a quantity to its unit family's canonical scale
// (grams, milliliters, or pieces) without an ingredient reference. Unknown
// units pass through unchanged.
func (c *Converter) CanonicalScale(quantity float64, unit string) float64 {
	if rule, ok := unitRules[unit]; ok {
		return quantity * rule.Factor
	}
	return quantity
}

// NormalizeUnitPrice converts a price quoted per one declared unit to the
// normalized form: per 1000 canonical units for mass and volume, per item
// for count.
func (c *Converter) NormalizeUnitPrice(price float64, unit string, ref *models.IngredientRef) (float64, error) {
	factor, err := c.factorToCanonical(unit, ref)
	if err != nil {
		return 0, err
	}
	return price / factor * ref.Kind.BlockSize(), nil
}

// Value returns the monetary value of a canonical quantity at a normalized
// unit price.
func Value(quantity, unitPrice float64, kind models.UnitKind) float64 {
	return unitPrice * quantity / kind.BlockSize()
}
