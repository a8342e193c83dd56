package models

// UnitKind represents the canonical unit family of an ingredient
type UnitKind string

const (
	KindMass   UnitKind = "mass"
	KindVolume UnitKind = "volume"
	KindCount  UnitKind = "count"
)

// CanonicalUnit returns the canonical unit symbol for a unit kind.
// All quantity math downstream of the ledger happens in these units.
func (k UnitKind) CanonicalUnit() string {
	switch k {
	case KindMass:
		return "g"
	case KindVolume:
		return "ml"
	default:
		return "pc"
	}
}

// BlockSize returns the quantity a normalized unit price refers to:
// per 1000 canonical units (kg / liter) for mass and volume, per item
// for count.
func (k UnitKind) BlockSize() float64 {
	if k == KindCount {
		return 1
	}
	return 1000
}

// KindOfCanonicalUnit maps a canonical unit symbol back to its unit family.
func KindOfCanonicalUnit(unit string) UnitKind {
	switch unit {
	case "g":
		return KindMass
	case "ml":
		return KindVolume
	default:
		return KindCount
	}
}

// IngredientCategory represents the category of an ingredient
type IngredientCategory string

const (
	// Ingredient categories
	CategoryProtein    IngredientCategory = "protein"
	CategoryProduce    IngredientCategory = "produce"
	CategoryDairy      IngredientCategory = "dairy"
	CategoryDryGoods   IngredientCategory = "dry_goods"
	CategorySpices     IngredientCategory = "spices"
	CategoryCondiments IngredientCategory = "condiments"
	CategoryBeverages  IngredientCategory = "beverages"
	CategoryOther      IngredientCategory = "other"
)

// IngredientRef identifies a fungible ingredient kind. Immutable once
// created; the catalog owns these rows and this subsystem only reads them.
type IngredientRef struct {
	IngredientID string `gorm:"column:id;primary_key"`
	Name         string
	Kind         UnitKind `gorm:"type:varchar(16)"`
	Category     IngredientCategory
	// DensityGramsPerML allows mass<->volume conversion for ingredients
	// that declare it. Zero means no density is known.
	DensityGramsPerML float64
	// ReferencePrice is the catalog's advisory unit price per BlockSize
	// canonical units, in ReferenceCurrency. Zero means none published.
	ReferencePrice    float64
	ReferenceCurrency string
}

// TableName sets the table name for IngredientRef
func (IngredientRef) TableName() string {
	return "ingredients"
}

// HasReferencePrice reports whether the catalog publishes a price for
// this ingredient.
func (r *IngredientRef) HasReferencePrice() bool {
	return r.ReferencePrice > 0
}
