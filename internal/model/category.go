// Package model defines the permit, classification, and dataset types shared
// across ingestion, classification, geocoding, and rendering.
package model

// Category is the housing-type tag assigned to a permit record.
type Category string

const (
	CategoryULS       Category = "ULS"
	CategoryMultiplex Category = "MULTIPLEX"
	CategoryTownhome  Category = "TOWNHOME"
	CategoryDADU      Category = "DADU"
	CategoryAADU      Category = "AADU"
	CategoryNewSFR    Category = "NEW_SFR"
	CategoryExcluded  Category = "EXCLUDED"
)

// Categories returns every category in resolution priority order
// (highest first).
func Categories() []Category {
	return []Category{
		CategoryULS,
		CategoryMultiplex,
		CategoryTownhome,
		CategoryDADU,
		CategoryAADU,
		CategoryNewSFR,
		CategoryExcluded,
	}
}

// MiddleHousingCategories returns the categories counted as middle housing.
func MiddleHousingCategories() []Category {
	return []Category{
		CategoryULS,
		CategoryMultiplex,
		CategoryTownhome,
		CategoryDADU,
		CategoryAADU,
	}
}

// IsMiddleHousing reports whether the category is a middle-housing type.
func (c Category) IsMiddleHousing() bool {
	switch c {
	case CategoryULS, CategoryMultiplex, CategoryTownhome, CategoryDADU, CategoryAADU:
		return true
	}
	return false
}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

// Label returns a human-readable label for display.
func (c Category) Label() string {
	switch c {
	case CategoryULS:
		return "Unit Lot Subdivision"
	case CategoryMultiplex:
		return "Multiplex"
	case CategoryTownhome:
		return "Townhome"
	case CategoryDADU:
		return "Detached ADU"
	case CategoryAADU:
		return "Attached ADU"
	case CategoryNewSFR:
		return "New Single Family"
	case CategoryExcluded:
		return "Excluded"
	}
	return string(c)
}
