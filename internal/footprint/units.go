package footprint

import (
	"fmt"
	"strings"
)

// Supported ingredient units: mass in g/kg, volume in ml/l. Amounts convert
// within a dimension only; mass-to-volume needs a density the catalog does not
// carry, so a cross-dimension item is a per-item unit mismatch.

type Dimension int

const (
	DimensionUnknown Dimension = iota
	DimensionMass
	DimensionVolume
)

// normalizeUnit folds case and surrounding whitespace; "L" and "KG" are the
// same units as "l" and "kg".
func normalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

func UnitDimension(unit string) Dimension {
	switch normalizeUnit(unit) {
	case "g", "kg":
		return DimensionMass
	case "ml", "l":
		return DimensionVolume
	}
	return DimensionUnknown
}

// baseAmount converts an amount to the dimension's base unit (kg or L).
func baseAmount(amount float64, unit string) (float64, Dimension, error) {
	switch normalizeUnit(unit) {
	case "kg":
		return amount, DimensionMass, nil
	case "g":
		return amount / 1000, DimensionMass, nil
	case "l":
		return amount, DimensionVolume, nil
	case "ml":
		return amount / 1000, DimensionVolume, nil
	}
	return 0, DimensionUnknown, fmt.Errorf("unsupported unit %q", unit)
}

// ConvertAmount converts an amount between units of the same dimension.
func ConvertAmount(amount float64, fromUnit, toUnit string) (float64, error) {
	from, to := normalizeUnit(fromUnit), normalizeUnit(toUnit)
	if from == to {
		return amount, nil
	}
	base, fromDim, err := baseAmount(amount, from)
	if err != nil {
		return 0, err
	}
	toDim := UnitDimension(to)
	if toDim == DimensionUnknown {
		return 0, fmt.Errorf("unsupported unit %q", toUnit)
	}
	if fromDim != toDim {
		return 0, fmt.Errorf("cannot convert %s to %s", from, to)
	}
	switch to {
	case "kg", "l":
		return base, nil
	case "g", "ml":
		return base * 1000, nil
	}
	return 0, fmt.Errorf("unsupported unit %q", toUnit)
}
