package units

import "strings"

// Canonical unit symbols.
const (
	Kilogram   = "kg"
	Gram       = "g"
	Liter      = "L"
	Milliliter = "ml"
	Piece      = "pcs"
)

type Family string

const (
	FamilyUnknown Family = ""
	FamilyMass    Family = "mass"
	FamilyVolume  Family = "volume"
	FamilyCount   Family = "count"
)

var aliases = map[string]string{
	"kg":          Kilogram,
	"kgs":         Kilogram,
	"kilo":        Kilogram,
	"kilos":       Kilogram,
	"kilogram":    Kilogram,
	"kilograms":   Kilogram,
	"g":           Gram,
	"gr":          Gram,
	"gram":        Gram,
	"grams":       Gram,
	"l":           Liter,
	"lt":          Liter,
	"liter":       Liter,
	"liters":      Liter,
	"litre":       Liter,
	"litres":      Liter,
	"ml":          Milliliter,
	"milliliter":  Milliliter,
	"milliliters": Milliliter,
	"millilitre":  Milliliter,
	"millilitres": Milliliter,
	"pc":          Piece,
	"pcs":         Piece,
	"piece":       Piece,
	"pieces":      Piece,
}

// scale is the factor from a unit to its family's base unit.
var scale = map[string]float64{
	Kilogram:   1000,
	Gram:       1,
	Liter:      1000,
	Milliliter: 1,
	Piece:      1,
}

var families = map[string]Family{
	Kilogram:   FamilyMass,
	Gram:       FamilyMass,
	Liter:      FamilyVolume,
	Milliliter: FamilyVolume,
	Piece:      FamilyCount,
}

// Normalize maps a display or abbreviated unit ("Kilograms", "KG",
// "Pieces (pcs)") to its canonical symbol. Unknown units come back trimmed
// and lower-cased so callers can still compare them.
func Normalize(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		return ""
	}
	// "Pieces (pcs)" style labels carry the symbol in parentheses.
	if open := strings.Index(u, "("); open >= 0 {
		if close := strings.Index(u[open:], ")"); close > 0 {
			if canon, ok := aliases[strings.TrimSpace(u[open+1:open+close])]; ok {
				return canon
			}
		}
		u = strings.TrimSpace(u[:open])
	}
	if canon, ok := aliases[u]; ok {
		return canon
	}
	return u
}

func FamilyOf(unit string) Family {
	return families[Normalize(unit)]
}

// BaseUnit returns the unit on-hand quantities of a family are stored in.
func BaseUnit(f Family) string {
	switch f {
	case FamilyMass:
		return Gram
	case FamilyVolume:
		return Milliliter
	case FamilyCount:
		return Piece
	}
	return ""
}

func AreCompatibleUnits(a, b string) bool {
	fa, fb := FamilyOf(a), FamilyOf(b)
	return fa != FamilyUnknown && fa == fb
}

// Convert converts amount between two units of the same family. It returns 0
// when the units are unknown or belong to different families; callers must
// treat that 0 as a failed conversion, not as a zero quantity.
func Convert(amount float64, from, to string) float64 {
	f, t := Normalize(from), Normalize(to)
	if !AreCompatibleUnits(f, t) {
		return 0
	}
	if f == t {
		return amount
	}
	return amount * scale[f] / scale[t]
}
