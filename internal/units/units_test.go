package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Kilograms":    Kilogram,
		"kg":           Kilogram,
		"KG":           Kilogram,
		" grams ":      Gram,
		"Liters":       Liter,
		"l":            Liter,
		"mL":           Milliliter,
		"Milliliters":  Milliliter,
		"Pieces (pcs)": Piece,
		"pcs":          Piece,
		"Grams (g)":    Gram,
		"":             "",
		"Cups":         "cups",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestAreCompatibleUnits(t *testing.T) {
	assert.True(t, AreCompatibleUnits("kg", "Grams"))
	assert.True(t, AreCompatibleUnits("L", "ml"))
	assert.True(t, AreCompatibleUnits("Pieces (pcs)", "pcs"))
	assert.False(t, AreCompatibleUnits("kg", "ml"))
	assert.False(t, AreCompatibleUnits("pcs", "g"))
	assert.False(t, AreCompatibleUnits("cups", "cups"))
}

func TestConvertWithinFamily(t *testing.T) {
	assert.InDelta(t, 2500.0, Convert(2.5, "kg", "g"), 1e-9)
	assert.InDelta(t, 0.03, Convert(30, "g", "Kilograms"), 1e-9)
	assert.InDelta(t, 1500.0, Convert(1.5, "L", "ml"), 1e-9)
	assert.InDelta(t, 0.2, Convert(200, "ml", "L"), 1e-9)
	assert.InDelta(t, 3.0, Convert(3, "pcs", "Pieces (pcs)"), 1e-9)
}

func TestConvertRoundTrip(t *testing.T) {
	pairs := [][2]string{{"kg", "g"}, {"g", "kg"}, {"L", "ml"}, {"ml", "L"}}
	values := []float64{0, 0.001, 1, 30, 200, 1234.5678, 1e6}
	for _, p := range pairs {
		for _, x := range values {
			got := Convert(Convert(x, p[0], p[1]), p[1], p[0])
			assert.InDelta(t, x, got, 1e-9*(1+x), "%v %s->%s->%s", x, p[0], p[1], p[0])
		}
	}
}

func TestConvertCrossFamilyReturnsZero(t *testing.T) {
	for _, x := range []float64{0.5, 1, 30, 1000} {
		assert.Zero(t, Convert(x, "kg", "ml"))
		assert.Zero(t, Convert(x, "pcs", "g"))
		assert.Zero(t, Convert(x, "L", "kg"))
		assert.Zero(t, Convert(x, "scoops", "g"))
	}
}

func TestBaseUnit(t *testing.T) {
	assert.Equal(t, Gram, BaseUnit(FamilyOf("Kilograms")))
	assert.Equal(t, Milliliter, BaseUnit(FamilyOf("L")))
	assert.Equal(t, Piece, BaseUnit(FamilyOf("pieces")))
	assert.Equal(t, "", BaseUnit(FamilyOf("cups")))
}
