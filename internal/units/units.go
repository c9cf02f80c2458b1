// Package units converts field areas between square meters and the regional
// land units used by growers (hectare, alqueire paulista, alqueire mineiro).
package units

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidInput is returned for negative or non-finite values, unknown
// units and non-positive conversion factors.
var ErrInvalidInput = eris.New("units: invalid input")

// AreaUnit identifies a supported area unit.
type AreaUnit string

// Supported area units.
const (
	SquareMeters     AreaUnit = "square_meters"
	Hectare          AreaUnit = "hectare"
	AlqueirePaulista AreaUnit = "alqueire_paulista"
	AlqueireMineiro  AreaUnit = "alqueire_mineiro"
)

// Canonical conversion factors in square meters per unit.
const (
	SquareMetersPerHectare          = 10_000.0
	SquareMetersPerAlqueirePaulista = 24_200.0
	SquareMetersPerAlqueireMineiro  = 48_400.0
)

// AllUnits lists every supported unit in display order.
var AllUnits = []AreaUnit{SquareMeters, Hectare, AlqueirePaulista, AlqueireMineiro}

var abbreviations = map[AreaUnit]string{
	SquareMeters:     "m²",
	Hectare:          "ha",
	AlqueirePaulista: "alq",
	AlqueireMineiro:  "alq MG",
}

var aliases = map[string]AreaUnit{
	"square_meters":     SquareMeters,
	"squaremeters":      SquareMeters,
	"m2":                SquareMeters,
	"m²":                SquareMeters,
	"sqm":               SquareMeters,
	"hectare":           Hectare,
	"hectares":          Hectare,
	"ha":                Hectare,
	"alqueire_paulista": AlqueirePaulista,
	"alqueirepaulista":  AlqueirePaulista,
	"alq":               AlqueirePaulista,
	"alq_sp":            AlqueirePaulista,
	"alqueire_mineiro":  AlqueireMineiro,
	"alqueiremineiro":   AlqueireMineiro,
	"alq_mg":            AlqueireMineiro,
	"alq mg":            AlqueireMineiro,
}

// Abbreviation returns the short label rendered after formatted values.
func (u AreaUnit) Abbreviation() string {
	return abbreviations[u]
}

// Valid reports whether u is a supported unit.
func (u AreaUnit) Valid() bool {
	_, ok := abbreviations[u]
	return ok
}

// ParseUnit resolves a unit name or abbreviation (case-insensitive).
func ParseUnit(s string) (AreaUnit, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if u, ok := aliases[key]; ok {
		return u, nil
	}
	return "", eris.Wrapf(ErrInvalidInput, "units: unknown area unit %q", s)
}

// AreaValue holds an area in square meters together with its value in every
// supported unit.
type AreaValue struct {
	SquareMeters     float64 `json:"square_meters" yaml:"square_meters"`
	Hectares         float64 `json:"hectares" yaml:"hectares"`
	AlqueirePaulista float64 `json:"alqueire_paulista" yaml:"alqueire_paulista"`
	AlqueireMineiro  float64 `json:"alqueire_mineiro" yaml:"alqueire_mineiro"`
}

// In returns the value expressed in unit u. Unknown units return 0.
func (v AreaValue) In(u AreaUnit) float64 {
	switch u {
	case SquareMeters:
		return v.SquareMeters
	case Hectare:
		return v.Hectares
	case AlqueirePaulista:
		return v.AlqueirePaulista
	case AlqueireMineiro:
		return v.AlqueireMineiro
	}
	return 0
}

func checkNonNegative(v float64, what string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return eris.Wrapf(ErrInvalidInput, "units: %s must be a finite non-negative number, got %v", what, v)
	}
	return nil
}
