package units

import (
	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Table holds the conversion factors (square meters per unit) and the locale
// used to render numbers. The alqueire factors are customary regional values
// and may be overridden from configuration.
type Table struct {
	factors map[AreaUnit]float64
	lang    language.Tag
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithAlqueirePaulista overrides the square meters per alqueire paulista.
func WithAlqueirePaulista(m2 float64) TableOption {
	return func(t *Table) { t.factors[AlqueirePaulista] = m2 }
}

// WithAlqueireMineiro overrides the square meters per alqueire mineiro.
func WithAlqueireMineiro(m2 float64) TableOption {
	return func(t *Table) { t.factors[AlqueireMineiro] = m2 }
}

// WithLocale sets the BCP 47 locale used for number formatting.
func WithLocale(tag language.Tag) TableOption {
	return func(t *Table) { t.lang = tag }
}

// NewTable builds a conversion table starting from the canonical factors.
func NewTable(opts ...TableOption) (*Table, error) {
	t := &Table{
		factors: map[AreaUnit]float64{
			SquareMeters:     1,
			Hectare:          SquareMetersPerHectare,
			AlqueirePaulista: SquareMetersPerAlqueirePaulista,
			AlqueireMineiro:  SquareMetersPerAlqueireMineiro,
		},
		lang: language.English,
	}
	for _, opt := range opts {
		opt(t)
	}
	for u, f := range t.factors {
		if !(f > 0) {
			return nil, eris.Wrapf(ErrInvalidInput, "units: factor for %s must be positive, got %v", u, f)
		}
	}
	return t, nil
}

var defaultTable, _ = NewTable()

// DefaultTable returns the table with canonical factors and English number
// formatting.
func DefaultTable() *Table {
	return defaultTable
}

// Factor returns the square meters per unit u.
func (t *Table) Factor(u AreaUnit) (float64, error) {
	f, ok := t.factors[u]
	if !ok {
		return 0, eris.Wrapf(ErrInvalidInput, "units: unknown area unit %q", string(u))
	}
	return f, nil
}

// Locale returns the number formatting locale.
func (t *Table) Locale() language.Tag {
	return t.lang
}

// ConvertArea expresses areaM2 in every supported unit.
func (t *Table) ConvertArea(areaM2 float64) (AreaValue, error) {
	if err := checkNonNegative(areaM2, "area"); err != nil {
		return AreaValue{}, err
	}
	return AreaValue{
		SquareMeters:     areaM2,
		Hectares:         areaM2 / t.factors[Hectare],
		AlqueirePaulista: areaM2 / t.factors[AlqueirePaulista],
		AlqueireMineiro:  areaM2 / t.factors[AlqueireMineiro],
	}, nil
}

// FormatArea renders areaM2 in unit u with two decimals and the unit
// abbreviation, e.g. "1.00 alq".
func (t *Table) FormatArea(areaM2 float64, u AreaUnit) (string, error) {
	if err := checkNonNegative(areaM2, "area"); err != nil {
		return "", err
	}
	f, err := t.Factor(u)
	if err != nil {
		return "", err
	}
	return t.printer().Sprintf("%.2f %s", areaM2/f, u.Abbreviation()), nil
}

// FormatDistance renders meters as "m" below one kilometer and "km" above.
func (t *Table) FormatDistance(meters float64) (string, error) {
	if err := checkNonNegative(meters, "distance"); err != nil {
		return "", err
	}
	if meters < 1000 {
		return t.printer().Sprintf("%.2f m", meters), nil
	}
	return t.printer().Sprintf("%.2f km", meters/1000), nil
}

func (t *Table) printer() *message.Printer {
	return message.NewPrinter(t.lang)
}

// ConvertArea converts with the default table.
func ConvertArea(areaM2 float64) (AreaValue, error) {
	return defaultTable.ConvertArea(areaM2)
}

// FormatArea formats with the default table.
func FormatArea(areaM2 float64, u AreaUnit) (string, error) {
	return defaultTable.FormatArea(areaM2, u)
}

// FormatDistance formats with the default table.
func FormatDistance(meters float64) (string, error) {
	return defaultTable.FormatDistance(meters)
}
