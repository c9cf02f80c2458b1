package export

import (
	"io"

	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/units"
)

// Sheet names used in workbook exports.
const (
	SheetDistances = "Distances"
	SheetAreas     = "Areas"
	SheetSettings  = "Settings"
)

var distanceHeader = []string{"ID", "Points", "Distance (m)", "Distance", "Created At"}

var areaHeader = []string{
	"ID", "Tool", "Points", "Area (m²)", "Hectares", "Alqueire Paulista", "Alqueire Mineiro",
	"Perimeter (m)", "Preferred Unit", "Area", "Perimeter", "Snap To Field", "Created At",
}

// Workbook builds an XLSX workbook with one sheet per measurement kind.
func Workbook(doc *measure.ExportDocument) (*xlsx.File, error) {
	f := xlsx.NewFile()

	ds, err := f.AddSheet(SheetDistances)
	if err != nil {
		return nil, measure.NewExportError("add distances sheet", err)
	}
	addHeader(ds, distanceHeader)
	for _, d := range doc.Distances {
		row := ds.AddRow()
		row.AddCell().SetString(d.ID)
		row.AddCell().SetInt(len(d.Points))
		row.AddCell().SetFloat(d.DistanceMeters)
		row.AddCell().SetString(d.Formatted)
		row.AddCell().SetDateTime(d.CreatedAt)
	}

	as, err := f.AddSheet(SheetAreas)
	if err != nil {
		return nil, measure.NewExportError("add areas sheet", err)
	}
	addHeader(as, areaHeader)
	for _, a := range doc.Areas {
		row := as.AddRow()
		row.AddCell().SetString(a.ID)
		row.AddCell().SetString(string(a.Tool))
		row.AddCell().SetInt(len(a.Points))
		row.AddCell().SetFloat(a.Area.SquareMeters)
		row.AddCell().SetFloat(a.Area.Hectares)
		row.AddCell().SetFloat(a.Area.AlqueirePaulista)
		row.AddCell().SetFloat(a.Area.AlqueireMineiro)
		row.AddCell().SetFloat(a.PerimeterMeters)
		row.AddCell().SetString(a.PreferredUnit.Abbreviation())
		row.AddCell().SetString(a.Formatted)
		row.AddCell().SetString(a.FormattedPerimeter)
		row.AddCell().SetBool(a.SnapToFieldEnabled)
		row.AddCell().SetDateTime(a.CreatedAt)
	}

	ss, err := f.AddSheet(SheetSettings)
	if err != nil {
		return nil, measure.NewExportError("add settings sheet", err)
	}
	addPair(ss, "Exported At", doc.ExportedAt.Format("2006-01-02T15:04:05Z07:00"))
	addPair(ss, "Preferred Unit", string(doc.Settings.PreferredUnit))
	addPair(ss, "Snap To Field", boolLabel(doc.Settings.SnapToFieldEnabled))
	addPair(ss, "Total Distance", doc.Summary.TotalDistance)
	addPair(ss, "Total Area", doc.Summary.TotalArea)
	for _, u := range units.AllUnits {
		factor, ok := doc.Settings.Factors[u]
		if !ok {
			continue
		}
		row := ss.AddRow()
		row.AddCell().SetString("m² per " + u.Abbreviation())
		row.AddCell().SetFloat(factor)
	}

	return f, nil
}

// WriteXLSX writes doc as an XLSX workbook.
func WriteXLSX(w io.Writer, doc *measure.ExportDocument) error {
	f, err := Workbook(doc)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return measure.NewExportError("write xlsx", err)
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, names []string) {
	row := sheet.AddRow()
	for _, n := range names {
		cell := row.AddCell()
		cell.SetString(n)
		style := xlsx.NewStyle()
		style.Font.Bold = true
		style.ApplyFont = true
		cell.SetStyle(style)
	}
}

func addPair(sheet *xlsx.Sheet, key, value string) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetString(value)
}

func boolLabel(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
