// Package export writes measurement export documents to files in the formats
// agronomists exchange: JSON, YAML, GeoJSON, XLSX workbooks and shapefiles.
package export

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fieldmap-cli/internal/measure"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatJSON      Format = "json"
	FormatYAML      Format = "yaml"
	FormatGeoJSON   Format = "geojson"
	FormatXLSX      Format = "xlsx"
	FormatShapefile Format = "shp"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatYAML, FormatGeoJSON, FormatXLSX, FormatShapefile}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case "yml":
		return FormatYAML, nil
	case "shapefile":
		return FormatShapefile, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", eris.Errorf("export: unknown format %q", s)
}

// Extension returns the file extension for f.
func (f Format) Extension() string {
	return "." + string(f)
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc *measure.ExportDocument) error {
	data, err := measure.MarshalExport(doc)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return measure.NewExportError("write json", err)
	}
	return nil
}

// WriteYAML writes doc as YAML.
func WriteYAML(w io.Writer, doc *measure.ExportDocument) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return measure.NewExportError("encode yaml", err)
	}
	if err := enc.Close(); err != nil {
		return measure.NewExportError("close yaml", err)
	}
	return nil
}

// ToFiles writes doc into dir using base as the file name stem and returns
// the written paths. Shapefile exports produce one file set per geometry
// type. A failed write removes the partial files.
func ToFiles(format Format, doc *measure.ExportDocument, dir, base string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, measure.NewExportError("create dir", err)
	}

	if format == FormatShapefile {
		return WriteShapefiles(doc, dir, base)
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJSON:
		err = WriteJSON(&buf, doc)
	case FormatYAML:
		err = WriteYAML(&buf, doc)
	case FormatGeoJSON:
		err = WriteGeoJSON(&buf, doc)
	case FormatXLSX:
		err = WriteXLSX(&buf, doc)
	default:
		return nil, measure.NewExportError("dispatch", eris.Errorf("export: unknown format %q", format))
	}
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, base+format.Extension())
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return nil, err
	}
	zap.L().Info("export: wrote file",
		zap.String("format", string(format)),
		zap.String("path", path),
		zap.Int("bytes", buf.Len()),
	)
	return []string{path}, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return measure.NewExportError("create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return measure.NewExportError("write file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return measure.NewExportError("close file", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return measure.NewExportError("chmod file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return measure.NewExportError("rename file", err)
	}
	return nil
}
