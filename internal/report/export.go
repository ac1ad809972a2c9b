package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/middle-housing/internal/model"
)

// Columns appended to the original export columns.
var classificationColumns = []string{"Category", "Middle Housing", "Unit Count", "Latitude", "Longitude"}

// exportHeader returns the source header, or the resolved classifier columns
// when the dataset has no header.
func exportHeader(ds *model.Dataset) []string {
	if len(ds.Header) > 0 {
		return ds.Header
	}
	var h []string
	for _, c := range []string{ds.Columns.Description, ds.Columns.ProjectName, ds.Columns.Address} {
		if c != "" {
			h = append(h, c)
		}
	}
	return h
}

func exportRow(header []string, r model.Record) []string {
	row := make([]string, 0, len(header)+len(classificationColumns))
	for _, h := range header {
		row = append(row, r.Original[h])
	}
	units, lat, lon := "", "", ""
	if r.UnitCount > 0 {
		units = strconv.Itoa(r.UnitCount)
	}
	if r.Location != nil {
		lat = strconv.FormatFloat(r.Location.Latitude, 'f', -1, 64)
		lon = strconv.FormatFloat(r.Location.Longitude, 'f', -1, 64)
	}
	return append(row, string(r.Category), strconv.FormatBool(r.IsMiddleHousing), units, lat, lon)
}

// WriteCSV exports the original columns of each record passing filter,
// followed by its classification.
func WriteCSV(w io.Writer, ds *model.Dataset, filter model.FilterStatus) (int, error) {
	header := exportHeader(ds)
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, header...), classificationColumns...)); err != nil {
		return 0, eris.Wrap(err, "report: write csv header")
	}

	n := 0
	for _, r := range ds.Records {
		if !filter.Matches(r.Classification) {
			continue
		}
		if err := cw.Write(exportRow(header, r)); err != nil {
			return n, eris.Wrapf(err, "report: write csv row %d", r.Index)
		}
		n++
	}
	cw.Flush()
	return n, eris.Wrap(cw.Error(), "report: flush csv")
}

// WriteXLSX exports the same table as WriteCSV as a single-sheet workbook.
func WriteXLSX(w io.Writer, ds *model.Dataset, filter model.FilterStatus) (int, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Permits")
	if err != nil {
		return 0, eris.Wrap(err, "report: add sheet")
	}

	header := exportHeader(ds)
	hr := sheet.AddRow()
	for _, h := range append(append([]string{}, header...), classificationColumns...) {
		hr.AddCell().SetString(h)
	}

	n := 0
	for _, r := range ds.Records {
		if !filter.Matches(r.Classification) {
			continue
		}
		row := sheet.AddRow()
		for _, v := range exportRow(header, r)[:len(header)+2] {
			row.AddCell().SetString(v)
		}
		if r.UnitCount > 0 {
			row.AddCell().SetInt(r.UnitCount)
		} else {
			row.AddCell()
		}
		if r.Location != nil {
			row.AddCell().SetFloat(r.Location.Latitude)
			row.AddCell().SetFloat(r.Location.Longitude)
		}
		n++
	}

	if err := f.Write(w); err != nil {
		return n, eris.Wrap(err, "report: write xlsx")
	}
	return n, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "report: write json")
}
