package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/middle-housing/internal/model"
)

// Format identifies a tabular export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json" // open-data portal export: array of flat objects
	FormatZIP  Format = "zip"  // archive holding one csv, xlsx, or json export
)

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = eris.New("fetcher: input has no header row")

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "csv", "txt":
		return FormatCSV, nil
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	case "json":
		return FormatJSON, nil
	case "zip":
		return FormatZIP, nil
	default:
		return "", eris.Errorf("fetcher: unsupported format %q", s)
	}
}

// FormatFromName guesses the format from a file name, path, or URL.
// Anything unrecognized is read as CSV.
func FormatFromName(name string) Format {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		name = u.Path
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".json":
		return FormatJSON
	case ".zip":
		return FormatZIP
	default:
		return FormatCSV
	}
}

// ReadRows parses a CSV, XLSX, JSON, or zipped export into its header and one
// Row per data line. Blank lines are skipped, short rows are padded with "", and fields
// beyond the header are dropped.
func ReadRows(ctx context.Context, r io.Reader, format Format) ([]string, []model.Row, error) {
	var records [][]string
	var err error

	switch format {
	case FormatXLSX:
		records, err = readXLSXRecords(r)
	case FormatCSV, "":
		records, err = readCSVRecords(ctx, r)
	case FormatJSON:
		records, err = readJSONRecords(ctx, r)
	case FormatZIP:
		return readZIPRows(ctx, r)
	default:
		return nil, nil, eris.Errorf("fetcher: unsupported format %q", format)
	}
	if err != nil {
		return nil, nil, err
	}

	return buildRows(records)
}

func readCSVRecords(ctx context.Context, r io.Reader) ([][]string, error) {
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{
		LazyQuotes:     true,
		SkipEmptyLines: true,
	})

	var records [][]string
	for row := range rowCh {
		records = append(records, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

func readXLSXRecords(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: read input")
	}
	return ParseXLSX(data, XLSXOptions{})
}

// buildRows turns raw records into a cleaned header and keyed rows.
func buildRows(records [][]string) ([]string, []model.Row, error) {
	start := 0
	for start < len(records) && blank(records[start]) {
		start++
	}
	if start == len(records) {
		return nil, nil, ErrNoHeader
	}

	header := cleanHeader(records[start])
	rows := make([]model.Row, 0, len(records)-start-1)
	for _, rec := range records[start+1:] {
		if blank(rec) {
			continue
		}
		row := make(model.Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// cleanHeader trims header names, strips a UTF-8 byte order mark, names blank
// columns by position, and disambiguates duplicates.
func cleanHeader(raw []string) []string {
	header := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("Column %d", i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}
		header[i] = name
	}
	return header
}
