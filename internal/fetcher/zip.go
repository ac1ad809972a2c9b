package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/middle-housing/internal/model"
)

// readZIPRows parses the single permit export inside a ZIP archive. Entries
// that are not csv, xlsx, or json are ignored, as are macOS resource forks.
func readZIPRows(ctx context.Context, r io.Reader) ([]string, []model.Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, eris.Wrap(err, "zip: read input")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, eris.Wrap(err, "zip: open archive")
	}

	entry, err := exportEntry(zr.File)
	if err != nil {
		return nil, nil, err
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, nil, eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	format := FormatFromName(entry.Name)
	header, rows, err := ReadRows(ctx, rc, format)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "zip: parse %s", entry.Name)
	}
	return header, rows, nil
}

// exportEntry picks the one tabular file in the archive.
func exportEntry(files []*zip.File) (*zip.File, error) {
	var found []*zip.File
	for _, f := range files {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") || strings.HasPrefix(path.Base(f.Name), ".") {
			continue
		}
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".csv", ".txt", ".xlsx", ".xlsm", ".json":
			found = append(found, f)
		}
	}

	if len(found) != 1 {
		return nil, eris.Errorf("zip: expected exactly 1 export file, got %d", len(found))
	}
	return found[0], nil
}
