package fetcher

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/middle-housing/internal/model"
)

// ErrNoDefault is returned by LoadDefault when the default file is absent.
var ErrNoDefault = eris.New("fetcher: default file not found")

// Table is a parsed export.
type Table struct {
	Source  string
	Header  []string
	Columns model.ColumnMap
	Rows    []model.Row
}

// Loader opens permit exports from local paths, http(s) URLs, or ftp URLs.
type Loader struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewLoader returns a Loader with default HTTP and FTP fetchers.
func NewLoader(httpOpts HTTPOptions, ftpOpts FTPOptions) *Loader {
	return &Loader{
		HTTP: NewHTTPFetcher(httpOpts),
		FTP:  NewFTPFetcher(ftpOpts),
	}
}

// Open returns a reader for location. The caller must close it.
func (l *Loader) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	switch {
	case hasScheme(location, "http://"), hasScheme(location, "https://"):
		if l.HTTP == nil {
			return nil, eris.Errorf("fetcher: no http fetcher for %s", location)
		}
		return l.HTTP.Download(ctx, location)
	case hasScheme(location, "ftp://"):
		if l.FTP == nil {
			return nil, eris.Errorf("fetcher: no ftp fetcher for %s", location)
		}
		return l.FTP.Download(ctx, location)
	default:
		f, err := os.Open(location)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", location)
		}
		return f, nil
	}
}

// Load opens and parses location, picking the format from its extension, and
// resolves the classifier columns from the header.
func (l *Loader) Load(ctx context.Context, location string) (*Table, error) {
	rc, err := l.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	header, rows, err := ReadRows(ctx, rc, FormatFromName(location))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse %s", location)
	}

	t := &Table{
		Source:  location,
		Header:  header,
		Columns: ResolveColumns(header),
		Rows:    rows,
	}
	zap.L().Debug("fetcher: loaded table",
		zap.String("source", location),
		zap.Int("rows", len(rows)),
		zap.String("description_col", t.Columns.Description),
		zap.String("project_name_col", t.Columns.ProjectName),
		zap.String("address_col", t.Columns.Address),
	)
	return t, nil
}

// LoadDefault loads the bundled default export at path. A missing local file
// returns ErrNoDefault so callers can fall back to an empty state.
func (l *Loader) LoadDefault(ctx context.Context, path string) (*Table, error) {
	if path == "" {
		return nil, ErrNoDefault
	}
	if !isRemote(path) {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoDefault
		}
	}
	return l.Load(ctx, path)
}

func isRemote(location string) bool {
	return hasScheme(location, "http://") || hasScheme(location, "https://") || hasScheme(location, "ftp://")
}

func hasScheme(location, prefix string) bool {
	return len(location) >= len(prefix) && strings.EqualFold(location[:len(prefix)], prefix)
}
