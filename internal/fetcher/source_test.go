package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const samplePermits = "Description,Property/Project Name,Address\n" +
	"New construction of a detached accessory dwelling unit,,123 Main St\n" +
	"Remodel kitchen and bath,,77 Pine St\n"

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLoader() *Loader {
	return NewLoader(
		HTTPOptions{RateLimit: rate.Inf, BackoffBase: time.Millisecond, MaxRetries: 1},
		FTPOptions{Timeout: 5 * time.Second},
	)
}

func TestLoader_LoadLocal(t *testing.T) {
	path := writeTestFile(t, "permits.csv", samplePermits)

	tbl, err := newTestLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, path, tbl.Source)
	assert.Equal(t, "Description", tbl.Columns.Description)
	assert.Equal(t, "Property/Project Name", tbl.Columns.ProjectName)
	assert.Equal(t, "Address", tbl.Columns.Address)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "77 Pine St", tbl.Rows[1]["Address"])
}

func TestLoader_LoadHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exports/permits.csv", r.URL.Path)
		w.Write([]byte(samplePermits)) //nolint:errcheck
	}))
	defer srv.Close()

	tbl, err := newTestLoader().Load(context.Background(), srv.URL+"/exports/permits.csv")
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 2)
}

func TestLoader_LoadFTP(t *testing.T) {
	srv := newMiniFTPServer(t, map[string]string{"/permits.csv": samplePermits})
	defer srv.close()

	tbl, err := newTestLoader().Load(context.Background(), fmt.Sprintf("ftp://%s/permits.csv", srv.addr()))
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 2)
}

type stubFetcher struct {
	body string
	err  error
	urls []string
}

func (s *stubFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	s.urls = append(s.urls, url)
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestLoader_OpenRoutesByScheme(t *testing.T) {
	httpF := &stubFetcher{body: "h"}
	ftpF := &stubFetcher{body: "f"}
	l := &Loader{HTTP: httpF, FTP: ftpF}

	for _, loc := range []string{"https://a.example/x.csv", "HTTP://b.example/y.csv", "ftp://c.example/z.csv"} {
		rc, err := l.Open(context.Background(), loc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
	}
	assert.Equal(t, []string{"https://a.example/x.csv", "HTTP://b.example/y.csv"}, httpF.urls)
	assert.Equal(t, []string{"ftp://c.example/z.csv"}, ftpF.urls)

	_, err := (&Loader{}).Open(context.Background(), "https://a.example/x.csv")
	require.Error(t, err)
}

func TestLoader_LoadErrors(t *testing.T) {
	l := &Loader{HTTP: &stubFetcher{err: errors.New("boom")}}

	_, err := l.Load(context.Background(), "https://a.example/x.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher: open")

	empty := writeTestFile(t, "empty.csv", "")
	_, err = l.Load(context.Background(), empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestLoader_LoadDefault(t *testing.T) {
	l := newTestLoader()

	_, err := l.LoadDefault(context.Background(), filepath.Join(t.TempDir(), "permits.csv"))
	assert.True(t, errors.Is(err, ErrNoDefault))

	_, err = l.LoadDefault(context.Background(), "")
	assert.True(t, errors.Is(err, ErrNoDefault))

	path := writeTestFile(t, "permits.csv", samplePermits)
	tbl, err := l.LoadDefault(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 2)
}
