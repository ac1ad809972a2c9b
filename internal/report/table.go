package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/middle-housing/internal/model"
)

// TableOptions controls the list view.
type TableOptions struct {
	Filter   model.FilterStatus
	Limit    int // 0 = all rows
	MaxWidth int // per text column; default 48
}

// RenderTable writes the list view of records: one line per record with its
// category, unit count, and the three classifier inputs. It returns the number
// of rows written.
func RenderTable(w io.Writer, records []model.Record, opts TableOptions) (int, error) {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = 48
	}
	st := newStyles(w)
	shown := model.FilterRecords(records, opts.Filter)
	total := len(shown)
	if opts.Limit > 0 && len(shown) > opts.Limit {
		shown = shown[:opts.Limit]
	}

	if len(shown) == 0 {
		_, err := fmt.Fprintln(w, st.subtle.Render("No permits match the current filter."))
		return 0, eris.Wrap(err, "report: write table")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := []string{"#", "CATEGORY", "UNITS", "DESCRIPTION", "PROJECT", "ADDRESS"}
	for i, h := range headers {
		headers[i] = st.header.Render(h)
	}
	if _, err := fmt.Fprintln(tw, strings.Join(headers, "\t")); err != nil {
		return 0, eris.Wrap(err, "report: write header")
	}

	for _, r := range shown {
		units := ""
		if r.UnitCount > 0 {
			units = strconv.Itoa(r.UnitCount)
		}
		line := strings.Join([]string{
			strconv.Itoa(r.Index + 1),
			st.categoryStyle(r.Classification).Render(string(r.Category)),
			units,
			clip(r.Description, opts.MaxWidth),
			clip(r.ProjectName, opts.MaxWidth),
			clip(r.Address, opts.MaxWidth),
		}, "\t")
		if _, err := fmt.Fprintln(tw, line); err != nil {
			return 0, eris.Wrap(err, "report: write row")
		}
	}
	if err := tw.Flush(); err != nil {
		return 0, eris.Wrap(err, "report: flush table")
	}

	if len(shown) < total {
		if _, err := fmt.Fprintln(w, st.subtle.Render(fmt.Sprintf("… %d more", total-len(shown)))); err != nil {
			return len(shown), eris.Wrap(err, "report: write footer")
		}
	}
	return len(shown), nil
}

// clip flattens whitespace and shortens s to n runes with an ellipsis.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
