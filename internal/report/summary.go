package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/middle-housing/internal/model"
)

// RenderSummary writes a boxed count of records per category.
func RenderSummary(w io.Writer, title string, s model.Summary) error {
	st := newStyles(w)

	var b strings.Builder
	fmt.Fprintf(&b, "%-19s %d\n", "Total permits:", s.Total)
	fmt.Fprintf(&b, "%-19s %d (%s)\n", "Middle housing:", s.MiddleHousing, percent(s.MiddleHousing, s.Total))
	fmt.Fprintf(&b, "%-19s %d\n", "New single family:", s.NewSFR)
	fmt.Fprintf(&b, "%-19s %d\n", "Excluded:", s.Excluded)
	if s.Geocoded > 0 {
		fmt.Fprintf(&b, "%-19s %d\n", "Geocoded:", s.Geocoded)
	}
	b.WriteString("\n")
	for _, c := range model.Categories() {
		n := s.ByCategory[c]
		if n == 0 {
			continue
		}
		style := st.categoryStyle(model.Classification{Category: c, IsMiddleHousing: c.IsMiddleHousing()})
		fmt.Fprintf(&b, "  %-22s %d\n", style.Render(c.Label()), n)
	}

	out := st.title.Render(title) + "\n" + st.box.Render(strings.TrimRight(b.String(), "\n"))
	_, err := fmt.Fprintln(w, out)
	return eris.Wrap(err, "report: write summary")
}

func percent(n, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}
