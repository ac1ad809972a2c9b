package fetcher

import (
	"strings"

	"github.com/sells-group/middle-housing/internal/model"
)

// Header hints are matched case-insensitively as substrings of header names.
const (
	DescriptionHint = "description"
	ProjectNameHint = "project name"
	AddressHint     = "address"
)

// Fallback column names used when no header matches a hint. They follow the
// Seattle building permit export.
const (
	DefaultDescriptionColumn = "Description"
	DefaultProjectNameColumn = "Property/Project Name"
	DefaultAddressColumn     = "Address"
)

// ResolveColumns picks the description, project name, and address columns
// from header. The first header containing each hint wins; a column is never
// assigned to two fields. Fields with no match get the fallback names, which
// simply extract "" when absent from the data.
func ResolveColumns(header []string) model.ColumnMap {
	used := make(map[string]bool, 3)
	find := func(hint, fallback string) string {
		for _, h := range header {
			if used[h] {
				continue
			}
			if strings.Contains(normalizeHeader(h), hint) {
				used[h] = true
				return h
			}
		}
		return fallback
	}

	return model.ColumnMap{
		Description: find(DescriptionHint, DefaultDescriptionColumn),
		ProjectName: find(ProjectNameHint, DefaultProjectNameColumn),
		Address:     find(AddressHint, DefaultAddressColumn),
	}
}

// normalizeHeader lower-cases h and turns separators into single spaces so
// "Project_Name" and "Property/Project Name" both contain "project name".
func normalizeHeader(h string) string {
	h = strings.ToLower(h)
	h = strings.NewReplacer("_", " ", "-", " ", "/", " ", ".", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}
