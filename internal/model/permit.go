package model

import (
	"maps"
	"strings"
	"time"
)

// Row is one source row keyed by its header name.
type Row map[string]string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return Row{}
	}
	return maps.Clone(r)
}

// ColumnMap names the source columns holding the three classifier inputs.
type ColumnMap struct {
	Description string `json:"description"`
	ProjectName string `json:"project_name"`
	Address     string `json:"address"`
}

// Extract returns the description, project name, and address values of row.
// Missing columns yield empty strings.
func (m ColumnMap) Extract(row Row) (description, projectName, address string) {
	return row[m.Description], row[m.ProjectName], row[m.Address]
}

// Classification is the result of classifying one permit record.
type Classification struct {
	Category        Category `json:"category"`
	IsMiddleHousing bool     `json:"is_middle_housing"`
	UnitCount       int      `json:"unit_count,omitempty"`
	Signals         []string `json:"signals,omitempty"`
	Original        Row      `json:"original"`
}

// Location is a geocoded coordinate for a permit address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Source    string  `json:"source,omitempty"`
	Quality   string  `json:"quality,omitempty"`
}

// Record is a classified permit row positioned within its dataset.
type Record struct {
	Index        int       `json:"index"`
	Description  string    `json:"description"`
	ProjectName  string    `json:"project_name"`
	Address      string    `json:"address"`
	Location     *Location `json:"location,omitempty"`
	GeocodeError string    `json:"geocode_error,omitempty"`

	Classification
}

// Dataset is one loaded permit file and its classified records. It is held
// for the lifetime of the load and discarded on reset.
type Dataset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Header    []string  `json:"header"`
	Columns   ColumnMap `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
	Records   []Record  `json:"records"`
}

// DatasetInfo is the listing view of a stored dataset.
type DatasetInfo struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	Total         int       `json:"total"`
	MiddleHousing int       `json:"middle_housing"`
}

// FilterStatus selects which records a view shows.
type FilterStatus string

const (
	FilterAll               FilterStatus = "ALL"
	FilterMiddleHousingOnly FilterStatus = "MIDDLE_HOUSING_ONLY"
	FilterExcluded          FilterStatus = "EXCLUDED"
)

// ParseFilterStatus maps user input onto a FilterStatus. Unknown or empty
// input selects FilterAll.
func ParseFilterStatus(s string) FilterStatus {
	switch strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "MIDDLE_HOUSING_ONLY", "MIDDLE_HOUSING", "MIDDLE":
		return FilterMiddleHousingOnly
	case "EXCLUDED":
		return FilterExcluded
	}
	return FilterAll
}

// Matches reports whether a classification passes the filter. EXCLUDED shows
// everything that is not middle housing, matching the list view.
func (f FilterStatus) Matches(c Classification) bool {
	switch f {
	case FilterMiddleHousingOnly:
		return c.IsMiddleHousing
	case FilterExcluded:
		return !c.IsMiddleHousing
	}
	return true
}

// FilterRecords returns the records that pass f, preserving order.
func FilterRecords(records []Record, f FilterStatus) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Matches(r.Classification) {
			out = append(out, r)
		}
	}
	return out
}

// Summary aggregates category counts for a set of records.
type Summary struct {
	Total         int              `json:"total"`
	MiddleHousing int              `json:"middle_housing"`
	NewSFR        int              `json:"new_sfr"`
	Excluded      int              `json:"excluded"`
	Geocoded      int              `json:"geocoded"`
	ByCategory    map[Category]int `json:"by_category"`
}

// Summarize counts records per category.
func Summarize(records []Record) Summary {
	s := Summary{ByCategory: make(map[Category]int, len(Categories()))}
	for _, r := range records {
		s.Total++
		s.ByCategory[r.Category]++
		switch {
		case r.IsMiddleHousing:
			s.MiddleHousing++
		case r.Category == CategoryNewSFR:
			s.NewSFR++
		default:
			s.Excluded++
		}
		if r.Location != nil {
			s.Geocoded++
		}
	}
	return s
}
