// Package store persists classified permit datasets and the geocode cache.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/middle-housing/internal/db"
	"github.com/sells-group/middle-housing/internal/model"
	"github.com/sells-group/middle-housing/pkg/geocode"
)

// ErrNotFound is returned when a dataset does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for classified datasets.
type Store interface {
	// Datasets
	SaveDataset(ctx context.Context, ds *model.Dataset) error
	GetDataset(ctx context.Context, id string) (*model.Dataset, error)
	ListDatasets(ctx context.Context) ([]model.DatasetInfo, error)
	DeleteDataset(ctx context.Context, id string) error

	// Geocode cache
	GetCachedGeocode(ctx context.Context, key string, maxAge time.Duration) (*geocode.Result, bool, error)
	SetCachedGeocode(ctx context.Context, key string, result geocode.Result) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a Store implementation.
type Config struct {
	Driver string        `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string        `yaml:"dsn" mapstructure:"dsn"`
	Pool   db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open connects to the configured store and runs migrations.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		s, err = NewSQLite(cfg.DSN)
	case "postgres", "postgresql", "pgx":
		s, err = NewPostgres(ctx, cfg.DSN, cfg.Pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// prepare assigns an ID and creation time to a new dataset.
func prepare(ds *model.Dataset) {
	if ds.ID == "" {
		ds.ID = uuid.New().String()
	}
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt = time.Now().UTC()
	}
}

func countMiddleHousing(records []model.Record) int {
	n := 0
	for _, r := range records {
		if r.IsMiddleHousing {
			n++
		}
	}
	return n
}

// recordColumns is the column order shared by both backends.
var recordColumns = []string{
	"dataset_id", "idx", "description", "project_name", "address",
	"category", "is_middle_housing", "unit_count", "signals", "original",
	"latitude", "longitude", "geocode_source", "geocode_quality", "geocode_error",
}

// recordValues flattens r in recordColumns order.
func recordValues(datasetID string, r model.Record) ([]any, error) {
	signals := r.Signals
	if signals == nil {
		signals = []string{}
	}
	signalsJSON, err := json.Marshal(signals)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal signals")
	}
	original := r.Original
	if original == nil {
		original = model.Row{}
	}
	originalJSON, err := json.Marshal(original)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal original row")
	}

	var lat, lon *float64
	var source, quality string
	if r.Location != nil {
		lat, lon = &r.Location.Latitude, &r.Location.Longitude
		source, quality = r.Location.Source, r.Location.Quality
	}
	return []any{
		datasetID, r.Index, r.Description, r.ProjectName, r.Address,
		string(r.Category), r.IsMiddleHousing, r.UnitCount, string(signalsJSON), string(originalJSON),
		lat, lon, source, quality, r.GeocodeError,
	}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

// scanRecord reads one row selected in recordColumns order, minus dataset_id.
func scanRecord(row scannable) (model.Record, error) {
	var (
		r                     model.Record
		category              string
		signalsJSON, origJSON string
		lat, lon              *float64
		source, quality       string
	)
	err := row.Scan(&r.Index, &r.Description, &r.ProjectName, &r.Address,
		&category, &r.IsMiddleHousing, &r.UnitCount, &signalsJSON, &origJSON,
		&lat, &lon, &source, &quality, &r.GeocodeError)
	if err != nil {
		return r, eris.Wrap(err, "store: scan record")
	}
	r.Category = model.Category(category)
	if err := json.Unmarshal([]byte(signalsJSON), &r.Signals); err != nil {
		return r, eris.Wrap(err, "store: unmarshal signals")
	}
	if len(r.Signals) == 0 {
		r.Signals = nil
	}
	if err := json.Unmarshal([]byte(origJSON), &r.Original); err != nil {
		return r, eris.Wrap(err, "store: unmarshal original row")
	}
	if lat != nil && lon != nil {
		r.Location = &model.Location{Latitude: *lat, Longitude: *lon, Source: source, Quality: quality}
	}
	return r, nil
}

const selectRecordColumns = `idx, description, project_name, address, category, is_middle_housing,
	unit_count, signals, original, latitude, longitude, geocode_source, geocode_quality, geocode_error`

func encodeDatasetMeta(ds *model.Dataset) (header, columns string, err error) {
	h, err := json.Marshal(ds.Header)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal header")
	}
	c, err := json.Marshal(ds.Columns)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal columns")
	}
	return string(h), string(c), nil
}

func decodeDatasetMeta(ds *model.Dataset, header, columns string) error {
	if err := json.Unmarshal([]byte(header), &ds.Header); err != nil {
		return eris.Wrap(err, "store: unmarshal header")
	}
	if err := json.Unmarshal([]byte(columns), &ds.Columns); err != nil {
		return eris.Wrap(err, "store: unmarshal columns")
	}
	return nil
}

// cacheHit decodes a cache row and applies maxAge (0 disables expiry).
func cacheHit(resultJSON string, cachedAt time.Time, maxAge time.Duration) (*geocode.Result, bool, error) {
	if maxAge > 0 && time.Since(cachedAt) > maxAge {
		return nil, false, nil
	}
	var r geocode.Result
	if err := json.Unmarshal([]byte(resultJSON), &r); err != nil {
		return nil, false, eris.Wrap(err, "store: unmarshal geocode result")
	}
	return &r, true, nil
}
