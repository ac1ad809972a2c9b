package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/middle-housing/internal/db"
	"github.com/sells-group/middle-housing/internal/geo"
	"github.com/sells-group/middle-housing/internal/model"
	"github.com/sells-group/middle-housing/pkg/geocode"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Geocoded points are kept as EWKB (SRID 4326) alongside the raw lat/lon so
// the table can be cast to PostGIS geometry without re-encoding.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	header         JSONB NOT NULL DEFAULT '[]',
	columns        JSONB NOT NULL DEFAULT '{}',
	total          INTEGER NOT NULL DEFAULT 0,
	middle_housing INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS permit_records (
	dataset_id        TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	idx               INTEGER NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	project_name      TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL,
	is_middle_housing BOOLEAN NOT NULL DEFAULT false,
	unit_count        INTEGER NOT NULL DEFAULT 0,
	signals           JSONB NOT NULL DEFAULT '[]',
	original          JSONB NOT NULL DEFAULT '{}',
	latitude          DOUBLE PRECISION,
	longitude         DOUBLE PRECISION,
	geocode_source    TEXT NOT NULL DEFAULT '',
	geocode_quality   TEXT NOT NULL DEFAULT '',
	geocode_error     TEXT NOT NULL DEFAULT '',
	geom_ewkb         BYTEA,
	PRIMARY KEY (dataset_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_permit_records_category ON permit_records(dataset_id, category);
CREATE INDEX IF NOT EXISTS idx_datasets_created_at ON datasets(created_at DESC);

CREATE TABLE IF NOT EXISTS geocode_cache (
	address_key TEXT PRIMARY KEY,
	result      JSONB NOT NULL,
	cached_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// pgRecordColumns extends recordColumns with the EWKB point.
var pgRecordColumns = append(append([]string{}, recordColumns...), "geom_ewkb")

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveDataset upserts the dataset row and replaces its records with a COPY.
func (s *PostgresStore) SaveDataset(ctx context.Context, ds *model.Dataset) error {
	prepare(ds)
	header, columns, err := encodeDatasetMeta(ds)
	if err != nil {
		return err
	}

	rows := make([][]any, 0, len(ds.Records))
	for _, r := range ds.Records {
		vals, err := recordValues(ds.ID, r)
		if err != nil {
			return err
		}
		point, err := geo.PointEWKB(r.Location)
		if err != nil {
			return eris.Wrapf(err, "postgres: encode point for record %d", r.Index)
		}
		rows = append(rows, append(vals, point))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO datasets (id, name, header, columns, total, middle_housing, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, header = EXCLUDED.header,
			columns = EXCLUDED.columns, total = EXCLUDED.total, middle_housing = EXCLUDED.middle_housing`,
		ds.ID, ds.Name, header, columns, len(ds.Records), countMiddleHousing(ds.Records), ds.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert dataset %s", ds.ID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM permit_records WHERE dataset_id = $1`, ds.ID); err != nil {
		return eris.Wrapf(err, "postgres: clear records %s", ds.ID)
	}
	n, err := db.CopyFrom(ctx, tx, "permit_records", pgRecordColumns, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: copy records")
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit dataset")
	}

	zap.L().Debug("postgres: saved dataset", zap.String("id", ds.ID), zap.Int64("records", n))
	return nil
}

func (s *PostgresStore) GetDataset(ctx context.Context, id string) (*model.Dataset, error) {
	ds := &model.Dataset{}
	var header, columns string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, header, columns, created_at FROM datasets WHERE id = $1`, id,
	).Scan(&ds.ID, &ds.Name, &header, &columns, &ds.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: dataset %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get dataset %s", id)
	}
	if err := decodeDatasetMeta(ds, header, columns); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectRecordColumns+` FROM permit_records WHERE dataset_id = $1 ORDER BY idx`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query records %s", id)
	}
	defer rows.Close()

	ds.Records = []model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		ds.Records = append(ds.Records, r)
	}
	return ds, eris.Wrap(rows.Err(), "postgres: iterate records")
}

func (s *PostgresStore) ListDatasets(ctx context.Context) ([]model.DatasetInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at, total, middle_housing FROM datasets ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list datasets")
	}
	defer rows.Close()

	infos := []model.DatasetInfo{}
	for rows.Next() {
		var info model.DatasetInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.CreatedAt, &info.Total, &info.MiddleHousing); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dataset")
		}
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "postgres: iterate datasets")
}

// DeleteDataset removes a dataset; its records go with it via ON DELETE CASCADE.
func (s *PostgresStore) DeleteDataset(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete dataset %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: dataset %s", id)
	}
	return nil
}

func (s *PostgresStore) GetCachedGeocode(ctx context.Context, key string, maxAge time.Duration) (*geocode.Result, bool, error) {
	var resultJSON string
	var cachedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT result, cached_at FROM geocode_cache WHERE address_key = $1`, key,
	).Scan(&resultJSON, &cachedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get cached geocode")
	}
	return cacheHit(resultJSON, cachedAt, maxAge)
}

func (s *PostgresStore) SetCachedGeocode(ctx context.Context, key string, result geocode.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal geocode result")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO geocode_cache (address_key, result, cached_at) VALUES ($1, $2, $3)
		ON CONFLICT (address_key) DO UPDATE SET result = EXCLUDED.result, cached_at = EXCLUDED.cached_at`,
		key, string(data), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: set cached geocode")
}

var _ Store = (*PostgresStore)(nil)
